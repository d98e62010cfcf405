package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/credential-service/internal/model"
	"github.com/iliyamo/credential-service/internal/queue"
	"github.com/iliyamo/credential-service/internal/repository"
	"github.com/iliyamo/credential-service/internal/utils"
)

// UserStore persists user records.
type UserStore interface {
	Create(ctx context.Context, u model.User) (uint64, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	GetByIdentifier(ctx context.Context, identifier string) (model.User, error)
}

// UserSummary is the public view of a user.
type UserSummary struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token utils.AccessToken
	User  UserSummary
}

// CredentialService registers users and signs them in.
type CredentialService struct {
	users      UserStore
	hasher     *utils.PasswordHasher
	signer     *utils.Signer
	sessionTTL time.Duration
	events     queue.Publisher
	log        *zap.Logger
}

func NewCredentialService(users UserStore, hasher *utils.PasswordHasher, signer *utils.Signer, sessionTTL time.Duration, events queue.Publisher, log *zap.Logger) *CredentialService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialService{
		users:      users,
		hasher:     hasher,
		signer:     signer,
		sessionTTL: sessionTTL,
		events:     events,
		log:        log,
	}
}

// Register validates the input, creates the user and returns a session token.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := CheckInput(in); err != nil {
		return AuthResult{}, err
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return AuthResult{}, Internal(err)
	}
	if exists {
		return AuthResult{}, Conflict(MsgAlreadyExists)
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return AuthResult{}, Validation("invalid input", FieldError{Field: "password", Message: "must be at most 72 bytes"})
	}
	if err != nil {
		return AuthResult{}, Internal(err)
	}
	u := model.User{Email: in.Email, Username: in.Username, PasswordHash: hash}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return AuthResult{}, Conflict(MsgAlreadyExists)
		}
		return AuthResult{}, Internal(err)
	}
	u.ID = id
	u.CreatedAt = time.Now().UTC()

	res, err := s.issue(u)
	if err != nil {
		return AuthResult{}, err
	}
	emit(ctx, s.events, s.log, queue.AuthEvent{Type: queue.EventUserRegistered, UserID: id, Subject: u.Username})
	return res, nil
}

// Login signs in by email or username. Unknown identifiers and wrong
// passwords fail with the same error.
func (s *CredentialService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if err := CheckInput(in); err != nil {
		return AuthResult{}, err
	}
	identifier := in.Identifier
	if strings.Contains(identifier, "@") {
		identifier = strings.ToLower(identifier)
	}

	u, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.VerifyDummy(in.Password)
			return AuthResult{}, Auth(MsgInvalidCredentials)
		}
		return AuthResult{}, Internal(err)
	}
	if !s.hasher.Verify(in.Password, u.PasswordHash) {
		return AuthResult{}, Auth(MsgInvalidCredentials)
	}

	res, err := s.issue(u)
	if err != nil {
		return AuthResult{}, err
	}
	emit(ctx, s.events, s.log, queue.AuthEvent{Type: queue.EventUserLoggedIn, UserID: u.ID, Subject: u.Username})
	return res, nil
}

// Authenticate verifies a session token.
func (s *CredentialService) Authenticate(token string) (model.SessionClaims, error) {
	claims, err := s.signer.VerifySession(token)
	if err != nil {
		return model.SessionClaims{}, Auth(MsgInvalidToken)
	}
	return claims, nil
}

func (s *CredentialService) issue(u model.User) (AuthResult, error) {
	tok, err := s.signer.SignSession(model.SessionClaims{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
	}, s.sessionTTL)
	if err != nil {
		return AuthResult{}, Internal(err)
	}
	return AuthResult{
		Token: tok,
		User:  UserSummary{ID: u.ID, Email: u.Email, Username: u.Username, CreatedAt: u.CreatedAt},
	}, nil
}

// emit publishes ev and only logs failures.
func emit(ctx context.Context, p queue.Publisher, log *zap.Logger, ev queue.AuthEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn("publish auth event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
