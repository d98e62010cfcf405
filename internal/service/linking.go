package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/credential-service/internal/model"
	"github.com/iliyamo/credential-service/internal/oauthstate"
	"github.com/iliyamo/credential-service/internal/provider"
	"github.com/iliyamo/credential-service/internal/queue"
	"github.com/iliyamo/credential-service/internal/repository"
	"github.com/iliyamo/credential-service/internal/utils"
)

var (
	ErrNotLinked   = errors.New("account not linked")
	ErrLinkExpired = errors.New("linked token expired")
)

// OAuthProvider is the third-party side of the linking flow.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (provider.Token, error)
	VerifyToken(ctx context.Context, accessToken string) error
}

// LinkedTokenStore persists provider tokens.
type LinkedTokenStore interface {
	Upsert(ctx context.Context, t model.LinkedAccountToken) error
	Get(ctx context.Context, userID uint64, provider string) (model.LinkedAccountToken, error)
}

// LinkStart is returned by Initiate. State must be kept by the caller (a
// short-lived cookie) and handed back to Callback.
type LinkStart struct {
	AuthURL   string
	State     string
	ExpiresAt time.Time
}

// CallbackInput carries what the provider redirect and the browser returned.
type CallbackInput struct {
	Code          string
	State         string
	StoredState   string
	ProviderError string
}

// LinkStatus reports whether a user holds a usable provider token.
type LinkStatus struct {
	Linked    bool       `json:"linked"`
	Provider  string     `json:"provider"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Scope     string     `json:"scope,omitempty"`
}

// LinkService runs the OAuth authorization-code flow that links a
// third-party account to a user.
type LinkService struct {
	provider        OAuthProvider
	signer          *utils.Signer
	nonces          oauthstate.Store
	tokens          LinkedTokenStore
	stateTTL        time.Duration
	defaultTokenTTL time.Duration
	events          queue.Publisher
	log             *zap.Logger
	now             func() time.Time
}

func NewLinkService(p OAuthProvider, signer *utils.Signer, nonces oauthstate.Store, tokens LinkedTokenStore, stateTTL, defaultTokenTTL time.Duration, events queue.Publisher, log *zap.Logger) *LinkService {
	if stateTTL <= 0 {
		stateTTL = 60 * time.Second
	}
	if defaultTokenTTL <= 0 {
		defaultTokenTTL = 24 * time.Hour
	}
	if events == nil {
		events = queue.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkService{
		provider:        p,
		signer:          signer,
		nonces:          nonces,
		tokens:          tokens,
		stateTTL:        stateTTL,
		defaultTokenTTL: defaultTokenTTL,
		events:          events,
		log:             log,
		now:             time.Now,
	}
}

// StateTTL is how long a state issued by Initiate stays valid.
func (s *LinkService) StateTTL() time.Duration { return s.stateTTL }

// Initiate starts a linking flow for userID. The returned state is a signed
// token binding a fresh nonce to the user.
func (s *LinkService) Initiate(ctx context.Context, userID uint64) (LinkStart, error) {
	nonce, err := utils.RandomHex(16)
	if err != nil {
		return LinkStart{}, Internal(err)
	}
	tok, err := s.signer.SignState(userID, nonce, s.stateTTL)
	if err != nil {
		return LinkStart{}, Internal(err)
	}
	return LinkStart{
		AuthURL:   s.provider.AuthCodeURL(tok.Token),
		State:     tok.Token,
		ExpiresAt: tok.Exp,
	}, nil
}

// Callback validates the returned state against the stored one, exchanges
// the code and stores the provider token for the user who initiated the flow.
func (s *LinkService) Callback(ctx context.Context, in CallbackInput) (model.LinkedAccountToken, error) {
	if in.ProviderError != "" {
		return model.LinkedAccountToken{}, Upstream(MsgExchangeFailed, fmt.Errorf("provider returned error %q", in.ProviderError))
	}
	if in.Code == "" || in.State == "" {
		return model.LinkedAccountToken{}, Validation("missing code or state")
	}
	if in.StoredState == "" || subtle.ConstantTimeCompare([]byte(in.State), []byte(in.StoredState)) != 1 {
		return model.LinkedAccountToken{}, Auth(MsgInvalidState)
	}
	claims, err := s.signer.VerifyState(in.State)
	if err != nil {
		return model.LinkedAccountToken{}, Auth(MsgInvalidState)
	}

	now := s.now()
	// keep the nonce at least as long as the state could still verify
	ttl := claims.ExpiresAt.Sub(now) + time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	fresh, err := s.nonces.Consume(ctx, claims.Nonce, ttl)
	if err != nil {
		return model.LinkedAccountToken{}, Internal(err)
	}
	if !fresh {
		return model.LinkedAccountToken{}, Auth(MsgInvalidState)
	}

	issued, err := s.provider.Exchange(ctx, in.Code)
	if err != nil {
		return model.LinkedAccountToken{}, Upstream(MsgExchangeFailed, err)
	}
	if err := s.provider.VerifyToken(ctx, issued.AccessToken); err != nil {
		return model.LinkedAccountToken{}, Upstream(MsgExchangeFailed, err)
	}

	expiresAt := issued.Expiry
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.defaultTokenTTL)
	}
	t := model.LinkedAccountToken{
		UserID:       claims.UserID,
		Provider:     s.provider.Name(),
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		Scope:        issued.Scope,
		ExpiresAt:    expiresAt.UTC(),
		UpdatedAt:    now.UTC(),
	}
	if err := s.tokens.Upsert(ctx, t); err != nil {
		return model.LinkedAccountToken{}, Internal(err)
	}
	s.log.Info("account linked", zap.Uint64("user_id", t.UserID), zap.String("provider", t.Provider))
	emit(ctx, s.events, s.log, queue.AuthEvent{Type: queue.EventAccountLinked, UserID: t.UserID, Subject: t.Provider})
	return t, nil
}

// ActiveToken returns the user's provider token if it has not expired.
func (s *LinkService) ActiveToken(ctx context.Context, userID uint64) (model.LinkedAccountToken, error) {
	t, err := s.tokens.Get(ctx, userID, s.provider.Name())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.LinkedAccountToken{}, &Error{Kind: KindAuth, Message: ErrNotLinked.Error(), Err: ErrNotLinked}
		}
		return model.LinkedAccountToken{}, Internal(err)
	}
	if t.Expired(s.now()) {
		return t, &Error{Kind: KindAuth, Message: ErrLinkExpired.Error(), Err: ErrLinkExpired}
	}
	return t, nil
}

// Status reports the link state for userID without exposing the token.
func (s *LinkService) Status(ctx context.Context, userID uint64) (LinkStatus, error) {
	st := LinkStatus{Provider: s.provider.Name()}
	t, err := s.ActiveToken(ctx, userID)
	switch {
	case err == nil:
		st.Linked = true
	case errors.Is(err, ErrNotLinked):
		return st, nil
	case errors.Is(err, ErrLinkExpired):
	default:
		return LinkStatus{}, err
	}
	exp := t.ExpiresAt
	st.ExpiresAt = &exp
	st.Scope = t.Scope
	return st, nil
}
