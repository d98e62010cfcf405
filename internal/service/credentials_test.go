package service

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/credential-service/internal/queue"
	"github.com/iliyamo/credential-service/internal/utils"
)

func newCredentialService(users *fakeUsers, pub queue.Publisher) *CredentialService {
	return NewCredentialService(users, utils.NewPasswordHasher(bcrypt.MinCost),
		utils.NewSigner("test-secret"), 7*24*time.Hour, pub, nil)
}

func TestRegister_Success(t *testing.T) {
	users := &fakeUsers{}
	pub := &recordingPublisher{}
	s := newCredentialService(users, pub)

	res, err := s.Register(context.Background(), RegisterInput{Email: " A@X.com ", Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.User.ID)
	assert.Equal(t, "a@x.com", res.User.Email)
	assert.Equal(t, "alice", res.User.Username)
	assert.NotEmpty(t, res.Token.Token)

	claims, err := s.Authenticate(res.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	require.Len(t, users.rows, 1)
	assert.NotEqual(t, "secret1", users.rows[0].PasswordHash)
	assert.Equal(t, []string{queue.EventUserRegistered}, pub.types())
}

func TestRegister_UnreachableBrokerDoesNotDelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// no Run loop: events stay buffered and the request path never dials
	pub := queue.NewAMQPPublisher("amqp://guest:guest@"+ln.Addr().String()+"/", nil)
	s := newCredentialService(&fakeUsers{}, pub)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	_, err = s.Register(ctx, RegisterInput{Email: "a@x.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	users := &fakeUsers{}
	s := newCredentialService(users, nil)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{Email: "a@x.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = s.Register(ctx, RegisterInput{Email: "a@x.com", Username: "alice2", Password: "secret1"})
	assert.Equal(t, KindConflict, KindOf(err))
	_, err = s.Register(ctx, RegisterInput{Email: "b@x.com", Username: "alice", Password: "secret1"})
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Len(t, users.rows, 1)
}

func TestRegister_InsertRaceConflicts(t *testing.T) {
	s := newCredentialService(&fakeUsers{dupOn: true}, nil)
	_, err := s.Register(context.Background(), RegisterInput{Email: "a@x.com", Username: "alice", Password: "secret1"})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestRegister_Validation(t *testing.T) {
	users := &fakeUsers{}
	s := newCredentialService(users, nil)

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Username: "alice", Password: "secret1"}, "email"},
		{"short username", RegisterInput{Email: "a@x.com", Username: "al", Password: "secret1"}, "username"},
		{"short password", RegisterInput{Email: "a@x.com", Username: "alice", Password: "12345"}, "password"},
		{"missing email", RegisterInput{Username: "alice", Password: "secret1"}, "email"},
		{"multibyte password over 72 bytes", RegisterInput{Email: "a@x.com", Username: "alice", Password: strings.Repeat("é", 40)}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(context.Background(), tt.in)
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, KindValidation, se.Kind)
			require.Len(t, se.Fields, 1)
			assert.Equal(t, tt.field, se.Fields[0].Field)
		})
	}
	assert.Empty(t, users.rows)
}

func TestLogin_ByUsernameOrEmail(t *testing.T) {
	pub := &recordingPublisher{}
	s := newCredentialService(&fakeUsers{}, pub)
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterInput{Email: "a@x.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	res, err := s.Login(ctx, LoginInput{Identifier: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.User.Email)

	res, err = s.Login(ctx, LoginInput{Identifier: "A@X.COM", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)

	assert.Equal(t, []string{queue.EventUserRegistered, queue.EventUserLoggedIn, queue.EventUserLoggedIn}, pub.types())
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	s := newCredentialService(&fakeUsers{}, nil)
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterInput{Email: "a@x.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, wrongPass := s.Login(ctx, LoginInput{Identifier: "alice", Password: "wrong"})
	_, noUser := s.Login(ctx, LoginInput{Identifier: "nobody", Password: "anything"})

	require.Error(t, wrongPass)
	require.Error(t, noUser)
	assert.Equal(t, KindAuth, KindOf(wrongPass))
	assert.Equal(t, wrongPass.Error(), noUser.Error())
	assert.Equal(t, MsgInvalidCredentials, AsError(noUser).Message)
}

func TestLogin_OversizedPasswordIsValidation(t *testing.T) {
	s := newCredentialService(&fakeUsers{}, nil)
	_, err := s.Login(context.Background(), LoginInput{Identifier: "alice", Password: strings.Repeat("ü", 37)})
	se := AsError(err)
	require.NotNil(t, se)
	assert.Equal(t, KindValidation, se.Kind)
	require.Len(t, se.Fields, 1)
	assert.Equal(t, "must be at most 72 bytes", se.Fields[0].Message)
}

func TestLogin_StoreFailureIsInternal(t *testing.T) {
	s := newCredentialService(&fakeUsers{getErr: errors.New("db down")}, nil)
	_, err := s.Login(context.Background(), LoginInput{Identifier: "alice", Password: "secret1"})
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, MsgInternal, AsError(err).Message)
}

func TestAuthenticate_RejectsGarbage(t *testing.T) {
	s := newCredentialService(&fakeUsers{}, nil)
	_, err := s.Authenticate("not.a.token")
	assert.Equal(t, KindAuth, KindOf(err))
}
