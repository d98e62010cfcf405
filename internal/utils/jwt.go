package utils // package utils provides helpers for token signing and credential hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

	"github.com/iliyamo/credential-service/internal/model"
)

// ErrInvalidToken is the only error returned by the Verify* methods. Callers
// cannot tell a bad signature from an expired or malformed token.
var ErrInvalidToken = errors.New("invalid token")

const (
	audienceSession = "session"
	audienceState   = "oauth_state"
)

// AccessToken represents a signed JWT along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// StateClaims binds an OAuth linking flow to the user who started it.
type StateClaims struct {
	UserID    uint64
	Nonce     string
	ExpiresAt time.Time
}

type sessionJWT struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens with a process-wide secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// SignerOption customises a Signer.
type SignerOption func(*Signer)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// NewSigner builds a Signer for the given secret.
func NewSigner(secret string, opts ...SignerOption) *Signer {
	s := &Signer{secret: []byte(secret), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SignSession builds and signs a session token valid for ttl. The token
// includes sub (user id), email, username, aud, iat and exp.
func (s *Signer) SignSession(c model.SessionClaims, ttl time.Duration) (AccessToken, error) {
	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := sessionJWT{
		Email:    c.Email,
		Username: c.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(c.UserID, 10),
			Audience:  jwt.ClaimStrings{audienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifySession checks signature, audience and expiry and returns the claims.
func (s *Signer) VerifySession(raw string) (model.SessionClaims, error) {
	var claims sessionJWT
	if err := s.parse(raw, &claims, audienceSession); err != nil {
		return model.SessionClaims{}, ErrInvalidToken
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return model.SessionClaims{}, ErrInvalidToken
	}
	out := model.SessionClaims{
		UserID:    uid,
		Email:     claims.Email,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}

// SignState issues a short-lived OAuth state token carrying the initiating
// user id and a single-use nonce (jti).
func (s *Signer) SignState(userID uint64, nonce string, ttl time.Duration) (AccessToken, error) {
	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		ID:        nonce,
		Audience:  jwt.ClaimStrings{audienceState},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyState validates a state token produced by SignState.
func (s *Signer) VerifyState(raw string) (StateClaims, error) {
	var claims jwt.RegisteredClaims
	if err := s.parse(raw, &claims, audienceState); err != nil {
		return StateClaims{}, ErrInvalidToken
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 || claims.ID == "" {
		return StateClaims{}, ErrInvalidToken
	}
	return StateClaims{UserID: uid, Nonce: claims.ID, ExpiresAt: claims.ExpiresAt.Time.UTC()}, nil
}

func (s *Signer) parse(raw string, claims jwt.Claims, audience string) error {
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return err
	}
	if !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
