package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// OAuthConfig describes the third-party provider accounts are linked to.
// Client credentials are required; everything else has a default.
type OAuthConfig struct {
	Provider       string        `env:"OAUTH_PROVIDER" envDefault:"tiktok"`
	ClientID       string        `env:"OAUTH_CLIENT_ID,required,notEmpty"`
	ClientSecret   string        `env:"OAUTH_CLIENT_SECRET,required,notEmpty"`
	RedirectURL    string        `env:"OAUTH_REDIRECT_URI,required,notEmpty"`
	AuthURL        string        `env:"OAUTH_AUTH_URL" envDefault:"https://www.tiktok.com/v2/auth/authorize/"`
	TokenURL       string        `env:"OAUTH_TOKEN_URL" envDefault:"https://open.tiktokapis.com/v2/oauth/token/"`
	UserInfoURL    string        `env:"OAUTH_USERINFO_URL" envDefault:"https://open.tiktokapis.com/v2/user/info/"`
	Scopes         []string      `env:"OAUTH_SCOPES" envSeparator:"," envDefault:"user.info.basic,video.upload,video.publish"`
	ScopeSeparator string        `env:"OAUTH_SCOPE_SEPARATOR" envDefault:","`
	StateTTL       time.Duration `env:"OAUTH_STATE_TTL" envDefault:"60s"`
	TokenTTL       time.Duration `env:"OAUTH_DEFAULT_TOKEN_TTL" envDefault:"24h"`
	SuccessURL     string        `env:"OAUTH_SUCCESS_REDIRECT"`
}

// LoadOAuthConfig parses the provider settings from the environment.
func LoadOAuthConfig() (OAuthConfig, error) {
	return env.ParseAs[OAuthConfig]()
}
