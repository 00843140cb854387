package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/mruedinger/game-club/internal/errors"
)

// Session lifetime defaults. These govern the signed-cookie state machine
// and can be overridden through the environment for tests and staging.
const (
	DefaultSessionCookieName = "gc_session"
	DefaultOAuthCookieName   = "gc_oauth"

	DefaultIdleTTL           = 45 * 24 * time.Hour
	DefaultAbsoluteTTL       = 180 * 24 * time.Hour
	DefaultMembershipRecheck = time.Hour
	DefaultActivityTouch     = 5 * time.Minute
	DefaultOAuthPendingTTL   = 10 * time.Minute
	DefaultLegacySessionTTL  = 7 * 24 * time.Hour
)

// Config holds every setting the server needs, resolved once at startup.
// Missing required fields fail Load; nothing probes the environment per
// request.
type Config struct {
	AppName string `mapstructure:"app_name"`
	Port    string `mapstructure:"port"`
	Env     string `mapstructure:"env"`

	DatabasePath string `mapstructure:"database_path"`

	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleRedirectURI  string `mapstructure:"google_redirect_uri"`

	SessionSecret     string `mapstructure:"session_secret"`
	SessionCookieName string `mapstructure:"session_cookie_name"`

	// Bootstrap allow-lists. Emails here may sign in before an admin has
	// provisioned them; AdminEmails additionally grants the admin role.
	AllowedEmails []string `mapstructure:"allowed_emails"`
	AdminEmails   []string `mapstructure:"admin_emails"`

	ITADAPIKey       string `mapstructure:"itad_api_key"`
	IGDBClientID     string `mapstructure:"igdb_client_id"`
	IGDBClientSecret string `mapstructure:"igdb_client_secret"`
	IGDBAccessToken  string `mapstructure:"igdb_access_token"`

	SessionIdleTTL           time.Duration `mapstructure:"session_idle_ttl"`
	SessionAbsoluteTTL       time.Duration `mapstructure:"session_absolute_ttl"`
	SessionMembershipRecheck time.Duration `mapstructure:"session_membership_recheck"`
	SessionActivityTouch     time.Duration `mapstructure:"session_activity_touch"`
	OAuthPendingTTL          time.Duration `mapstructure:"oauth_pending_ttl"`
}

// Load resolves configuration from the environment (with optional config
// file support via viper) and validates required fields.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("app_name", "Game Club")
	v.SetDefault("port", "8080")
	v.SetDefault("env", "DEV")
	v.SetDefault("database_path", "./data/gameclub.db")
	v.SetDefault("session_cookie_name", DefaultSessionCookieName)
	v.SetDefault("session_idle_ttl", DefaultIdleTTL)
	v.SetDefault("session_absolute_ttl", DefaultAbsoluteTTL)
	v.SetDefault("session_membership_recheck", DefaultMembershipRecheck)
	v.SetDefault("session_activity_touch", DefaultActivityTouch)
	v.SetDefault("oauth_pending_ttl", DefaultOAuthPendingTTL)

	for key, env := range map[string]string{
		"port":                 "PORT",
		"env":                  "ENV",
		"database_path":        "DATABASE_PATH",
		"google_client_id":     "GOOGLE_CLIENT_ID",
		"google_client_secret": "GOOGLE_CLIENT_SECRET",
		"google_redirect_uri":  "GOOGLE_REDIRECT_URI",
		"session_secret":       "SESSION_SECRET",
		"session_cookie_name":  "SESSION_COOKIE_NAME",
		"allowed_emails":       "ALLOWED_EMAILS",
		"admin_emails":         "ADMIN_EMAILS",
		"itad_api_key":         "ITAD_API_KEY",
		"igdb_client_id":       "IGDB_CLIENT_ID",
		"igdb_client_secret":   "IGDB_CLIENT_SECRET",
		"igdb_access_token":    "IGDB_ACCESS_TOKEN",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.GoogleClientID == "":
		return apperrors.ErrMissingClientID
	case c.GoogleClientSecret == "":
		return apperrors.ErrMissingClientSecret
	case c.GoogleRedirectURI == "":
		return apperrors.ErrMissingRedirectURI
	case c.SessionSecret == "":
		return apperrors.ErrMissingSecret
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	if c.Port != "" && c.Port[0] != ':' {
		return ":" + c.Port
	}
	return c.Port
}
