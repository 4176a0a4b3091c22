package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultOAuthStateTTL            = 15 * time.Minute
	DefaultTokenRequestTimeout      = 30 * time.Second
	DefaultAccessTokenRefreshWindow = 5 * time.Minute
	DefaultConnectionRefreshWindow  = 24 * time.Hour
)

type OAuthConfig struct {
	StateTTL                 time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
	TokenRequestTimeout      time.Duration `koanf:"token_request_timeout" mapstructure:"token_request_timeout"`
	AccessTokenRefreshWindow time.Duration `koanf:"access_token_refresh_window" mapstructure:"access_token_refresh_window"`
	ConnectionRefreshWindow  time.Duration `koanf:"connection_refresh_window" mapstructure:"connection_refresh_window"`
}

type Config struct {
	ServiceName string                    `koanf:"service_name" mapstructure:"service_name"`
	OAuth       OAuthConfig               `koanf:"oauth" mapstructure:"oauth"`
	Providers   map[string]ProviderConfig `koanf:"providers" mapstructure:"providers"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "integrations",
		OAuth: OAuthConfig{
			StateTTL:                 DefaultOAuthStateTTL,
			TokenRequestTimeout:      DefaultTokenRequestTimeout,
			AccessTokenRefreshWindow: DefaultAccessTokenRefreshWindow,
			ConnectionRefreshWindow:  DefaultConnectionRefreshWindow,
		},
		Providers: map[string]ProviderConfig{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.OAuth.StateTTL < 0 {
		return fmt.Errorf("core: oauth.state_ttl must not be negative")
	}
	if c.OAuth.TokenRequestTimeout < 0 {
		return fmt.Errorf("core: oauth.token_request_timeout must not be negative")
	}
	if c.OAuth.AccessTokenRefreshWindow < 0 {
		return fmt.Errorf("core: oauth.access_token_refresh_window must not be negative")
	}
	if c.OAuth.ConnectionRefreshWindow < 0 {
		return fmt.Errorf("core: oauth.connection_refresh_window must not be negative")
	}
	return nil
}
