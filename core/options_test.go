package core

import (
	"context"
	"testing"
	"time"
)

func TestGoOptionsResolverLayerPrecedence(t *testing.T) {
	defaults := DefaultConfig()
	loaded := Config{
		OAuth: OAuthConfig{StateTTL: 10 * time.Minute},
		Providers: map[string]ProviderConfig{
			"github": testProviderConfig(),
		},
	}
	runtime := Config{
		OAuth: OAuthConfig{StateTTL: 20 * time.Minute},
	}

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if resolved.OAuth.StateTTL != 20*time.Minute {
		t.Fatalf("state ttl = %v, runtime layer should win", resolved.OAuth.StateTTL)
	}
	if resolved.OAuth.TokenRequestTimeout != DefaultTokenRequestTimeout {
		t.Fatalf("token request timeout = %v, defaults should fill gaps", resolved.OAuth.TokenRequestTimeout)
	}
	if resolved.ServiceName != "integrations" {
		t.Fatalf("service name = %q, defaults should fill gaps", resolved.ServiceName)
	}
	provider, ok := resolved.Providers["github"]
	if !ok {
		t.Fatalf("loaded provider missing from resolved config: %+v", resolved.Providers)
	}
	if provider.ClientID != "client-1" {
		t.Fatalf("provider client id = %q", provider.ClientID)
	}
}

func TestCfgxConfigProviderDefaultsWithoutLoader(t *testing.T) {
	provider := NewCfgxConfigProvider(nil)
	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServiceName != "integrations" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}
	if cfg.OAuth.StateTTL != DefaultOAuthStateTTL {
		t.Fatalf("state ttl = %v", cfg.OAuth.StateTTL)
	}
}

func TestCfgxConfigProviderStaticLoader(t *testing.T) {
	provider := NewCfgxConfigProvider(staticRawConfigLoader{Values: map[string]any{
		"service_name": "billing-integrations",
	}})
	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServiceName != "billing-integrations" {
		t.Fatalf("service name = %q, loader value should win", cfg.ServiceName)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	noName := DefaultConfig()
	noName.ServiceName = "  "
	if err := noName.Validate(); err == nil {
		t.Fatal("blank service name should fail")
	}

	negative := DefaultConfig()
	negative.OAuth.AccessTokenRefreshWindow = -time.Second
	if err := negative.Validate(); err == nil {
		t.Fatal("negative refresh window should fail")
	}
}

func TestNewServiceAppliesRuntimeProviders(t *testing.T) {
	service, err := NewService(Config{
		Providers: map[string]ProviderConfig{
			"Meta": {
				AuthorizeURLTemplate: "https://graph.test/v{version}/dialog/oauth",
				TokenURLTemplate:     "https://graph.test/v{version}/oauth/access_token",
				ClientID:             "meta-client",
				APIVersion:           "v17.0",
				TokenExchangeMethod:  TokenExchangeGet,
			},
		},
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	deps := service.Dependencies()
	cfg, err := deps.Providers.Get("meta")
	if err != nil {
		t.Fatalf("runtime provider missing from registry: %v", err)
	}
	if cfg.ExchangeMethod() != TokenExchangeGet {
		t.Fatalf("exchange method = %q", cfg.ExchangeMethod())
	}
	if got := cfg.TokenEndpoint(); got != "https://graph.test/v17.0/oauth/access_token" {
		t.Fatalf("token endpoint = %q", got)
	}
}

func TestNewServiceDefaultWiring(t *testing.T) {
	service, err := NewService(Config{})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	deps := service.Dependencies()
	if deps.Logger == nil {
		t.Fatal("logger should always resolve")
	}
	if deps.SessionStateStore == nil {
		t.Fatal("session state store should default")
	}
	if deps.TokenClient == nil {
		t.Fatal("token client should default")
	}
	if deps.CredentialCodec == nil {
		t.Fatal("credential codec should default")
	}
	if _, ok := deps.CredentialCodec.(JSONCredentialCodec); !ok {
		t.Fatalf("codec without secrets should be plaintext JSON, got %T", deps.CredentialCodec)
	}
}

func TestNewServiceWrapsCodecWhenSecretsConfigured(t *testing.T) {
	service, err := NewService(Config{}, WithSecretProvider(reversingSecretProvider{}))
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	deps := service.Dependencies()
	if _, ok := deps.CredentialCodec.(*EncryptedCredentialCodec); !ok {
		t.Fatalf("secret provider should force the encrypted codec, got %T", deps.CredentialCodec)
	}
}
