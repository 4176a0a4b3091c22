package core

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

type TokenExchangeMethod string

const (
	TokenExchangePost TokenExchangeMethod = "post"
	TokenExchangeGet  TokenExchangeMethod = "get"
)

// ProviderConfig is the static OAuth2 wiring for one integration. It is
// injected at construction and never mutated afterwards; flow logic reads
// provider settings exclusively through the registry.
type ProviderConfig struct {
	AuthorizeURL         string              `koanf:"authorize_url" mapstructure:"authorize_url"`
	AuthorizeURLTemplate string              `koanf:"authorize_url_template" mapstructure:"authorize_url_template"`
	TokenURL             string              `koanf:"token_url" mapstructure:"token_url"`
	TokenURLTemplate     string              `koanf:"token_url_template" mapstructure:"token_url_template"`
	ClientID             string              `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret         string              `koanf:"client_secret" mapstructure:"client_secret"`
	// ClientSecretBasicAuth opts a provider into sending the client
	// secret via HTTP basic auth; the default wire contract posts it as a
	// form parameter alongside client_id.
	ClientSecretBasicAuth bool                `koanf:"client_secret_basic_auth" mapstructure:"client_secret_basic_auth"`
	Scopes                []string            `koanf:"scopes" mapstructure:"scopes"`
	RedirectDomain        string              `koanf:"redirect_domain" mapstructure:"redirect_domain"`
	APIVersion            string              `koanf:"api_version" mapstructure:"api_version"`
	TokenExchangeMethod   TokenExchangeMethod `koanf:"token_exchange_method" mapstructure:"token_exchange_method"`
}

// IsConfigured reports whether the entry carries enough material to run an
// authorization-code flow.
func (c ProviderConfig) IsConfigured() bool {
	if strings.TrimSpace(c.ClientID) == "" {
		return false
	}
	if strings.TrimSpace(c.AuthorizeURL) == "" && strings.TrimSpace(c.AuthorizeURLTemplate) == "" {
		return false
	}
	if strings.TrimSpace(c.TokenURL) == "" && strings.TrimSpace(c.TokenURLTemplate) == "" {
		return false
	}
	return true
}

// AuthorizeEndpoint resolves the authorization URL, preferring the literal
// URL over the template.
func (c ProviderConfig) AuthorizeEndpoint() string {
	if endpoint := strings.TrimSpace(c.AuthorizeURL); endpoint != "" {
		return endpoint
	}
	return ResolveURLTemplate(c.AuthorizeURLTemplate, c.APIVersion)
}

// TokenEndpoint resolves the token URL, preferring the literal URL over the
// template.
func (c ProviderConfig) TokenEndpoint() string {
	if endpoint := strings.TrimSpace(c.TokenURL); endpoint != "" {
		return endpoint
	}
	return ResolveURLTemplate(c.TokenURLTemplate, c.APIVersion)
}

// ExchangeMethod normalizes the per-provider token exchange verb; POST with
// a form body is the default.
func (c ProviderConfig) ExchangeMethod() TokenExchangeMethod {
	if strings.EqualFold(strings.TrimSpace(string(c.TokenExchangeMethod)), string(TokenExchangeGet)) {
		return TokenExchangeGet
	}
	return TokenExchangePost
}

// RedirectURI rewrites the callback URL authority when a redirect domain
// override is configured, preserving path and query. An override carrying
// its own scheme replaces the scheme as well.
func (c ProviderConfig) RedirectURI(callbackURL string) (string, error) {
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL == "" {
		return "", fmt.Errorf("core: callback url is required")
	}
	override := strings.TrimSpace(c.RedirectDomain)
	if override == "" {
		return callbackURL, nil
	}

	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("core: parse callback url: %w", err)
	}
	if strings.Contains(override, "://") {
		overrideURL, parseErr := url.Parse(override)
		if parseErr != nil {
			return "", fmt.Errorf("core: parse redirect domain: %w", parseErr)
		}
		parsed.Scheme = overrideURL.Scheme
		parsed.Host = overrideURL.Host
	} else {
		parsed.Host = strings.TrimSuffix(override, "/")
	}
	return parsed.String(), nil
}

// ResolveURLTemplate substitutes {version} in a URL template. The version is
// normalized by stripping one leading "v"/"V" so templates that already
// embed the prefix stay correct regardless of how the version is written.
func ResolveURLTemplate(template string, apiVersion string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return ""
	}
	version := strings.TrimSpace(apiVersion)
	if len(version) > 0 && (version[0] == 'v' || version[0] == 'V') {
		version = version[1:]
	}
	return strings.ReplaceAll(template, "{version}", version)
}

// ProviderRegistry is the frozen provider catalog. Entries are copied at
// construction; lookups never observe later mutation of the source map.
type ProviderRegistry struct {
	entries map[string]ProviderConfig
}

func NewProviderRegistry(entries map[string]ProviderConfig) *ProviderRegistry {
	copied := make(map[string]ProviderConfig, len(entries))
	for key, entry := range entries {
		normalized := strings.TrimSpace(strings.ToLower(key))
		if normalized == "" {
			continue
		}
		entry.Scopes = append([]string(nil), entry.Scopes...)
		copied[normalized] = entry
	}
	return &ProviderRegistry{entries: copied}
}

// Get returns the provider entry for an integration key. A missing or
// incomplete entry yields ErrNotConfigured.
func (r *ProviderRegistry) Get(integrationKey string) (ProviderConfig, error) {
	key := strings.TrimSpace(strings.ToLower(integrationKey))
	if key == "" {
		return ProviderConfig{}, fmt.Errorf("%w: integration key is required", ErrNotConfigured)
	}
	if r == nil {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrNotConfigured, key)
	}
	entry, ok := r.entries[key]
	if !ok || !entry.IsConfigured() {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrNotConfigured, key)
	}
	return entry, nil
}

func (r *ProviderRegistry) Keys() []string {
	if r == nil {
		return []string{}
	}
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
