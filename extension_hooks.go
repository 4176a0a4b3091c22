package integrations

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-integrations/core"
)

// ProviderConfigPack is a named bundle of static provider entries, keyed by
// integration key. Packs let hosts ship provider wiring (github, meta,
// lexoffice, ...) independently of the service config file.
type ProviderConfigPack struct {
	Name      string
	Providers map[string]core.ProviderConfig
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	providerPacks map[string]ProviderConfigPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		providerPacks: map[string]ProviderConfigPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterProviderPack(pack ProviderConfigPack) error {
	if h == nil {
		return fmt.Errorf("integrations: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("integrations: provider pack name is required")
	}
	if len(pack.Providers) == 0 {
		return fmt.Errorf("integrations: provider pack %q has no providers", name)
	}

	normalized := ProviderConfigPack{
		Name:      name,
		Providers: make(map[string]core.ProviderConfig, len(pack.Providers)),
	}
	for key, cfg := range pack.Providers {
		key = strings.TrimSpace(strings.ToLower(key))
		if key == "" {
			return fmt.Errorf("integrations: provider pack %q has an empty integration key", name)
		}
		if _, exists := normalized.Providers[key]; exists {
			return fmt.Errorf("integrations: provider pack %q repeats integration %q", name, key)
		}
		normalized.Providers[key] = cfg
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.providerPacks[name]; exists {
		return fmt.Errorf("integrations: provider pack %q already registered", name)
	}
	h.providerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("integrations: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("integrations: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("integrations: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("integrations: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyProviderPacks folds registered packs into the config's provider map.
// Entries already present in the config win over pack entries, so hosts can
// override a packaged provider without unregistering the pack.
func (h *ExtensionHooks) ApplyProviderPacks(cfg Config) (Config, error) {
	if h == nil {
		return cfg, nil
	}

	merged := make(map[string]core.ProviderConfig, len(cfg.Providers))
	for _, pack := range h.ProviderPacks() {
		for key, providerCfg := range pack.Providers {
			if existing, seen := merged[key]; seen && !providerConfigEqual(existing, providerCfg) {
				return cfg, fmt.Errorf("integrations: provider packs disagree on integration %q", key)
			}
			merged[key] = providerCfg
		}
	}
	for key, providerCfg := range cfg.Providers {
		merged[strings.TrimSpace(strings.ToLower(key))] = providerCfg
	}

	cfg.Providers = merged
	return cfg, nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("integrations: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ProviderPacks() []ProviderConfigPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.providerPacks))
	for name := range h.providerPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ProviderConfigPack, 0, len(names))
	for _, name := range names {
		pack := h.providerPacks[name]
		copied := ProviderConfigPack{
			Name:      pack.Name,
			Providers: make(map[string]core.ProviderConfig, len(pack.Providers)),
		}
		for key, cfg := range pack.Providers {
			copied.Providers[key] = cfg
		}
		out = append(out, copied)
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func providerConfigEqual(a core.ProviderConfig, b core.ProviderConfig) bool {
	if a.AuthorizeURL != b.AuthorizeURL ||
		a.AuthorizeURLTemplate != b.AuthorizeURLTemplate ||
		a.TokenURL != b.TokenURL ||
		a.TokenURLTemplate != b.TokenURLTemplate ||
		a.ClientID != b.ClientID ||
		a.ClientSecret != b.ClientSecret ||
		a.ClientSecretBasicAuth != b.ClientSecretBasicAuth ||
		a.RedirectDomain != b.RedirectDomain ||
		a.APIVersion != b.APIVersion ||
		a.TokenExchangeMethod != b.TokenExchangeMethod {
		return false
	}
	if len(a.Scopes) != len(b.Scopes) {
		return false
	}
	for i := range a.Scopes {
		if a.Scopes[i] != b.Scopes[i] {
			return false
		}
	}
	return true
}
