package integrations

import (
	"testing"

	"github.com/goliatone/go-integrations/core"
)

func TestExtensionHooks_RegisterProviderPack(t *testing.T) {
	hooks := NewExtensionHooks()

	err := hooks.RegisterProviderPack(ProviderConfigPack{
		Name: "social",
		Providers: map[string]core.ProviderConfig{
			"Meta": {
				ClientID:             "meta-client",
				AuthorizeURLTemplate: "https://facebook.com/v{version}/dialog/oauth",
				TokenURLTemplate:     "https://graph.facebook.com/v{version}/oauth/access_token",
				APIVersion:           "v23.0",
			},
		},
	})
	if err != nil {
		t.Fatalf("register provider pack: %v", err)
	}

	if err := hooks.RegisterProviderPack(ProviderConfigPack{Name: "social"}); err == nil {
		t.Fatalf("expected duplicate pack registration to fail")
	}
	if err := hooks.RegisterProviderPack(ProviderConfigPack{
		Name:      "",
		Providers: map[string]core.ProviderConfig{"github": {ClientID: "x"}},
	}); err == nil {
		t.Fatalf("expected unnamed pack registration to fail")
	}

	packs := hooks.ProviderPacks()
	if len(packs) != 1 || packs[0].Name != "social" {
		t.Fatalf("unexpected packs: %#v", packs)
	}
	if _, ok := packs[0].Providers["meta"]; !ok {
		t.Fatalf("expected integration key to be normalized to lowercase")
	}
}

func TestExtensionHooks_ApplyProviderPacksMergesIntoConfig(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterProviderPack(ProviderConfigPack{
		Name: "social",
		Providers: map[string]core.ProviderConfig{
			"meta": {ClientID: "pack-meta", AuthorizeURL: "https://facebook.com/dialog/oauth", TokenURL: "https://graph.facebook.com/oauth/access_token"},
		},
	}); err != nil {
		t.Fatalf("register social pack: %v", err)
	}
	if err := hooks.RegisterProviderPack(ProviderConfigPack{
		Name: "devtools",
		Providers: map[string]core.ProviderConfig{
			"github": {ClientID: "pack-github", AuthorizeURL: "https://github.com/login/oauth/authorize", TokenURL: "https://github.com/login/oauth/access_token"},
		},
	}); err != nil {
		t.Fatalf("register devtools pack: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Providers = map[string]core.ProviderConfig{
		"github": {ClientID: "host-github", AuthorizeURL: "https://github.example/oauth", TokenURL: "https://github.example/token"},
	}

	merged, err := hooks.ApplyProviderPacks(cfg)
	if err != nil {
		t.Fatalf("apply provider packs: %v", err)
	}
	if len(merged.Providers) != 2 {
		t.Fatalf("expected two providers after merge, got %d", len(merged.Providers))
	}
	if merged.Providers["github"].ClientID != "host-github" {
		t.Fatalf("expected host config to win over pack entry, got %q", merged.Providers["github"].ClientID)
	}
	if merged.Providers["meta"].ClientID != "pack-meta" {
		t.Fatalf("expected pack entry to be merged, got %q", merged.Providers["meta"].ClientID)
	}
}

func TestExtensionHooks_ApplyProviderPacksRejectsConflicts(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterProviderPack(ProviderConfigPack{
		Name:      "pack_a",
		Providers: map[string]core.ProviderConfig{"meta": {ClientID: "a"}},
	}); err != nil {
		t.Fatalf("register pack_a: %v", err)
	}
	if err := hooks.RegisterProviderPack(ProviderConfigPack{
		Name:      "pack_b",
		Providers: map[string]core.ProviderConfig{"meta": {ClientID: "b"}},
	}); err != nil {
		t.Fatalf("register pack_b: %v", err)
	}

	if _, err := hooks.ApplyProviderPacks(DefaultConfig()); err == nil {
		t.Fatalf("expected conflicting packs to fail merge")
	}
}

func TestExtensionHooks_BuildCommandQueryBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterCommandQueryBundle("lifecycle", func(service CommandQueryService) (any, error) {
		return NewFacade(service, WithCatalogReader(&stubFacadeCatalogReader{}))
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("lifecycle", func(CommandQueryService) (any, error) {
		return nil, nil
	}); err == nil {
		t.Fatalf("expected duplicate bundle registration to fail")
	}

	bundles, err := hooks.BuildCommandQueryBundles(&stubFacadeService{})
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	facade, ok := bundles["lifecycle"].(*Facade)
	if !ok || facade == nil {
		t.Fatalf("expected lifecycle bundle to hold a facade, got %#v", bundles["lifecycle"])
	}
	if names := hooks.BundleNames(); len(names) != 1 || names[0] != "lifecycle" {
		t.Fatalf("unexpected bundle names: %#v", names)
	}

	if _, err := hooks.BuildCommandQueryBundles(nil); err == nil {
		t.Fatalf("expected nil service to fail bundle build")
	}
}
