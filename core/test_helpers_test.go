package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memIntegrationStore struct {
	mu      sync.Mutex
	entries map[string]Integration
	nextID  int
}

func newMemIntegrationStore(integrations ...Integration) *memIntegrationStore {
	store := &memIntegrationStore{entries: map[string]Integration{}}
	for _, integration := range integrations {
		if integration.ID == "" {
			store.nextID++
			integration.ID = fmt.Sprintf("int-%d", store.nextID)
		}
		store.entries[strings.ToLower(integration.Key)] = integration
	}
	return store
}

func (s *memIntegrationStore) GetByKey(_ context.Context, key string) (Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	integration, ok := s.entries[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Integration{}, fmt.Errorf("%w: %s", ErrIntegrationNotFound, key)
	}
	return integration, nil
}

func (s *memIntegrationStore) List(context.Context) ([]Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Integration, 0, len(s.entries))
	for _, integration := range s.entries {
		out = append(out, integration)
	}
	return out, nil
}

func (s *memIntegrationStore) Upsert(_ context.Context, in UpsertIntegrationInput) (Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(in.Key))
	integration, ok := s.entries[key]
	if !ok {
		s.nextID++
		integration = Integration{ID: fmt.Sprintf("int-%d", s.nextID), Key: key, CreatedAt: time.Now().UTC()}
	}
	integration.Name = in.Name
	integration.Enabled = in.Enabled
	integration.SupportedAuthSchemes = append([]AuthScheme(nil), in.SupportedAuthSchemes...)
	integration.Metadata = copyAnyMap(in.Metadata)
	integration.UpdatedAt = time.Now().UTC()
	s.entries[key] = integration
	return integration, nil
}

type memGrantStore struct {
	mu     sync.Mutex
	grants map[string]Grant
	nextID int
}

func newMemGrantStore() *memGrantStore {
	return &memGrantStore{grants: map[string]Grant{}}
}

func (s *memGrantStore) Upsert(_ context.Context, grant Grant) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.grants {
		if existing.ConnectionID == grant.ConnectionID && existing.Grantee.Equal(grant.Grantee) {
			existing.Permissions = copyAnyMap(grant.Permissions)
			existing.UpdatedAt = time.Now().UTC()
			s.grants[id] = existing
			return existing, nil
		}
	}
	s.nextID++
	grant.ID = fmt.Sprintf("grant-%d", s.nextID)
	grant.CreatedAt = time.Now().UTC()
	grant.UpdatedAt = grant.CreatedAt
	s.grants[grant.ID] = grant
	return grant, nil
}

func (s *memGrantStore) Remove(_ context.Context, connectionID string, grantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[grantID]
	if !ok || grant.ConnectionID != connectionID {
		return fmt.Errorf("core: grant %s not found", grantID)
	}
	delete(s.grants, grantID)
	return nil
}

func (s *memGrantStore) ListForConnection(_ context.Context, connectionID string) ([]Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Grant{}
	for _, grant := range s.grants {
		if grant.ConnectionID == connectionID {
			out = append(out, grant)
		}
	}
	return out, nil
}

func (s *memGrantStore) Exists(_ context.Context, connectionID string, grantee OwnerRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, grant := range s.grants {
		if grant.ConnectionID == connectionID && grant.Grantee.Equal(grantee) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memGrantStore) DeleteForConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, grant := range s.grants {
		if grant.ConnectionID == connectionID {
			delete(s.grants, id)
		}
	}
	return nil
}

type memConnectionStore struct {
	mu          sync.Mutex
	connections map[string]Connection
	grants      *memGrantStore
	nextID      int
}

func newMemConnectionStore(grants *memGrantStore) *memConnectionStore {
	return &memConnectionStore{connections: map[string]Connection{}, grants: grants}
}

func (s *memConnectionStore) Upsert(_ context.Context, in UpsertConnectionInput) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, existing := range s.connections {
		if strings.EqualFold(existing.IntegrationKey, in.IntegrationKey) && existing.Owner.Equal(in.Owner) {
			existing.AuthScheme = in.AuthScheme
			existing.Status = in.Status
			existing.Credentials = in.Credentials.Clone()
			existing.OAuthExpiresAt = cloneTimePointer(in.OAuthExpiresAt)
			if in.Status == ConnectionStatusActive {
				existing.LastError = ""
			}
			existing.UpdatedAt = now
			s.connections[id] = existing
			return existing, nil
		}
	}
	s.nextID++
	connection := Connection{
		ID:             fmt.Sprintf("conn-%d", s.nextID),
		IntegrationID:  in.IntegrationID,
		IntegrationKey: strings.ToLower(strings.TrimSpace(in.IntegrationKey)),
		Owner:          in.Owner,
		AuthScheme:     in.AuthScheme,
		Status:         in.Status,
		Credentials:    in.Credentials.Clone(),
		OAuthExpiresAt: cloneTimePointer(in.OAuthExpiresAt),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.connections[connection.ID] = connection
	return connection, nil
}

func (s *memConnectionStore) GetByID(_ context.Context, id string) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	connection, ok := s.connections[strings.TrimSpace(id)]
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return connection, nil
}

func (s *memConnectionStore) FindByOwner(_ context.Context, integrationKey string, owner OwnerRef) (Connection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, connection := range s.connections {
		if strings.EqualFold(connection.IntegrationKey, integrationKey) && connection.Owner.Equal(owner) {
			return connection, true, nil
		}
	}
	return Connection{}, false, nil
}

func (s *memConnectionStore) ListForOwner(_ context.Context, owner OwnerRef) ([]Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Connection{}
	for _, connection := range s.connections {
		if connection.Owner.Equal(owner) {
			out = append(out, connection)
		}
	}
	return out, nil
}

func (s *memConnectionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.connections[id]
	if ok {
		delete(s.connections, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	if s.grants != nil {
		return s.grants.DeleteForConnection(ctx, id)
	}
	return nil
}

func (s *memConnectionStore) MarkError(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	connection, ok := s.connections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	connection.Status = ConnectionStatusError
	connection.LastError = message
	connection.UpdatedAt = time.Now().UTC()
	s.connections[id] = connection
	return nil
}

func (s *memConnectionStore) MarkActive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	connection, ok := s.connections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	connection.Status = ConnectionStatusActive
	connection.LastError = ""
	connection.UpdatedAt = time.Now().UTC()
	s.connections[id] = connection
	return nil
}

func (s *memConnectionStore) MarkTested(_ context.Context, id string, testedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	connection, ok := s.connections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	stamp := testedAt.UTC()
	connection.LastTestedAt = &stamp
	connection.UpdatedAt = time.Now().UTC()
	s.connections[id] = connection
	return nil
}

func (s *memConnectionStore) ListExpiring(_ context.Context, before time.Time) ([]Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Connection{}
	for _, connection := range s.connections {
		if connection.OAuthExpiresAt != nil && connection.OAuthExpiresAt.Before(before) {
			out = append(out, connection)
		}
	}
	return out, nil
}

type stubTokenClient struct {
	mu       sync.Mutex
	grant    TokenGrant
	err      error
	requests []TokenRequest
}

func (c *stubTokenClient) Exchange(_ context.Context, _ ProviderConfig, req TokenRequest) (TokenGrant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return TokenGrant{}, c.err
	}
	return c.grant, nil
}

func (c *stubTokenClient) lastRequest() TokenRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return TokenRequest{}
	}
	return c.requests[len(c.requests)-1]
}

type stubJobEnqueuer struct {
	mu       sync.Mutex
	err      error
	messages []*JobExecutionMessage
}

func (e *stubJobEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

type testServiceEnv struct {
	service      *Service
	integrations *memIntegrationStore
	connections  *memConnectionStore
	grants       *memGrantStore
	tokens       *stubTokenClient
	jobs         *stubJobEnqueuer
}

func testProviderConfig() ProviderConfig {
	return ProviderConfig{
		AuthorizeURL: "https://provider.test/oauth/authorize",
		TokenURL:     "https://provider.test/oauth/token",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Scopes:       []string{"read", "write"},
	}
}

func newTestService(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, options ...Option) *testServiceEnv {
	t.Helper()

	grants := newMemGrantStore()
	env := &testServiceEnv{
		integrations: newMemIntegrationStore(Integration{
			Key:     "github",
			Name:    "GitHub",
			Enabled: true,
			SupportedAuthSchemes: []AuthScheme{
				AuthSchemeOAuth2, AuthSchemeAPIKey, AuthSchemeBasic, AuthSchemeBearer,
			},
		}),
		connections: newMemConnectionStore(grants),
		grants:      grants,
		tokens: &stubTokenClient{grant: TokenGrant{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			TokenType:    "Bearer",
			Scope:        "read write",
		}},
		jobs: &stubJobEnqueuer{},
	}

	cfg := Config{
		Providers: map[string]ProviderConfig{
			"github": testProviderConfig(),
		},
	}
	merged := append([]Option{
		WithIntegrationStore(env.integrations),
		WithConnectionStore(env.connections),
		WithGrantStore(env.grants),
		WithTokenClient(env.tokens),
		WithJobEnqueuer(env.jobs),
	}, options...)

	service, err := NewService(cfg, merged...)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	env.service = service
	return env
}

func timePointer(value time.Time) *time.Time {
	utc := value.UTC()
	return &utc
}
