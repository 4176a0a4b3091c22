package core

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	authStateEntropyBytes         = 32
	defaultSessionStateMaxEntries = 10_000
)

// AuthSessionRecord captures the state handed to the provider when an
// authorization flow starts. It is pulled exactly once at callback time.
type AuthSessionRecord struct {
	State          string
	IntegrationKey string
	Owner          OwnerRef
	RedirectURI    string
	Scopes         []string
	Metadata       map[string]any
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

type SessionStateStore interface {
	Save(ctx context.Context, record AuthSessionRecord) error
	// Consume removes and returns the record for a state value. A second
	// consume of the same state fails, which is what defeats replay.
	Consume(ctx context.Context, state string) (AuthSessionRecord, error)
}

type MemorySessionStateStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]AuthSessionRecord
}

func NewMemorySessionStateStore(ttl time.Duration) *MemorySessionStateStore {
	return NewMemorySessionStateStoreWithLimits(ttl, defaultSessionStateMaxEntries)
}

func NewMemorySessionStateStoreWithLimits(ttl time.Duration, maxEntries int) *MemorySessionStateStore {
	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultSessionStateMaxEntries
	}
	return &MemorySessionStateStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    map[string]AuthSessionRecord{},
	}
}

func (s *MemorySessionStateStore) Save(_ context.Context, record AuthSessionRecord) error {
	if s == nil {
		return fmt.Errorf("core: session state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("core: auth state is required")
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	if len(s.entries) >= s.maxEntries {
		return fmt.Errorf("core: session state store is full")
	}
	s.entries[state] = cloneAuthSessionRecord(record)
	return nil
}

func (s *MemorySessionStateStore) Consume(_ context.Context, state string) (AuthSessionRecord, error) {
	if s == nil {
		return AuthSessionRecord{}, fmt.Errorf("core: session state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return AuthSessionRecord{}, fmt.Errorf("%w: auth state is required", ErrInvalidState)
	}

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return AuthSessionRecord{}, fmt.Errorf("%w: auth state not found", ErrInvalidState)
	}
	if !record.ExpiresAt.IsZero() && time.Now().UTC().After(record.ExpiresAt) {
		return AuthSessionRecord{}, fmt.Errorf("%w: auth state expired", ErrInvalidState)
	}
	return cloneAuthSessionRecord(record), nil
}

func (s *MemorySessionStateStore) pruneLocked(now time.Time) {
	for state, record := range s.entries {
		if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
			delete(s.entries, state)
		}
	}
}

func generateAuthState() (string, error) {
	raw := make([]byte, authStateEntropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate auth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// statesEqual compares the provider-echoed state against the stored one in
// constant time.
func statesEqual(expected, received string) bool {
	expected = strings.TrimSpace(expected)
	received = strings.TrimSpace(received)
	if expected == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

func cloneAuthSessionRecord(record AuthSessionRecord) AuthSessionRecord {
	cloned := record
	cloned.Scopes = append([]string(nil), record.Scopes...)
	if record.Metadata == nil {
		cloned.Metadata = map[string]any{}
	} else {
		cloned.Metadata = copyAnyMap(record.Metadata)
	}
	return cloned
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
