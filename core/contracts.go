package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// OAuth2Credentials carries the token material obtained from an OAuth2
// authorization-code or refresh_token exchange. ExpiresAt nil means the
// access token never expires.
type OAuth2Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
}

type APIKeyCredentials struct {
	Key string
}

type BasicCredentials struct {
	Username string
	Password string
}

type BearerCredentials struct {
	Token string
}

// Credentials is a tagged union keyed by auth scheme. Exactly the variant
// matching Scheme is populated; the rest stay nil.
type Credentials struct {
	Scheme AuthScheme
	OAuth2 *OAuth2Credentials
	APIKey *APIKeyCredentials
	Basic  *BasicCredentials
	Bearer *BearerCredentials
	Custom map[string]string
}

func (c Credentials) IsZero() bool {
	return c.OAuth2 == nil && c.APIKey == nil && c.Basic == nil && c.Bearer == nil && len(c.Custom) == 0
}

func (c Credentials) Validate() error {
	scheme, err := ParseAuthScheme(string(c.Scheme))
	if err != nil {
		return err
	}
	switch scheme {
	case AuthSchemeOAuth2:
		if c.OAuth2 == nil || strings.TrimSpace(c.OAuth2.AccessToken) == "" {
			return fmt.Errorf("core: oauth2 credentials require an access token")
		}
	case AuthSchemeAPIKey:
		if c.APIKey == nil || strings.TrimSpace(c.APIKey.Key) == "" {
			return fmt.Errorf("core: api key credentials require a key")
		}
	case AuthSchemeBasic:
		if c.Basic == nil || strings.TrimSpace(c.Basic.Username) == "" {
			return fmt.Errorf("core: basic credentials require a username")
		}
	case AuthSchemeBearer:
		if c.Bearer == nil || strings.TrimSpace(c.Bearer.Token) == "" {
			return fmt.Errorf("core: bearer credentials require a token")
		}
	case AuthSchemeCustom:
		if len(c.Custom) == 0 {
			return fmt.Errorf("core: custom credentials require at least one entry")
		}
	}
	return nil
}

func (c Credentials) Clone() Credentials {
	cloned := Credentials{Scheme: c.Scheme}
	if c.OAuth2 != nil {
		oauth := *c.OAuth2
		oauth.ExpiresAt = cloneTimePointer(c.OAuth2.ExpiresAt)
		cloned.OAuth2 = &oauth
	}
	if c.APIKey != nil {
		key := *c.APIKey
		cloned.APIKey = &key
	}
	if c.Basic != nil {
		basic := *c.Basic
		cloned.Basic = &basic
	}
	if c.Bearer != nil {
		bearer := *c.Bearer
		cloned.Bearer = &bearer
	}
	if len(c.Custom) > 0 {
		cloned.Custom = make(map[string]string, len(c.Custom))
		for key, value := range c.Custom {
			cloned.Custom[key] = value
		}
	}
	return cloned
}

// Redacted returns a view safe for logs and external payloads: every secret
// field is replaced with the redaction marker, expiry metadata survives.
func (c Credentials) Redacted() Credentials {
	redacted := c.Clone()
	if redacted.OAuth2 != nil {
		if strings.TrimSpace(redacted.OAuth2.AccessToken) != "" {
			redacted.OAuth2.AccessToken = RedactedValue
		}
		if strings.TrimSpace(redacted.OAuth2.RefreshToken) != "" {
			redacted.OAuth2.RefreshToken = RedactedValue
		}
	}
	if redacted.APIKey != nil && strings.TrimSpace(redacted.APIKey.Key) != "" {
		redacted.APIKey.Key = RedactedValue
	}
	if redacted.Basic != nil && strings.TrimSpace(redacted.Basic.Password) != "" {
		redacted.Basic.Password = RedactedValue
	}
	if redacted.Bearer != nil && strings.TrimSpace(redacted.Bearer.Token) != "" {
		redacted.Bearer.Token = RedactedValue
	}
	for key := range redacted.Custom {
		redacted.Custom[key] = RedactedValue
	}
	return redacted
}

type BeginAuthRequest struct {
	IntegrationKey string
	Owner          OwnerRef
	RedirectURI    string
	Scopes         []string
	Metadata       map[string]any
}

type BeginAuthResponse struct {
	URL   string
	State string
}

type CompleteAuthRequest struct {
	IntegrationKey   string
	Owner            OwnerRef
	Code             string
	State            string
	RedirectURI      string
	ErrorCode        string
	ErrorDescription string
	Metadata         map[string]any
}

type CallbackCompletion struct {
	Connection Connection
}

type SaveConnectionInput struct {
	IntegrationKey string
	Owner          OwnerRef
	AuthScheme     AuthScheme
	Credentials    Credentials
	Status         ConnectionStatus
}

type UpsertConnectionInput struct {
	IntegrationID  string
	IntegrationKey string
	Owner          OwnerRef
	AuthScheme     AuthScheme
	Status         ConnectionStatus
	Credentials    Credentials
	LastError      string
	OAuthExpiresAt *time.Time
}

type AddGrantInput struct {
	ConnectionID string
	Principal    OwnerRef
	Grantee      OwnerRef
	Permissions  map[string]any
}

type ValidTokenRequest struct {
	ConnectionID string
	Principal    OwnerRef
	// RefreshWindow overrides the configured access-token refresh window.
	RefreshWindow time.Duration
}

type TokenAccess struct {
	AccessToken string
	TokenType   string
	ExpiresAt   *time.Time
	// Stale reports that a refresh was attempted and failed, so the
	// returned token may already be rejected by the provider.
	Stale bool
}

type RefreshOutcome struct {
	Connection  Connection
	Credentials Credentials
}

type UpsertIntegrationInput struct {
	Key                  string
	Name                 string
	Enabled              bool
	SupportedAuthSchemes []AuthScheme
	Metadata             map[string]any
}

type IntegrationStore interface {
	GetByKey(ctx context.Context, key string) (Integration, error)
	List(ctx context.Context) ([]Integration, error)
	Upsert(ctx context.Context, in UpsertIntegrationInput) (Integration, error)
}

type ConnectionStore interface {
	// Upsert merges on the (integration, owner) pair: a second write for
	// the same pair updates the surviving row instead of inserting.
	Upsert(ctx context.Context, in UpsertConnectionInput) (Connection, error)
	GetByID(ctx context.Context, id string) (Connection, error)
	FindByOwner(ctx context.Context, integrationKey string, owner OwnerRef) (Connection, bool, error)
	ListForOwner(ctx context.Context, owner OwnerRef) ([]Connection, error)
	// Delete soft-deletes the connection and hard-deletes its grants.
	Delete(ctx context.Context, id string) error
	MarkError(ctx context.Context, id string, message string) error
	MarkActive(ctx context.Context, id string) error
	MarkTested(ctx context.Context, id string, testedAt time.Time) error
	ListExpiring(ctx context.Context, before time.Time) ([]Connection, error)
}

type GrantStore interface {
	Upsert(ctx context.Context, grant Grant) (Grant, error)
	Remove(ctx context.Context, connectionID string, grantID string) error
	ListForConnection(ctx context.Context, connectionID string) ([]Grant, error)
	Exists(ctx context.Context, connectionID string, grantee OwnerRef) (bool, error)
	DeleteForConnection(ctx context.Context, connectionID string) error
}

type StoreProvider interface {
	IntegrationStore() IntegrationStore
	ConnectionStore() ConnectionStore
	GrantStore() GrantStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any, codec CredentialCodec) (StoreProvider, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ConnectionService is the surface the command/query layers depend on.
type ConnectionService interface {
	StartAuthorization(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	HandleCallback(ctx context.Context, req CompleteAuthRequest) (CallbackCompletion, error)
	SaveConnection(ctx context.Context, in SaveConnectionInput) (Connection, error)
	DeleteConnection(ctx context.Context, connectionID string, principal OwnerRef) error
	GetConnection(ctx context.Context, connectionID string, principal OwnerRef) (Connection, error)
	ListConnections(ctx context.Context, owner OwnerRef) ([]Connection, error)
	ResolveConnection(ctx context.Context, integrationKey string, principal OwnerRef) (Connection, error)
	AddGrant(ctx context.Context, in AddGrantInput) (Grant, error)
	RemoveGrant(ctx context.Context, connectionID string, principal OwnerRef, grantID string) error
	ListGrants(ctx context.Context, connectionID string, principal OwnerRef) ([]Grant, error)
	ValidAccessToken(ctx context.Context, req ValidTokenRequest) (TokenAccess, error)
	RefreshConnection(ctx context.Context, connectionID string) (RefreshOutcome, error)
	ReportConnectionError(ctx context.Context, connectionID string, message string) error
	ReportConnectionTested(ctx context.Context, connectionID string, testedAt time.Time) error
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
