package integrations

import "github.com/goliatone/go-integrations/core"

type Config = core.Config

type OAuthConfig = core.OAuthConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type ProviderConfig = core.ProviderConfig
type ProviderRegistry = core.ProviderRegistry
type SessionStateStore = core.SessionStateStore
type TokenClient = core.TokenClient
type IntegrationStore = core.IntegrationStore
type ConnectionStore = core.ConnectionStore
type GrantStore = core.GrantStore
type CredentialCodec = core.CredentialCodec
type SecretProvider = core.SecretProvider

type OwnerRef = core.OwnerRef
type Connection = core.Connection
type Grant = core.Grant
type Integration = core.Integration
type Credentials = core.Credentials

type BeginAuthRequest = core.BeginAuthRequest

type CompleteAuthRequest = core.CompleteAuthRequest

type SaveConnectionInput = core.SaveConnectionInput

type AddGrantInput = core.AddGrantInput

type ValidTokenRequest = core.ValidTokenRequest

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithSecretProvider    = core.WithSecretProvider
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithSessionStateStore = core.WithSessionStateStore
	WithTokenClient       = core.WithTokenClient
	WithIntegrationStore  = core.WithIntegrationStore
	WithConnectionStore   = core.WithConnectionStore
	WithGrantStore        = core.WithGrantStore
	WithCredentialCodec   = core.WithCredentialCodec
	WithJobEnqueuer       = core.WithJobEnqueuer
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

func UserRef(id string) OwnerRef {
	return core.UserRef(id)
}
