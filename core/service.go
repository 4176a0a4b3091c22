package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/adapters/gologger"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	providers         *ProviderRegistry
	sessionStore      SessionStateStore
	tokenClient       TokenClient
	integrationStore  IntegrationStore
	connectionStore   ConnectionStore
	grantStore        GrantStore
	credentialCodec   CredentialCodec
	jobEnqueuer       JobEnqueuer
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	SecretProvider    SecretProvider
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Providers         *ProviderRegistry
	SessionStateStore SessionStateStore
	TokenClient       TokenClient
	IntegrationStore  IntegrationStore
	ConnectionStore   ConnectionStore
	GrantStore        GrantStore
	CredentialCodec   CredentialCodec
	JobEnqueuer       JobEnqueuer
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := gologger.Resolve(builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(gologger.Channel); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.sessionStore == nil {
		builder.sessionStore = NewMemorySessionStateStore(finalConfig.OAuth.StateTTL)
	}
	if builder.tokenClient == nil {
		builder.tokenClient = NewHTTPTokenClient(finalConfig.OAuth.TokenRequestTimeout)
	}
	if builder.credentialCodec == nil {
		builder.credentialCodec = JSONCredentialCodec{}
	}
	if builder.secretProvider != nil {
		if _, alreadyEncrypted := builder.credentialCodec.(*EncryptedCredentialCodec); !alreadyEncrypted {
			encrypted, codecErr := NewEncryptedCredentialCodec(builder.credentialCodec, builder.secretProvider)
			if codecErr != nil {
				return nil, mapBuildError(builder.errorMapper, codecErr)
			}
			builder.credentialCodec = encrypted
		}
	}

	if needsStoreWiring(builder) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient, builder.credentialCodec)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.integrationStore == nil {
					builder.integrationStore = storeProvider.IntegrationStore()
				}
				if builder.connectionStore == nil {
					builder.connectionStore = storeProvider.ConnectionStore()
				}
				if builder.grantStore == nil {
					builder.grantStore = storeProvider.GrantStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.integrationStore == nil {
				builder.integrationStore = storeProvider.IntegrationStore()
			}
			if builder.connectionStore == nil {
				builder.connectionStore = storeProvider.ConnectionStore()
			}
			if builder.grantStore == nil {
				builder.grantStore = storeProvider.GrantStore()
			}
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		secretProvider:    builder.secretProvider,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		providers:         NewProviderRegistry(finalConfig.Providers),
		sessionStore:      builder.sessionStore,
		tokenClient:       builder.tokenClient,
		integrationStore:  builder.integrationStore,
		connectionStore:   builder.connectionStore,
		grantStore:        builder.grantStore,
		credentialCodec:   builder.credentialCodec,
		jobEnqueuer:       builder.jobEnqueuer,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func needsStoreWiring(builder serviceBuilder) bool {
	return builder.integrationStore == nil || builder.connectionStore == nil || builder.grantStore == nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		SecretProvider:    s.secretProvider,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Providers:         s.providers,
		SessionStateStore: s.sessionStore,
		TokenClient:       s.tokenClient,
		IntegrationStore:  s.integrationStore,
		ConnectionStore:   s.connectionStore,
		GrantStore:        s.grantStore,
		CredentialCodec:   s.credentialCodec,
		JobEnqueuer:       s.jobEnqueuer,
	}
}

// StartAuthorization begins the authorization-code flow for an integration:
// it mints a fresh state, records the pending session, and returns the
// provider authorize URL the caller should redirect the user to.
func (s *Service) StartAuthorization(ctx context.Context, req BeginAuthRequest) (response BeginAuthResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"integration_key": req.IntegrationKey,
		"owner_id":        req.Owner.ID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "start_authorization", err, fields)
	}()

	if err = req.Owner.Validate(); err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	integrationKey := strings.TrimSpace(strings.ToLower(req.IntegrationKey))
	if integrationKey == "" {
		err = s.mapError(fmt.Errorf("core: integration key is required"))
		return BeginAuthResponse{}, err
	}

	if _, err = s.requireEnabledIntegration(ctx, integrationKey); err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	providerCfg, err := s.providerConfig(integrationKey)
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}

	redirectURI, err := providerCfg.RedirectURI(req.RedirectURI)
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	state, err := generateAuthState()
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}

	scopes := append([]string(nil), req.Scopes...)
	if len(scopes) == 0 {
		scopes = append([]string(nil), providerCfg.Scopes...)
	}
	authorizeURL, err := buildAuthorizeURL(providerCfg, redirectURI, state, scopes)
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}

	if s.sessionStore != nil {
		now := time.Now().UTC()
		saveErr := s.sessionStore.Save(ctx, AuthSessionRecord{
			State:          state,
			IntegrationKey: integrationKey,
			Owner:          req.Owner,
			RedirectURI:    redirectURI,
			Scopes:         scopes,
			Metadata:       copyAnyMap(req.Metadata),
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.stateTTL()),
		})
		if saveErr != nil {
			err = s.mapError(saveErr)
			return BeginAuthResponse{}, err
		}
	}

	response = BeginAuthResponse{URL: authorizeURL, State: state}
	return response, nil
}

// HandleCallback completes the authorization-code flow: it consumes the
// pending session state, exchanges the code for tokens, and upserts the
// owner's connection as active.
func (s *Service) HandleCallback(ctx context.Context, req CompleteAuthRequest) (completion CallbackCompletion, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"integration_key": req.IntegrationKey,
		"owner_id":        req.Owner.ID,
	}
	defer func() {
		if completion.Connection.ID != "" {
			fields["connection_id"] = completion.Connection.ID
		}
		s.observeOperation(ctx, startedAt, "handle_callback", err, fields)
	}()

	if err = req.Owner.Validate(); err != nil {
		err = s.mapError(err)
		return CallbackCompletion{}, err
	}
	if errorCode := strings.TrimSpace(req.ErrorCode); errorCode != "" {
		description := strings.TrimSpace(req.ErrorDescription)
		if description == "" {
			description = errorCode
		}
		err = s.mapError(fmt.Errorf("%w: provider returned %s: %s", ErrCallbackFailed, errorCode, description))
		return CallbackCompletion{}, err
	}

	session, err := s.consumeCallbackState(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return CallbackCompletion{}, err
	}
	integrationKey := session.IntegrationKey
	fields["integration_key"] = integrationKey

	code := strings.TrimSpace(req.Code)
	if code == "" {
		err = s.mapError(fmt.Errorf("%w: authorization code is missing", ErrCallbackFailed))
		return CallbackCompletion{}, err
	}

	integration, err := s.requireEnabledIntegration(ctx, integrationKey)
	if err != nil {
		err = s.mapError(err)
		return CallbackCompletion{}, err
	}
	providerCfg, err := s.providerConfig(integrationKey)
	if err != nil {
		err = s.mapError(err)
		return CallbackCompletion{}, err
	}
	if s.tokenClient == nil {
		err = s.mapError(fmt.Errorf("core: token client is not configured"))
		return CallbackCompletion{}, err
	}

	grant, err := s.tokenClient.Exchange(ctx, providerCfg, TokenRequest{
		GrantType:   "authorization_code",
		Code:        code,
		RedirectURI: session.RedirectURI,
	})
	if err != nil {
		err = s.mapError(err)
		return CallbackCompletion{}, err
	}

	if s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: connection store is not configured"))
		return CallbackCompletion{}, err
	}

	// Providers may omit the refresh token on re-authorization; keep the
	// stored one so the connection stays refreshable.
	refreshToken := strings.TrimSpace(grant.RefreshToken)
	if refreshToken == "" {
		existing, found, findErr := s.connectionStore.FindByOwner(ctx, integrationKey, session.Owner)
		if findErr == nil && found && existing.Credentials.OAuth2 != nil {
			refreshToken = existing.Credentials.OAuth2.RefreshToken
		}
	}

	credentials := Credentials{
		Scheme: AuthSchemeOAuth2,
		OAuth2: &OAuth2Credentials{
			AccessToken:  grant.AccessToken,
			RefreshToken: refreshToken,
			TokenType:    grant.TokenType,
			Scope:        grant.Scope,
			ExpiresAt:    cloneTimePointer(grant.ExpiresAt),
		},
	}
	connection, err := s.connectionStore.Upsert(ctx, UpsertConnectionInput{
		IntegrationID:  integration.ID,
		IntegrationKey: integrationKey,
		Owner:          session.Owner,
		AuthScheme:     AuthSchemeOAuth2,
		Status:         ConnectionStatusActive,
		Credentials:    credentials,
		OAuthExpiresAt: cloneTimePointer(grant.ExpiresAt),
	})
	if err != nil {
		err = s.mapError(err)
		return CallbackCompletion{}, err
	}

	completion = CallbackCompletion{Connection: connection}
	return completion, nil
}

func (s *Service) consumeCallbackState(ctx context.Context, req CompleteAuthRequest) (AuthSessionRecord, error) {
	if s == nil || s.sessionStore == nil {
		return AuthSessionRecord{}, fmt.Errorf("core: session state store is not configured")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return AuthSessionRecord{}, fmt.Errorf("%w: auth state is required", ErrInvalidState)
	}

	record, err := s.sessionStore.Consume(ctx, state)
	if err != nil {
		return AuthSessionRecord{}, err
	}
	if !statesEqual(record.State, state) {
		return AuthSessionRecord{}, fmt.Errorf("%w: auth state mismatch", ErrInvalidState)
	}
	if key := strings.TrimSpace(strings.ToLower(req.IntegrationKey)); key != "" && key != record.IntegrationKey {
		return AuthSessionRecord{}, fmt.Errorf("%w: auth state integration mismatch", ErrInvalidState)
	}
	if !req.Owner.IsZero() && !record.Owner.Equal(req.Owner) {
		return AuthSessionRecord{}, fmt.Errorf("%w: auth state owner mismatch", ErrInvalidState)
	}
	if redirect := strings.TrimSpace(req.RedirectURI); redirect != "" && strings.TrimSpace(record.RedirectURI) != "" && redirect != strings.TrimSpace(record.RedirectURI) {
		return AuthSessionRecord{}, fmt.Errorf("%w: auth state redirect mismatch", ErrInvalidState)
	}
	return record, nil
}

func (s *Service) providerConfig(integrationKey string) (ProviderConfig, error) {
	if s == nil || s.providers == nil {
		return ProviderConfig{}, fmt.Errorf("%w: provider registry unavailable", ErrNotConfigured)
	}
	return s.providers.Get(integrationKey)
}

func (s *Service) requireEnabledIntegration(ctx context.Context, integrationKey string) (Integration, error) {
	if s == nil || s.integrationStore == nil {
		// Without a catalog store the provider registry is the only gate.
		return Integration{Key: integrationKey, Enabled: true}, nil
	}
	integration, err := s.integrationStore.GetByKey(ctx, integrationKey)
	if err != nil {
		return Integration{}, err
	}
	if !integration.Enabled {
		return Integration{}, fmt.Errorf("%w: integration %q is disabled", ErrIntegrationNotFound, integrationKey)
	}
	return integration, nil
}

func (s *Service) stateTTL() time.Duration {
	if s == nil || s.config.OAuth.StateTTL <= 0 {
		return DefaultOAuthStateTTL
	}
	return s.config.OAuth.StateTTL
}

func (s *Service) accessTokenRefreshWindow() time.Duration {
	if s == nil || s.config.OAuth.AccessTokenRefreshWindow <= 0 {
		return DefaultAccessTokenRefreshWindow
	}
	return s.config.OAuth.AccessTokenRefreshWindow
}

func (s *Service) connectionRefreshWindow() time.Duration {
	if s == nil || s.config.OAuth.ConnectionRefreshWindow <= 0 {
		return DefaultConnectionRefreshWindow
	}
	return s.config.OAuth.ConnectionRefreshWindow
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func buildAuthorizeURL(cfg ProviderConfig, redirectURI string, state string, scopes []string) (string, error) {
	endpoint := strings.TrimSpace(cfg.AuthorizeEndpoint())
	if endpoint == "" {
		return "", fmt.Errorf("%w: authorize endpoint is missing", ErrNotConfigured)
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("core: parse authorize endpoint: %w", err)
	}

	query := parsed.Query()
	query.Set("response_type", "code")
	query.Set("client_id", cfg.ClientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)
	if len(scopes) > 0 {
		query.Set("scope", strings.Join(scopes, " "))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
