package integrations

import (
	"fmt"
	"reflect"

	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

type CommandQueryService interface {
	integrationscommand.MutatingService
	integrationsquery.ReadService
}

type Commands struct {
	StartAuthorization     *integrationscommand.StartAuthorizationCommand
	CompleteCallback       *integrationscommand.CompleteCallbackCommand
	SaveConnection         *integrationscommand.SaveConnectionCommand
	DeleteConnection       *integrationscommand.DeleteConnectionCommand
	AddGrant               *integrationscommand.AddGrantCommand
	RemoveGrant            *integrationscommand.RemoveGrantCommand
	RefreshConnection      *integrationscommand.RefreshConnectionCommand
	ReportConnectionError  *integrationscommand.ReportConnectionErrorCommand
	ReportConnectionTested *integrationscommand.ReportConnectionTestedCommand
}

type Queries struct {
	GetIntegration    *integrationsquery.GetIntegrationQuery
	ListIntegrations  *integrationsquery.ListIntegrationsQuery
	GetConnection     *integrationsquery.GetConnectionQuery
	ListConnections   *integrationsquery.ListConnectionsQuery
	ResolveConnection *integrationsquery.ResolveConnectionQuery
	ListGrants        *integrationsquery.ListGrantsQuery
	ValidAccessToken  *integrationsquery.ValidAccessTokenQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	catalogReader integrationsquery.CatalogReader
}

func WithCatalogReader(reader integrationsquery.CatalogReader) FacadeOption {
	return func(options *facadeOptions) {
		options.catalogReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	catalog := cfg.catalogReader
	if catalog == nil {
		catalog = resolveCatalogReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		StartAuthorization:     integrationscommand.NewStartAuthorizationCommand(service),
		CompleteCallback:       integrationscommand.NewCompleteCallbackCommand(service),
		SaveConnection:         integrationscommand.NewSaveConnectionCommand(service),
		DeleteConnection:       integrationscommand.NewDeleteConnectionCommand(service),
		AddGrant:               integrationscommand.NewAddGrantCommand(service),
		RemoveGrant:            integrationscommand.NewRemoveGrantCommand(service),
		RefreshConnection:      integrationscommand.NewRefreshConnectionCommand(service),
		ReportConnectionError:  integrationscommand.NewReportConnectionErrorCommand(service),
		ReportConnectionTested: integrationscommand.NewReportConnectionTestedCommand(service),
	}
	facade.queries = Queries{
		GetIntegration:    integrationsquery.NewGetIntegrationQuery(catalog),
		ListIntegrations:  integrationsquery.NewListIntegrationsQuery(catalog),
		GetConnection:     integrationsquery.NewGetConnectionQuery(service),
		ListConnections:   integrationsquery.NewListConnectionsQuery(service),
		ResolveConnection: integrationsquery.NewResolveConnectionQuery(service),
		ListGrants:        integrationsquery.NewListGrantsQuery(service),
		ValidAccessToken:  integrationsquery.NewValidAccessTokenQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveCatalogReader(service CommandQueryService) integrationsquery.CatalogReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(integrationsquery.CatalogReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.IntegrationStore != nil {
		return deps.IntegrationStore
	}
	if deps.RepositoryFactory == nil {
		return nil
	}

	factoryValue := reflect.ValueOf(deps.RepositoryFactory)
	if !factoryValue.IsValid() {
		return nil
	}
	if factoryValue.Kind() == reflect.Ptr && factoryValue.IsNil() {
		return nil
	}
	method := factoryValue.MethodByName("IntegrationStore")
	if !method.IsValid() || method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return nil
	}

	results, ok := safeReflectCall(method)
	if !ok {
		return nil
	}
	if len(results) != 1 {
		return nil
	}
	candidate := results[0]
	if !candidate.IsValid() {
		return nil
	}
	if candidate.Kind() == reflect.Ptr && candidate.IsNil() {
		return nil
	}
	reader, ok := candidate.Interface().(integrationsquery.CatalogReader)
	if !ok {
		return nil
	}
	return reader
}

func safeReflectCall(method reflect.Value) (_ []reflect.Value, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return method.Call(nil), true
}
