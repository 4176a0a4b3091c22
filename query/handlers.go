package query

import (
	"context"

	"github.com/goliatone/go-integrations/core"
)

// CatalogReader is the integration-catalog slice the query layer depends on.
type CatalogReader interface {
	GetByKey(ctx context.Context, key string) (core.Integration, error)
	List(ctx context.Context) ([]core.Integration, error)
}

// ReadService is the read-side slice of the connection service.
type ReadService interface {
	GetConnection(ctx context.Context, connectionID string, principal core.OwnerRef) (core.Connection, error)
	ListConnections(ctx context.Context, owner core.OwnerRef) ([]core.Connection, error)
	ResolveConnection(ctx context.Context, integrationKey string, principal core.OwnerRef) (core.Connection, error)
	ListGrants(ctx context.Context, connectionID string, principal core.OwnerRef) ([]core.Grant, error)
	ValidAccessToken(ctx context.Context, req core.ValidTokenRequest) (core.TokenAccess, error)
}

type GetIntegrationQuery struct {
	reader CatalogReader
}

func NewGetIntegrationQuery(reader CatalogReader) *GetIntegrationQuery {
	return &GetIntegrationQuery{reader: reader}
}

func (q *GetIntegrationQuery) Query(ctx context.Context, msg GetIntegrationMessage) (core.Integration, error) {
	if q == nil || q.reader == nil {
		return core.Integration{}, queryDependencyError("query: integration catalog reader is required")
	}
	return q.reader.GetByKey(ctx, msg.IntegrationKey)
}

type ListIntegrationsQuery struct {
	reader CatalogReader
}

func NewListIntegrationsQuery(reader CatalogReader) *ListIntegrationsQuery {
	return &ListIntegrationsQuery{reader: reader}
}

func (q *ListIntegrationsQuery) Query(ctx context.Context, msg ListIntegrationsMessage) ([]core.Integration, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: integration catalog reader is required")
	}
	return q.reader.List(ctx)
}

type GetConnectionQuery struct {
	service ReadService
}

func NewGetConnectionQuery(service ReadService) *GetConnectionQuery {
	return &GetConnectionQuery{service: service}
}

func (q *GetConnectionQuery) Query(ctx context.Context, msg GetConnectionMessage) (core.Connection, error) {
	if q == nil || q.service == nil {
		return core.Connection{}, queryDependencyError("query: connection service is required")
	}
	return q.service.GetConnection(ctx, msg.ConnectionID, msg.Principal)
}

type ListConnectionsQuery struct {
	service ReadService
}

func NewListConnectionsQuery(service ReadService) *ListConnectionsQuery {
	return &ListConnectionsQuery{service: service}
}

func (q *ListConnectionsQuery) Query(ctx context.Context, msg ListConnectionsMessage) ([]core.Connection, error) {
	if q == nil || q.service == nil {
		return nil, queryDependencyError("query: connection service is required")
	}
	return q.service.ListConnections(ctx, msg.Owner)
}

type ResolveConnectionQuery struct {
	service ReadService
}

func NewResolveConnectionQuery(service ReadService) *ResolveConnectionQuery {
	return &ResolveConnectionQuery{service: service}
}

func (q *ResolveConnectionQuery) Query(ctx context.Context, msg ResolveConnectionMessage) (core.Connection, error) {
	if q == nil || q.service == nil {
		return core.Connection{}, queryDependencyError("query: connection service is required")
	}
	return q.service.ResolveConnection(ctx, msg.IntegrationKey, msg.Principal)
}

type ListGrantsQuery struct {
	service ReadService
}

func NewListGrantsQuery(service ReadService) *ListGrantsQuery {
	return &ListGrantsQuery{service: service}
}

func (q *ListGrantsQuery) Query(ctx context.Context, msg ListGrantsMessage) ([]core.Grant, error) {
	if q == nil || q.service == nil {
		return nil, queryDependencyError("query: connection service is required")
	}
	return q.service.ListGrants(ctx, msg.ConnectionID, msg.Principal)
}

type ValidAccessTokenQuery struct {
	service ReadService
}

func NewValidAccessTokenQuery(service ReadService) *ValidAccessTokenQuery {
	return &ValidAccessTokenQuery{service: service}
}

func (q *ValidAccessTokenQuery) Query(ctx context.Context, msg ValidAccessTokenMessage) (core.TokenAccess, error) {
	if q == nil || q.service == nil {
		return core.TokenAccess{}, queryDependencyError("query: connection service is required")
	}
	return q.service.ValidAccessToken(ctx, msg.Request)
}
