package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

var (
	_ gocmd.Querier[GetIntegrationMessage, core.Integration]     = (*GetIntegrationQuery)(nil)
	_ gocmd.Querier[ListIntegrationsMessage, []core.Integration] = (*ListIntegrationsQuery)(nil)
	_ gocmd.Querier[GetConnectionMessage, core.Connection]       = (*GetConnectionQuery)(nil)
	_ gocmd.Querier[ListConnectionsMessage, []core.Connection]   = (*ListConnectionsQuery)(nil)
	_ gocmd.Querier[ResolveConnectionMessage, core.Connection]   = (*ResolveConnectionQuery)(nil)
	_ gocmd.Querier[ListGrantsMessage, []core.Grant]             = (*ListGrantsQuery)(nil)
	_ gocmd.Querier[ValidAccessTokenMessage, core.TokenAccess]   = (*ValidAccessTokenQuery)(nil)
)
