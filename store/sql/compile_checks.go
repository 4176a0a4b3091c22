package sqlstore

import (
	"github.com/goliatone/go-integrations/core"
)

var (
	_ core.IntegrationStore       = (*IntegrationStore)(nil)
	_ core.IntegrationStore       = (*CachedIntegrationStore)(nil)
	_ core.ConnectionStore        = (*ConnectionStore)(nil)
	_ core.GrantStore             = (*GrantStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
