package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type integrationRecord struct {
	bun.BaseModel `bun:"table:integrations,alias:ig"`

	ID          string         `bun:"id,pk"`
	Key         string         `bun:"key,notnull"`
	Name        string         `bun:"name,notnull"`
	Enabled     bool           `bun:"enabled,notnull"`
	AuthSchemes []string       `bun:"auth_schemes,type:jsonb,notnull"`
	Metadata    map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type connectionRecord struct {
	bun.BaseModel `bun:"table:integration_connections,alias:ic"`

	ID                string     `bun:"id,pk"`
	IntegrationID     string     `bun:"integration_id,notnull"`
	IntegrationKey    string     `bun:"integration_key,notnull"`
	OwnerType         string     `bun:"owner_type,notnull"`
	OwnerID           string     `bun:"owner_id,notnull"`
	AuthScheme        string     `bun:"auth_scheme,notnull"`
	Status            string     `bun:"status,notnull"`
	CredentialPayload []byte     `bun:"credential_payload"`
	PayloadFormat     string     `bun:"payload_format,notnull"`
	PayloadVersion    int        `bun:"payload_version,notnull"`
	LastError         string     `bun:"last_error"`
	LastTestedAt      *time.Time `bun:"last_tested_at,nullzero"`
	OAuthExpiresAt    *time.Time `bun:"oauth_expires_at,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt         *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type grantRecord struct {
	bun.BaseModel `bun:"table:integration_connection_grants,alias:icg"`

	ID           string         `bun:"id,pk"`
	ConnectionID string         `bun:"connection_id,notnull"`
	GranteeType  string         `bun:"grantee_type,notnull"`
	GranteeID    string         `bun:"grantee_id,notnull"`
	Permissions  map[string]any `bun:"permissions,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
