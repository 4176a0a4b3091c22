package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

func (r *integrationRecord) toDomain() core.Integration {
	if r == nil {
		return core.Integration{}
	}
	schemes := make([]core.AuthScheme, 0, len(r.AuthSchemes))
	for _, raw := range r.AuthSchemes {
		scheme, err := core.ParseAuthScheme(raw)
		if err != nil {
			continue
		}
		schemes = append(schemes, scheme)
	}
	return core.Integration{
		ID:                   r.ID,
		Key:                  r.Key,
		Name:                 r.Name,
		Enabled:              r.Enabled,
		SupportedAuthSchemes: schemes,
		Metadata:             cloneMetadata(r.Metadata),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

// toDomain decodes the stored payload through the codec; credential rows
// never leave this package encrypted.
func (r *connectionRecord) toDomain(codec core.CredentialCodec) (core.Connection, error) {
	if r == nil {
		return core.Connection{}, nil
	}
	connection := core.Connection{
		ID:             r.ID,
		IntegrationID:  r.IntegrationID,
		IntegrationKey: r.IntegrationKey,
		Owner:          core.OwnerRef{Type: core.OwnerType(r.OwnerType), ID: r.OwnerID},
		AuthScheme:     core.AuthScheme(r.AuthScheme),
		Status:         core.ConnectionStatus(r.Status),
		LastError:      r.LastError,
		LastTestedAt:   cloneTime(r.LastTestedAt),
		OAuthExpiresAt: cloneTime(r.OAuthExpiresAt),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if len(r.CredentialPayload) > 0 && codec != nil {
		credentials, err := codec.Decode(r.CredentialPayload)
		if err != nil {
			return core.Connection{}, err
		}
		connection.Credentials = credentials
	}
	return connection, nil
}

func (r *grantRecord) toDomain() core.Grant {
	if r == nil {
		return core.Grant{}
	}
	return core.Grant{
		ID:           r.ID,
		ConnectionID: r.ConnectionID,
		Grantee:      core.OwnerRef{Type: core.OwnerType(r.GranteeType), ID: r.GranteeID},
		Permissions:  cloneMetadata(r.Permissions),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func normalizeKey(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

func cloneMetadata(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}
