package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type GrantStore struct {
	db   *bun.DB
	repo repository.Repository[*grantRecord]
}

// Upsert is idempotent on the (connection, grantee) pair: granting twice
// refreshes the permissions of the existing row.
func (s *GrantStore) Upsert(ctx context.Context, grant core.Grant) (core.Grant, error) {
	if s == nil || s.repo == nil {
		return core.Grant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	connectionID := strings.TrimSpace(grant.ConnectionID)
	if connectionID == "" {
		return core.Grant{}, fmt.Errorf("sqlstore: connection id is required")
	}
	if err := grant.Grantee.Validate(); err != nil {
		return core.Grant{}, err
	}

	now := time.Now().UTC()
	existing, found, err := s.findRecord(ctx, connectionID, grant.Grantee)
	if err != nil {
		return core.Grant{}, err
	}

	if found {
		existing.Permissions = cloneMetadata(grant.Permissions)
		existing.UpdatedAt = now
		updated, updateErr := s.repo.Update(ctx, existing, repository.UpdateByID(existing.ID))
		if updateErr != nil {
			return core.Grant{}, updateErr
		}
		return updated.toDomain(), nil
	}

	record := &grantRecord{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		GranteeType:  string(grant.Grantee.Type),
		GranteeID:    strings.TrimSpace(grant.Grantee.ID),
		Permissions:  cloneMetadata(grant.Permissions),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Grant{}, err
	}
	return created.toDomain(), nil
}

func (s *GrantStore) Remove(ctx context.Context, connectionID string, grantID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: grant store is not configured")
	}
	trimmedConnection := strings.TrimSpace(connectionID)
	trimmedGrant := strings.TrimSpace(grantID)
	if trimmedConnection == "" || trimmedGrant == "" {
		return fmt.Errorf("sqlstore: connection id and grant id are required")
	}
	result, err := s.db.NewDelete().
		Model((*grantRecord)(nil)).
		Where("id = ?", trimmedGrant).
		Where("connection_id = ?", trimmedConnection).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: grant %s", core.ErrConnectionNotFound, trimmedGrant)
	}
	return nil
}

func (s *GrantStore) ListForConnection(ctx context.Context, connectionID string) ([]core.Grant, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: grant store is not configured")
	}
	trimmed := strings.TrimSpace(connectionID)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: connection id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("connection_id", "=", trimmed),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []core.Grant{}, nil
		}
		return nil, err
	}
	out := make([]core.Grant, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *GrantStore) Exists(ctx context.Context, connectionID string, grantee core.OwnerRef) (bool, error) {
	if s == nil || s.repo == nil {
		return false, fmt.Errorf("sqlstore: grant store is not configured")
	}
	if err := grantee.Validate(); err != nil {
		return false, err
	}
	_, found, err := s.findRecord(ctx, strings.TrimSpace(connectionID), grantee)
	return found, err
}

func (s *GrantStore) DeleteForConnection(ctx context.Context, connectionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: grant store is not configured")
	}
	trimmed := strings.TrimSpace(connectionID)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	_, err := s.db.NewDelete().
		Model((*grantRecord)(nil)).
		Where("connection_id = ?", trimmed).
		Exec(ctx)
	return err
}

func (s *GrantStore) findRecord(ctx context.Context, connectionID string, grantee core.OwnerRef) (*grantRecord, bool, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("connection_id", "=", connectionID),
		repository.SelectBy("grantee_type", "=", string(grantee.Type)),
		repository.SelectBy("grantee_id", "=", strings.TrimSpace(grantee.ID)),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}
