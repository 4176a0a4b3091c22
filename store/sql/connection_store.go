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

type ConnectionStore struct {
	db    *bun.DB
	repo  repository.Repository[*connectionRecord]
	codec core.CredentialCodec
}

// Upsert merges on the (integration_key, owner) pair: a second write for the
// same pair updates the surviving row in place instead of inserting a sibling.
func (s *ConnectionStore) Upsert(ctx context.Context, in core.UpsertConnectionInput) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := in.Owner.Validate(); err != nil {
		return core.Connection{}, err
	}
	integrationKey := normalizeKey(in.IntegrationKey)
	if integrationKey == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: integration key is required")
	}
	scheme, err := core.ParseAuthScheme(string(in.AuthScheme))
	if err != nil {
		return core.Connection{}, err
	}

	payload, err := s.encodeCredentials(in.Credentials)
	if err != nil {
		return core.Connection{}, err
	}

	status := in.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.ConnectionStatusActive
	}

	now := time.Now().UTC()
	existing, found, err := s.findRecordByOwner(ctx, integrationKey, in.Owner)
	if err != nil {
		return core.Connection{}, err
	}

	if found {
		existing.IntegrationID = strings.TrimSpace(in.IntegrationID)
		existing.AuthScheme = string(scheme)
		existing.Status = string(status)
		existing.CredentialPayload = payload
		existing.PayloadFormat = s.payloadFormat()
		existing.PayloadVersion = s.payloadVersion()
		existing.LastError = strings.TrimSpace(in.LastError)
		existing.OAuthExpiresAt = cloneTime(in.OAuthExpiresAt)
		existing.UpdatedAt = now
		if status == core.ConnectionStatusActive {
			existing.LastError = ""
		}
		updated, updateErr := s.repo.Update(ctx, existing, repository.UpdateByID(existing.ID))
		if updateErr != nil {
			return core.Connection{}, updateErr
		}
		return updated.toDomain(s.codec)
	}

	record := &connectionRecord{
		ID:                uuid.NewString(),
		IntegrationID:     strings.TrimSpace(in.IntegrationID),
		IntegrationKey:    integrationKey,
		OwnerType:         string(in.Owner.Type),
		OwnerID:           strings.TrimSpace(in.Owner.ID),
		AuthScheme:        string(scheme),
		Status:            string(status),
		CredentialPayload: payload,
		PayloadFormat:     s.payloadFormat(),
		PayloadVersion:    s.payloadVersion(),
		LastError:         strings.TrimSpace(in.LastError),
		OAuthExpiresAt:    cloneTime(in.OAuthExpiresAt),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if status == core.ConnectionStatusActive {
		record.LastError = ""
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Connection{}, err
	}
	return created.toDomain(s.codec)
}

func (s *ConnectionStore) GetByID(ctx context.Context, id string) (core.Connection, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return core.Connection{}, err
	}
	return record.toDomain(s.codec)
}

func (s *ConnectionStore) FindByOwner(ctx context.Context, integrationKey string, owner core.OwnerRef) (core.Connection, bool, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, false, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := owner.Validate(); err != nil {
		return core.Connection{}, false, err
	}
	record, found, err := s.findRecordByOwner(ctx, normalizeKey(integrationKey), owner)
	if err != nil {
		return core.Connection{}, false, err
	}
	if !found {
		return core.Connection{}, false, nil
	}
	connection, err := record.toDomain(s.codec)
	if err != nil {
		return core.Connection{}, false, err
	}
	return connection, true, nil
}

func (s *ConnectionStore) ListForOwner(ctx context.Context, owner core.OwnerRef) ([]core.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("owner_type", "=", string(owner.Type)),
		repository.SelectBy("owner_id", "=", strings.TrimSpace(owner.ID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		connection, domainErr := record.toDomain(s.codec)
		if domainErr != nil {
			return nil, domainErr
		}
		out = append(out, connection)
	}
	return out, nil
}

// Delete soft-deletes the connection and hard-deletes its grants in one
// transaction so revoked access never outlives the row.
func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, txErr := tx.NewUpdate().
			Model((*connectionRecord)(nil)).
			Set("deleted_at = ?", now).
			Set("updated_at = ?", now).
			Where("id = ?", record.ID).
			Where("deleted_at IS NULL").
			Exec(ctx); txErr != nil {
			return txErr
		}
		if _, txErr := tx.NewDelete().
			Model((*grantRecord)(nil)).
			Where("connection_id = ?", record.ID).
			Exec(ctx); txErr != nil {
			return txErr
		}
		return nil
	})
}

func (s *ConnectionStore) MarkError(ctx context.Context, id string, message string) error {
	return s.updateStatus(ctx, id, core.ConnectionStatusError, func(record *connectionRecord) {
		record.LastError = strings.TrimSpace(message)
	})
}

func (s *ConnectionStore) MarkActive(ctx context.Context, id string) error {
	return s.updateStatus(ctx, id, core.ConnectionStatusActive, func(record *connectionRecord) {
		record.LastError = ""
	})
}

func (s *ConnectionStore) MarkTested(ctx context.Context, id string, testedAt time.Time) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}
	stamp := testedAt.UTC()
	record.LastTestedAt = &stamp
	record.UpdatedAt = time.Now().UTC()
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
	return err
}

// ListExpiring reports active oauth2 connections whose access token expires
// before the cutoff. Rows without an expiry never show up here.
func (s *ConnectionStore) ListExpiring(ctx context.Context, before time.Time) ([]core.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	cutoff := before.UTC()
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("auth_scheme", "=", string(core.AuthSchemeOAuth2)),
		repository.SelectBy("status", "=", string(core.ConnectionStatusActive)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL").
				Where("?TableAlias.oauth_expires_at IS NOT NULL").
				Where("?TableAlias.oauth_expires_at < ?", cutoff)
		}),
		repository.OrderBy("oauth_expires_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		connection, domainErr := record.toDomain(s.codec)
		if domainErr != nil {
			return nil, domainErr
		}
		out = append(out, connection)
	}
	return out, nil
}

func (s *ConnectionStore) getRecord(ctx context.Context, id string) (*connectionRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: connection id is required", core.ErrConnectionNotFound)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", trimmed),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrConnectionNotFound, trimmed)
		}
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrConnectionNotFound, trimmed)
	}
	return records[0], nil
}

func (s *ConnectionStore) findRecordByOwner(ctx context.Context, integrationKey string, owner core.OwnerRef) (*connectionRecord, bool, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("integration_key", "=", integrationKey),
		repository.SelectBy("owner_type", "=", string(owner.Type)),
		repository.SelectBy("owner_id", "=", strings.TrimSpace(owner.ID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
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

func (s *ConnectionStore) updateStatus(ctx context.Context, id string, status core.ConnectionStatus, mutate func(*connectionRecord)) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}
	record.Status = string(status)
	if mutate != nil {
		mutate(record)
	}
	record.UpdatedAt = time.Now().UTC()
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
	return err
}

func (s *ConnectionStore) encodeCredentials(credentials core.Credentials) ([]byte, error) {
	if credentials.IsZero() {
		return nil, nil
	}
	if s.codec == nil {
		return nil, fmt.Errorf("sqlstore: credential codec is required to persist credentials")
	}
	payload, err := s.codec.Encode(credentials)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *ConnectionStore) payloadFormat() string {
	if s == nil || s.codec == nil {
		return core.CredentialPayloadFormatJSONV1
	}
	return s.codec.Format()
}

func (s *ConnectionStore) payloadVersion() int {
	if s == nil || s.codec == nil {
		return core.CredentialPayloadVersionV1
	}
	return s.codec.Version()
}
