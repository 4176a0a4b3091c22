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

type IntegrationStore struct {
	db   *bun.DB
	repo repository.Repository[*integrationRecord]
}

func (s *IntegrationStore) GetByKey(ctx context.Context, key string) (core.Integration, error) {
	if s == nil || s.repo == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: integration store is not configured")
	}
	normalized := normalizeKey(key)
	if normalized == "" {
		return core.Integration{}, fmt.Errorf("%w: integration key is required", core.ErrIntegrationNotFound)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("key", "=", normalized),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Integration{}, fmt.Errorf("%w: %s", core.ErrIntegrationNotFound, normalized)
		}
		return core.Integration{}, err
	}
	if len(records) == 0 {
		return core.Integration{}, fmt.Errorf("%w: %s", core.ErrIntegrationNotFound, normalized)
	}
	return records[0].toDomain(), nil
}

func (s *IntegrationStore) List(ctx context.Context) ([]core.Integration, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: integration store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("key ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Integration, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *IntegrationStore) Upsert(ctx context.Context, in core.UpsertIntegrationInput) (core.Integration, error) {
	if s == nil || s.repo == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: integration store is not configured")
	}
	normalized := normalizeKey(in.Key)
	if normalized == "" {
		return core.Integration{}, fmt.Errorf("sqlstore: integration key is required")
	}

	now := time.Now().UTC()
	schemes := make([]string, 0, len(in.SupportedAuthSchemes))
	for _, scheme := range in.SupportedAuthSchemes {
		schemes = append(schemes, string(scheme))
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("key", "=", normalized),
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.Integration{}, err
	}

	if len(records) > 0 {
		record := records[0]
		record.Name = strings.TrimSpace(in.Name)
		record.Enabled = in.Enabled
		record.AuthSchemes = schemes
		record.Metadata = cloneMetadata(in.Metadata)
		record.UpdatedAt = now
		updated, updateErr := s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
		if updateErr != nil {
			return core.Integration{}, updateErr
		}
		return updated.toDomain(), nil
	}

	record := &integrationRecord{
		ID:          uuid.NewString(),
		Key:         normalized,
		Name:        strings.TrimSpace(in.Name),
		Enabled:     in.Enabled,
		AuthSchemes: schemes,
		Metadata:    cloneMetadata(in.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Integration{}, err
	}
	return created.toDomain(), nil
}
