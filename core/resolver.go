package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ResolveConnection finds the connection a principal should use for an
// integration: the integration must exist and be enabled, the principal's
// own connection wins, and the access check runs even for owner lookups so
// a swapped-in store cannot widen access.
func (s *Service) ResolveConnection(ctx context.Context, integrationKey string, principal OwnerRef) (connection Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"integration_key": integrationKey,
		"owner_id":        principal.ID,
	}
	defer func() {
		if connection.ID != "" {
			fields["connection_id"] = connection.ID
		}
		s.observeOperation(ctx, startedAt, "resolve_connection", err, fields)
	}()

	if err = principal.Validate(); err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	integrationKey = strings.TrimSpace(strings.ToLower(integrationKey))
	if integrationKey == "" {
		err = s.mapError(fmt.Errorf("core: integration key is required"))
		return Connection{}, err
	}
	if s == nil || s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: connection store is not configured"))
		return Connection{}, err
	}

	if _, err = s.requireEnabledIntegration(ctx, integrationKey); err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}

	found, ok, findErr := s.connectionStore.FindByOwner(ctx, integrationKey, principal)
	if findErr != nil {
		err = s.mapError(findErr)
		return Connection{}, err
	}
	if !ok {
		err = s.mapError(fmt.Errorf("%w: no connection for integration %q", ErrConnectionNotFound, integrationKey))
		return Connection{}, err
	}
	if err = s.authorizeUse(ctx, found, principal); err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}

	connection = found
	return connection, nil
}
