package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SaveConnection stores caller-supplied credentials for an integration,
// merging into the principal's existing connection when one survives for the
// (integration, owner) pair.
func (s *Service) SaveConnection(ctx context.Context, in SaveConnectionInput) (connection Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"integration_key": in.IntegrationKey,
		"owner_id":        in.Owner.ID,
		"auth_scheme":     string(in.AuthScheme),
	}
	defer func() {
		if connection.ID != "" {
			fields["connection_id"] = connection.ID
		}
		s.observeOperation(ctx, startedAt, "save_connection", err, fields)
	}()

	if err = in.Owner.Validate(); err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	integrationKey := strings.TrimSpace(strings.ToLower(in.IntegrationKey))
	if integrationKey == "" {
		err = s.mapError(fmt.Errorf("core: integration key is required"))
		return Connection{}, err
	}
	scheme, schemeErr := ParseAuthScheme(string(in.AuthScheme))
	if schemeErr != nil {
		err = s.mapError(schemeErr)
		return Connection{}, err
	}
	credentials := in.Credentials
	credentials.Scheme = scheme
	if err = credentials.Validate(); err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	if s == nil || s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: connection store is not configured"))
		return Connection{}, err
	}

	integration, err := s.requireEnabledIntegration(ctx, integrationKey)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	if len(integration.SupportedAuthSchemes) > 0 && !authSchemeSupported(integration.SupportedAuthSchemes, scheme) {
		err = s.mapError(fmt.Errorf("%w: integration %q does not support scheme %q", ErrInvalidAuthScheme, integrationKey, scheme))
		return Connection{}, err
	}

	status := in.Status
	if strings.TrimSpace(string(status)) == "" {
		status = ConnectionStatusActive
	}

	var oauthExpiresAt *time.Time
	if credentials.OAuth2 != nil {
		oauthExpiresAt = cloneTimePointer(credentials.OAuth2.ExpiresAt)
	}

	connection, err = s.connectionStore.Upsert(ctx, UpsertConnectionInput{
		IntegrationID:  integration.ID,
		IntegrationKey: integrationKey,
		Owner:          in.Owner,
		AuthScheme:     scheme,
		Status:         status,
		Credentials:    credentials,
		OAuthExpiresAt: oauthExpiresAt,
	})
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	return connection, nil
}

// DeleteConnection soft-deletes an owned connection and removes its grants.
func (s *Service) DeleteConnection(ctx context.Context, connectionID string, principal OwnerRef) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
		"owner_id":      principal.ID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_connection", err, fields)
	}()

	connection, err := s.loadConnection(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.authorizeManage(ctx, connection, principal); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.connectionStore.Delete(ctx, connection.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) GetConnection(ctx context.Context, connectionID string, principal OwnerRef) (connection Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
		"owner_id":      principal.ID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_connection", err, fields)
	}()

	connection, err = s.loadConnection(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	if err = s.authorizeUse(ctx, connection, principal); err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	return connection, nil
}

func (s *Service) ListConnections(ctx context.Context, owner OwnerRef) (connections []Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"owner_id": owner.ID,
	}
	defer func() {
		fields["count"] = len(connections)
		s.observeOperation(ctx, startedAt, "list_connections", err, fields)
	}()

	if err = owner.Validate(); err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if s == nil || s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: connection store is not configured"))
		return nil, err
	}
	connections, err = s.connectionStore.ListForOwner(ctx, owner)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return connections, nil
}

// ReportConnectionError records a downstream failure against the connection
// and moves it into the error status. Connections whose current status does
// not permit that move, such as disabled ones, reject the report.
func (s *Service) ReportConnectionError(ctx context.Context, connectionID string, message string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "report_connection_error", err, fields)
	}()

	connection, err := s.loadConnection(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	message = strings.TrimSpace(message)
	if err = connection.TransitionTo(ConnectionStatusError, message, s.clock()); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.connectionStore.MarkError(ctx, connection.ID, message); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// ReportConnectionTested stamps a successful probe of the connection.
func (s *Service) ReportConnectionTested(ctx context.Context, connectionID string, testedAt time.Time) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "report_connection_tested", err, fields)
	}()

	connection, err := s.loadConnection(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if testedAt.IsZero() {
		testedAt = s.clock()
	}
	if err = s.connectionStore.MarkTested(ctx, connection.ID, testedAt.UTC()); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) loadConnection(ctx context.Context, connectionID string) (Connection, error) {
	if s == nil || s.connectionStore == nil {
		return Connection{}, fmt.Errorf("core: connection store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return Connection{}, fmt.Errorf("core: connection id is required")
	}
	return s.connectionStore.GetByID(ctx, connectionID)
}

func authSchemeSupported(supported []AuthScheme, scheme AuthScheme) bool {
	for _, candidate := range supported {
		if strings.EqualFold(strings.TrimSpace(string(candidate)), string(scheme)) {
			return true
		}
	}
	return false
}
