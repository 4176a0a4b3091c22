package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AddGrant lets the connection owner share usage with another user. Granting
// to the owner is rejected, and repeating a grant for the same grantee
// updates the surviving row instead of inserting a duplicate.
func (s *Service) AddGrant(ctx context.Context, in AddGrantInput) (grant Grant, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": in.ConnectionID,
		"owner_id":      in.Principal.ID,
		"grantee_id":    in.Grantee.ID,
	}
	defer func() {
		if grant.ID != "" {
			fields["grant_id"] = grant.ID
		}
		s.observeOperation(ctx, startedAt, "add_grant", err, fields)
	}()

	if err = in.Grantee.Validate(); err != nil {
		err = s.mapError(err)
		return Grant{}, err
	}
	connection, err := s.loadConnection(ctx, in.ConnectionID)
	if err != nil {
		err = s.mapError(err)
		return Grant{}, err
	}
	if err = s.authorizeManage(ctx, connection, in.Principal); err != nil {
		err = s.mapError(err)
		return Grant{}, err
	}
	if connection.Owner.Equal(in.Grantee) {
		err = s.mapError(fmt.Errorf("%w: owner %s already holds full access", ErrSelfGrant, in.Grantee.ID))
		return Grant{}, err
	}
	if s.grantStore == nil {
		err = s.mapError(fmt.Errorf("core: grant store is not configured"))
		return Grant{}, err
	}

	grant, err = s.grantStore.Upsert(ctx, Grant{
		ConnectionID: connection.ID,
		Grantee:      in.Grantee,
		Permissions:  copyAnyMap(in.Permissions),
	})
	if err != nil {
		err = s.mapError(err)
		return Grant{}, err
	}
	return grant, nil
}

func (s *Service) RemoveGrant(ctx context.Context, connectionID string, principal OwnerRef, grantID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
		"owner_id":      principal.ID,
		"grant_id":      grantID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_grant", err, fields)
	}()

	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		err = s.mapError(fmt.Errorf("core: grant id is required"))
		return err
	}
	connection, err := s.loadConnection(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.authorizeManage(ctx, connection, principal); err != nil {
		err = s.mapError(err)
		return err
	}
	if s.grantStore == nil {
		err = s.mapError(fmt.Errorf("core: grant store is not configured"))
		return err
	}
	if err = s.grantStore.Remove(ctx, connection.ID, grantID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) ListGrants(ctx context.Context, connectionID string, principal OwnerRef) (grants []Grant, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
		"owner_id":      principal.ID,
	}
	defer func() {
		fields["count"] = len(grants)
		s.observeOperation(ctx, startedAt, "list_grants", err, fields)
	}()

	connection, err := s.loadConnection(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if err = s.authorizeManage(ctx, connection, principal); err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if s.grantStore == nil {
		err = s.mapError(fmt.Errorf("core: grant store is not configured"))
		return nil, err
	}
	grants, err = s.grantStore.ListForConnection(ctx, connection.ID)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return grants, nil
}
