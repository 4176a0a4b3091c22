package core

import (
	"context"
	"fmt"
)

// CanUse reports whether the principal may exercise the connection: the
// owner always can, everyone else needs a grant.
func (s *Service) CanUse(ctx context.Context, connection Connection, principal OwnerRef) (bool, error) {
	if err := principal.Validate(); err != nil {
		return false, err
	}
	if connection.Owner.Equal(principal) {
		return true, nil
	}
	if s == nil || s.grantStore == nil {
		return false, nil
	}
	return s.grantStore.Exists(ctx, connection.ID, principal)
}

// CanManage reports whether the principal may mutate the connection or its
// grants. Management never flows through grants.
func (s *Service) CanManage(_ context.Context, connection Connection, principal OwnerRef) (bool, error) {
	if err := principal.Validate(); err != nil {
		return false, err
	}
	return connection.Owner.Equal(principal), nil
}

func (s *Service) authorizeUse(ctx context.Context, connection Connection, principal OwnerRef) error {
	allowed, err := s.CanUse(ctx, connection, principal)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: principal %s may not use connection %s", ErrForbidden, principal.ID, connection.ID)
	}
	return nil
}

func (s *Service) authorizeManage(ctx context.Context, connection Connection, principal OwnerRef) error {
	allowed, err := s.CanManage(ctx, connection, principal)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: principal %s may not manage connection %s", ErrForbidden, principal.ID, connection.ID)
	}
	return nil
}
