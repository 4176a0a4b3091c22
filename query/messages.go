package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeGetIntegration    = "integrations.query.integration.get"
	TypeListIntegrations  = "integrations.query.integration.list"
	TypeGetConnection     = "integrations.query.connection.get"
	TypeListConnections   = "integrations.query.connection.list"
	TypeResolveConnection = "integrations.query.connection.resolve"
	TypeListGrants        = "integrations.query.grant.list"
	TypeValidAccessToken  = "integrations.query.token.valid"
)

type GetIntegrationMessage struct {
	IntegrationKey string
}

func (GetIntegrationMessage) Type() string { return TypeGetIntegration }

func (m GetIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.IntegrationKey) == "" {
		return fmt.Errorf("query: integration key is required")
	}
	return nil
}

type ListIntegrationsMessage struct{}

func (ListIntegrationsMessage) Type() string { return TypeListIntegrations }

func (ListIntegrationsMessage) Validate() error { return nil }

type GetConnectionMessage struct {
	ConnectionID string
	Principal    core.OwnerRef
}

func (GetConnectionMessage) Type() string { return TypeGetConnection }

func (m GetConnectionMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("query: connection id is required")
	}
	if err := m.Principal.Validate(); err != nil {
		return fmt.Errorf("query: invalid principal: %w", err)
	}
	return nil
}

type ListConnectionsMessage struct {
	Owner core.OwnerRef
}

func (ListConnectionsMessage) Type() string { return TypeListConnections }

func (m ListConnectionsMessage) Validate() error {
	if err := m.Owner.Validate(); err != nil {
		return fmt.Errorf("query: invalid owner: %w", err)
	}
	return nil
}

type ResolveConnectionMessage struct {
	IntegrationKey string
	Principal      core.OwnerRef
}

func (ResolveConnectionMessage) Type() string { return TypeResolveConnection }

func (m ResolveConnectionMessage) Validate() error {
	if strings.TrimSpace(m.IntegrationKey) == "" {
		return fmt.Errorf("query: integration key is required")
	}
	if err := m.Principal.Validate(); err != nil {
		return fmt.Errorf("query: invalid principal: %w", err)
	}
	return nil
}

type ListGrantsMessage struct {
	ConnectionID string
	Principal    core.OwnerRef
}

func (ListGrantsMessage) Type() string { return TypeListGrants }

func (m ListGrantsMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("query: connection id is required")
	}
	if err := m.Principal.Validate(); err != nil {
		return fmt.Errorf("query: invalid principal: %w", err)
	}
	return nil
}

type ValidAccessTokenMessage struct {
	Request core.ValidTokenRequest
}

func (ValidAccessTokenMessage) Type() string { return TypeValidAccessToken }

func (m ValidAccessTokenMessage) Validate() error {
	if strings.TrimSpace(m.Request.ConnectionID) == "" {
		return fmt.Errorf("query: connection id is required")
	}
	if err := m.Request.Principal.Validate(); err != nil {
		return fmt.Errorf("query: invalid principal: %w", err)
	}
	if m.Request.RefreshWindow < 0 {
		return fmt.Errorf("query: refresh window must be >= 0")
	}
	return nil
}
