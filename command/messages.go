package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeStartAuthorization     = "integrations.command.authorize.start"
	TypeCompleteCallback       = "integrations.command.callback.complete"
	TypeSaveConnection         = "integrations.command.connection.save"
	TypeDeleteConnection       = "integrations.command.connection.delete"
	TypeAddGrant               = "integrations.command.grant.add"
	TypeRemoveGrant            = "integrations.command.grant.remove"
	TypeRefreshConnection      = "integrations.command.refresh"
	TypeReportConnectionError  = "integrations.command.connection.report_error"
	TypeReportConnectionTested = "integrations.command.connection.report_tested"
)

type StartAuthorizationMessage struct {
	Request core.BeginAuthRequest
}

func (StartAuthorizationMessage) Type() string { return TypeStartAuthorization }

func (m StartAuthorizationMessage) Validate() error {
	if strings.TrimSpace(m.Request.IntegrationKey) == "" {
		return commandValidationError("integration_key", "integration key is required")
	}
	return validateOwner("owner", m.Request.Owner)
}

type CompleteCallbackMessage struct {
	Request core.CompleteAuthRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.IntegrationKey) == "" {
		return commandValidationError("integration_key", "integration key is required")
	}
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "callback state is required")
	}
	return validateOwner("owner", m.Request.Owner)
}

type SaveConnectionMessage struct {
	Input core.SaveConnectionInput
}

func (SaveConnectionMessage) Type() string { return TypeSaveConnection }

func (m SaveConnectionMessage) Validate() error {
	if strings.TrimSpace(m.Input.IntegrationKey) == "" {
		return commandValidationError("integration_key", "integration key is required")
	}
	if strings.TrimSpace(string(m.Input.AuthScheme)) == "" {
		return commandValidationError("auth_scheme", "auth scheme is required")
	}
	return validateOwner("owner", m.Input.Owner)
}

type DeleteConnectionMessage struct {
	ConnectionID string
	Principal    core.OwnerRef
}

func (DeleteConnectionMessage) Type() string { return TypeDeleteConnection }

func (m DeleteConnectionMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return commandValidationError("connection_id", "connection id is required")
	}
	return validateOwner("principal", m.Principal)
}

type AddGrantMessage struct {
	Input core.AddGrantInput
}

func (AddGrantMessage) Type() string { return TypeAddGrant }

func (m AddGrantMessage) Validate() error {
	if strings.TrimSpace(m.Input.ConnectionID) == "" {
		return commandValidationError("connection_id", "connection id is required")
	}
	if err := validateOwner("principal", m.Input.Principal); err != nil {
		return err
	}
	return validateOwner("grantee", m.Input.Grantee)
}

type RemoveGrantMessage struct {
	ConnectionID string
	Principal    core.OwnerRef
	GrantID      string
}

func (RemoveGrantMessage) Type() string { return TypeRemoveGrant }

func (m RemoveGrantMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return commandValidationError("connection_id", "connection id is required")
	}
	if strings.TrimSpace(m.GrantID) == "" {
		return commandValidationError("grant_id", "grant id is required")
	}
	return validateOwner("principal", m.Principal)
}

type RefreshConnectionMessage struct {
	ConnectionID string
}

func (RefreshConnectionMessage) Type() string { return TypeRefreshConnection }

func (m RefreshConnectionMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return commandValidationError("connection_id", "connection id is required")
	}
	return nil
}

type ReportConnectionErrorMessage struct {
	ConnectionID string
	Message      string
}

func (ReportConnectionErrorMessage) Type() string { return TypeReportConnectionError }

func (m ReportConnectionErrorMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return commandValidationError("connection_id", "connection id is required")
	}
	if strings.TrimSpace(m.Message) == "" {
		return commandValidationError("message", "error message is required")
	}
	return nil
}

type ReportConnectionTestedMessage struct {
	ConnectionID string
	TestedAt     time.Time
}

func (ReportConnectionTestedMessage) Type() string { return TypeReportConnectionTested }

func (m ReportConnectionTestedMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return commandValidationError("connection_id", "connection id is required")
	}
	return nil
}

func validateOwner(field string, owner core.OwnerRef) error {
	if err := owner.Validate(); err != nil {
		return commandValidationError(field, err.Error())
	}
	return nil
}
