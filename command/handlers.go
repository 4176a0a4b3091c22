package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

// MutatingService is the write-side slice of the connection service the
// command layer depends on.
type MutatingService interface {
	StartAuthorization(ctx context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error)
	HandleCallback(ctx context.Context, req core.CompleteAuthRequest) (core.CallbackCompletion, error)
	SaveConnection(ctx context.Context, in core.SaveConnectionInput) (core.Connection, error)
	DeleteConnection(ctx context.Context, connectionID string, principal core.OwnerRef) error
	AddGrant(ctx context.Context, in core.AddGrantInput) (core.Grant, error)
	RemoveGrant(ctx context.Context, connectionID string, principal core.OwnerRef, grantID string) error
	RefreshConnection(ctx context.Context, connectionID string) (core.RefreshOutcome, error)
	ReportConnectionError(ctx context.Context, connectionID string, message string) error
	ReportConnectionTested(ctx context.Context, connectionID string, testedAt time.Time) error
}

type StartAuthorizationCommand struct {
	service MutatingService
}

func NewStartAuthorizationCommand(service MutatingService) *StartAuthorizationCommand {
	return &StartAuthorizationCommand{service: service}
}

func (c *StartAuthorizationCommand) Execute(ctx context.Context, msg StartAuthorizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorization service is required")
	}
	out, err := c.service.StartAuthorization(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.HandleCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SaveConnectionCommand struct {
	service MutatingService
}

func NewSaveConnectionCommand(service MutatingService) *SaveConnectionCommand {
	return &SaveConnectionCommand{service: service}
}

func (c *SaveConnectionCommand) Execute(ctx context.Context, msg SaveConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	out, err := c.service.SaveConnection(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteConnectionCommand struct {
	service MutatingService
}

func NewDeleteConnectionCommand(service MutatingService) *DeleteConnectionCommand {
	return &DeleteConnectionCommand{service: service}
}

func (c *DeleteConnectionCommand) Execute(ctx context.Context, msg DeleteConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	return c.service.DeleteConnection(ctx, msg.ConnectionID, msg.Principal)
}

type AddGrantCommand struct {
	service MutatingService
}

func NewAddGrantCommand(service MutatingService) *AddGrantCommand {
	return &AddGrantCommand{service: service}
}

func (c *AddGrantCommand) Execute(ctx context.Context, msg AddGrantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	out, err := c.service.AddGrant(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveGrantCommand struct {
	service MutatingService
}

func NewRemoveGrantCommand(service MutatingService) *RemoveGrantCommand {
	return &RemoveGrantCommand{service: service}
}

func (c *RemoveGrantCommand) Execute(ctx context.Context, msg RemoveGrantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	return c.service.RemoveGrant(ctx, msg.ConnectionID, msg.Principal, msg.GrantID)
}

type RefreshConnectionCommand struct {
	service MutatingService
}

func NewRefreshConnectionCommand(service MutatingService) *RefreshConnectionCommand {
	return &RefreshConnectionCommand{service: service}
}

func (c *RefreshConnectionCommand) Execute(ctx context.Context, msg RefreshConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.RefreshConnection(ctx, msg.ConnectionID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReportConnectionErrorCommand struct {
	service MutatingService
}

func NewReportConnectionErrorCommand(service MutatingService) *ReportConnectionErrorCommand {
	return &ReportConnectionErrorCommand{service: service}
}

func (c *ReportConnectionErrorCommand) Execute(ctx context.Context, msg ReportConnectionErrorMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	return c.service.ReportConnectionError(ctx, msg.ConnectionID, msg.Message)
}

type ReportConnectionTestedCommand struct {
	service MutatingService
}

func NewReportConnectionTestedCommand(service MutatingService) *ReportConnectionTestedCommand {
	return &ReportConnectionTestedCommand{service: service}
}

func (c *ReportConnectionTestedCommand) Execute(ctx context.Context, msg ReportConnectionTestedMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	return c.service.ReportConnectionTested(ctx, msg.ConnectionID, msg.TestedAt)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
