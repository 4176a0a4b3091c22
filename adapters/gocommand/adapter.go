// Package gocommand mounts the integrations command and query handlers on
// go-command's registry and dispatcher. Every message routed through this
// package lives in the "integrations." namespace.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

const (
	// MessagePrefix is the namespace every integrations message type carries.
	MessagePrefix = "integrations."
	CommandPrefix = "integrations.command."
	QueryPrefix   = "integrations.query."
)

// IsCommandType reports whether a message type names an integrations command.
func IsCommandType(messageType string) bool {
	return strings.HasPrefix(strings.TrimSpace(messageType), CommandPrefix)
}

// IsQueryType reports whether a message type names an integrations query.
func IsQueryType(messageType string) bool {
	return strings.HasPrefix(strings.TrimSpace(messageType), QueryPrefix)
}

// ValidateMessageContract enforces the Type() contract, the integrations
// namespace, and the optional Validate() hook.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	messageType := strings.TrimSpace(m.Type())
	if messageType == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	if !strings.HasPrefix(messageType, MessagePrefix) {
		return fmt.Errorf("gocommand: message type %q is outside the %q namespace", messageType, MessagePrefix)
	}
	return nil
}

// Bus wraps a go-command registry so integrations handlers register through
// one seam that can also mirror commands into a go-job queue registry.
type Bus struct {
	registry *command.Registry
}

func NewBus(registry *command.Registry) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry}
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

func (b *Bus) RegisterCommand(cmd any) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: bus registry is not configured")
	}
	return b.registry.RegisterCommand(cmd)
}

func (b *Bus) RegisterQuery(qry any) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: bus registry is not configured")
	}
	return b.registry.RegisterCommand(qry)
}

func (b *Bus) AddResolver(key string, resolver command.Resolver) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: bus registry is not configured")
	}
	return b.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// MirrorToQueue registers a resolver that copies every registered command
// into the queue registry, so queued jobs can re-dispatch them by type.
func (b *Bus) MirrorToQueue(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return b.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (b *Bus) HasResolver(key string) bool {
	if b == nil || b.registry == nil {
		return false
	}
	return b.registry.HasResolver(strings.TrimSpace(key))
}

func (b *Bus) Initialize() error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: bus registry is not configured")
	}
	return b.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe mounts a command on the bus and the dispatcher as one
// unit. Handlers whose message type leaves the integrations namespace are
// refused before anything is wired.
func RegisterAndSubscribe[T any](
	bus *Bus,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if bus == nil || bus.registry == nil {
		return nil, fmt.Errorf("gocommand: bus registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	if err := checkNamespace[T](); err != nil {
		return nil, err
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := bus.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterAndSubscribeQuery is the query-side counterpart of
// RegisterAndSubscribe.
func RegisterAndSubscribeQuery[T any, R any](
	bus *Bus,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if bus == nil || bus.registry == nil {
		return nil, fmt.Errorf("gocommand: bus registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	if err := checkNamespace[T](); err != nil {
		return nil, err
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := bus.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// checkNamespace inspects the zero value of a message type; types that do
// not implement Type() are left for registration-time validation.
func checkNamespace[T any]() error {
	var zero T
	m, ok := any(zero).(command.Message)
	if !ok {
		return nil
	}
	messageType := strings.TrimSpace(m.Type())
	if messageType != "" && !strings.HasPrefix(messageType, MessagePrefix) {
		return fmt.Errorf("gocommand: refusing to mount %q outside the %q namespace", messageType, MessagePrefix)
	}
	return nil
}
