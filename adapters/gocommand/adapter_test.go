package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type okMessage struct{}

func (okMessage) Type() string { return "integrations.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "integrations.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type strayMessage struct{}

func (strayMessage) Type() string { return "billing.invoice.create" }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "integrations.command.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "integrations.command.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(strayMessage{}); err == nil {
		t.Fatalf("expected namespace violation to fail contract validation")
	}
}

func TestMessageTypeClassification(t *testing.T) {
	if !IsCommandType("integrations.command.connection.save") {
		t.Fatalf("expected command namespace match")
	}
	if IsCommandType("integrations.query.connection.get") {
		t.Fatalf("query type must not classify as command")
	}
	if !IsQueryType("integrations.query.connection.get") {
		t.Fatalf("expected query namespace match")
	}
	if IsQueryType("billing.invoice.create") {
		t.Fatalf("foreign type must not classify as query")
	}
}

func TestBusAndDispatchWiring(t *testing.T) {
	bus := NewBus(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(bus, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := bus.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !bus.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize bus: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestRegisterAndSubscribeRefusesForeignNamespace(t *testing.T) {
	bus := NewBus(command.NewRegistry())
	cmd := command.CommandFunc[strayMessage](func(context.Context, strayMessage) error { return nil })

	if _, err := RegisterAndSubscribe(bus, cmd); err == nil {
		t.Fatalf("expected foreign namespace to be refused")
	}
	if err := Dispatch(context.Background(), strayMessage{}); err == nil {
		t.Fatalf("expected no subscription for refused command")
	}
}

func TestQueueMirrorWiring(t *testing.T) {
	bus := NewBus(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := bus.MirrorToQueue("queue", queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	if err := bus.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize bus: %v", err)
	}

	if _, ok := queueRegistry.Get("integrations.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}
