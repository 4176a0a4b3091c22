package core

import (
	"context"
	"testing"
)

func TestResolveConnectionForOwner(t *testing.T) {
	env := newTestService(t)
	owner := UserRef("user-1")
	connection := seedConnection(t, env, owner)

	resolved, err := env.service.ResolveConnection(context.Background(), "github", owner)
	if err != nil {
		t.Fatalf("ResolveConnection returned error: %v", err)
	}
	if resolved.ID != connection.ID {
		t.Fatalf("resolved %s, want %s", resolved.ID, connection.ID)
	}
}

func TestResolveConnectionMissing(t *testing.T) {
	env := newTestService(t)

	_, err := env.service.ResolveConnection(context.Background(), "github", UserRef("user-1"))
	if !errorHasTextCode(err, IntegrationsErrorNotFound) {
		t.Fatalf("expected %s, got %v", IntegrationsErrorNotFound, err)
	}
}

func TestResolveConnectionDisabledIntegration(t *testing.T) {
	env := newTestService(t)
	owner := UserRef("user-1")
	seedConnection(t, env, owner)
	ctx := context.Background()

	env.integrations.Upsert(ctx, UpsertIntegrationInput{Key: "github", Name: "GitHub", Enabled: false})

	_, err := env.service.ResolveConnection(ctx, "github", owner)
	if !errorHasTextCode(err, IntegrationsErrorNotFound) {
		t.Fatalf("disabled integration should not resolve, got %v", err)
	}
}

func TestResolveConnectionUnknownIntegration(t *testing.T) {
	env := newTestService(t)

	_, err := env.service.ResolveConnection(context.Background(), "hubspot", UserRef("user-1"))
	if !errorHasTextCode(err, IntegrationsErrorNotFound) {
		t.Fatalf("unknown integration should not resolve, got %v", err)
	}
}

func TestResolveConnectionDoesNotReturnForeignRows(t *testing.T) {
	env := newTestService(t)
	seedConnection(t, env, UserRef("user-1"))

	// user-2 has no connection of their own; resolution must not fall back
	// to user-1's row.
	_, err := env.service.ResolveConnection(context.Background(), "github", UserRef("user-2"))
	if !errorHasTextCode(err, IntegrationsErrorNotFound) {
		t.Fatalf("expected not found for foreign principal, got %v", err)
	}
}
