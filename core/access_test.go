package core

import (
	"context"
	"testing"
)

func seedConnection(t *testing.T, env *testServiceEnv, owner OwnerRef) Connection {
	t.Helper()
	connection, err := env.service.SaveConnection(context.Background(), SaveConnectionInput{
		IntegrationKey: "github",
		Owner:          owner,
		AuthScheme:     AuthSchemeAPIKey,
		Credentials: Credentials{
			APIKey: &APIKeyCredentials{Key: "k-1"},
		},
	})
	if err != nil {
		t.Fatalf("SaveConnection returned error: %v", err)
	}
	return connection
}

func TestCanUseOwner(t *testing.T) {
	env := newTestService(t)
	owner := UserRef("user-1")
	connection := seedConnection(t, env, owner)

	allowed, err := env.service.CanUse(context.Background(), connection, owner)
	if err != nil {
		t.Fatalf("CanUse returned error: %v", err)
	}
	if !allowed {
		t.Fatal("owner must be allowed to use their connection")
	}
}

func TestCanUseGrantee(t *testing.T) {
	env := newTestService(t)
	owner := UserRef("user-1")
	grantee := UserRef("user-2")
	stranger := UserRef("user-3")
	connection := seedConnection(t, env, owner)
	ctx := context.Background()

	if _, err := env.service.AddGrant(ctx, AddGrantInput{
		ConnectionID: connection.ID,
		Principal:    owner,
		Grantee:      grantee,
	}); err != nil {
		t.Fatalf("AddGrant returned error: %v", err)
	}

	allowed, err := env.service.CanUse(ctx, connection, grantee)
	if err != nil {
		t.Fatalf("CanUse returned error: %v", err)
	}
	if !allowed {
		t.Fatal("grantee must be allowed to use the connection")
	}

	allowed, err = env.service.CanUse(ctx, connection, stranger)
	if err != nil {
		t.Fatalf("CanUse returned error: %v", err)
	}
	if allowed {
		t.Fatal("a stranger must not be allowed to use the connection")
	}
}

func TestCanManageIsOwnerOnly(t *testing.T) {
	env := newTestService(t)
	owner := UserRef("user-1")
	grantee := UserRef("user-2")
	connection := seedConnection(t, env, owner)
	ctx := context.Background()

	if _, err := env.service.AddGrant(ctx, AddGrantInput{
		ConnectionID: connection.ID,
		Principal:    owner,
		Grantee:      grantee,
	}); err != nil {
		t.Fatalf("AddGrant returned error: %v", err)
	}

	allowed, err := env.service.CanManage(ctx, connection, owner)
	if err != nil {
		t.Fatalf("CanManage returned error: %v", err)
	}
	if !allowed {
		t.Fatal("owner must be allowed to manage")
	}

	allowed, err = env.service.CanManage(ctx, connection, grantee)
	if err != nil {
		t.Fatalf("CanManage returned error: %v", err)
	}
	if allowed {
		t.Fatal("a grant must never confer management rights")
	}
}

func TestGranteeCannotManageGrants(t *testing.T) {
	env := newTestService(t)
	owner := UserRef("user-1")
	grantee := UserRef("user-2")
	connection := seedConnection(t, env, owner)
	ctx := context.Background()

	grant, err := env.service.AddGrant(ctx, AddGrantInput{
		ConnectionID: connection.ID,
		Principal:    owner,
		Grantee:      grantee,
	})
	if err != nil {
		t.Fatalf("AddGrant returned error: %v", err)
	}

	if _, err := env.service.AddGrant(ctx, AddGrantInput{
		ConnectionID: connection.ID,
		Principal:    grantee,
		Grantee:      UserRef("user-3"),
	}); !errorHasTextCode(err, IntegrationsErrorForbidden) {
		t.Fatalf("grantee adding grants should be forbidden, got %v", err)
	}
	if err := env.service.RemoveGrant(ctx, connection.ID, grantee, grant.ID); !errorHasTextCode(err, IntegrationsErrorForbidden) {
		t.Fatalf("grantee removing grants should be forbidden, got %v", err)
	}
	if err := env.service.DeleteConnection(ctx, connection.ID, grantee); !errorHasTextCode(err, IntegrationsErrorForbidden) {
		t.Fatalf("grantee deleting the connection should be forbidden, got %v", err)
	}
}
