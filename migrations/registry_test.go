package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	integrations "github.com/goliatone/go-integrations"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestFilesystems_RequiresRollbackPair(t *testing.T) {
	orphan := fstest.MapFS{
		"00001_widgets.up.sql":          {Data: []byte("CREATE TABLE widgets (id TEXT);")},
		"sqlite/00001_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id TEXT);")},
		"sqlite/00001_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
	}

	_, err := Filesystems(orphan)
	if err == nil {
		t.Fatalf("expected missing rollback file to fail filesystem resolution")
	}
	if !strings.Contains(err.Error(), "rollback") {
		t.Fatalf("expected rollback pair error, got %v", err)
	}
}

func TestRegister_MissingDialectFilesystemFails(t *testing.T) {
	specs, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	var sqliteSpec FilesystemSpec
	for _, spec := range specs {
		if spec.Dialect == DialectSQLite {
			sqliteSpec = spec
		}
	}
	if sqliteSpec.FS == nil {
		t.Fatalf("expected sqlite filesystem spec")
	}

	_, err = Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return nil
	}, WithFilesystems(sqliteSpec))
	if err == nil {
		t.Fatalf("expected missing postgres filesystem to fail registration")
	}
	if !strings.Contains(err.Error(), DialectPostgres) {
		t.Fatalf("expected postgres dialect in error, got %v", err)
	}
}

func TestRegister_DefaultsToSourceLabel(t *testing.T) {
	reg, err := Register(context.Background(), func(_ context.Context, _ string, label string, _ fs.FS) error {
		if label != "go-integrations" {
			t.Fatalf("expected default source label, got %q", label)
		}
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.SourceLabel != "go-integrations" {
		t.Fatalf("expected go-integrations label, got %q", reg.SourceLabel)
	}
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := integrations.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_integrations_catalog.up.sql",
		"data/sql/migrations/00001_integrations_catalog.down.sql",
		"data/sql/migrations/00002_integration_connections.up.sql",
		"data/sql/migrations/00002_integration_connections.down.sql",
		"data/sql/migrations/00003_integration_connection_grants.up.sql",
		"data/sql/migrations/00003_integration_connection_grants.down.sql",
		"data/sql/migrations/00004_integrations_seed.up.sql",
		"data/sql/migrations/00004_integrations_seed.down.sql",
		"data/sql/migrations/sqlite/00001_integrations_catalog.up.sql",
		"data/sql/migrations/sqlite/00001_integrations_catalog.down.sql",
		"data/sql/migrations/sqlite/00002_integration_connections.up.sql",
		"data/sql/migrations/sqlite/00002_integration_connections.down.sql",
		"data/sql/migrations/sqlite/00003_integration_connection_grants.up.sql",
		"data/sql/migrations/sqlite/00003_integration_connection_grants.down.sql",
		"data/sql/migrations/sqlite/00004_integrations_seed.up.sql",
		"data/sql/migrations/sqlite/00004_integrations_seed.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteConnectionUniqueness_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-connection-uniqueness?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	root := integrations.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	ups := []string{
		"00001_integrations_catalog.up.sql",
		"00002_integration_connections.up.sql",
		"00003_integration_connection_grants.up.sql",
		"00004_integrations_seed.up.sql",
	}
	for _, migration := range ups {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply migration %s: %v", migration, err)
		}
	}

	var seeded int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM integrations WHERE key IN ('github', 'meta', 'lexoffice')`,
	).Scan(&seeded); err != nil {
		t.Fatalf("count seeded integrations: %v", err)
	}
	if seeded != 3 {
		t.Fatalf("expected 3 seeded integrations, got %d", seeded)
	}

	insertStatement := `
		INSERT INTO integration_connections
			(id, integration_key, owner_type, owner_id, auth_scheme, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"conn_1", "github", "user", "usr_1", "oauth2", "active",
		"2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert first connection: %v", err)
	}

	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"conn_2", "github", "user", "usr_1", "oauth2", "active",
		"2026-01-02T00:00:00Z", "2026-01-02T00:00:00Z",
	); err == nil {
		t.Fatalf("expected unique violation for duplicate live (integration, owner)")
	}

	// A soft-deleted row frees the slot for a re-connect.
	if _, err := db.ExecContext(
		context.Background(),
		`UPDATE integration_connections SET deleted_at = '2026-01-03T00:00:00Z' WHERE id = 'conn_1'`,
	); err != nil {
		t.Fatalf("soft delete first connection: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"conn_3", "github", "user", "usr_1", "oauth2", "active",
		"2026-01-04T00:00:00Z", "2026-01-04T00:00:00Z",
	); err != nil {
		t.Fatalf("expected re-connect after soft delete to succeed: %v", err)
	}

	grantInsert := `
		INSERT INTO integration_connection_grants
			(id, connection_id, grantee_type, grantee_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		grantInsert,
		"grant_1", "conn_3", "user", "usr_2",
		"2026-01-05T00:00:00Z", "2026-01-05T00:00:00Z",
	); err != nil {
		t.Fatalf("insert grant: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		grantInsert,
		"grant_2", "conn_3", "user", "usr_2",
		"2026-01-06T00:00:00Z", "2026-01-06T00:00:00Z",
	); err == nil {
		t.Fatalf("expected unique violation for duplicate (connection, grantee) grant")
	}

	downs := []string{
		"00004_integrations_seed.down.sql",
		"00003_integration_connection_grants.down.sql",
		"00002_integration_connections.down.sql",
		"00001_integrations_catalog.down.sql",
	}
	for _, migration := range downs {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply rollback %s: %v", migration, err)
		}
	}

	var remaining int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('integrations', 'integration_connections', 'integration_connection_grants')`,
	).Scan(&remaining); err != nil {
		t.Fatalf("query sqlite_master after rollback: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected all tables dropped after rollback, found %d", remaining)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
