// Package testutil provides the shared PostgreSQL container used by
// integration tests.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc := testutil.MustStartPostgres()
//	    testDB = tc.MustNewTestDB(context.Background(), testutil.TestLogger())
//	    code := m.Run()
//	    testDB.Close(context.Background())
//	    tc.Terminate()
//	    os.Exit(code)
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rogerHuntGauntlet/outreach/internal/storage"
	"github.com/rogerHuntGauntlet/outreach/migrations"
)

// PostgresImage is PostgreSQL with the pgvector extension available.
const PostgresImage = "pgvector/pgvector:pg17"

// TestContainer is a running database container.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// MustStartPostgres starts a pgvector container. It exits the process on
// failure, which is what TestMain wants.
func MustStartPostgres() *TestContainer {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        PostgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "outreach",
				"POSTGRES_PASSWORD": "outreach",
				"POSTGRES_DB":       "outreach",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fail("start container", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fail("container host", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fail("container port", err)
	}

	return &TestContainer{
		Container: container,
		DSN:       fmt.Sprintf("postgres://outreach:outreach@%s:%s/outreach?sslmode=disable", host, port.Port()),
	}
}

// NewTestDB connects to the container and applies every migration.
func (tc *TestContainer) NewTestDB(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	db, err := storage.New(ctx, tc.DSN, tc.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: create DB: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("testutil: run migrations: %w", err)
	}
	return db, nil
}

// MustNewTestDB is NewTestDB for TestMain.
func (tc *TestContainer) MustNewTestDB(ctx context.Context, logger *slog.Logger) *storage.DB {
	db, err := tc.NewTestDB(ctx, logger)
	if err != nil {
		tc.Terminate()
		fail("new test db", err)
	}
	return db
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a text logger that only shows warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "testutil: %s: %v\n", what, err)
	os.Exit(1)
}
