//go:build integration

package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/greg5320/mappool/internal/infra"
	"github.com/greg5320/mappool/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16-alpine"
	dbUser        = "mappool"
	dbPassword    = "mappool"
	dbName        = "mappool_test"
)

var (
	sharedDB   *repository.PgDB
	sharedOnce sync.Once
	sharedErr  error
)

// SkipIfNoDocker skips the test when no Docker daemon is reachable.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// Postgres returns a migrated database shared by every test in the package.
// The container lives until the test binary exits.
func Postgres(t *testing.T) *repository.PgDB {
	t.Helper()
	SkipIfNoDocker(t)
	sharedOnce.Do(func() {
		sharedDB, sharedErr = startPostgres(context.Background())
	})
	if sharedErr != nil {
		t.Fatalf("start postgres: %v", sharedErr)
	}
	return sharedDB
}

func startPostgres(ctx context.Context) (*repository.PgDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     dbUser,
				"POSTGRES_PASSWORD": dbPassword,
				"POSTGRES_DB":       dbName,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, host, port.Port(), dbName)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := infra.RunMigrations(dsn, migrationDir(), logger); err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("connect: %w", err)
	}
	return repository.NewPgDB(pool), nil
}

// migrationDir finds db/migrations above the test's working directory.
func migrationDir() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "db", "migrations")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return infra.FindMigrationDir()
		}
		dir = parent
	}
}

// Truncate empties every table and resets identities.
func Truncate(t *testing.T, db *repository.PgDB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := db.Exec(ctx, `TRUNCATE event_outbox, login_attempts, map_pool_maps, map_pools, maps, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
