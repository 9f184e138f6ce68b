package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// GetPostgresDSN starts a shared PostgreSQL container on first use and
// returns a DSN usable with the pgx stdlib driver.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()

	pgOnce.Do(func() {
		// Give generous timeout in CI environments
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		postgresC, err := testcontainers.Run(
			ctx, "postgres:16",
			testcontainers.WithExposedPorts("5432/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForAll(
					wait.ForListeningPort("5432/tcp"),
					wait.ForLog("ready to accept connections"),
					// Actively verify SQL connectivity before handing the
					// DSN to tests.
					wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
						return fmt.Sprintf("postgres://mailpoet:mailpoet@%s:%s/mailpoet_test?sslmode=disable", host, port.Port())
					}).WithQuery("SELECT 1"),
				).WithDeadline(2*time.Minute),
			),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_USER":     "mailpoet",
				"POSTGRES_PASSWORD": "mailpoet",
				"POSTGRES_DB":       "mailpoet_test",
			}),
		)
		if err != nil {
			pgErr = err
			return
		}

		t.Cleanup(func() {
			testcontainers.CleanupContainer(t, postgresC)
		})

		endpoint, err := postgresC.Endpoint(ctx, "")
		if err != nil {
			_ = postgresC.Terminate(context.Background()) // best-effort cleanup
			pgErr = err
			return
		}
		pgDSN = fmt.Sprintf("postgres://mailpoet:mailpoet@%s/mailpoet_test?sslmode=disable", endpoint)
	})

	if pgErr != nil {
		t.Fatalf("starting postgres container: %v", pgErr)
	}
	return pgDSN
}
