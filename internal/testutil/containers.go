package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/fern/pkg/database"
)

// startContainer skips the test when -short is set or Docker is unavailable.
func startContainer(t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("could not start %s container: %v", req.Image, err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	return container
}

// NewPostgresDB starts postgres:15-alpine and returns a migrated handle to it.
func NewPostgresDB(t *testing.T) database.DB {
	t.Helper()

	container := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "fern",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})

	ctx := context.Background()
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := database.Connect(ctx, database.ConnectionConfig{
		Dialect:       database.DialectPostgres,
		Host:          host,
		Port:          port.Port(),
		UserName:      "user",
		Password:      "password",
		Name:          "fern",
		SSLMode:       "disable",
		MaxOpenConns:  10,
		TxMaxAttempts: 10,
	}, Logger())
	require.NoError(t, err)

	MigrateDB(t, db)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// NewRedisAddr starts redis:7-alpine and returns its host:port.
func NewRedisAddr(t *testing.T) string {
	t.Helper()

	container := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	})

	ctx := context.Background()
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}
