//go:build integration

// Package dbtest starts disposable PostgreSQL and ClickHouse containers for
// integration tests and points the store clients at them through the same
// environment variables the services read.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcclickhouse "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	PostgresImage   = "postgres:16-alpine"
	ClickHouseImage = "clickhouse/clickhouse-server:24.1"

	username = "chanalytics"
	password = "chanalytics"
)

// DockerAvailable checks if Docker is available on the system.
func DockerAvailable(ctx context.Context) bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	return provider.Health(ctx) == nil
}

// StartPostgres runs a PostgreSQL container and sets POSTGRES_URL.
func StartPostgres(ctx context.Context, logger *zap.Logger) (*tcpostgres.PostgresContainer, error) {
	logger.Info("Starting PostgreSQL container...", zap.String("image", PostgresImage))
	container, err := tcpostgres.Run(ctx, PostgresImage,
		tcpostgres.WithDatabase("chanalytics_test"),
		tcpostgres.WithUsername(username),
		tcpostgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		Terminate(ctx, logger, container)
		return nil, fmt.Errorf("failed to get postgres connection string: %w", err)
	}
	if err := os.Setenv("POSTGRES_URL", dsn); err != nil {
		Terminate(ctx, logger, container)
		return nil, err
	}

	logger.Info("PostgreSQL container started", zap.String("dsn", dsn))
	return container, nil
}

// StartClickHouse runs a ClickHouse container and sets CLICKHOUSE_ADDR.
func StartClickHouse(ctx context.Context, logger *zap.Logger) (*tcclickhouse.ClickHouseContainer, error) {
	logger.Info("Starting ClickHouse container...", zap.String("image", ClickHouseImage))
	container, err := tcclickhouse.Run(ctx, ClickHouseImage,
		tcclickhouse.WithUsername(username),
		tcclickhouse.WithPassword(password),
		tcclickhouse.WithDatabase("default"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start clickhouse container: %w", err)
	}

	host, err := container.ConnectionHost(ctx)
	if err != nil {
		Terminate(ctx, logger, container)
		return nil, fmt.Errorf("failed to get clickhouse connection host: %w", err)
	}
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s", username, password, host)
	if err := os.Setenv("CLICKHOUSE_ADDR", dsn); err != nil {
		Terminate(ctx, logger, container)
		return nil, err
	}

	logger.Info("ClickHouse container started", zap.String("host", host))
	return container, nil
}

// Terminate stops a container started by this package, logging failures.
func Terminate(ctx context.Context, logger *zap.Logger, container testcontainers.Container) {
	if container == nil {
		return
	}
	terminateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := container.Terminate(terminateCtx); err != nil {
		logger.Error("Failed to terminate container", zap.Error(err))
	}
}
