// Package analytical holds the ClickHouse replica of channels and posts and
// the aggregate queries served from it.
package analytical

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-network/chanalytics/pkg/db/clickhouse"
	"github.com/canopy-network/chanalytics/pkg/db/models"
	"go.uber.org/zap"
)

// ErrMalformedResult wraps any analytical response that cannot be decoded
// into the expected shape.
var ErrMalformedResult = errors.New("malformed analytical result")

// DB is the analytical replica store.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects, creates the database and ensures both replica tables exist.
func New(ctx context.Context, logger *zap.Logger, name string, poolConfig *clickhouse.PoolConfig) (*DB, error) {
	client, err := clickhouse.New(ctx, logger.With(zap.String("db", name)), name, poolConfig)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: name}
	if err := db.InitializeDB(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the database and the replica tables.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing analytics database", zap.String("database", db.Name))

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	tables := []struct {
		name    string
		columns []models.ColumnDef
	}{
		{models.ChannelsAnalyticsTableName, models.ChannelAnalyticsColumns},
		{models.PostsAnalyticsTableName, models.PostAnalyticsColumns},
	}
	for _, t := range tables {
		db.Logger.Info("Initialize replica table", zap.String("table", t.name))
		if err := db.initReplicaTable(ctx, t.name, t.columns); err != nil {
			return err
		}
	}
	return nil
}

// initReplicaTable creates a ReplacingMergeTree keyed by id and versioned by
// updated_at, so a full resync replaces rows instead of appending them.
func (db *DB) initReplicaTable(ctx context.Context, table string, columns []models.ColumnDef) error {
	if err := models.ValidateColumns(columns); err != nil {
		return fmt.Errorf("invalid schema for %s: %w", table, err)
	}
	query := replicaTableDDL(db.Name, table, db.OnCluster(), db.Engine(clickhouse.ReplacingMergeTree, "updated_at"), columns)
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func replicaTableDDL(database, table, onCluster, engine string, columns []models.ColumnDef) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" %s (
			%s
		) ENGINE = %s
		ORDER BY (id)
	`, database, table, onCluster, models.ColumnsToSchemaSQL(columns), engine)
}
