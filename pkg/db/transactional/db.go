// Package transactional is the store of record for channels and posts,
// backed by PostgreSQL.
package transactional

import (
	"context"
	"fmt"

	"github.com/canopy-network/chanalytics/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB is the transactional channel store.
type DB struct {
	postgres.Client
}

// New connects with the given pool configuration and ensures the schema exists.
func New(ctx context.Context, logger *zap.Logger, poolConfig *postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(zap.String("store", "transactional")), poolConfig)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client}
	if err := db.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the channels and posts tables and their indexes.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initialize channels table")
	if err := db.initChannels(ctx); err != nil {
		return fmt.Errorf("init channels: %w", err)
	}

	db.Logger.Info("Initialize posts table")
	if err := db.initPosts(ctx); err != nil {
		return fmt.Errorf("init posts: %w", err)
	}
	return nil
}

// InTx runs fn in a single transaction; store calls made with the context
// passed to fn join it.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.Client.InTx(ctx, fn)
}
