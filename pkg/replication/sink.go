package replication

import (
	"context"
	"fmt"
)

// Executor runs a statement on the analytical store.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) error
	TableRowCount(ctx context.Context, table string) (uint64, error)
}

// SQLSink renders batches into INSERT payloads and executes them.
type SQLSink struct {
	Executor Executor
	Database string
}

func NewSQLSink(exec Executor, database string) *SQLSink {
	return &SQLSink{Executor: exec, Database: database}
}

func (s *SQLSink) InsertBatch(ctx context.Context, batch *Batch) error {
	query, err := batch.SQL(s.Database)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return s.Executor.Exec(ctx, query)
}

func (s *SQLSink) TableRowCount(ctx context.Context, table string) (uint64, error) {
	return s.Executor.TableRowCount(ctx, table)
}
