package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDB adapts a pgxpool.Pool to DB.
type PgDB struct {
	*pgxpool.Pool
}

// NewPgDB wraps pool.
func NewPgDB(pool *pgxpool.Pool) *PgDB {
	return &PgDB{Pool: pool}
}

// InTx begins a transaction, runs fn and commits. Any error rolls back.
func (d *PgDB) InTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
