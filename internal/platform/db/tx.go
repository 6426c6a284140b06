package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplyhub/supplyhub/internal/shared"
)

var repeatableRead = pgx.TxOptions{IsoLevel: pgx.RepeatableRead}

// WithTx runs fn in a repeatable-read transaction, committing when fn returns
// nil. A serialization failure surfaces as shared.ErrConflict so clients retry.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	if pool == nil {
		return errors.New("platform/db: pool not initialised")
	}
	err := pgx.BeginTxFunc(ctx, pool, repeatableRead, fn)
	if IsSerializationFailure(err) {
		return fmt.Errorf("%w: concurrent update, retry the operation", shared.ErrConflict)
	}
	return err
}

// NotFound converts pgx.ErrNoRows into shared.ErrNotFound naming what.
func NotFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, shared.ErrNotFound)
	}
	return err
}

// IsSerializationFailure reports SQLSTATE 40001.
func IsSerializationFailure(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "40001"
}
