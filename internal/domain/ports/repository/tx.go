package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the store's transaction handle (pgx.Tx for Postgres). Repository
// methods take nil to run on the pool.
type Tx interface{}

// TransactionManager runs fn in one transaction: commit on nil, rollback
// otherwise. Chunk upserts and migrations go through it.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
