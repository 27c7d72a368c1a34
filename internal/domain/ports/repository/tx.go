package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres, a snapshot for
// the memory store). Repositories accept nil for the non-transactional path.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one storage transaction. fn's error rolls back;
// nil commits. Repositories called inside fn MUST receive the tx handle, and reads
// through it lock the row (SELECT ... FOR UPDATE on Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
