package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a storage transaction, passing
// the backend transaction handle via `tx`. Use-case interfaces stay clean (no
// driver types leaking out); repository methods accept the same handle and
// bind their statements to it. Repositories MUST gracefully accept a nil
// handle (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
