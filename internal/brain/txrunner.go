package brain

import (
	"context"

	"safetalk.app/mediator/core/db"
	"safetalk.app/mediator/core/db/sqlc"
	"safetalk.app/mediator/internal/store"
)

// StoreProvider exposes the stores the conversation workflow reads and writes.
// Inside WithTx every store is bound to the same transaction.
type StoreProvider interface {
	Users() store.UserStore
	Questions() store.QuestionStore
	Reflections() store.ReflectionStore
	RedFlags() store.RedFlagStore
	Insights() store.InsightStore
}

// TxRunner runs functions within a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner creates a TxRunner backed by the given database.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q *sqlc.Queries) error {
		return fn(store.NewStores(q))
	})
}
