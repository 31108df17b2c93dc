package duckdb

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func GetTransaction(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// PrepareIn prepares the statement on the ambient transaction when ctx
// carries one, otherwise on db.
func PrepareIn(ctx context.Context, db *sql.DB, query string) (*sql.Stmt, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.PrepareContext(ctx, query)
	}
	return db.PrepareContext(ctx, query)
}

// BeginIn returns the ambient transaction when ctx carries one, otherwise
// starts a new one. owned reports whether the caller must commit or roll
// back; an ambient transaction belongs to whoever opened it.
func BeginIn(ctx context.Context, db *sql.DB) (tx *sql.Tx, owned bool, err error) {
	if ambient := GetTransaction(ctx); ambient != nil {
		return ambient, false, nil
	}
	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, true, nil
}
