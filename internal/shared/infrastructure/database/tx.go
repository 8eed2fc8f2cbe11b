package database

import (
	"context"
	"errors"
)

// ErrNoTransaction is returned by Commit or Rollback on a context that never
// went through Begin.
var ErrNoTransaction = errors.New("no transaction in context")

type txKey struct{}

// boundTx is the transaction carried by a context. owner is false for every
// Begin that joined an enclosing unit of work.
type boundTx struct {
	tx    Transaction
	owner bool
}

func txFrom(ctx context.Context) (boundTx, bool) {
	b, ok := ctx.Value(txKey{}).(boundTx)
	return b, ok && b.tx != nil
}

// ContextWithTx binds tx to ctx as an owned transaction.
func ContextWithTx(ctx context.Context, tx Transaction) context.Context {
	return context.WithValue(ctx, txKey{}, boundTx{tx: tx, owner: true})
}

// InTransaction reports whether ctx carries a transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := txFrom(ctx)
	return ok
}

// ExecutorFromContext returns the transaction bound to ctx, or conn outside
// a unit of work. Repositories resolve it per statement.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if b, ok := txFrom(ctx); ok {
		return b.tx
	}
	return conn
}

// GenericUnitOfWork is the application.UnitOfWork for every driver.
type GenericUnitOfWork struct {
	conn Connection
}

// NewUnitOfWork creates a unit of work bound to conn.
func NewUnitOfWork(conn Connection) *GenericUnitOfWork {
	return &GenericUnitOfWork{conn: conn}
}

// Begin opens a transaction. Inside an existing one it joins instead, and the
// returned context cannot commit or roll back the shared transaction.
func (u *GenericUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if b, ok := txFrom(ctx); ok {
		return context.WithValue(ctx, txKey{}, boundTx{tx: b.tx}), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return ContextWithTx(ctx, tx), nil
}

// Commit commits an owned transaction.
func (u *GenericUnitOfWork) Commit(ctx context.Context) error {
	return finish(ctx, Transaction.Commit)
}

// Rollback rolls back an owned transaction.
func (u *GenericUnitOfWork) Rollback(ctx context.Context) error {
	return finish(ctx, Transaction.Rollback)
}

func finish(ctx context.Context, end func(Transaction, context.Context) error) error {
	b, ok := txFrom(ctx)
	switch {
	case !ok:
		return ErrNoTransaction
	case !b.owner:
		return nil
	}
	return end(b.tx, ctx)
}

// Retryable reports whether the unit can be run again after err. Only a
// top-level unit qualifies; a joined one leaves the retry to its owner.
func (u *GenericUnitOfWork) Retryable(ctx context.Context, err error) bool {
	return !InTransaction(ctx) && IsRetryable(err)
}
