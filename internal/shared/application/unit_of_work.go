package application

import "context"

// UnitOfWork scopes a set of repository calls to one transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RetryClassifier is implemented by units of work that can tell when a failed
// transaction may be run again from the start, e.g. after a serialization
// failure or deadlock between concurrent webhook deliveries.
type RetryClassifier interface {
	Retryable(ctx context.Context, err error) bool
}

// MaxTxAttempts bounds how often WithUnitOfWork runs fn.
const MaxTxAttempts = 3

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork runs fn in a transaction, committing when it returns nil.
// The transaction is rolled back when fn fails or panics; the panic is
// re-raised. When uow is a RetryClassifier, failures it classifies as
// retryable run fn again in a fresh transaction, up to MaxTxAttempts times.
// fn must therefore keep all its effects inside the transaction.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	classifier, _ := uow.(RetryClassifier)

	var err error
	for attempt := 1; attempt <= MaxTxAttempts; attempt++ {
		err = runInTx(ctx, uow, fn)
		if err == nil || classifier == nil || !classifier.Retryable(ctx, err) {
			return err
		}
	}
	return err
}

func runInTx(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = uow.Rollback(txCtx)
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}
	return uow.Commit(txCtx)
}
