package repositories

import "context"

// TxFn is a function executed within a transaction. The context carries
// the transaction; repositories pick it up via GetTx.
type TxFn func(ctx context.Context) error

// TransactionManager runs functions inside a database transaction.
type TransactionManager interface {
	// ExecTx begins a transaction, runs fn with a transaction-carrying
	// context, and commits. Any error from fn rolls the transaction back.
	ExecTx(ctx context.Context, fn TxFn) error
}
