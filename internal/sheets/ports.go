package sheets

import (
	"context"

	"finanzen/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter mirrors a ledger transaction into an external sheet.
	// Writing the same transaction id again overwrites the previous row.
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// TransactionDeleter removes a mirrored transaction by id.
	TransactionDeleter interface {
		Delete(ctx context.Context, id string) error
	}
)
