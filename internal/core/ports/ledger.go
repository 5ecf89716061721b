package ports

import (
	"context"

	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

type PaymentHandler func(payment domain.Payment)

// Ledger is the abstraction for any kind of client of the ledger network.
// It lets query and fund accounts, submit transactions and follow the live
// feed of payments of an account.
type Ledger interface {
	// Passphrase returns the passphrase of the network transactions must be
	// signed for.
	Passphrase() string
	// GetAccount returns the current state of the given account, or
	// domain.ErrAccountNotFound.
	GetAccount(ctx context.Context, address string) (*domain.Account, error)
	// Fund requests test network funding for the given address. Fails with
	// domain.ErrFunding.
	Fund(ctx context.Context, address string) (*domain.TxResult, error)
	// SubmitTransaction submits the given base64 envelope. A rejection is
	// returned as *domain.SubmissionError.
	SubmitTransaction(
		ctx context.Context, envelope string,
	) (*domain.TxResult, error)
	// StreamPayments calls handler for every payment of the given account
	// coming after cursor. It blocks until ctx is canceled, returning nil, or
	// until the feed breaks, returning an error wrapping domain.ErrStream.
	StreamPayments(
		ctx context.Context, address, cursor string, handler PaymentHandler,
	) error
}
