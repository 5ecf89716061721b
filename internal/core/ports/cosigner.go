package ports

import (
	"context"

	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

// Cosigner is the abstraction for the remote party holding the secondary key
// of a multisig account.
type Cosigner interface {
	// ProvisionSecondary asks the cosigner to create, or return the already
	// existing, secondary signer for the given primary address.
	ProvisionSecondary(ctx context.Context, primaryAddress string) (string, error)
	// CosignTx hands over a transaction signed by the primary key. The
	// cosigner adds its signature and submits it. Retries of the same request
	// must carry the same id.
	CosignTx(
		ctx context.Context, req domain.CosignRequest,
	) (*domain.TxResult, error)
}
