package ports

import (
	"context"

	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

// Notifier is the abstraction for any kind of channel payment notifications
// are relayed through.
type Notifier interface {
	// Notify delivers the notification. Fails with domain.ErrTransport if the
	// channel can't be reached.
	Notify(ctx context.Context, notification domain.PaymentReceived) error
	// Close releases any connection held by the notifier.
	Close()
}
