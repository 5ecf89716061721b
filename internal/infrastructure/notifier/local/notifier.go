package local_notifier

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
)

// Publisher fans a payment notification out to the listeners of this
// process and returns how many got it.
type Publisher interface {
	Publish(n domain.PaymentReceived) int
}

type notifier struct {
	pub Publisher
	log func(format string, a ...interface{})
}

// NewNotifier returns a ports.Notifier delivering notifications in process.
func NewNotifier(pub Publisher) (ports.Notifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("missing publisher")
	}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("local notifier: %s", format)
		log.Debugf(format, a...)
	}
	return &notifier{pub, logFn}, nil
}

func (n *notifier) Notify(_ context.Context, p domain.PaymentReceived) error {
	count := n.pub.Publish(p)
	n.log("payment of %s delivered to %d listeners", p.Address, count)
	return nil
}

func (n *notifier) Close() {}
