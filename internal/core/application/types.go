package application

import (
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

const (
	WatcherIdle WatcherState = iota
	WatcherStreaming
)

// Outcomes of a cosign request, as reported to metrics.
const (
	CosignOutcomeSubmitted = "submitted"
	CosignOutcomeReplayed  = "replayed"
	CosignOutcomeRejected  = "rejected"
	CosignOutcomeRefused   = "refused"
	CosignOutcomeFailed    = "failed"
)

var (
	watcherStateString = map[WatcherState]string{
		WatcherIdle:      "idle",
		WatcherStreaming: "streaming",
	}
)

type WatcherState int

func (s WatcherState) String() string {
	return watcherStateString[s]
}

type AccountInfo domain.Account

type BalanceInfo []domain.Balance

// LinkResult reports the outcome of linking the secondary signer to the
// primary account. Tx is nil if the account was already linked.
type LinkResult struct {
	PrimaryAddress   string
	SecondaryAddress string
	Tx               *domain.TxResult
}

func (r LinkResult) AlreadyLinked() bool {
	return r.Tx == nil
}

type noopMetrics struct{}

func (noopMetrics) CosignProcessed(string) {}
func (noopMetrics) PaymentReceived()       {}
func (noopMetrics) NotificationsSent(int)  {}
func (noopMetrics) WatcherStreaming(bool)  {}
