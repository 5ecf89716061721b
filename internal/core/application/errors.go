package application

import (
	"fmt"
)

var (
	ErrMissingLedger      = fmt.Errorf("missing ledger")
	ErrMissingCosigner    = fmt.Errorf("missing cosigner")
	ErrMissingRepoManager = fmt.Errorf("missing repository manager")
	ErrMissingNotifier    = fmt.Errorf("missing notifier")
	ErrMissingPrimaryKey  = fmt.Errorf("missing primary key pair")
	ErrMissingSecondary   = fmt.Errorf("missing secondary key pair")
	ErrMissingReceiver    = fmt.Errorf("missing receiver address")

	// Reasons for the cosigner to refuse an envelope without submitting it.
	ErrUnexpectedOperation = fmt.Errorf(
		"envelope must contain exactly one native payment operation",
	)
	ErrUnknownSigner    = fmt.Errorf("source account is not linked to this cosigner")
	ErrMissingSignature = fmt.Errorf("envelope is not signed by its source account")
	ErrAlreadySigned    = fmt.Errorf("envelope is already signed by this cosigner")
	ErrRequestConflict  = fmt.Errorf(
		"request id already used for a different envelope",
	)

	ErrWatcherRunning = fmt.Errorf("payment watcher is already streaming")
)
