package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAccountNotFound is returned when the ledger does not know an account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrFunding is returned when the test network funding endpoint is
	// unreachable or rejects the address.
	ErrFunding = errors.New("account funding failed")
	// ErrDestinationUnknown is returned when the destination of a payment
	// cannot be loaded from the ledger.
	ErrDestinationUnknown = errors.New("destination account unknown")
	// ErrSubmission is returned, wrapped in a SubmissionError, when the
	// ledger rejects a transaction.
	ErrSubmission = errors.New("transaction submission rejected")
	// ErrTransport is returned when the cosigner or the notification channel
	// can't be reached.
	ErrTransport = errors.New("transport failure")
	// ErrStream is returned when the live payment feed breaks.
	ErrStream = errors.New("payment stream failure")
	// ErrCosignRejected is returned when the cosigner refuses to sign a
	// transaction before submitting it.
	ErrCosignRejected = errors.New("cosigner rejected the transaction")

	ErrUserNotFound          = errors.New("user not found")
	ErrCosignNotFound        = errors.New("cosign request not found")
	ErrCosignAlreadyExists   = errors.New("cosign request already processed")
	ErrMissingPrimaryAddress = errors.New("missing primary address")
	ErrMissingRequestID      = errors.New("missing cosign request id")
	ErrRequestIDTooLong      = fmt.Errorf(
		"cosign request id must be at most %d characters", MaxRequestIDLength,
	)
)

// SubmissionError carries the reason reported by the ledger for rejecting a
// transaction.
type SubmissionError struct {
	TransactionCode string   `json:"transaction_code,omitempty"`
	OperationCodes  []string `json:"operation_codes,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

func (e *SubmissionError) Error() string {
	msg := ErrSubmission.Error()
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.TransactionCode != "" {
		msg = fmt.Sprintf("%s (%s", msg, e.TransactionCode)
		if len(e.OperationCodes) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.OperationCodes, ", "))
		}
		msg += ")"
	}
	return msg
}

func (e *SubmissionError) Unwrap() error {
	return ErrSubmission
}
