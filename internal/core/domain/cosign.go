package domain

import (
	"context"
	"time"
)

const (
	CosignSubmitted CosignStatus = iota
	CosignRejected
)

// MaxRequestIDLength bounds the id of a cosign request, the hex encoded hash
// used when the id is missing fits in it.
const MaxRequestIDLength = 64

var (
	cosignStatusString = map[CosignStatus]string{
		CosignSubmitted: "submitted",
		CosignRejected:  "rejected",
	}
)

type CosignStatus int

func (s CosignStatus) String() string {
	return cosignStatusString[s]
}

// CosignRequest is the message handed by the initiator to the counter-signer.
// ID correlates retries of the same request.
type CosignRequest struct {
	ID          string `json:"id"`
	Transaction string `json:"transaction"`
}

// TxResult is the outcome of a successful submission.
type TxResult struct {
	Hash       string `json:"hash"`
	Ledger     int32  `json:"ledger"`
	Successful bool   `json:"successful"`
	Envelope   string `json:"envelope_xdr,omitempty"`
	Result     string `json:"result_xdr,omitempty"`
}

// Cosign is the record of a processed cosign request, stored to answer
// retries of the same request without submitting twice.
type Cosign struct {
	RequestID     string
	Envelope      string
	SourceAccount string
	Status        CosignStatus
	Result        *TxResult
	Error         *SubmissionError
	CreatedAt     int64
}

func NewCosign(req CosignRequest, source string) *Cosign {
	return &Cosign{
		RequestID:     req.ID,
		Envelope:      req.Transaction,
		SourceAccount: source,
		CreatedAt:     time.Now().Unix(),
	}
}

// Submitted marks the request as succeeded with the given result.
func (c *Cosign) Submitted(res TxResult) {
	c.Status = CosignSubmitted
	c.Result = &res
	c.Error = nil
}

// Rejected marks the request as refused by the ledger.
func (c *Cosign) Rejected(err *SubmissionError) {
	c.Status = CosignRejected
	c.Result = nil
	c.Error = err
}

// Matches returns whether req is a retry of the stored request.
func (c *Cosign) Matches(req CosignRequest) bool {
	return c.RequestID == req.ID && c.Envelope == req.Transaction
}

// CosignRepository is the abstraction for any kind of database intended to
// persist processed cosign requests.
type CosignRepository interface {
	// GetCosign returns the record of the given request id.
	GetCosign(ctx context.Context, requestID string) (*Cosign, error)
	// AddCosign stores a new record, failing if the request id is already
	// known.
	AddCosign(ctx context.Context, cosign *Cosign) error
}
