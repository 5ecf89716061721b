package jsonfile

import (
	"context"

	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

type cosignsDocument struct {
	Cosigns []cosignRecord `json:"cosign_requests"`
}

type cosignRecord struct {
	RequestID     string                  `json:"id"`
	Envelope      string                  `json:"transaction"`
	SourceAccount string                  `json:"source_account"`
	Status        string                  `json:"status"`
	Result        *domain.TxResult        `json:"result,omitempty"`
	Error         *domain.SubmissionError `json:"error,omitempty"`
	CreatedAt     int64                   `json:"created_at"`
}

func toCosignRecord(c *domain.Cosign) cosignRecord {
	return cosignRecord{
		RequestID:     c.RequestID,
		Envelope:      c.Envelope,
		SourceAccount: c.SourceAccount,
		Status:        c.Status.String(),
		Result:        c.Result,
		Error:         c.Error,
		CreatedAt:     c.CreatedAt,
	}
}

func (r cosignRecord) toDomain() *domain.Cosign {
	status := domain.CosignSubmitted
	if r.Status == domain.CosignRejected.String() {
		status = domain.CosignRejected
	}
	return &domain.Cosign{
		RequestID:     r.RequestID,
		Envelope:      r.Envelope,
		SourceAccount: r.SourceAccount,
		Status:        status,
		Result:        r.Result,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
	}
}

type cosignRepository struct {
	file *jsonFile
}

func NewCosignRepository(path string) (domain.CosignRepository, error) {
	return newCosignRepository(path)
}

func newCosignRepository(path string) (*cosignRepository, error) {
	file, err := newJSONFile(path, cosignsDocument{Cosigns: []cosignRecord{}})
	if err != nil {
		return nil, err
	}
	return &cosignRepository{file}, nil
}

func (r *cosignRepository) GetCosign(
	_ context.Context, requestID string,
) (*domain.Cosign, error) {
	r.file.lock.Lock()
	defer r.file.lock.Unlock()

	doc := &cosignsDocument{}
	if err := r.file.read(doc); err != nil {
		return nil, err
	}
	for _, c := range doc.Cosigns {
		if c.RequestID == requestID {
			return c.toDomain(), nil
		}
	}
	return nil, domain.ErrCosignNotFound
}

func (r *cosignRepository) AddCosign(
	_ context.Context, cosign *domain.Cosign,
) error {
	if len(cosign.RequestID) == 0 {
		return domain.ErrMissingRequestID
	}

	r.file.lock.Lock()
	defer r.file.lock.Unlock()

	doc := &cosignsDocument{}
	if err := r.file.read(doc); err != nil {
		return err
	}
	for _, c := range doc.Cosigns {
		if c.RequestID == cosign.RequestID {
			return domain.ErrCosignAlreadyExists
		}
	}
	doc.Cosigns = append(doc.Cosigns, toCosignRecord(cosign))
	return r.file.write(doc)
}

func (r *cosignRepository) reset() {
	r.file.lock.Lock()
	defer r.file.lock.Unlock()

	r.file.write(cosignsDocument{Cosigns: []cosignRecord{}})
}
