package inmemory

import (
	"context"
	"sync"

	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

type cosignRepository struct {
	cosigns map[string]domain.Cosign
	lock    *sync.RWMutex
}

func NewCosignRepository() domain.CosignRepository {
	return newCosignRepository()
}

func newCosignRepository() *cosignRepository {
	return &cosignRepository{
		cosigns: make(map[string]domain.Cosign),
		lock:    &sync.RWMutex{},
	}
}

func (r *cosignRepository) GetCosign(
	_ context.Context, requestID string,
) (*domain.Cosign, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	cosign, ok := r.cosigns[requestID]
	if !ok {
		return nil, domain.ErrCosignNotFound
	}
	return &cosign, nil
}

func (r *cosignRepository) AddCosign(
	_ context.Context, cosign *domain.Cosign,
) error {
	if len(cosign.RequestID) == 0 {
		return domain.ErrMissingRequestID
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.cosigns[cosign.RequestID]; ok {
		return domain.ErrCosignAlreadyExists
	}
	r.cosigns[cosign.RequestID] = *cosign
	return nil
}

func (r *cosignRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.cosigns = make(map[string]domain.Cosign)
}
