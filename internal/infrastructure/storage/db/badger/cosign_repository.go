package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

type cosignRepository struct {
	store *badgerhold.Store
}

func NewCosignRepository(store *badgerhold.Store) domain.CosignRepository {
	return newCosignRepository(store)
}

func newCosignRepository(store *badgerhold.Store) *cosignRepository {
	return &cosignRepository{store}
}

func (r *cosignRepository) GetCosign(
	ctx context.Context, requestID string,
) (*domain.Cosign, error) {
	var cosign domain.Cosign
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxGet(tx, requestID, &cosign)
	} else {
		err = r.store.Get(requestID, &cosign)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrCosignNotFound
		}
		return nil, err
	}
	return &cosign, nil
}

func (r *cosignRepository) AddCosign(
	ctx context.Context, cosign *domain.Cosign,
) error {
	if len(cosign.RequestID) == 0 {
		return domain.ErrMissingRequestID
	}

	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxInsert(tx, cosign.RequestID, *cosign)
	} else {
		err = r.store.Insert(cosign.RequestID, *cosign)
	}
	if err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrCosignAlreadyExists
		}
		return err
	}
	return nil
}

func (r *cosignRepository) reset() {
	r.store.Badger().DropAll()
}

func (r *cosignRepository) close() {
	r.store.Close()
}
