package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/stellar/go/txnbuild"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

type CosignerServiceArgs struct {
	Ledger       ports.Ledger
	RepoManager  ports.RepoManager
	SecondaryKey *wallet.Keypair
	Metrics      ports.Metrics
}

func (a CosignerServiceArgs) validate() error {
	if a.Ledger == nil {
		return ErrMissingLedger
	}
	if a.RepoManager == nil {
		return ErrMissingRepoManager
	}
	if a.SecondaryKey == nil {
		return ErrMissingSecondary
	}
	return nil
}

// CosignerService is the counter-signer half of the co-sign protocol, it
// owns the secondary key and takes care of:
// 	* Registering primary accounts that want to be linked to the secondary
// 	signer.
// 	* Verifying, counter-signing and submitting payments signed by a
// 	registered primary key.
//
// Every processed request is recorded under its id, so that a retry gets
// back the very same outcome without anything being submitted twice.
type CosignerService struct {
	ledger       ports.Ledger
	repoManager  ports.RepoManager
	secondaryKey *wallet.Keypair
	metrics      ports.Metrics
	lock         *sync.Mutex

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewCosignerService(args CosignerServiceArgs) (*CosignerService, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	var metrics ports.Metrics = noopMetrics{}
	if args.Metrics != nil {
		metrics = args.Metrics
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("cosigner service: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("cosigner service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	svc := &CosignerService{
		ledger:       args.Ledger,
		repoManager:  args.RepoManager,
		secondaryKey: args.SecondaryKey,
		metrics:      metrics,
		lock:         &sync.Mutex{},
		log:          logFn,
		warn:         warnFn,
	}
	svc.registerHandlerForUserEvents()
	return svc, nil
}

func (cs *CosignerService) registerHandlerForUserEvents() {
	cs.repoManager.RegisterHandlerForUserEvent(
		domain.UserCreated, func(event domain.UserEvent) {
			cs.log("new user %s for primary %s", event.User.ID, event.User.PrimaryAddress)
		},
	)
	cs.repoManager.RegisterHandlerForUserEvent(
		domain.UserSecondaryLinked, func(event domain.UserEvent) {
			if event.User.SecondaryAddress != cs.secondaryKey.Address() {
				cs.warn(
					fmt.Errorf("unexpected secondary %s", event.User.SecondaryAddress),
					"primary %s linked to another cosigner", event.User.PrimaryAddress,
				)
				return
			}
			cs.log("primary %s linked", event.User.PrimaryAddress)
		},
	)
}

func (cs *CosignerService) SecondaryAddress() string {
	return cs.secondaryKey.Address()
}

// ProvisionSecondaryAccount registers the given primary address against the
// secondary signer and returns the address of the latter.
func (cs *CosignerService) ProvisionSecondaryAccount(
	ctx context.Context, primaryAddress string,
) (string, error) {
	if err := wallet.ValidateAddress(primaryAddress); err != nil {
		return "", err
	}
	secondary := cs.secondaryKey.Address()
	if primaryAddress == secondary {
		return "", fmt.Errorf("%w: primary and secondary addresses must differ", wallet.ErrInvalidAddress)
	}

	user, err := cs.repoManager.UserRepository().UpsertUser(
		ctx, primaryAddress, domain.UserUpdate{SecondaryAddress: secondary},
	)
	if err != nil {
		return "", err
	}
	cs.log("registered %s for primary %s (user %s)", secondary, primaryAddress, user.ID)
	return secondary, nil
}

// Cosign verifies the envelope of the request, adds the secondary signature
// and submits it. If the request id is missing, the hash of the transaction
// is used instead.
func (cs *CosignerService) Cosign(
	ctx context.Context, req domain.CosignRequest,
) (*domain.TxResult, error) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	var tx *txnbuild.Transaction
	if req.ID == "" {
		var err error
		if tx, err = cs.decode(req.Transaction); err != nil {
			return nil, err
		}
		if req.ID, err = wallet.TxHash(tx, cs.ledger.Passphrase()); err != nil {
			return nil, err
		}
	}

	prev, err := cs.repoManager.CosignRepository().GetCosign(ctx, req.ID)
	if err == nil {
		return cs.replay(prev, req)
	}
	if !errors.Is(err, domain.ErrCosignNotFound) {
		return nil, err
	}

	if tx == nil {
		if tx, err = cs.decode(req.Transaction); err != nil {
			return nil, err
		}
	}

	source, err := cs.verify(ctx, tx)
	if err != nil {
		cs.metrics.CosignProcessed(CosignOutcomeRefused)
		cs.warn(err, "refused request %s", req.ID)
		return nil, err
	}

	signed, err := wallet.SignTx(tx, cs.ledger.Passphrase(), cs.secondaryKey)
	if err != nil {
		return nil, err
	}
	envelope, err := wallet.EncodeTx(signed)
	if err != nil {
		return nil, err
	}

	record := domain.NewCosign(req, source)
	res, err := cs.ledger.SubmitTransaction(ctx, envelope)
	if err != nil {
		var subErr *domain.SubmissionError
		if !errors.As(err, &subErr) {
			// Nothing is recorded so that a retry can submit again.
			cs.metrics.CosignProcessed(CosignOutcomeFailed)
			return nil, err
		}
		record.Rejected(subErr)
		cs.store(ctx, record)
		cs.metrics.CosignProcessed(CosignOutcomeRejected)
		return nil, subErr
	}

	record.Submitted(*res)
	cs.store(ctx, record)
	cs.metrics.CosignProcessed(CosignOutcomeSubmitted)
	cs.log("request %s from %s submitted with tx %s", req.ID, source, res.Hash)
	return res, nil
}

func (cs *CosignerService) decode(envelope string) (*txnbuild.Transaction, error) {
	tx, err := wallet.DecodeTx(envelope)
	if err != nil {
		cs.metrics.CosignProcessed(CosignOutcomeRefused)
		return nil, err
	}
	return tx, nil
}

func (cs *CosignerService) replay(
	prev *domain.Cosign, req domain.CosignRequest,
) (*domain.TxResult, error) {
	if !prev.Matches(req) {
		cs.metrics.CosignProcessed(CosignOutcomeRefused)
		return nil, fmt.Errorf("%w: %s", ErrRequestConflict, req.ID)
	}
	cs.metrics.CosignProcessed(CosignOutcomeReplayed)
	cs.log("request %s already processed", req.ID)
	if prev.Status == domain.CosignRejected {
		if prev.Error == nil {
			return nil, &domain.SubmissionError{}
		}
		return nil, prev.Error
	}
	return prev.Result, nil
}

// verify checks that tx is a single native payment from a primary account
// linked to the secondary signer, signed by the former only. It returns the
// source account.
func (cs *CosignerService) verify(
	ctx context.Context, tx *txnbuild.Transaction,
) (string, error) {
	source := tx.SourceAccount().AccountID

	ops := tx.Operations()
	if len(ops) != 1 {
		return "", ErrUnexpectedOperation
	}
	payment, ok := ops[0].(*txnbuild.Payment)
	if !ok || payment.Asset == nil || !payment.Asset.IsNative() {
		return "", ErrUnexpectedOperation
	}
	if payment.SourceAccount != "" && payment.SourceAccount != source {
		return "", ErrUnexpectedOperation
	}

	secondary := cs.secondaryKey.Address()
	user, err := cs.repoManager.UserRepository().GetUserByAddress(ctx, source)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownSigner, source)
		}
		return "", err
	}
	if user.PrimaryAddress != source || user.SecondaryAddress != secondary {
		return "", fmt.Errorf("%w: %s", ErrUnknownSigner, source)
	}

	signers, err := wallet.Signers(tx, cs.ledger.Passphrase(), source, secondary)
	if err != nil {
		return "", err
	}
	signedBy := make(map[string]bool)
	for _, s := range signers {
		signedBy[s] = true
	}
	if !signedBy[source] {
		return "", ErrMissingSignature
	}
	if signedBy[secondary] {
		return "", ErrAlreadySigned
	}
	return source, nil
}

func (cs *CosignerService) store(ctx context.Context, record *domain.Cosign) {
	if err := cs.repoManager.CosignRepository().AddCosign(ctx, record); err != nil {
		cs.warn(err, "failed to store outcome of request %s", record.RequestID)
	}
}
