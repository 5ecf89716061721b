package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stellar/go/txnbuild"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

// Signing topology of a linked account: both keys weigh 1 and payments,
// being medium threshold operations, need both.
const (
	SignerWeight    = 1
	MasterWeight    = 1
	LowThreshold    = 1
	MediumThreshold = 2
	HighThreshold   = 2

	DefaultPaymentAmount = "100"
	DefaultTxTimeout     = 5 * time.Minute
)

type TransactionServiceArgs struct {
	Ledger      ports.Ledger
	Cosigner    ports.Cosigner
	RepoManager ports.RepoManager
	PrimaryKey  *wallet.Keypair
	Amount      string
	BaseFee     int64
	TxTimeout   time.Duration
}

func (a TransactionServiceArgs) validate() error {
	if a.Ledger == nil {
		return ErrMissingLedger
	}
	if a.RepoManager == nil {
		return ErrMissingRepoManager
	}
	if a.PrimaryKey == nil {
		return ErrMissingPrimaryKey
	}
	if a.Amount != "" {
		if _, err := wallet.ParseAmount(a.Amount); err != nil {
			return err
		}
	}
	return nil
}

// TransactionService is the initiator half of the co-sign protocol, it
// owns the primary key and takes care of:
// 	* Sending payments signed by the primary key only, before linking.
// 	* Linking the secondary signer to the primary account.
// 	* Sending payments signed by the primary key and handed over to the
// 	cosigner to be counter-signed and submitted.
//
// Sends are serialized within the process so that two payments never embed
// the same sequence number.
type TransactionService struct {
	ledger      ports.Ledger
	cosigner    ports.Cosigner
	repoManager ports.RepoManager
	primaryKey  *wallet.Keypair
	amount      string
	baseFee     int64
	txTimeout   time.Duration
	lock        *sync.Mutex

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewTransactionService(
	args TransactionServiceArgs,
) (*TransactionService, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	amount := args.Amount
	if amount == "" {
		amount = DefaultPaymentAmount
	}
	txTimeout := args.TxTimeout
	if txTimeout == 0 {
		txTimeout = DefaultTxTimeout
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("transaction service: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("transaction service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &TransactionService{
		ledger:      args.Ledger,
		cosigner:    args.Cosigner,
		repoManager: args.RepoManager,
		primaryKey:  args.PrimaryKey,
		amount:      amount,
		baseFee:     args.BaseFee,
		txTimeout:   txTimeout,
		lock:        &sync.Mutex{},
		log:         logFn,
		warn:        warnFn,
	}, nil
}

func (ts *TransactionService) PrimaryAddress() string {
	return ts.primaryKey.Address()
}

// SendPayment sends amount, or the configured one if empty, to destination
// with a transaction signed by the primary key only.
func (ts *TransactionService) SendPayment(
	ctx context.Context, destination, amount string,
) (*domain.TxResult, error) {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	envelope, err := ts.newSignedPayment(ctx, destination, amount)
	if err != nil {
		return nil, err
	}

	res, err := ts.ledger.SubmitTransaction(ctx, envelope)
	if err != nil {
		return nil, err
	}
	ts.log("payment to %s submitted with tx %s", destination, res.Hash)
	return res, nil
}

// SendMultisigPayment builds and signs a payment like SendPayment, then
// hands it over to the cosigner that adds the second signature and submits
// it.
func (ts *TransactionService) SendMultisigPayment(
	ctx context.Context, destination, amount string,
) (*domain.TxResult, error) {
	if ts.cosigner == nil {
		return nil, ErrMissingCosigner
	}

	ts.lock.Lock()
	defer ts.lock.Unlock()

	envelope, err := ts.newSignedPayment(ctx, destination, amount)
	if err != nil {
		return nil, err
	}

	req := domain.CosignRequest{
		ID:          uuid.New().String(),
		Transaction: envelope,
	}
	res, err := ts.cosigner.CosignTx(ctx, req)
	if err != nil {
		ts.warn(err, "cosign request %s failed", req.ID)
		return nil, err
	}
	ts.log(
		"multisig payment to %s submitted with tx %s (request %s)",
		destination, res.Hash, req.ID,
	)
	return res, nil
}

// LinkSecondarySigner gets the secondary signer from the cosigner, records
// it for the primary address and adds it to the signers of the primary
// account with thresholds that make payments require both keys.
// Nothing is submitted if the account is already set up this way.
func (ts *TransactionService) LinkSecondarySigner(
	ctx context.Context,
) (*LinkResult, error) {
	if ts.cosigner == nil {
		return nil, ErrMissingCosigner
	}

	ts.lock.Lock()
	defer ts.lock.Unlock()

	primary := ts.primaryKey.Address()
	secondary, err := ts.cosigner.ProvisionSecondary(ctx, primary)
	if err != nil {
		return nil, err
	}
	if err := wallet.ValidateAddress(secondary); err != nil {
		return nil, fmt.Errorf("cosigner returned %w %s", err, secondary)
	}

	if _, err := ts.repoManager.UserRepository().UpsertUser(
		ctx, primary, domain.UserUpdate{SecondaryAddress: secondary},
	); err != nil {
		return nil, err
	}

	account, err := ts.ledger.GetAccount(ctx, primary)
	if err != nil {
		return nil, err
	}

	result := &LinkResult{PrimaryAddress: primary, SecondaryAddress: secondary}
	if isLinked(account, secondary) {
		ts.log("account %s already linked to %s", primary, secondary)
		return result, nil
	}

	tx, err := wallet.NewAddSignerTx(wallet.NewAddSignerTxArgs{
		Source:          wallet.Account{Address: primary, Sequence: account.Sequence},
		Signer:          secondary,
		SignerWeight:    SignerWeight,
		MasterWeight:    MasterWeight,
		LowThreshold:    LowThreshold,
		MediumThreshold: MediumThreshold,
		HighThreshold:   HighThreshold,
		BaseFee:         ts.baseFee,
		Timeout:         ts.txTimeout,
	})
	if err != nil {
		return nil, err
	}
	// The new signer doesn't count until this transaction is applied.
	envelope, err := ts.sign(tx)
	if err != nil {
		return nil, err
	}

	res, err := ts.ledger.SubmitTransaction(ctx, envelope)
	if err != nil {
		return nil, err
	}
	ts.log("linked %s to account %s with tx %s", secondary, primary, res.Hash)

	result.Tx = res
	return result, nil
}

func (ts *TransactionService) newSignedPayment(
	ctx context.Context, destination, amount string,
) (string, error) {
	if err := wallet.ValidateAddress(destination); err != nil {
		return "", err
	}
	if amount == "" {
		amount = ts.amount
	}
	if _, err := wallet.ParseAmount(amount); err != nil {
		return "", err
	}

	if _, err := ts.ledger.GetAccount(ctx, destination); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrDestinationUnknown, destination)
		}
		return "", err
	}

	source, err := ts.ledger.GetAccount(ctx, ts.primaryKey.Address())
	if err != nil {
		return "", err
	}

	tx, err := wallet.NewPaymentTx(wallet.NewPaymentTxArgs{
		Source:      wallet.Account{Address: source.Address, Sequence: source.Sequence},
		Destination: destination,
		Amount:      amount,
		BaseFee:     ts.baseFee,
		Timeout:     ts.txTimeout,
	})
	if err != nil {
		return "", err
	}
	return ts.sign(tx)
}

func (ts *TransactionService) sign(tx *txnbuild.Transaction) (string, error) {
	signed, err := wallet.SignTx(tx, ts.ledger.Passphrase(), ts.primaryKey)
	if err != nil {
		return "", err
	}
	return wallet.EncodeTx(signed)
}

func isLinked(account *domain.Account, secondary string) bool {
	return account.SignerWeight(secondary) == SignerWeight &&
		account.SignerWeight(account.Address) == MasterWeight &&
		account.Thresholds == domain.Thresholds{
			Low: LowThreshold, Medium: MediumThreshold, High: HighThreshold,
		}
}
