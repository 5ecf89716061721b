package application_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/multisig-relay/internal/core/application"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
	"github.com/vulpemventures/multisig-relay/internal/infrastructure/storage/db/inmemory"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

const (
	friendbotAmount = "10000"
	baseReserve     = 1
)

// fakeLedger is an in-process ports.Ledger. It checks sequence numbers and
// signature weights against the thresholds of source accounts, applies
// payments and set-options operations, and pushes payment events to the
// open feeds.
type fakeLedger struct {
	lock        *sync.Mutex
	accounts    map[string]*domain.Account
	payments    []domain.Payment
	feeds       map[int]*fakeFeed
	nextFeedID  int
	nextToken   int64
	ledger      int32
	submissions []string
	fundErr     error
}

type fakeFeed struct {
	address string
	ch      chan domain.Payment
	chErr   chan error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		lock:      &sync.Mutex{},
		accounts:  make(map[string]*domain.Account),
		feeds:     make(map[int]*fakeFeed),
		nextToken: 100,
		ledger:    1,
	}
}

func (l *fakeLedger) Passphrase() string {
	return network.TestNetworkPassphrase
}

func (l *fakeLedger) GetAccount(
	_ context.Context, address string,
) (*domain.Account, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	a, ok := l.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, address)
	}
	cp := *a
	cp.Balances = append([]domain.Balance{}, a.Balances...)
	cp.Signers = append([]domain.Signer{}, a.Signers...)
	return &cp, nil
}

func (l *fakeLedger) Fund(
	_ context.Context, address string,
) (*domain.TxResult, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.fundErr != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFunding, l.fundErr)
	}
	if _, ok := l.accounts[address]; ok {
		return nil, fmt.Errorf("%w: account already funded", domain.ErrFunding)
	}
	l.accounts[address] = &domain.Account{
		Address:  address,
		Sequence: int64(l.ledger) << 32,
		Balances: []domain.Balance{{
			Asset:   domain.Asset{Type: domain.NativeAssetType},
			Balance: friendbotAmount,
		}},
		Signers: []domain.Signer{
			{Key: address, Type: "ed25519_public_key", Weight: 1},
		},
	}
	return l.close(fmt.Sprintf("fund-%s", address)), nil
}

func (l *fakeLedger) SubmitTransaction(
	_ context.Context, envelope string,
) (*domain.TxResult, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.submissions = append(l.submissions, envelope)

	tx, err := wallet.DecodeTx(envelope)
	if err != nil {
		return nil, &domain.SubmissionError{TransactionCode: "tx_malformed"}
	}
	source, ok := l.accounts[tx.SourceAccount().AccountID]
	if !ok {
		return nil, &domain.SubmissionError{TransactionCode: "tx_no_source_account"}
	}
	if tx.SequenceNumber() != source.Sequence+1 {
		return nil, &domain.SubmissionError{TransactionCode: "tx_bad_seq"}
	}

	keys := make([]string, 0, len(source.Signers))
	for _, s := range source.Signers {
		keys = append(keys, s.Key)
	}
	signers, err := wallet.Signers(tx, l.Passphrase(), keys...)
	if err != nil {
		return nil, &domain.SubmissionError{TransactionCode: "tx_malformed"}
	}
	weight := int32(0)
	for _, s := range signers {
		weight += source.SignerWeight(s)
	}

	opCodes := make([]string, 0, len(tx.Operations()))
	failed := false
	for _, op := range tx.Operations() {
		code := l.checkOp(source, op, weight)
		if code != "op_success" {
			failed = true
		}
		opCodes = append(opCodes, code)
	}
	if failed {
		if weight < required(source.Thresholds.Medium) {
			return nil, &domain.SubmissionError{
				TransactionCode: "tx_bad_auth", OperationCodes: opCodes,
			}
		}
		return nil, &domain.SubmissionError{
			TransactionCode: "tx_failed", OperationCodes: opCodes,
		}
	}

	hash, _ := wallet.TxHash(tx, l.Passphrase())
	source.Sequence = tx.SequenceNumber()
	events := make([]domain.Payment, 0)
	for _, op := range tx.Operations() {
		if p := l.applyOp(source, op, hash); p != nil {
			events = append(events, *p)
		}
	}
	res := l.close(hash)
	res.Envelope = envelope
	l.dispatch(events)
	return res, nil
}

func (l *fakeLedger) StreamPayments(
	ctx context.Context, address, cursor string, handler ports.PaymentHandler,
) error {
	l.lock.Lock()
	feed := &fakeFeed{address, make(chan domain.Payment, 100), make(chan error, 1)}
	id := l.nextFeedID
	l.nextFeedID++
	if cursor != "" {
		for _, p := range l.payments {
			if (p.From == address || p.To == address) && p.IsAfter(cursor) {
				feed.ch <- p
			}
		}
	}
	l.feeds[id] = feed
	l.lock.Unlock()

	defer func() {
		l.lock.Lock()
		delete(l.feeds, id)
		l.lock.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-feed.chErr:
			return fmt.Errorf("%w: %s", domain.ErrStream, err)
		case p := <-feed.ch:
			handler(p)
		}
	}
}

// push sends an arbitrary event to the open feeds of its parties, as if it
// was replayed by the ledger.
func (l *fakeLedger) push(p domain.Payment) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, f := range l.feeds {
		if f.address == p.From || f.address == p.To {
			f.ch <- p
		}
	}
}

// breakFeeds makes every open feed fail.
func (l *fakeLedger) breakFeeds() {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, f := range l.feeds {
		f.chErr <- fmt.Errorf("connection reset")
	}
}

func (l *fakeLedger) numOfFeeds() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.feeds)
}

func (l *fakeLedger) numOfSubmissions() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.submissions)
}

func (l *fakeLedger) checkOp(
	source *domain.Account, op txnbuild.Operation, weight int32,
) string {
	switch v := op.(type) {
	case *txnbuild.Payment:
		if weight < required(source.Thresholds.Medium) {
			return "op_bad_auth"
		}
		if _, ok := l.accounts[v.Destination]; !ok {
			return "op_no_destination"
		}
		amount, _ := decimal.NewFromString(v.Amount)
		balance, _ := decimal.NewFromString(source.Balances[0].Balance)
		if balance.Sub(amount).LessThan(decimal.NewFromInt(baseReserve)) {
			return "op_underfunded"
		}
	case *txnbuild.SetOptions:
		if weight < required(source.Thresholds.High) {
			return "op_bad_auth"
		}
	default:
		return "op_not_supported"
	}
	return "op_success"
}

func (l *fakeLedger) applyOp(
	source *domain.Account, op txnbuild.Operation, hash string,
) *domain.Payment {
	switch v := op.(type) {
	case *txnbuild.Payment:
		amount, _ := decimal.NewFromString(v.Amount)
		dest := l.accounts[v.Destination]
		addBalance(source, amount.Neg())
		addBalance(dest, amount)

		l.nextToken++
		token := strconv.FormatInt(l.nextToken, 10)
		p := domain.Payment{
			ID:          token,
			PagingToken: token,
			TxHash:      hash,
			From:        source.Address,
			To:          v.Destination,
			Amount:      amount.StringFixed(wallet.AmountPrecision),
			Asset:       domain.Asset{Type: domain.NativeAssetType},
		}
		l.payments = append(l.payments, p)
		return &p
	case *txnbuild.SetOptions:
		if v.MasterWeight != nil {
			setSigner(source, source.Address, int32(*v.MasterWeight))
		}
		if v.LowThreshold != nil {
			source.Thresholds.Low = uint8(*v.LowThreshold)
		}
		if v.MediumThreshold != nil {
			source.Thresholds.Medium = uint8(*v.MediumThreshold)
		}
		if v.HighThreshold != nil {
			source.Thresholds.High = uint8(*v.HighThreshold)
		}
		if v.Signer != nil {
			setSigner(source, v.Signer.Address, int32(v.Signer.Weight))
		}
	}
	return nil
}

func (l *fakeLedger) dispatch(events []domain.Payment) {
	for _, p := range events {
		for _, f := range l.feeds {
			if f.address == p.From || f.address == p.To {
				f.ch <- p
			}
		}
	}
}

func (l *fakeLedger) close(hash string) *domain.TxResult {
	l.ledger++
	return &domain.TxResult{Hash: hash, Ledger: l.ledger, Successful: true}
}

func required(threshold uint8) int32 {
	if threshold == 0 {
		return 1
	}
	return int32(threshold)
}

func addBalance(a *domain.Account, amount decimal.Decimal) {
	balance, _ := decimal.NewFromString(a.Balances[0].Balance)
	a.Balances[0].Balance = balance.Add(amount).StringFixed(wallet.AmountPrecision)
}

func setSigner(a *domain.Account, key string, weight int32) {
	for i, s := range a.Signers {
		if s.Key == key {
			if weight == 0 {
				a.Signers = append(a.Signers[:i], a.Signers[i+1:]...)
				return
			}
			a.Signers[i].Weight = weight
			return
		}
	}
	if weight > 0 {
		a.Signers = append(a.Signers, domain.Signer{
			Key: key, Type: "ed25519_public_key", Weight: weight,
		})
	}
}

// localCosigner hands requests over to a CosignerService of the same
// process.
type localCosigner struct {
	svc   *application.CosignerService
	lock  *sync.Mutex
	calls []domain.CosignRequest
}

func newLocalCosigner(svc *application.CosignerService) *localCosigner {
	return &localCosigner{svc: svc, lock: &sync.Mutex{}}
}

func (c *localCosigner) ProvisionSecondary(
	ctx context.Context, primaryAddress string,
) (string, error) {
	return c.svc.ProvisionSecondaryAccount(ctx, primaryAddress)
}

func (c *localCosigner) CosignTx(
	ctx context.Context, req domain.CosignRequest,
) (*domain.TxResult, error) {
	c.lock.Lock()
	c.calls = append(c.calls, req)
	c.lock.Unlock()
	return c.svc.Cosign(ctx, req)
}

func (c *localCosigner) lastRequest() domain.CosignRequest {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.calls[len(c.calls)-1]
}

// recordingNotifier is a ports.Notifier keeping every notification.
type recordingNotifier struct {
	lock *sync.Mutex
	sent []domain.PaymentReceived
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{lock: &sync.Mutex{}}
}

func (n *recordingNotifier) Notify(_ context.Context, p domain.PaymentReceived) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.sent = append(n.sent, p)
	return nil
}

func (n *recordingNotifier) Close() {}

func (n *recordingNotifier) notifications() []domain.PaymentReceived {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]domain.PaymentReceived{}, n.sent...)
}

// testEnv holds both halves of the protocol, each with its own record
// store, sharing the same ledger.
type testEnv struct {
	ledger      *fakeLedger
	primary     *wallet.Keypair
	secondary   *wallet.Keypair
	receiver    *wallet.Keypair
	initiatorDb ports.RepoManager
	cosignerDb  ports.RepoManager
	cosigner    *localCosigner
	cosignerSvc *application.CosignerService
	txSvc       *application.TransactionService
}

func newTestEnv(t require.TestingT) *testEnv {
	ledger := newFakeLedger()
	primary, err := wallet.NewKeypair()
	require.NoError(t, err)
	secondary, err := wallet.NewKeypair()
	require.NoError(t, err)
	receiver, err := wallet.NewKeypair()
	require.NoError(t, err)

	ctx := context.Background()
	for _, kp := range []*wallet.Keypair{primary, receiver} {
		_, err := ledger.Fund(ctx, kp.Address())
		require.NoError(t, err)
	}

	initiatorDb := inmemory.NewRepoManager()
	cosignerDb := inmemory.NewRepoManager()

	cosignerSvc, err := application.NewCosignerService(
		application.CosignerServiceArgs{
			Ledger:       ledger,
			RepoManager:  cosignerDb,
			SecondaryKey: secondary,
		},
	)
	require.NoError(t, err)
	cosigner := newLocalCosigner(cosignerSvc)

	txSvc, err := application.NewTransactionService(
		application.TransactionServiceArgs{
			Ledger:      ledger,
			Cosigner:    cosigner,
			RepoManager: initiatorDb,
			PrimaryKey:  primary,
		},
	)
	require.NoError(t, err)

	return &testEnv{
		ledger, primary, secondary, receiver, initiatorDb, cosignerDb,
		cosigner, cosignerSvc, txSvc,
	}
}
