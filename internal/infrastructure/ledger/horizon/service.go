package horizon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/network"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
)

const (
	defaultRequestTimeout = 30 * time.Second
	streamFromNow         = "now"
)

var (
	ErrMissingHorizonURL = fmt.Errorf("missing horizon url")
	ErrMissingPassphrase = fmt.Errorf("missing network passphrase")
)

// ServiceArgs configures a Horizon ledger client. Client is optional and
// replaces the default http based one, mostly for testing.
type ServiceArgs struct {
	HorizonURL     string
	Passphrase     string
	RequestTimeout time.Duration
	Client         horizonclient.ClientInterface
}

func (a ServiceArgs) validate() error {
	if a.Client == nil && a.HorizonURL == "" {
		return ErrMissingHorizonURL
	}
	if a.Passphrase == "" {
		return ErrMissingPassphrase
	}
	return nil
}

type service struct {
	client     horizonclient.ClientInterface
	passphrase string

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewService returns a ports.Ledger backed by a Horizon server.
func NewService(args ServiceArgs) (ports.Ledger, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	client := args.Client
	if client == nil {
		timeout := args.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		client = &horizonclient.Client{
			HorizonURL: args.HorizonURL,
			HTTP:       &http.Client{Timeout: timeout},
		}
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("horizon: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("horizon: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &service{client, args.Passphrase, logFn, warnFn}, nil
}

// PassphraseForNetwork maps a network name to its passphrase.
func PassphraseForNetwork(name string) (string, error) {
	switch name {
	case "testnet":
		return network.TestNetworkPassphrase, nil
	case "public", "mainnet":
		return network.PublicNetworkPassphrase, nil
	default:
		return "", fmt.Errorf("unknown network %s", name)
	}
}

func (s *service) Passphrase() string {
	return s.passphrase
}

func (s *service) GetAccount(
	_ context.Context, address string,
) (*domain.Account, error) {
	account, err := s.client.AccountDetail(
		horizonclient.AccountRequest{AccountID: address},
	)
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, address)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrTransport, err)
	}
	return toDomainAccount(account), nil
}

func (s *service) Fund(
	_ context.Context, address string,
) (*domain.TxResult, error) {
	tx, err := s.client.Fund(address)
	if err != nil {
		reason := err.Error()
		if hErr := horizonclient.GetError(err); hErr != nil {
			reason = hErr.Problem.Title
			if hErr.Problem.Detail != "" {
				reason = hErr.Problem.Detail
			}
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrFunding, reason)
	}
	s.log("funded account %s with tx %s", address, tx.Hash)
	return toDomainTxResult(tx), nil
}

func (s *service) SubmitTransaction(
	_ context.Context, envelope string,
) (*domain.TxResult, error) {
	tx, err := s.client.SubmitTransactionXDR(envelope)
	if err != nil {
		hErr := horizonclient.GetError(err)
		if hErr == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransport, err)
		}
		subErr := &domain.SubmissionError{Reason: hErr.Problem.Title}
		if codes, err := hErr.ResultCodes(); err == nil {
			subErr.TransactionCode = codes.TransactionCode
			subErr.OperationCodes = codes.OperationCodes
		}
		s.warn(subErr, "transaction rejected")
		return nil, subErr
	}
	s.log("submitted tx %s in ledger %d", tx.Hash, tx.Ledger)
	return toDomainTxResult(tx), nil
}

func (s *service) StreamPayments(
	ctx context.Context, address, cursor string, handler ports.PaymentHandler,
) error {
	if cursor == "" {
		cursor = streamFromNow
	}
	req := horizonclient.OperationRequest{
		ForAccount: address,
		Cursor:     cursor,
	}

	s.log("streaming payments of %s from cursor %s", address, cursor)
	if err := s.client.StreamPayments(
		ctx, req, func(op operations.Operation) {
			handler(toDomainPayment(op))
		},
	); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStream, err)
	}
	return nil
}

func toDomainAccount(a hProtocol.Account) *domain.Account {
	balances := make([]domain.Balance, 0, len(a.Balances))
	for _, b := range a.Balances {
		balances = append(balances, domain.Balance{
			Asset: domain.Asset{
				Type: b.Asset.Type, Code: b.Asset.Code, Issuer: b.Asset.Issuer,
			},
			Balance: b.Balance,
		})
	}
	signers := make([]domain.Signer, 0, len(a.Signers))
	for _, s := range a.Signers {
		signers = append(signers, domain.Signer{
			Key: s.Key, Type: s.Type, Weight: s.Weight,
		})
	}
	return &domain.Account{
		Address:  a.AccountID,
		Sequence: a.Sequence,
		Balances: balances,
		Signers:  signers,
		Thresholds: domain.Thresholds{
			Low:    a.Thresholds.LowThreshold,
			Medium: a.Thresholds.MedThreshold,
			High:   a.Thresholds.HighThreshold,
		},
		Flags: domain.Flags{
			AuthRequired:        a.Flags.AuthRequired,
			AuthRevocable:       a.Flags.AuthRevocable,
			AuthImmutable:       a.Flags.AuthImmutable,
			AuthClawbackEnabled: a.Flags.AuthClawbackEnabled,
		},
		Data: a.Data,
	}
}

func toDomainTxResult(tx hProtocol.Transaction) *domain.TxResult {
	return &domain.TxResult{
		Hash:       tx.Hash,
		Ledger:     tx.Ledger,
		Successful: tx.Successful,
		Envelope:   tx.EnvelopeXdr,
		Result:     tx.ResultXdr,
	}
}

// toDomainPayment converts an operation of the payments feed. Anything but
// a plain payment only carries its position in the feed.
func toDomainPayment(op operations.Operation) domain.Payment {
	b := op.GetBase()
	p := domain.Payment{
		ID:          b.ID,
		PagingToken: b.PagingToken(),
		TxHash:      b.TransactionHash,
	}
	if v, ok := op.(operations.Payment); ok {
		p.From = v.From
		p.To = v.To
		p.Amount = v.Amount
		p.Asset = domain.Asset{
			Type: v.Asset.Type, Code: v.Asset.Code, Issuer: v.Asset.Issuer,
		}
	}
	return p
}
