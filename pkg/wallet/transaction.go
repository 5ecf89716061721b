package wallet

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

const (
	// AmountPrecision is the max number of fractional digits of a native
	// amount (1 stroop = 0.0000001).
	AmountPrecision = 7
)

// Account is the source account of a transaction, at its current sequence
// number.
type Account struct {
	Address  string
	Sequence int64
}

func (a Account) validate() error {
	if len(a.Address) == 0 {
		return ErrMissingSource
	}
	return ValidateAddress(a.Address)
}

func (a Account) simpleAccount() *txnbuild.SimpleAccount {
	return &txnbuild.SimpleAccount{
		AccountID: a.Address,
		Sequence:  a.Sequence,
	}
}

type NewPaymentTxArgs struct {
	Source      Account
	Destination string
	Amount      string
	BaseFee     int64
	Timeout     time.Duration
}

func (a NewPaymentTxArgs) validate() error {
	if err := a.Source.validate(); err != nil {
		return err
	}
	if len(a.Destination) == 0 {
		return ErrMissingDestination
	}
	if err := ValidateAddress(a.Destination); err != nil {
		return err
	}
	if len(a.Amount) == 0 {
		return ErrMissingAmount
	}
	if _, err := ParseAmount(a.Amount); err != nil {
		return err
	}
	return validateBaseFee(a.BaseFee)
}

// NewPaymentTx returns an unsigned transaction with a single native payment
// operation. The sequence number of the source account is incremented by one.
func NewPaymentTx(args NewPaymentTxArgs) (*txnbuild.Transaction, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	amount, _ := ParseAmount(args.Amount)

	return txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        args.Source.simpleAccount(),
		IncrementSequenceNum: true,
		BaseFee:              baseFee(args.BaseFee),
		Preconditions:        preconditions(args.Timeout),
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: args.Destination,
				Amount:      amount.String(),
				Asset:       txnbuild.NativeAsset{},
			},
		},
	})
}

// NewAddSignerTxArgs describes a set options operation adding Signer to the
// source account and changing its master weight and thresholds.
type NewAddSignerTxArgs struct {
	Source          Account
	Signer          string
	SignerWeight    uint8
	MasterWeight    uint8
	LowThreshold    uint8
	MediumThreshold uint8
	HighThreshold   uint8
	BaseFee         int64
	Timeout         time.Duration
}

func (a NewAddSignerTxArgs) validate() error {
	if err := a.Source.validate(); err != nil {
		return err
	}
	if len(a.Signer) == 0 {
		return ErrMissingSigner
	}
	if err := ValidateAddress(a.Signer); err != nil {
		return err
	}
	if a.SignerWeight == 0 {
		return ErrInvalidWeight
	}
	return validateBaseFee(a.BaseFee)
}

// NewAddSignerTx returns an unsigned set options transaction.
func NewAddSignerTx(args NewAddSignerTxArgs) (*txnbuild.Transaction, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	return txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        args.Source.simpleAccount(),
		IncrementSequenceNum: true,
		BaseFee:              baseFee(args.BaseFee),
		Preconditions:        preconditions(args.Timeout),
		Operations: []txnbuild.Operation{
			&txnbuild.SetOptions{
				Signer: &txnbuild.Signer{
					Address: args.Signer,
					Weight:  txnbuild.Threshold(args.SignerWeight),
				},
				MasterWeight:    txnbuild.NewThreshold(txnbuild.Threshold(args.MasterWeight)),
				LowThreshold:    txnbuild.NewThreshold(txnbuild.Threshold(args.LowThreshold)),
				MediumThreshold: txnbuild.NewThreshold(txnbuild.Threshold(args.MediumThreshold)),
				HighThreshold:   txnbuild.NewThreshold(txnbuild.Threshold(args.HighThreshold)),
			},
		},
	})
}

// SignTx adds one signature per given key pair to the transaction.
func SignTx(
	tx *txnbuild.Transaction, passphrase string, keys ...*Keypair,
) (*txnbuild.Transaction, error) {
	if tx == nil {
		return nil, ErrMissingEnvelope
	}
	if len(passphrase) == 0 {
		return nil, ErrMissingPassphrase
	}
	if len(keys) == 0 {
		return nil, ErrMissingKeypair
	}

	kps := make([]*keypair.Full, 0, len(keys))
	for _, k := range keys {
		if k == nil {
			return nil, ErrMissingKeypair
		}
		kps = append(kps, k.full)
	}
	return tx.Sign(passphrase, kps...)
}

// EncodeTx returns the base64 envelope of the given transaction.
func EncodeTx(tx *txnbuild.Transaction) (string, error) {
	if tx == nil {
		return "", ErrMissingEnvelope
	}
	return tx.Base64()
}

// DecodeTx parses a base64 envelope. Fee bump envelopes are rejected.
func DecodeTx(envelope string) (*txnbuild.Transaction, error) {
	if len(envelope) == 0 {
		return nil, ErrMissingEnvelope
	}
	gtx, err := txnbuild.TransactionFromXDR(envelope)
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	if _, ok := gtx.FeeBump(); ok {
		return nil, ErrFeeBumpEnvelope
	}
	tx, ok := gtx.Transaction()
	if !ok {
		return nil, ErrMalformedEnvelope
	}
	return tx, nil
}

// TxHash returns the hex encoded hash of the transaction for the network
// identified by passphrase.
func TxHash(tx *txnbuild.Transaction, passphrase string) (string, error) {
	if tx == nil {
		return "", ErrMissingEnvelope
	}
	return tx.HashHex(passphrase)
}

// Signers returns the subset of candidates that produced a valid signature
// of the transaction.
func Signers(
	tx *txnbuild.Transaction, passphrase string, candidates ...string,
) ([]string, error) {
	if tx == nil {
		return nil, ErrMissingEnvelope
	}
	hash, err := tx.Hash(passphrase)
	if err != nil {
		return nil, err
	}

	signers := make([]string, 0, len(candidates))
	for _, addr := range candidates {
		kp, err := keypair.ParseAddress(addr)
		if err != nil {
			return nil, ErrInvalidAddress
		}
		hint := kp.Hint()
		for _, sig := range tx.Signatures() {
			if sig.Hint != hint {
				continue
			}
			if err := kp.Verify(hash[:], sig.Signature); err == nil {
				signers = append(signers, addr)
				break
			}
		}
	}
	return signers, nil
}

// ParseAmount parses a native amount string.
func ParseAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.Round(AmountPrecision).Equal(d) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func validateBaseFee(fee int64) error {
	if fee != 0 && fee < txnbuild.MinBaseFee {
		return ErrInvalidBaseFee
	}
	return nil
}

func baseFee(fee int64) int64 {
	if fee == 0 {
		return txnbuild.MinBaseFee
	}
	return fee
}

func preconditions(timeout time.Duration) txnbuild.Preconditions {
	if timeout <= 0 {
		return txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()}
	}
	return txnbuild.Preconditions{
		TimeBounds: txnbuild.NewTimeout(int64(timeout.Seconds())),
	}
}
