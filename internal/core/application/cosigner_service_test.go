package application_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/multisig-relay/internal/core/application"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

func TestProvisionSecondaryAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	addr, err := env.cosignerSvc.ProvisionSecondaryAccount(ctx, env.primary.Address())
	require.NoError(t, err)
	require.Equal(t, env.secondary.Address(), addr)

	// Provisioning twice keeps a single record.
	addr, err = env.cosignerSvc.ProvisionSecondaryAccount(ctx, env.primary.Address())
	require.NoError(t, err)
	require.Equal(t, env.secondary.Address(), addr)

	users, err := env.cosignerDb.UserRepository().ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	_, err = env.cosignerSvc.ProvisionSecondaryAccount(ctx, "GINVALID")
	require.ErrorIs(t, err, wallet.ErrInvalidAddress)

	_, err = env.cosignerSvc.ProvisionSecondaryAccount(ctx, env.secondary.Address())
	require.ErrorIs(t, err, wallet.ErrInvalidAddress)
}

func TestCosignRefusals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.txSvc.LinkSecondarySigner(ctx)
	require.NoError(t, err)

	tests := []struct {
		name     string
		envelope func(t *testing.T) string
		err      error
	}{
		{
			name:     "malformed",
			envelope: func(*testing.T) string { return "bm90IGFuIGVudmVsb3Bl" },
			err:      wallet.ErrMalformedEnvelope,
		},
		{
			name:     "missing",
			envelope: func(*testing.T) string { return "" },
			err:      wallet.ErrMissingEnvelope,
		},
		{
			name: "fee bump",
			envelope: func(t *testing.T) string {
				tx := env.paymentTx(t, env.primary.Address(), "1")
				tx, err := wallet.SignTx(tx, env.ledger.Passphrase(), env.primary)
				require.NoError(t, err)
				feeBump, err := txnbuild.NewFeeBumpTransaction(
					txnbuild.FeeBumpTransactionParams{
						Inner:      tx,
						FeeAccount: env.primary.Address(),
						BaseFee:    txnbuild.MinBaseFee * 2,
					},
				)
				require.NoError(t, err)
				envelope, err := feeBump.Base64()
				require.NoError(t, err)
				return envelope
			},
			err: wallet.ErrFeeBumpEnvelope,
		},
		{
			name: "already signed",
			envelope: func(t *testing.T) string {
				return env.signedPayment(t, env.primary, env.secondary)
			},
			err: application.ErrAlreadySigned,
		},
		{
			name: "not signed by source",
			envelope: func(t *testing.T) string {
				return env.signedPayment(t, env.secondary)
			},
			err: application.ErrMissingSignature,
		},
		{
			name: "unsigned",
			envelope: func(t *testing.T) string {
				envelope, err := wallet.EncodeTx(
					env.paymentTx(t, env.primary.Address(), "1"),
				)
				require.NoError(t, err)
				return envelope
			},
			err: application.ErrMissingSignature,
		},
		{
			name: "unknown source",
			envelope: func(t *testing.T) string {
				tx := env.paymentTx(t, env.receiver.Address(), "1")
				tx, err := wallet.SignTx(tx, env.ledger.Passphrase(), env.receiver)
				require.NoError(t, err)
				envelope, err := wallet.EncodeTx(tx)
				require.NoError(t, err)
				return envelope
			},
			err: application.ErrUnknownSigner,
		},
		{
			name: "more operations",
			envelope: func(t *testing.T) string {
				payment := &txnbuild.Payment{
					Destination: env.receiver.Address(),
					Amount:      "1",
					Asset:       txnbuild.NativeAsset{},
				}
				return env.customTx(t, payment, payment)
			},
			err: application.ErrUnexpectedOperation,
		},
		{
			name: "not a payment",
			envelope: func(t *testing.T) string {
				weight := txnbuild.Threshold(0)
				return env.customTx(t, &txnbuild.SetOptions{
					Signer: &txnbuild.Signer{
						Address: env.secondary.Address(), Weight: weight,
					},
				})
			},
			err: application.ErrUnexpectedOperation,
		},
		{
			name: "not native",
			envelope: func(t *testing.T) string {
				return env.customTx(t, &txnbuild.Payment{
					Destination: env.receiver.Address(),
					Amount:      "1",
					Asset: txnbuild.CreditAsset{
						Code: "USD", Issuer: env.receiver.Address(),
					},
				})
			},
			err: application.ErrUnexpectedOperation,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := env.ledger.numOfSubmissions()
			res, err := env.cosignerSvc.Cosign(ctx, domain.CosignRequest{
				ID:          fmt.Sprintf("refused-%d", i),
				Transaction: tt.envelope(t),
			})
			require.ErrorIs(t, err, tt.err)
			require.Nil(t, res)
			require.Equal(t, count, env.ledger.numOfSubmissions())
		})
	}
}

func TestCosignIdempotency(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.txSvc.LinkSecondarySigner(ctx)
	require.NoError(t, err)

	t.Run("same request", func(t *testing.T) {
		req := domain.CosignRequest{
			ID: "req-1", Transaction: env.signedPayment(t, env.primary),
		}
		res, err := env.cosignerSvc.Cosign(ctx, req)
		require.NoError(t, err)
		count := env.ledger.numOfSubmissions()

		replayed, err := env.cosignerSvc.Cosign(ctx, req)
		require.NoError(t, err)
		require.Equal(t, res, replayed)
		require.Equal(t, count, env.ledger.numOfSubmissions())

		other := domain.CosignRequest{
			ID: req.ID, Transaction: env.signedPayment(t, env.primary),
		}
		res, err = env.cosignerSvc.Cosign(ctx, other)
		require.ErrorIs(t, err, application.ErrRequestConflict)
		require.Nil(t, res)
		require.Equal(t, count, env.ledger.numOfSubmissions())
	})

	t.Run("without id", func(t *testing.T) {
		envelope := env.signedPayment(t, env.primary)
		res, err := env.cosignerSvc.Cosign(ctx, domain.CosignRequest{
			Transaction: envelope,
		})
		require.NoError(t, err)

		tx, err := wallet.DecodeTx(envelope)
		require.NoError(t, err)
		hash, err := wallet.TxHash(tx, env.ledger.Passphrase())
		require.NoError(t, err)

		record, err := env.cosignerDb.CosignRepository().GetCosign(ctx, hash)
		require.NoError(t, err)
		require.Equal(t, res.Hash, record.Result.Hash)
		require.Equal(t, env.primary.Address(), record.SourceAccount)
	})

	t.Run("rejected request", func(t *testing.T) {
		tx := env.paymentTx(t, env.primary.Address(), "1000000")
		tx, err := wallet.SignTx(tx, env.ledger.Passphrase(), env.primary)
		require.NoError(t, err)
		envelope, err := wallet.EncodeTx(tx)
		require.NoError(t, err)
		req := domain.CosignRequest{ID: "req-2", Transaction: envelope}

		res, err := env.cosignerSvc.Cosign(ctx, req)
		require.Nil(t, res)
		var subErr *domain.SubmissionError
		require.ErrorAs(t, err, &subErr)
		require.Equal(t, "tx_failed", subErr.TransactionCode)
		require.Equal(t, []string{"op_underfunded"}, subErr.OperationCodes)
		count := env.ledger.numOfSubmissions()

		res, err = env.cosignerSvc.Cosign(ctx, req)
		require.Nil(t, res)
		require.ErrorAs(t, err, &subErr)
		require.Equal(t, "tx_failed", subErr.TransactionCode)
		require.Equal(t, count, env.ledger.numOfSubmissions())

		record, err := env.cosignerDb.CosignRepository().GetCosign(ctx, req.ID)
		require.NoError(t, err)
		require.Equal(t, domain.CosignRejected, record.Status)
	})

	t.Run("transport failure is not recorded", func(t *testing.T) {
		svc, err := application.NewCosignerService(application.CosignerServiceArgs{
			Ledger:       &unreachableLedger{env.ledger},
			RepoManager:  env.cosignerDb,
			SecondaryKey: env.secondary,
		})
		require.NoError(t, err)

		req := domain.CosignRequest{
			ID: "req-3", Transaction: env.signedPayment(t, env.primary),
		}
		res, err := svc.Cosign(ctx, req)
		require.ErrorIs(t, err, domain.ErrTransport)
		require.Nil(t, res)

		_, err = env.cosignerDb.CosignRepository().GetCosign(ctx, req.ID)
		require.ErrorIs(t, err, domain.ErrCosignNotFound)

		res, err = env.cosignerSvc.Cosign(ctx, req)
		require.NoError(t, err)
		require.True(t, res.Successful)
	})
}

func TestCosignConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.txSvc.LinkSecondarySigner(ctx)
	require.NoError(t, err)

	req := domain.CosignRequest{
		ID: "req-dup", Transaction: env.signedPayment(t, env.primary),
	}
	count := env.ledger.numOfSubmissions()

	chResults := make(chan *domain.TxResult, 5)
	chErrs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			res, err := env.cosignerSvc.Cosign(ctx, req)
			if err != nil {
				chErrs <- err
				return
			}
			chResults <- res
		}()
	}

	hashes := make(map[string]bool)
	for i := 0; i < 5; i++ {
		select {
		case err := <-chErrs:
			t.Fatal(err)
		case res := <-chResults:
			hashes[res.Hash] = true
		}
	}
	require.Len(t, hashes, 1)
	require.Equal(t, count+1, env.ledger.numOfSubmissions())
}

type unreachableLedger struct {
	*fakeLedger
}

func (l *unreachableLedger) SubmitTransaction(
	context.Context, string,
) (*domain.TxResult, error) {
	return nil, fmt.Errorf("%w: connection refused", domain.ErrTransport)
}

// paymentTx returns an unsigned payment of amount from source to the
// receiver, with the next sequence number of source.
func (e *testEnv) paymentTx(
	t *testing.T, source, amount string,
) *txnbuild.Transaction {
	account, err := e.ledger.GetAccount(context.Background(), source)
	require.NoError(t, err)
	tx, err := wallet.NewPaymentTx(wallet.NewPaymentTxArgs{
		Source:      wallet.Account{Address: source, Sequence: account.Sequence},
		Destination: e.receiver.Address(),
		Amount:      amount,
	})
	require.NoError(t, err)
	return tx
}

func (e *testEnv) signedPayment(t *testing.T, keys ...*wallet.Keypair) string {
	tx := e.paymentTx(t, e.primary.Address(), "10")
	tx, err := wallet.SignTx(tx, e.ledger.Passphrase(), keys...)
	require.NoError(t, err)
	envelope, err := wallet.EncodeTx(tx)
	require.NoError(t, err)
	return envelope
}

func (e *testEnv) customTx(t *testing.T, ops ...txnbuild.Operation) string {
	account, err := e.ledger.GetAccount(context.Background(), e.primary.Address())
	require.NoError(t, err)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount: &txnbuild.SimpleAccount{
			AccountID: e.primary.Address(), Sequence: account.Sequence,
		},
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewInfiniteTimeout(),
		},
	})
	require.NoError(t, err)
	tx, err = wallet.SignTx(tx, e.ledger.Passphrase(), e.primary)
	require.NoError(t, err)
	envelope, err := wallet.EncodeTx(tx)
	require.NoError(t, err)
	return envelope
}
