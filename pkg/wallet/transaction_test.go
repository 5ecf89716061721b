package wallet_test

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

var passphrase = network.TestNetworkPassphrase

func TestNewKeypair(t *testing.T) {
	t.Parallel()

	t.Run("random", func(t *testing.T) {
		kp, err := wallet.NewKeypair()
		require.NoError(t, err)
		require.NoError(t, wallet.ValidateAddress(kp.Address()))

		restored, err := wallet.NewKeypairFromSecret(kp.Secret())
		require.NoError(t, err)
		require.Equal(t, kp.Address(), restored.Address())
	})

	t.Run("from seed", func(t *testing.T) {
		seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
		vectors := []struct {
			index   uint32
			secret  string
			address string
		}{
			{
				0,
				"SB6VZS57IY25334Y6F6SPGFUNESWS7D2OSJHKDPIZ354BK3FN5GBTS6V",
				"GCWSJRG6YZSA374IY7LF53PIGTO6JD6BP5CNMUAVNWL3YYE636F3APML",
			},
			{
				1,
				"SBQXELSCK4ES2WYYDS6664VIK6XCYKUNC3HE77MYNCEXFJ2XOC3NIMK2",
				"GDGYXMH2GBB6E4Z4ZW4APZ7JQTEBNGDAVOWBYEQVSAHA27HXYPHLY5GO",
			},
		}
		for _, v := range vectors {
			kp, err := wallet.NewKeypairFromSeed(seed, v.index)
			require.NoError(t, err)
			require.Equal(t, v.secret, kp.Secret())
			require.Equal(t, v.address, kp.Address())
		}
	})

	t.Run("from mnemonic", func(t *testing.T) {
		words := []string{
			"leave", "dice", "fine", "decrease", "dune", "ribbon", "ocean", "earn",
			"lunar", "account", "silver", "admit", "cheap", "fringe", "disorder", "trade",
			"because", "trade", "steak", "clock", "grace", "video", "jacket", "equal",
		}
		first, err := wallet.NewKeypairFromMnemonic(wallet.NewKeypairFromMnemonicArgs{
			Mnemonic: words,
		})
		require.NoError(t, err)

		again, err := wallet.NewKeypairFromMnemonic(wallet.NewKeypairFromMnemonicArgs{
			Mnemonic: words,
		})
		require.NoError(t, err)
		require.Equal(t, first.Secret(), again.Secret())

		second, err := wallet.NewKeypairFromMnemonic(wallet.NewKeypairFromMnemonicArgs{
			Mnemonic: words,
			Index:    1,
		})
		require.NoError(t, err)
		require.NotEqual(t, first.Address(), second.Address())
	})

	t.Run("invalid", func(t *testing.T) {
		kp, err := wallet.NewKeypairFromSecret("SNOTASECRET")
		require.ErrorIs(t, err, wallet.ErrInvalidSecret)
		require.Nil(t, kp)

		kp, err = wallet.NewKeypairFromMnemonic(wallet.NewKeypairFromMnemonicArgs{
			Mnemonic: []string{"not", "a", "mnemonic"},
		})
		require.ErrorIs(t, err, wallet.ErrInvalidMnemonic)
		require.Nil(t, kp)

		require.ErrorIs(t, wallet.ValidateAddress("GABC"), wallet.ErrInvalidAddress)
	})
}

func TestNewPaymentTx(t *testing.T) {
	t.Parallel()

	source, destination := newKeypair(t), newKeypair(t)

	t.Run("valid", func(t *testing.T) {
		tx, err := wallet.NewPaymentTx(wallet.NewPaymentTxArgs{
			Source:      wallet.Account{Address: source.Address(), Sequence: 10},
			Destination: destination.Address(),
			Amount:      "100",
			Timeout:     5 * time.Minute,
		})
		require.NoError(t, err)
		require.Equal(t, int64(11), tx.SequenceNumber())
		require.Equal(t, int64(txnbuild.MinBaseFee), tx.BaseFee())
		require.Len(t, tx.Operations(), 1)

		payment, ok := tx.Operations()[0].(*txnbuild.Payment)
		require.True(t, ok)
		require.Equal(t, destination.Address(), payment.Destination)
		require.Equal(t, "100", payment.Amount)
		require.True(t, payment.Asset.IsNative())
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name        string
			args        wallet.NewPaymentTxArgs
			expectedErr error
		}{
			{
				name: "missing_source",
				args: wallet.NewPaymentTxArgs{
					Destination: destination.Address(),
					Amount:      "100",
				},
				expectedErr: wallet.ErrMissingSource,
			},
			{
				name: "missing_destination",
				args: wallet.NewPaymentTxArgs{
					Source: wallet.Account{Address: source.Address()},
					Amount: "100",
				},
				expectedErr: wallet.ErrMissingDestination,
			},
			{
				name: "invalid_destination",
				args: wallet.NewPaymentTxArgs{
					Source:      wallet.Account{Address: source.Address()},
					Destination: "GINVALID",
					Amount:      "100",
				},
				expectedErr: wallet.ErrInvalidAddress,
			},
			{
				name: "negative_amount",
				args: wallet.NewPaymentTxArgs{
					Source:      wallet.Account{Address: source.Address()},
					Destination: destination.Address(),
					Amount:      "-1",
				},
				expectedErr: wallet.ErrInvalidAmount,
			},
			{
				name: "amount_too_precise",
				args: wallet.NewPaymentTxArgs{
					Source:      wallet.Account{Address: source.Address()},
					Destination: destination.Address(),
					Amount:      "0.00000001",
				},
				expectedErr: wallet.ErrInvalidAmount,
			},
			{
				name: "low_fee",
				args: wallet.NewPaymentTxArgs{
					Source:      wallet.Account{Address: source.Address()},
					Destination: destination.Address(),
					Amount:      "1",
					BaseFee:     10,
				},
				expectedErr: wallet.ErrInvalidBaseFee,
			},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				tx, err := wallet.NewPaymentTx(tt.args)
				require.ErrorIs(t, err, tt.expectedErr)
				require.Nil(t, tx)
			})
		}
	})
}

func TestNewAddSignerTx(t *testing.T) {
	t.Parallel()

	source, signer := newKeypair(t), newKeypair(t)

	tx, err := wallet.NewAddSignerTx(wallet.NewAddSignerTxArgs{
		Source:          wallet.Account{Address: source.Address(), Sequence: 1},
		Signer:          signer.Address(),
		SignerWeight:    1,
		MasterWeight:    1,
		LowThreshold:    1,
		MediumThreshold: 2,
		HighThreshold:   2,
	})
	require.NoError(t, err)
	require.Len(t, tx.Operations(), 1)

	op, ok := tx.Operations()[0].(*txnbuild.SetOptions)
	require.True(t, ok)
	require.Equal(t, signer.Address(), op.Signer.Address)
	require.Equal(t, txnbuild.Threshold(1), op.Signer.Weight)
	require.Equal(t, txnbuild.Threshold(1), *op.MasterWeight)
	require.Equal(t, txnbuild.Threshold(1), *op.LowThreshold)
	require.Equal(t, txnbuild.Threshold(2), *op.MediumThreshold)
	require.Equal(t, txnbuild.Threshold(2), *op.HighThreshold)

	tx, err = wallet.NewAddSignerTx(wallet.NewAddSignerTxArgs{
		Source: wallet.Account{Address: source.Address(), Sequence: 1},
		Signer: signer.Address(),
	})
	require.ErrorIs(t, err, wallet.ErrInvalidWeight)
	require.Nil(t, tx)
}

func TestSignAndDecodeTx(t *testing.T) {
	t.Parallel()

	primary, secondary, destination := newKeypair(t), newKeypair(t), newKeypair(t)
	tx, err := wallet.NewPaymentTx(wallet.NewPaymentTxArgs{
		Source:      wallet.Account{Address: primary.Address(), Sequence: 1},
		Destination: destination.Address(),
		Amount:      "100",
	})
	require.NoError(t, err)

	signedTx, err := wallet.SignTx(tx, passphrase, primary)
	require.NoError(t, err)
	require.Len(t, signedTx.Signatures(), 1)

	envelope, err := wallet.EncodeTx(signedTx)
	require.NoError(t, err)

	decodedTx, err := wallet.DecodeTx(envelope)
	require.NoError(t, err)
	require.Equal(t, signedTx.SequenceNumber(), decodedTx.SequenceNumber())

	expectedHash, err := wallet.TxHash(signedTx, passphrase)
	require.NoError(t, err)
	hash, err := wallet.TxHash(decodedTx, passphrase)
	require.NoError(t, err)
	require.Equal(t, expectedHash, hash)

	signers, err := wallet.Signers(
		decodedTx, passphrase, primary.Address(), secondary.Address(),
	)
	require.NoError(t, err)
	require.Equal(t, []string{primary.Address()}, signers)

	// A signature made for another network does not count.
	signers, err = wallet.Signers(
		decodedTx, network.PublicNetworkPassphrase, primary.Address(),
	)
	require.NoError(t, err)
	require.Empty(t, signers)

	fullySignedTx, err := wallet.SignTx(decodedTx, passphrase, secondary)
	require.NoError(t, err)
	signers, err = wallet.Signers(
		fullySignedTx, passphrase, primary.Address(), secondary.Address(),
	)
	require.NoError(t, err)
	require.Len(t, signers, 2)

	t.Run("invalid", func(t *testing.T) {
		feeBumpTx, err := txnbuild.NewFeeBumpTransaction(
			txnbuild.FeeBumpTransactionParams{
				Inner:      signedTx,
				FeeAccount: secondary.Address(),
				BaseFee:    txnbuild.MinBaseFee * 2,
			},
		)
		require.NoError(t, err)
		feeBumpEnvelope, err := feeBumpTx.Base64()
		require.NoError(t, err)

		tests := []struct {
			envelope    string
			expectedErr error
		}{
			{"", wallet.ErrMissingEnvelope},
			{"not-base64-xdr", wallet.ErrMalformedEnvelope},
			{envelope[:len(envelope)/2], wallet.ErrMalformedEnvelope},
			{feeBumpEnvelope, wallet.ErrFeeBumpEnvelope},
		}
		for i, tt := range tests {
			tt := tt
			t.Run(fmt.Sprintf("envelope_%d", i), func(t *testing.T) {
				tx, err := wallet.DecodeTx(tt.envelope)
				require.ErrorIs(t, err, tt.expectedErr)
				require.Nil(t, tx)
			})
		}

		tx, err := wallet.SignTx(signedTx, passphrase)
		require.ErrorIs(t, err, wallet.ErrMissingKeypair)
		require.Nil(t, tx)
	})
}

func newKeypair(t *testing.T) *wallet.Keypair {
	kp, err := wallet.NewKeypair()
	require.NoError(t, err)
	return kp
}
