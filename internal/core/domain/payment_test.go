package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

func TestPaymentIsAfter(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		cursor   string
		expected bool
	}{
		{"no cursor", "100", "", true},
		{"newer", "101", "100", true},
		{"same", "100", "100", false},
		{"older", "99", "100", false},
		{"numeric order", "1000", "999", true},
		{"now cursor", "100", "now", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := domain.Payment{PagingToken: tt.token}
			require.Equal(t, tt.expected, p.IsAfter(tt.cursor))
		})
	}
}

func TestPaymentReceivedMessage(t *testing.T) {
	tests := []struct {
		amount   string
		expected string
	}{
		{"100.0000000", "A payment of 100 has been received"},
		{"100", "A payment of 100 has been received"},
		{"99.2000000", "A payment of 99.2 has been received"},
		{"0.0000001", "A payment of 0.0000001 has been received"},
		{"unparsable", "A payment of unparsable has been received"},
	}

	for _, tt := range tests {
		n := domain.NewPaymentReceived(domain.Payment{To: secondaryAddress, Amount: tt.amount})
		require.Equal(t, secondaryAddress, n.Address)
		require.Equal(t, tt.expected, n.Message())
	}
}

func TestAsset(t *testing.T) {
	native := domain.Asset{Type: domain.NativeAssetType}
	require.True(t, native.IsNative())
	require.Equal(t, "lumens", native.String())

	usd := domain.Asset{Type: "credit_alphanum4", Code: "USD", Issuer: primaryAddress}
	require.False(t, usd.IsNative())
	require.Equal(t, "USD:"+primaryAddress, usd.String())
}

func TestSubmissionError(t *testing.T) {
	err := error(&domain.SubmissionError{
		TransactionCode: "tx_bad_auth",
		OperationCodes:  []string{"op_bad_auth"},
		Reason:          "Transaction Failed",
	})
	require.ErrorIs(t, err, domain.ErrSubmission)
	require.Equal(
		t, "transaction submission rejected: Transaction Failed (tx_bad_auth: op_bad_auth)",
		err.Error(),
	)

	var subErr *domain.SubmissionError
	require.True(t, errors.As(err, &subErr))
	require.Equal(t, "tx_bad_auth", subErr.TransactionCode)
}
