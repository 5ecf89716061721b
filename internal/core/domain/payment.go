package domain

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	NativeAssetType = "native"

	paymentReceivedTemplate = "A payment of %s has been received"
)

// Asset identifies the asset moved by a payment.
type Asset struct {
	Type   string
	Code   string
	Issuer string
}

func (a Asset) IsNative() bool {
	return a.Type == NativeAssetType
}

func (a Asset) String() string {
	if a.IsNative() {
		return "lumens"
	}
	return fmt.Sprintf("%s:%s", a.Code, a.Issuer)
}

// Payment is an event of the live payment feed of an account.
type Payment struct {
	ID          string
	PagingToken string
	TxHash      string
	From        string
	To          string
	Amount      string
	Asset       Asset
}

// IsAfter returns whether the payment comes later in the feed than cursor.
// An empty cursor precedes every payment.
func (p Payment) IsAfter(cursor string) bool {
	if cursor == "" {
		return true
	}
	token, err1 := strconv.ParseInt(p.PagingToken, 10, 64)
	last, err2 := strconv.ParseInt(cursor, 10, 64)
	if err1 != nil || err2 != nil {
		return p.PagingToken != cursor
	}
	return token > last
}

// PaymentReceived is the notification relayed to listeners when a payment
// lands on the watched account.
type PaymentReceived struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func NewPaymentReceived(p Payment) PaymentReceived {
	return PaymentReceived{
		Address: p.To,
		Amount:  p.Amount,
	}
}

// Message renders the notification text, trimming the trailing zeros of the
// ledger amount.
func (n PaymentReceived) Message() string {
	amount := n.Amount
	if d, err := decimal.NewFromString(amount); err == nil {
		amount = d.String()
	}
	return fmt.Sprintf(paymentReceivedTemplate, amount)
}
