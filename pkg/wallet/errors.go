package wallet

import (
	"fmt"

	"github.com/stellar/go/txnbuild"
)

var (
	ErrMissingSource      = fmt.Errorf("missing source account")
	ErrMissingDestination = fmt.Errorf("missing destination address")
	ErrMissingAmount      = fmt.Errorf("missing amount")
	ErrMissingSigner      = fmt.Errorf("missing signer address")
	ErrMissingEnvelope    = fmt.Errorf("missing transaction envelope")
	ErrMissingKeypair     = fmt.Errorf("missing signing keypair")
	ErrMissingMnemonic    = fmt.Errorf("missing mnemonic")
	ErrMissingPassphrase  = fmt.Errorf("missing network passphrase")

	ErrInvalidAddress  = fmt.Errorf("invalid account address")
	ErrInvalidSecret   = fmt.Errorf("invalid account secret")
	ErrInvalidMnemonic = fmt.Errorf("invalid mnemonic")
	ErrInvalidAmount   = fmt.Errorf("amount must be a positive decimal with at most 7 fractional digits")
	ErrInvalidBaseFee  = fmt.Errorf(
		"base fee must be at least %d stroops", txnbuild.MinBaseFee,
	)
	ErrInvalidWeight = fmt.Errorf("signer weight must be in range [1, 255]")

	ErrMalformedEnvelope = fmt.Errorf("malformed transaction envelope")
	ErrFeeBumpEnvelope   = fmt.Errorf("fee bump envelopes are not supported")
)
