package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
	"github.com/vulpemventures/multisig-relay/pkg/wallet/mnemonic"
)

// AccountService is responsible for operations on single ledger accounts:
// 	* Generate a new random key pair, or one derived from a mnemonic.
// 	* Fund an account on the test network.
// 	* Get the balances of an account.
// 	* Get the full ledger state of an account.
//
// None of these operations touch the record store.
type AccountService struct {
	ledger ports.Ledger

	log func(format string, a ...interface{})
}

func NewAccountService(ledger ports.Ledger) (*AccountService, error) {
	if ledger == nil {
		return nil, ErrMissingLedger
	}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("account service: %s", format)
		log.Debugf(format, a...)
	}
	return &AccountService{ledger, logFn}, nil
}

func (as *AccountService) GenerateKeypair() (*wallet.Keypair, error) {
	return wallet.NewKeypair()
}

func (as *AccountService) GenerateMnemonic() ([]string, error) {
	return mnemonic.NewMnemonic(mnemonic.NewMnemonicArgs{})
}

func (as *AccountService) KeypairFromMnemonic(
	words []string, password string, index uint32,
) (*wallet.Keypair, error) {
	return wallet.NewKeypairFromMnemonic(wallet.NewKeypairFromMnemonicArgs{
		Mnemonic: words,
		Password: password,
		Index:    index,
	})
}

func (as *AccountService) FundAccount(
	ctx context.Context, address string,
) (*domain.TxResult, error) {
	if err := wallet.ValidateAddress(address); err != nil {
		return nil, err
	}
	res, err := as.ledger.Fund(ctx, address)
	if err != nil {
		return nil, err
	}
	as.log("funded account %s", address)
	return res, nil
}

func (as *AccountService) GetBalance(
	ctx context.Context, address string,
) (BalanceInfo, error) {
	info, err := as.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	return BalanceInfo(info.Balances), nil
}

func (as *AccountService) GetAccountInfo(
	ctx context.Context, address string,
) (*AccountInfo, error) {
	if err := wallet.ValidateAddress(address); err != nil {
		return nil, err
	}
	account, err := as.ledger.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	return (*AccountInfo)(account), nil
}
