package wallet

import (
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/tools/stellar-hd-wallet/crypto/derivation"
	"github.com/vulpemventures/multisig-relay/pkg/wallet/mnemonic"
)

// Keypair is an account key pair. The secret must never leave the process
// owning it.
type Keypair struct {
	full *keypair.Full
}

func (k *Keypair) Address() string {
	return k.full.Address()
}

func (k *Keypair) Secret() string {
	return k.full.Seed()
}

// NewKeypair returns a new random key pair.
func NewKeypair() (*Keypair, error) {
	kp, err := keypair.Random()
	if err != nil {
		return nil, err
	}
	return &Keypair{kp}, nil
}

// NewKeypairFromSecret restores the key pair of the given secret seed.
func NewKeypairFromSecret(secret string) (*Keypair, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidSecret
	}
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, ErrInvalidSecret
	}
	return &Keypair{kp}, nil
}

type NewKeypairFromMnemonicArgs struct {
	Mnemonic []string
	Password string
	Index    uint32
}

func (a NewKeypairFromMnemonicArgs) validate() error {
	if len(a.Mnemonic) == 0 {
		return ErrMissingMnemonic
	}
	if !mnemonic.IsValid(a.Mnemonic) {
		return ErrInvalidMnemonic
	}
	if a.Index >= derivation.FirstHardenedIndex {
		return fmt.Errorf(
			"account index must be in range [0, %d]", derivation.FirstHardenedIndex-1,
		)
	}
	return nil
}

// NewKeypairFromMnemonic derives the account key pair at path
// m/44'/148'/index' from the given BIP-39 mnemonic.
func NewKeypairFromMnemonic(args NewKeypairFromMnemonicArgs) (*Keypair, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	seed, err := mnemonic.ToSeed(args.Mnemonic, args.Password)
	if err != nil {
		return nil, err
	}
	return NewKeypairFromSeed(seed, args.Index)
}

// NewKeypairFromSeed derives the account key pair at path m/44'/148'/index'
// from the given raw BIP-39 seed.
func NewKeypairFromSeed(seed []byte, index uint32) (*Keypair, error) {
	path := fmt.Sprintf(derivation.StellarAccountPathFormat, index)
	key, err := derivation.DeriveForPath(path, seed)
	if err != nil {
		return nil, err
	}
	kp, err := keypair.FromRawSeed(key.RawSeed())
	if err != nil {
		return nil, err
	}
	return &Keypair{kp}, nil
}

// ValidateAddress returns an error if the given string is not a valid
// account address.
func ValidateAddress(address string) error {
	if _, err := keypair.ParseAddress(address); err != nil {
		return ErrInvalidAddress
	}
	return nil
}
