package domain

// Balance is the amount held of one asset.
type Balance struct {
	Asset   Asset  `json:"asset"`
	Balance string `json:"balance"`
}

// Signer is a key allowed to sign for an account with the given weight.
type Signer struct {
	Key    string `json:"key"`
	Type   string `json:"type"`
	Weight int32  `json:"weight"`
}

type Thresholds struct {
	Low    uint8 `json:"low"`
	Medium uint8 `json:"medium"`
	High   uint8 `json:"high"`
}

type Flags struct {
	AuthRequired        bool `json:"auth_required"`
	AuthRevocable       bool `json:"auth_revocable"`
	AuthImmutable       bool `json:"auth_immutable"`
	AuthClawbackEnabled bool `json:"auth_clawback_enabled"`
}

// Account is the ledger state of an account.
type Account struct {
	Address    string            `json:"address"`
	Sequence   int64             `json:"sequence"`
	Balances   []Balance         `json:"balances"`
	Signers    []Signer          `json:"signers"`
	Thresholds Thresholds        `json:"thresholds"`
	Flags      Flags             `json:"flags"`
	Data       map[string]string `json:"data,omitempty"`
}

// SignerWeight returns the weight of the given key, 0 if it isn't a signer.
func (a *Account) SignerWeight(key string) int32 {
	for _, s := range a.Signers {
		if s.Key == key {
			return s.Weight
		}
	}
	return 0
}
