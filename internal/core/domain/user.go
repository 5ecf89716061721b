package domain

import (
	"github.com/google/uuid"
)

// User is the record linking a primary address to its secondary signer and
// to the cursor of the last payment event seen for it.
type User struct {
	ID               string `json:"id"`
	PrimaryAddress   string `json:"primary_address"`
	SecondaryAddress string `json:"secondary_address,omitempty"`
	LastPagingToken  string `json:"last_paging_token,omitempty"`
}

// NewUser returns a new record for the given primary address with a
// generated id.
func NewUser(primaryAddress string) (*User, error) {
	if len(primaryAddress) == 0 {
		return nil, ErrMissingPrimaryAddress
	}
	return &User{
		ID:             uuid.New().String(),
		PrimaryAddress: primaryAddress,
	}, nil
}

// HasAddress returns whether addr is either the primary or the secondary
// address of the user.
func (u *User) HasAddress(addr string) bool {
	if len(addr) == 0 {
		return false
	}
	return u.PrimaryAddress == addr || u.SecondaryAddress == addr
}

// Apply overlays the supplied fields of the update. It returns whether
// anything changed.
func (u *User) Apply(update UserUpdate) bool {
	changed := false
	if update.SecondaryAddress != "" && update.SecondaryAddress != u.SecondaryAddress {
		u.SecondaryAddress = update.SecondaryAddress
		changed = true
	}
	if update.LastPagingToken != "" && update.LastPagingToken != u.LastPagingToken {
		u.LastPagingToken = update.LastPagingToken
		changed = true
	}
	return changed
}

// UserUpdate holds the fields to merge into a User record. Empty fields are
// left untouched.
type UserUpdate struct {
	SecondaryAddress string
	LastPagingToken  string
}

func (u UserUpdate) IsEmpty() bool {
	return u.SecondaryAddress == "" && u.LastPagingToken == ""
}
