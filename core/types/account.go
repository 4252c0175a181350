package types

import "math/big"

// Account holds the native balance tracked for an address. Engines treat the
// balance as authoritative: every credit and debit flows through the state
// backend's Get/Put pair inside a single operation.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return &clone
}
