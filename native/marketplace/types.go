package marketplace

import (
	"math/big"

	"melodia/core/types"
)

// Listing captures a single sale offer. Seller, token reference and price are
// fixed at creation; only the Active flag changes, exactly once, when the
// listing is bought or cancelled. Identifiers start at 1 and are never
// reused; 0 is the not-found sentinel.
type Listing struct {
	ID            uint64        `json:"id"`
	Seller        types.Address `json:"seller"`
	TokenContract types.Address `json:"tokenContract"`
	TokenID       uint64        `json:"tokenId"`
	Price         *big.Int      `json:"price"`
	Active        bool          `json:"active"`
	CreatedAt     int64         `json:"createdAt"`
}

// Clone returns a deep copy so callers can safely mutate the copy without
// affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}
