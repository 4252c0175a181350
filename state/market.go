package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"melodia/core/types"
	"melodia/native/marketplace"
)

const (
	marketPendingPrefix = "pending/marketplace/"
	marketListingPrefix = "market/listing/"
	marketCounterKey    = "market/listings"
	marketTokenPrefix   = "market/tokidx/"
	marketSellerPrefix  = "market/seller/"
	marketActiveKey     = "market/active"
)

// MarketState exposes the marketplace engine's persistence surface over a
// Store. It shares the account table with every other module view.
type MarketState struct {
	*Store
}

// NewMarketState wraps the store for the marketplace engine.
func NewMarketState(s *Store) *MarketState { return &MarketState{Store: s} }

// PendingGet implements payments.LedgerState.
func (m *MarketState) PendingGet(beneficiary types.Address) (*big.Int, error) {
	return m.pendingGet(marketPendingPrefix, beneficiary)
}

// PendingPut implements payments.LedgerState.
func (m *MarketState) PendingPut(beneficiary types.Address, amount *big.Int) error {
	return m.pendingPut(marketPendingPrefix, beneficiary, amount)
}

func listingKey(id uint64) string {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, id)
	return marketListingPrefix + string(raw)
}

// ListingGet loads a listing by id.
func (m *MarketState) ListingGet(id uint64) (*marketplace.Listing, bool, error) {
	raw, ok, err := m.get(listingKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	listing := new(marketplace.Listing)
	if err := json.Unmarshal(raw, listing); err != nil {
		return nil, false, fmt.Errorf("state: decode listing: %w", err)
	}
	return listing, true, nil
}

// ListingPut stores a listing keyed by its id.
func (m *MarketState) ListingPut(listing *marketplace.Listing) error {
	if listing == nil {
		return nil
	}
	raw, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("state: encode listing: %w", err)
	}
	m.put(listingKey(listing.ID), raw)
	return nil
}

// ListingCounterGet returns the highest allocated listing id.
func (m *MarketState) ListingCounterGet() (uint64, error) {
	return m.counterGet(marketCounterKey)
}

// ListingCounterPut stores the highest allocated listing id.
func (m *MarketState) ListingCounterPut(count uint64) error {
	return m.counterPut(marketCounterKey, count)
}

// TokenListingGet resolves the active listing id for a token, if any.
func (m *MarketState) TokenListingGet(contract types.Address, tokenID uint64) (uint64, bool, error) {
	raw, ok, err := m.get(tokenKey(marketTokenPrefix, contract, tokenID))
	if err != nil || !ok {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("state: corrupt token index")
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// TokenListingPut indexes the active listing id for a token.
func (m *MarketState) TokenListingPut(contract types.Address, tokenID uint64, listingID uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, listingID)
	m.put(tokenKey(marketTokenPrefix, contract, tokenID), raw)
	return nil
}

// TokenListingDelete drops the token index entry once a listing terminates.
func (m *MarketState) TokenListingDelete(contract types.Address, tokenID uint64) error {
	m.del(tokenKey(marketTokenPrefix, contract, tokenID))
	return nil
}

// SellerListingsGet returns every listing id the seller created, in creation
// order.
func (m *MarketState) SellerListingsGet(seller types.Address) ([]uint64, error) {
	return m.idListGet(marketSellerPrefix + string(seller[:]))
}

// SellerListingAppend appends a new listing id to the seller's history.
func (m *MarketState) SellerListingAppend(seller types.Address, listingID uint64) error {
	key := marketSellerPrefix + string(seller[:])
	ids, err := m.idListGet(key)
	if err != nil {
		return err
	}
	return m.idListPut(key, append(ids, listingID))
}

// ActiveListingsGet returns the active listing ids in creation order.
func (m *MarketState) ActiveListingsGet() ([]uint64, error) {
	return m.idListGet(marketActiveKey)
}

// ActiveListingAdd appends an id to the active list.
func (m *MarketState) ActiveListingAdd(listingID uint64) error {
	ids, err := m.idListGet(marketActiveKey)
	if err != nil {
		return err
	}
	return m.idListPut(marketActiveKey, append(ids, listingID))
}

// ActiveListingRemove removes an id from the active list, preserving the
// creation order of the remainder.
func (m *MarketState) ActiveListingRemove(listingID uint64) error {
	ids, err := m.idListGet(marketActiveKey)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != listingID {
			filtered = append(filtered, id)
		}
	}
	return m.idListPut(marketActiveKey, filtered)
}
