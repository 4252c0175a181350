package marketplace

import (
	"melodia/core/types"
)

// Read-only queries over the listing table. The write path maintains the
// secondary indices these read from (active id list in creation order,
// seller id lists, token -> active listing id), so no query scans the full
// listing table. Pagination windows apply to the filtered sequence: a start
// at or past the filtered count yields an empty result and a window running
// past the end clamps to what is available.

// ListingByToken returns the active listing for (contract, tokenID), or
// (nil, false) when none exists.
func (e *Engine) ListingByToken(contract types.Address, tokenID uint64) (*Listing, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	id, ok, err := e.state.TokenListingGet(contract, tokenID)
	if err != nil || !ok {
		return nil, false, err
	}
	listing, ok, err := e.state.ListingGet(id)
	if err != nil || !ok || !listing.Active {
		return nil, false, err
	}
	return listing, true, nil
}

// TotalListings returns the highest allocated listing id, terminated
// listings included.
func (e *Engine) TotalListings() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.ListingCounterGet()
}

// ActiveListingsCount returns the number of currently active listings.
func (e *Engine) ActiveListingsCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	ids, err := e.state.ActiveListingsGet()
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// ActiveListings returns the [start, start+limit) window over the active
// listings in creation order.
func (e *Engine) ActiveListings(start, limit uint64) ([]*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.ActiveListingsGet()
	if err != nil {
		return nil, err
	}
	return e.window(ids, start, limit)
}

// ListingsBySeller returns the [start, start+limit) window over every
// listing the seller ever created, historical ones included, each carrying
// its current Active flag.
func (e *Engine) ListingsBySeller(seller types.Address, start, limit uint64) ([]*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.SellerListingsGet(seller)
	if err != nil {
		return nil, err
	}
	return e.window(ids, start, limit)
}

// IsTokenListed reports whether an active listing exists for the token.
func (e *Engine) IsTokenListed(contract types.Address, tokenID uint64) (bool, error) {
	listing, ok, err := e.ListingByToken(contract, tokenID)
	if err != nil {
		return false, err
	}
	return ok && listing != nil, nil
}

func (e *Engine) window(ids []uint64, start, limit uint64) ([]*Listing, error) {
	total := uint64(len(ids))
	if start >= total || limit == 0 {
		return []*Listing{}, nil
	}
	// Clamp before adding so start+limit cannot wrap around uint64.
	if limit > total-start {
		limit = total - start
	}
	end := start + limit
	out := make([]*Listing, 0, end-start)
	for _, id := range ids[start:end] {
		listing, ok, err := e.state.ListingGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, listing)
	}
	return out, nil
}
