package registry

import (
	"math/big"

	"melodia/core/types"
)

// QueryRoyaltyInfo asks the registry for the sales royalty on (tokenID,
// salePrice). A registry that does not advertise the capability, errors,
// panics, or answers with a zero receiver or non-positive amount yields
// ok == false; the failure never propagates to the caller.
func QueryRoyaltyInfo(token Token, tokenID uint64, salePrice *big.Int) (receiver types.Address, amount *big.Int, ok bool) {
	if token == nil || salePrice == nil {
		return types.ZeroAddress, nil, false
	}
	defer func() {
		if recover() != nil {
			receiver, amount, ok = types.ZeroAddress, nil, false
		}
	}()
	if !token.SupportsInterface(RoyaltyInterfaceID) {
		return types.ZeroAddress, nil, false
	}
	recv, amt, err := token.RoyaltyInfo(tokenID, new(big.Int).Set(salePrice))
	if err != nil || amt == nil || amt.Sign() <= 0 || types.IsZeroAddress(recv) {
		return types.ZeroAddress, nil, false
	}
	return recv, new(big.Int).Set(amt), true
}

// ProbeOwner resolves the current owner of tokenID, treating any registry
// fault or a zero owner as nonexistence.
func ProbeOwner(token Token, tokenID uint64) (owner types.Address, ok bool) {
	if token == nil {
		return types.ZeroAddress, false
	}
	defer func() {
		if recover() != nil {
			owner, ok = types.ZeroAddress, false
		}
	}()
	resolved, err := token.OwnerOf(tokenID)
	if err != nil || types.IsZeroAddress(resolved) {
		return types.ZeroAddress, false
	}
	return resolved, true
}

// ProbeStreamingRoyalty resolves the streaming royalty share for tokenID.
// Faulty registries report ok == false so callers can fall back to paying the
// current owner in full.
func ProbeStreamingRoyalty(token Token, tokenID uint64) (bps uint32, creator types.Address, ok bool) {
	if token == nil {
		return 0, types.ZeroAddress, false
	}
	defer func() {
		if recover() != nil {
			bps, creator, ok = 0, types.ZeroAddress, false
		}
	}()
	resolvedBps, err := token.StreamingRoyaltyBps(tokenID)
	if err != nil || resolvedBps > 10_000 {
		return 0, types.ZeroAddress, false
	}
	resolvedCreator, err := token.CreatorOf(tokenID)
	if err != nil || types.IsZeroAddress(resolvedCreator) {
		return 0, types.ZeroAddress, false
	}
	return resolvedBps, resolvedCreator, true
}
