package streaming

import (
	"melodia/core/types"
)

// TopListenedTokens returns up to limit token ids of the contract ordered by
// descending listen count. Ties break by ascending token id. Only tokens
// with a nonzero counter participate; limit clamps to that population. The
// selection is a partial selection sort, so the cost is O(limit * n) rather
// than a full sort of every token.
func (e *Engine) TopListenedTokens(contract types.Address, limit uint64) ([]uint64, []uint64, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	ids, err := e.state.ListenedTokensGet(contract)
	if err != nil {
		return nil, nil, err
	}
	working := make([]rankedToken, 0, len(ids))
	for _, id := range ids {
		count, err := e.state.ListenCountGet(contract, id)
		if err != nil {
			return nil, nil, err
		}
		if count == 0 {
			continue
		}
		working = append(working, rankedToken{id: id, count: count})
	}
	if limit > uint64(len(working)) {
		limit = uint64(len(working))
	}
	topIDs := make([]uint64, 0, limit)
	topCounts := make([]uint64, 0, limit)
	for i := uint64(0); i < limit; i++ {
		best := 0
		for j := 1; j < len(working); j++ {
			if working[j].beats(working[best]) {
				best = j
			}
		}
		topIDs = append(topIDs, working[best].id)
		topCounts = append(topCounts, working[best].count)
		working[best] = working[len(working)-1]
		working = working[:len(working)-1]
	}
	return topIDs, topCounts, nil
}

type rankedToken struct {
	id    uint64
	count uint64
}

func (r rankedToken) beats(other rankedToken) bool {
	if r.count != other.count {
		return r.count > other.count
	}
	return r.id < other.id
}

// ListenDataByCreator returns the listen counter for every token the creator
// minted on the contract, in mint order. Unknown creators yield empty slices.
func (e *Engine) ListenDataByCreator(contract types.Address, creator types.Address) ([]uint64, []uint64, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	token, err := e.resolve(contract)
	if err != nil {
		return nil, nil, err
	}
	ids := token.TokensCreatedBy(creator)
	counts := make([]uint64, 0, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		count, err := e.state.ListenCountGet(contract, id)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, id)
		counts = append(counts, count)
	}
	return out, counts, nil
}
