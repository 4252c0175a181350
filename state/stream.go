package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"melodia/core/types"
)

const (
	streamPendingPrefix = "pending/streaming/"
	streamListensPrefix = "stream/listens/"
	streamTotalPrefix   = "stream/total/"
	streamTokensPrefix  = "stream/tokens/"
)

// StreamState exposes the streaming engine's persistence surface over a
// Store. It shares the account table with every other module view.
type StreamState struct {
	*Store
}

// NewStreamState wraps the store for the streaming engine.
func NewStreamState(s *Store) *StreamState { return &StreamState{Store: s} }

// PendingGet implements payments.LedgerState.
func (st *StreamState) PendingGet(beneficiary types.Address) (*big.Int, error) {
	return st.pendingGet(streamPendingPrefix, beneficiary)
}

// PendingPut implements payments.LedgerState.
func (st *StreamState) PendingPut(beneficiary types.Address, amount *big.Int) error {
	return st.pendingPut(streamPendingPrefix, beneficiary, amount)
}

// ListenCountGet returns the accumulated counter for (contract, tokenID).
func (st *StreamState) ListenCountGet(contract types.Address, tokenID uint64) (uint64, error) {
	raw, ok, err := st.get(tokenKey(streamListensPrefix, contract, tokenID))
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: corrupt listen counter")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// ListenCountPut stores the accumulated counter for (contract, tokenID).
func (st *StreamState) ListenCountPut(contract types.Address, tokenID uint64, count uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, count)
	st.put(tokenKey(streamListensPrefix, contract, tokenID), raw)
	return nil
}

// ContractListenTotalGet returns the per-contract listen accumulator.
func (st *StreamState) ContractListenTotalGet(contract types.Address) (uint64, error) {
	return st.counterGet(streamTotalPrefix + string(contract[:]))
}

// ContractListenTotalPut stores the per-contract listen accumulator.
func (st *StreamState) ContractListenTotalPut(contract types.Address, total uint64) error {
	return st.counterPut(streamTotalPrefix+string(contract[:]), total)
}

// ListenedTokensGet returns the ids that have recorded at least one listen,
// in first-listen order.
func (st *StreamState) ListenedTokensGet(contract types.Address) ([]uint64, error) {
	return st.idListGet(streamTokensPrefix + string(contract[:]))
}

// ListenedTokenAdd appends a token to the contract's nonzero-listen list.
func (st *StreamState) ListenedTokenAdd(contract types.Address, tokenID uint64) error {
	key := streamTokensPrefix + string(contract[:])
	ids, err := st.idListGet(key)
	if err != nil {
		return err
	}
	return st.idListPut(key, append(ids, tokenID))
}
