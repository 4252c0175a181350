package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"melodia/core/types"
	"melodia/storage"
)

// Store layers a write buffer over a storage.Database. Engines mutate the
// buffer during one operation; the RPC layer commits on success and discards
// on failure, which gives every entry point the all-or-nothing semantics the
// engines assume. Reads always observe the buffer first.
type Store struct {
	db      storage.Database
	mu      sync.Mutex
	overlay map[string][]byte
	deleted map[string]struct{}
}

// NewStore wraps the database with an empty write buffer.
func NewStore(db storage.Database) *Store {
	return &Store{
		db:      db,
		overlay: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Commit flushes the buffered writes and deletes to the database and resets
// the buffer.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.deleted {
		if err := s.db.Delete([]byte(key)); err != nil {
			return fmt.Errorf("state: commit delete: %w", err)
		}
	}
	for key, value := range s.overlay {
		if err := s.db.Put([]byte(key), value); err != nil {
			return fmt.Errorf("state: commit put: %w", err)
		}
	}
	s.overlay = make(map[string][]byte)
	s.deleted = make(map[string]struct{})
	return nil
}

// Discard drops every buffered mutation, restoring the last committed view.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay = make(map[string][]byte)
	s.deleted = make(map[string]struct{})
}

func (s *Store) get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value, ok := s.overlay[key]; ok {
		out := make([]byte, len(value))
		copy(out, value)
		return out, true, nil
	}
	if _, ok := s.deleted[key]; ok {
		return nil, false, nil
	}
	value, err := s.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.overlay[key] = stored
	delete(s.deleted, key)
}

func (s *Store) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlay, key)
	s.deleted[key] = struct{}{}
}

// --- shared codecs ---

func accountKey(addr []byte) string { return "acct/" + string(addr) }

// GetAccount loads the account for addr, nil when it was never written.
func (s *Store) GetAccount(addr []byte) (*types.Account, error) {
	raw, ok, err := s.get(accountKey(addr))
	if err != nil || !ok {
		return nil, err
	}
	account := new(types.Account)
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return account, nil
}

// PutAccount stores the account for addr.
func (s *Store) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		s.del(accountKey(addr))
		return nil
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	s.put(accountKey(addr), raw)
	return nil
}

func (s *Store) pendingGet(prefix string, beneficiary types.Address) (*big.Int, error) {
	raw, ok, err := s.get(prefix + string(beneficiary[:]))
	if err != nil || !ok {
		return nil, err
	}
	amount, valid := new(big.Int).SetString(string(raw), 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt pending balance")
	}
	return amount, nil
}

func (s *Store) pendingPut(prefix string, beneficiary types.Address, amount *big.Int) error {
	key := prefix + string(beneficiary[:])
	if amount == nil || amount.Sign() == 0 {
		s.del(key)
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative pending balance")
	}
	s.put(key, []byte(amount.String()))
	return nil
}

func (s *Store) counterGet(key string) (uint64, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: corrupt counter")
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Store) counterPut(key string, value uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, value)
	s.put(key, raw)
	return nil
}

func (s *Store) idListGet(key string) ([]uint64, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("state: decode id list: %w", err)
	}
	return ids, nil
}

func (s *Store) idListPut(key string, ids []uint64) error {
	if len(ids) == 0 {
		s.del(key)
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("state: encode id list: %w", err)
	}
	s.put(key, raw)
	return nil
}

func tokenKey(prefix string, contract types.Address, tokenID uint64) string {
	suffix := make([]byte, 8)
	binary.BigEndian.PutUint64(suffix, tokenID)
	return prefix + string(contract[:]) + "/" + string(suffix)
}
