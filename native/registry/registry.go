package registry

import (
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"melodia/core/types"
)

// InterfaceID is the 4-byte capability identifier used by SupportsInterface,
// mirroring the ERC-165 probing convention.
type InterfaceID [4]byte

// RoyaltyInterfaceID identifies the sales-royalty capability. It is the
// selector of royaltyInfo(uint256,uint256), the single method of the
// interface, which makes it the interface id as well.
var RoyaltyInterfaceID = selector("royaltyInfo(uint256,uint256)")

func selector(signature string) InterfaceID {
	var id InterfaceID
	copy(id[:], ethcrypto.Keccak256([]byte(signature))[:4])
	return id
}

// Token is the registry surface the marketplace and streaming engines consume.
// Implementations own the authoritative custody and creator records; the
// engines never mutate them except through Transfer.
type Token interface {
	OwnerOf(tokenID uint64) (types.Address, error)
	Transfer(from, to types.Address, tokenID uint64) error
	CreatorOf(tokenID uint64) (types.Address, error)
	StreamingRoyaltyBps(tokenID uint64) (uint32, error)
	TotalSupply() uint64
	TokensCreatedBy(creator types.Address) []uint64
	RoyaltyInfo(tokenID uint64, salePrice *big.Int) (types.Address, *big.Int, error)
	SupportsInterface(id InterfaceID) bool
}

// Resolver maps a contract identity to its registry implementation.
type Resolver interface {
	Resolve(contract types.Address) (Token, bool)
}

// Set is the in-process resolver used by the daemon and tests.
type Set struct {
	mu     sync.RWMutex
	tokens map[types.Address]Token
}

// NewSet returns an empty resolver set.
func NewSet() *Set {
	return &Set{tokens: make(map[types.Address]Token)}
}

// Register binds a contract identity to its implementation, replacing any
// previous binding.
func (s *Set) Register(contract types.Address, token Token) {
	if s == nil || token == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[contract] = token
}

// Resolve implements Resolver.
func (s *Set) Resolve(contract types.Address) (Token, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[contract]
	return token, ok
}
