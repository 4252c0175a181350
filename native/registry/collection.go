package registry

import (
	"encoding/json"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"melodia/core/types"
)

var (
	ErrUnknownToken        = errors.New("registry: unknown token")
	ErrNotTokenOwner       = errors.New("registry: caller is not token owner")
	ErrNotTokenCreator     = errors.New("registry: caller is not token creator")
	ErrEmptyTokenURI       = errors.New("registry: token URI must not be empty")
	ErrMaxRoyaltyExceeded  = errors.New("registry: royalty exceeds maximum")
	ErrZeroAddressReceiver = errors.New("registry: zero-address receiver")
)

const (
	// maxSalesRoyaltyBps caps the resale royalty a creator can attach at mint.
	maxSalesRoyaltyBps = 2_000
	// maxStreamingRoyaltyBps caps the owner share of streaming payments.
	maxStreamingRoyaltyBps = 5_000
)

// MusicToken is one minted edition. Creator, song id and royalty terms are
// fixed at mint; only the owner and URI change afterwards.
type MusicToken struct {
	Creator         types.Address `json:"creator"`
	Owner           types.Address `json:"owner"`
	URI             string        `json:"uri"`
	SongID          string        `json:"songId"`
	RoyaltyReceiver types.Address `json:"royaltyReceiver"`
	RoyaltyBps      uint32        `json:"royaltyBps"`
	StreamingBps    uint32        `json:"streamingBps"`
	MintedAt        int64         `json:"mintedAt"`
	Burned          bool          `json:"burned"`
}

// MusicCollection is the reference registry implementation backing the
// daemon and the engine test scenarios. Token ids start at 1 and are never
// reused; burned ids stay allocated but report as nonexistent.
type MusicCollection struct {
	mu       sync.RWMutex
	name     string
	symbol   string
	address  types.Address
	nowFn    func() int64
	tokens   map[uint64]*MusicToken
	supply   uint64
	created  map[types.Address][]uint64
	editions map[string][]uint64
}

// NewMusicCollection constructs an empty collection. The contract identity is
// derived deterministically from the name and symbol so restarts resolve to
// the same address.
func NewMusicCollection(name, symbol string) *MusicCollection {
	var addr types.Address
	digest := ethcrypto.Keccak256([]byte("melodia/collection"), []byte(name), []byte(symbol))
	copy(addr[:], digest[12:])
	return &MusicCollection{
		name:     name,
		symbol:   symbol,
		address:  addr,
		nowFn:    nil,
		tokens:   make(map[uint64]*MusicToken),
		created:  make(map[types.Address][]uint64),
		editions: make(map[string][]uint64),
	}
}

// SetNowFunc overrides the mint timestamp source for deterministic tests.
func (c *MusicCollection) SetNowFunc(now func() int64) { c.nowFn = now }

// Name returns the collection name.
func (c *MusicCollection) Name() string { return c.name }

// Symbol returns the collection symbol.
func (c *MusicCollection) Symbol() string { return c.symbol }

// Address returns the collection's contract identity.
func (c *MusicCollection) Address() types.Address { return c.address }

func (c *MusicCollection) now() int64 {
	if c == nil || c.nowFn == nil {
		return 0
	}
	return c.nowFn()
}

// Mint allocates the next token id for creator with the supplied terms.
func (c *MusicCollection) Mint(creator types.Address, uri, songID string, royaltyReceiver types.Address, royaltyBps, streamingBps uint32) (uint64, error) {
	if types.IsZeroAddress(creator) {
		return 0, ErrZeroAddressReceiver
	}
	trimmedURI := strings.TrimSpace(uri)
	if trimmedURI == "" {
		return 0, ErrEmptyTokenURI
	}
	if royaltyBps > maxSalesRoyaltyBps || streamingBps > maxStreamingRoyaltyBps {
		return 0, ErrMaxRoyaltyExceeded
	}
	if royaltyBps > 0 && types.IsZeroAddress(royaltyReceiver) {
		return 0, ErrZeroAddressReceiver
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supply++
	id := c.supply
	c.tokens[id] = &MusicToken{
		Creator:         creator,
		Owner:           creator,
		URI:             trimmedURI,
		SongID:          strings.TrimSpace(songID),
		RoyaltyReceiver: royaltyReceiver,
		RoyaltyBps:      royaltyBps,
		StreamingBps:    streamingBps,
		MintedAt:        c.now(),
	}
	c.created[creator] = append(c.created[creator], id)
	if song := strings.TrimSpace(songID); song != "" {
		c.editions[song] = append(c.editions[song], id)
	}
	return id, nil
}

// Burn retires the token. Only the current owner may burn; the id stays
// allocated so the supply counter remains monotonic.
func (c *MusicCollection) Burn(caller types.Address, tokenID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[tokenID]
	if !ok || token.Burned {
		return ErrUnknownToken
	}
	if token.Owner != caller {
		return ErrNotTokenOwner
	}
	token.Burned = true
	token.Owner = types.ZeroAddress
	return nil
}

// UpdateTokenURI replaces the token URI. Only the creator may update and the
// new URI must be non-empty.
func (c *MusicCollection) UpdateTokenURI(caller types.Address, tokenID uint64, uri string) error {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" {
		return ErrEmptyTokenURI
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[tokenID]
	if !ok || token.Burned {
		return ErrUnknownToken
	}
	if token.Creator != caller {
		return ErrNotTokenCreator
	}
	token.URI = trimmed
	return nil
}

// TokenURI returns the stored URI.
func (c *MusicCollection) TokenURI(tokenID uint64) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.tokens[tokenID]
	if !ok || token.Burned {
		return "", ErrUnknownToken
	}
	return token.URI, nil
}

// OwnerOf implements Token.
func (c *MusicCollection) OwnerOf(tokenID uint64) (types.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.tokens[tokenID]
	if !ok || token.Burned {
		return types.ZeroAddress, ErrUnknownToken
	}
	return token.Owner, nil
}

// Transfer moves custody from the current owner. The from address must match
// the stored owner; anything else is rejected at the registry boundary.
func (c *MusicCollection) Transfer(from, to types.Address, tokenID uint64) error {
	if types.IsZeroAddress(to) {
		return ErrZeroAddressReceiver
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[tokenID]
	if !ok || token.Burned {
		return ErrUnknownToken
	}
	if token.Owner != from {
		return ErrNotTokenOwner
	}
	token.Owner = to
	return nil
}

// CreatorOf implements Token. The creator outlives a burn so historical
// attribution queries keep working.
func (c *MusicCollection) CreatorOf(tokenID uint64) (types.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.tokens[tokenID]
	if !ok {
		return types.ZeroAddress, ErrUnknownToken
	}
	return token.Creator, nil
}

// StreamingRoyaltyBps implements Token.
func (c *MusicCollection) StreamingRoyaltyBps(tokenID uint64) (uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.tokens[tokenID]
	if !ok || token.Burned {
		return 0, ErrUnknownToken
	}
	return token.StreamingBps, nil
}

// TotalSupply implements Token: the highest allocated id, burns included.
func (c *MusicCollection) TotalSupply() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supply
}

// TokensCreatedBy implements Token, returning ids in mint order.
func (c *MusicCollection) TokensCreatedBy(creator types.Address) []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.created[creator]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// SongEditions returns the token ids minted as editions of the song, in mint
// order. The index is maintained at mint time rather than rebuilt by scans.
func (c *MusicCollection) SongEditions(songID string) []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.editions[strings.TrimSpace(songID)]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// RoyaltyInfo implements Token: the receiver and absolute royalty amount for
// a sale at salePrice, truncating toward zero.
func (c *MusicCollection) RoyaltyInfo(tokenID uint64, salePrice *big.Int) (types.Address, *big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.tokens[tokenID]
	if !ok || token.Burned {
		return types.ZeroAddress, nil, ErrUnknownToken
	}
	if salePrice == nil || salePrice.Sign() <= 0 || token.RoyaltyBps == 0 {
		return token.RoyaltyReceiver, big.NewInt(0), nil
	}
	amount := new(big.Int).Mul(salePrice, new(big.Int).SetUint64(uint64(token.RoyaltyBps)))
	amount.Div(amount, big.NewInt(10_000))
	return token.RoyaltyReceiver, amount, nil
}

// SupportsInterface implements Token.
func (c *MusicCollection) SupportsInterface(id InterfaceID) bool {
	return id == RoyaltyInterfaceID
}

type collectionSnapshot struct {
	Supply uint64                 `json:"supply"`
	Tokens map[uint64]*MusicToken `json:"tokens"`
}

// MarshalState serializes the supply counter and token table. The created and
// editions indices are derived data and rebuilt on restore.
func (c *MusicCollection) MarshalState() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(collectionSnapshot{Supply: c.supply, Tokens: c.tokens})
}

// RestoreState replaces the token table with a snapshot produced by
// MarshalState. Ids are sequential, so ascending id order reproduces mint
// order in the rebuilt indices.
func (c *MusicCollection) RestoreState(raw []byte) error {
	var snap collectionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap.Tokens == nil {
		snap.Tokens = make(map[uint64]*MusicToken)
	}
	ids := make([]uint64, 0, len(snap.Tokens))
	for id := range snap.Tokens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	created := make(map[types.Address][]uint64)
	editions := make(map[string][]uint64)
	for _, id := range ids {
		token := snap.Tokens[id]
		created[token.Creator] = append(created[token.Creator], id)
		if token.SongID != "" {
			editions[token.SongID] = append(editions[token.SongID], id)
		}
	}
	c.supply = snap.Supply
	c.tokens = snap.Tokens
	c.created = created
	c.editions = editions
	return nil
}
