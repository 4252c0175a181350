package registry

import (
	"errors"
	"math/big"
	"testing"

	"melodia/core/types"
)

func addr(last byte) types.Address {
	var out types.Address
	out[19] = last
	return out
}

var (
	creator = addr(0x01)
	holder  = addr(0x02)
)

func newCollection() *MusicCollection {
	return NewMusicCollection("Test Songs", "SONG")
}

func TestCollectionAddressIsDeterministic(t *testing.T) {
	first := NewMusicCollection("Test Songs", "SONG")
	second := NewMusicCollection("Test Songs", "SONG")
	if first.Address() != second.Address() {
		t.Fatalf("same identity resolved to different addresses")
	}
	other := NewMusicCollection("Other Songs", "SONG")
	if first.Address() == other.Address() {
		t.Fatalf("distinct collections share an address")
	}
	if types.IsZeroAddress(first.Address()) {
		t.Fatalf("collection address is zero")
	}
}

func TestMintAllocatesSequentialIDs(t *testing.T) {
	c := newCollection()
	c.SetNowFunc(func() int64 { return 1_700_000_000 })
	for want := uint64(1); want <= 3; want++ {
		id, err := c.Mint(creator, "ipfs://song", "song-1", creator, 100, 2_000)
		if err != nil {
			t.Fatalf("mint %d failed: %v", want, err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}
	if c.TotalSupply() != 3 {
		t.Fatalf("total supply: want 3, got %d", c.TotalSupply())
	}
	owner, err := c.OwnerOf(1)
	if err != nil || owner != creator {
		t.Fatalf("minted token not owned by creator: %x (err %v)", owner, err)
	}
}

func TestMintValidation(t *testing.T) {
	c := newCollection()
	if _, err := c.Mint(types.ZeroAddress, "ipfs://x", "", creator, 0, 0); !errors.Is(err, ErrZeroAddressReceiver) {
		t.Fatalf("zero creator: expected ErrZeroAddressReceiver, got %v", err)
	}
	if _, err := c.Mint(creator, "   ", "", creator, 0, 0); !errors.Is(err, ErrEmptyTokenURI) {
		t.Fatalf("blank URI: expected ErrEmptyTokenURI, got %v", err)
	}
	if _, err := c.Mint(creator, "ipfs://x", "", creator, 2_001, 0); !errors.Is(err, ErrMaxRoyaltyExceeded) {
		t.Fatalf("sales royalty over cap: expected ErrMaxRoyaltyExceeded, got %v", err)
	}
	if _, err := c.Mint(creator, "ipfs://x", "", creator, 0, 5_001); !errors.Is(err, ErrMaxRoyaltyExceeded) {
		t.Fatalf("streaming share over cap: expected ErrMaxRoyaltyExceeded, got %v", err)
	}
	if _, err := c.Mint(creator, "ipfs://x", "", types.ZeroAddress, 100, 0); !errors.Is(err, ErrZeroAddressReceiver) {
		t.Fatalf("royalty without receiver: expected ErrZeroAddressReceiver, got %v", err)
	}
	// Caps are inclusive.
	if _, err := c.Mint(creator, "ipfs://x", "", creator, 2_000, 5_000); err != nil {
		t.Fatalf("mint at caps failed: %v", err)
	}
}

func TestTransferChecksCurrentOwner(t *testing.T) {
	c := newCollection()
	id, err := c.Mint(creator, "ipfs://x", "", creator, 0, 0)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.Transfer(holder, addr(0x03), id); !errors.Is(err, ErrNotTokenOwner) {
		t.Fatalf("foreign transfer: expected ErrNotTokenOwner, got %v", err)
	}
	if err := c.Transfer(creator, types.ZeroAddress, id); !errors.Is(err, ErrZeroAddressReceiver) {
		t.Fatalf("zero receiver: expected ErrZeroAddressReceiver, got %v", err)
	}
	if err := c.Transfer(creator, holder, id); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	owner, err := c.OwnerOf(id)
	if err != nil || owner != holder {
		t.Fatalf("ownership not moved: %x (err %v)", owner, err)
	}
}

func TestBurnRetiresTokenButKeepsAttribution(t *testing.T) {
	c := newCollection()
	id, err := c.Mint(creator, "ipfs://x", "", creator, 0, 0)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.Transfer(creator, holder, id); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if err := c.Burn(creator, id); !errors.Is(err, ErrNotTokenOwner) {
		t.Fatalf("non-owner burn: expected ErrNotTokenOwner, got %v", err)
	}
	if err := c.Burn(holder, id); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	if _, err := c.OwnerOf(id); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("burned owner lookup: expected ErrUnknownToken, got %v", err)
	}
	if _, err := c.TokenURI(id); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("burned URI lookup: expected ErrUnknownToken, got %v", err)
	}
	if err := c.Burn(holder, id); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("double burn: expected ErrUnknownToken, got %v", err)
	}
	// Attribution survives and the id stays allocated.
	who, err := c.CreatorOf(id)
	if err != nil || who != creator {
		t.Fatalf("creator lost after burn: %x (err %v)", who, err)
	}
	if c.TotalSupply() != 1 {
		t.Fatalf("supply shrank after burn: %d", c.TotalSupply())
	}
	next, err := c.Mint(creator, "ipfs://y", "", creator, 0, 0)
	if err != nil || next != 2 {
		t.Fatalf("burned id reused: next=%d (err %v)", next, err)
	}
}

func TestUpdateTokenURI(t *testing.T) {
	c := newCollection()
	id, err := c.Mint(creator, "ipfs://before", "", creator, 0, 0)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.Transfer(creator, holder, id); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	// The creator keeps metadata control even after selling the token.
	if err := c.UpdateTokenURI(holder, id, "ipfs://hijack"); !errors.Is(err, ErrNotTokenCreator) {
		t.Fatalf("owner update: expected ErrNotTokenCreator, got %v", err)
	}
	if err := c.UpdateTokenURI(creator, id, "  "); !errors.Is(err, ErrEmptyTokenURI) {
		t.Fatalf("blank update: expected ErrEmptyTokenURI, got %v", err)
	}
	if err := c.UpdateTokenURI(creator, id, "  ipfs://after  "); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	uri, err := c.TokenURI(id)
	if err != nil || uri != "ipfs://after" {
		t.Fatalf("URI not updated: %q (err %v)", uri, err)
	}
}

func TestRoyaltyInfoTruncates(t *testing.T) {
	c := newCollection()
	id, err := c.Mint(creator, "ipfs://x", "", holder, 250, 0)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	receiver, amount, err := c.RoyaltyInfo(id, big.NewInt(9_999))
	if err != nil {
		t.Fatalf("royalty lookup failed: %v", err)
	}
	if receiver != holder {
		t.Fatalf("wrong receiver: %x", receiver)
	}
	// 9999 * 250 / 10000 truncates to 249.
	if amount.Cmp(big.NewInt(249)) != 0 {
		t.Fatalf("royalty amount: want 249, got %s", amount)
	}
	if _, amount, err = c.RoyaltyInfo(id, big.NewInt(0)); err != nil || amount.Sign() != 0 {
		t.Fatalf("zero price royalty: want 0, got %s (err %v)", amount, err)
	}
	if !c.SupportsInterface(RoyaltyInterfaceID) {
		t.Fatalf("royalty capability not advertised")
	}
}

func TestCreatedAndEditionIndices(t *testing.T) {
	c := newCollection()
	for i := 0; i < 3; i++ {
		if _, err := c.Mint(creator, "ipfs://x", "song-a", creator, 0, 0); err != nil {
			t.Fatalf("mint failed: %v", err)
		}
	}
	if _, err := c.Mint(holder, "ipfs://y", " song-a ", holder, 0, 0); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := c.Mint(holder, "ipfs://z", "song-b", holder, 0, 0); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	created := c.TokensCreatedBy(creator)
	if len(created) != 3 || created[0] != 1 || created[2] != 3 {
		t.Fatalf("unexpected created index: %v", created)
	}
	editions := c.SongEditions("song-a")
	if len(editions) != 4 || editions[3] != 4 {
		t.Fatalf("unexpected edition index: %v", editions)
	}
	if got := c.SongEditions("song-b"); len(got) != 1 || got[0] != 5 {
		t.Fatalf("unexpected song-b editions: %v", got)
	}
	if got := c.SongEditions("unknown"); len(got) != 0 {
		t.Fatalf("unknown song yielded editions: %v", got)
	}
	if got := c.TokensCreatedBy(addr(0x77)); len(got) != 0 {
		t.Fatalf("unknown creator yielded tokens: %v", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := newCollection()
	c.SetNowFunc(func() int64 { return 1_700_000_000 })
	for i := 0; i < 3; i++ {
		if _, err := c.Mint(creator, "ipfs://song", "song-a", creator, 250, 1_000); err != nil {
			t.Fatalf("mint failed: %v", err)
		}
	}
	if err := c.Transfer(creator, holder, 2); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if err := c.Burn(creator, 3); err != nil {
		t.Fatalf("burn failed: %v", err)
	}

	raw, err := c.MarshalState()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored := newCollection()
	if err := restored.RestoreState(raw); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if restored.TotalSupply() != 3 {
		t.Fatalf("supply not restored: %d", restored.TotalSupply())
	}
	owner, err := restored.OwnerOf(2)
	if err != nil || owner != holder {
		t.Fatalf("transferred owner not restored: %x (err %v)", owner, err)
	}
	if _, err := restored.OwnerOf(3); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("burned token resurrected: %v", err)
	}
	// The next mint continues the id sequence, burned ids included.
	id, err := restored.Mint(holder, "ipfs://next", "song-a", holder, 0, 0)
	if err != nil || id != 4 {
		t.Fatalf("post-restore mint: want id 4, got %d (err %v)", id, err)
	}
	created := restored.TokensCreatedBy(creator)
	if len(created) != 3 || created[0] != 1 || created[1] != 2 || created[2] != 3 {
		t.Fatalf("created index not rebuilt: %v", created)
	}
	editions := restored.SongEditions("song-a")
	if len(editions) != 4 || editions[0] != 1 || editions[3] != 4 {
		t.Fatalf("edition index not rebuilt: %v", editions)
	}
	receiver, amount, err := restored.RoyaltyInfo(1, big.NewInt(10_000))
	if err != nil || receiver != creator || amount.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("royalty terms not restored: %x %v (err %v)", receiver, amount, err)
	}
}
