package marketplace

import (
	"math"
	"math/big"
	"testing"

	"melodia/core/types"
)

// seedListings mints count tokens for the seller and lists them all. Listing
// ids come back in creation order starting at 1.
func seedListings(t *testing.T, env *testEnv, owner types.Address, count int) []uint64 {
	t.Helper()
	ids := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		tokenID := env.mintTo(t, owner, 0)
		id, err := env.engine.CreateListing(owner, env.collection.Address(), tokenID, big.NewInt(int64(1_000*(i+1))))
		if err != nil {
			t.Fatalf("listing %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestActiveListingsPagination(t *testing.T) {
	env := newTestEnv(t)
	seedListings(t, env, seller, 5)

	count, err := env.engine.ActiveListingsCount()
	if err != nil || count != 5 {
		t.Fatalf("active count: want 5, got %d (err %v)", count, err)
	}

	page, err := env.engine.ActiveListings(0, 2)
	if err != nil {
		t.Fatalf("page failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != 1 || page[1].ID != 2 {
		t.Fatalf("unexpected first page: %+v", page)
	}

	// A window running past the end clamps to what is available.
	page, err = env.engine.ActiveListings(3, 10)
	if err != nil {
		t.Fatalf("clamped page failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != 4 || page[1].ID != 5 {
		t.Fatalf("unexpected clamped page: %+v", page)
	}

	// A start at or past the count yields an empty page, not an error.
	page, err = env.engine.ActiveListings(5, 2)
	if err != nil || len(page) != 0 {
		t.Fatalf("out-of-range start: want empty, got %d (err %v)", len(page), err)
	}
	page, err = env.engine.ActiveListings(0, 0)
	if err != nil || len(page) != 0 {
		t.Fatalf("zero limit: want empty, got %d (err %v)", len(page), err)
	}
}

func TestPaginationSurvivesHugeLimits(t *testing.T) {
	env := newTestEnv(t)
	seedListings(t, env, seller, 3)

	// A limit near the uint64 ceiling must clamp, not wrap past the end.
	page, err := env.engine.ActiveListings(1, math.MaxUint64)
	if err != nil {
		t.Fatalf("huge limit failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != 2 || page[1].ID != 3 {
		t.Fatalf("unexpected page under huge limit: %+v", page)
	}
	page, err = env.engine.ListingsBySeller(seller, 2, math.MaxUint64)
	if err != nil {
		t.Fatalf("huge seller limit failed: %v", err)
	}
	if len(page) != 1 || page[0].ID != 3 {
		t.Fatalf("unexpected seller page under huge limit: %+v", page)
	}
	page, err = env.engine.ActiveListings(math.MaxUint64, math.MaxUint64)
	if err != nil || len(page) != 0 {
		t.Fatalf("out-of-range huge window: want empty, got %d (err %v)", len(page), err)
	}
}

func TestActiveListingsDropSettledAndCancelled(t *testing.T) {
	env := newTestEnv(t)
	ids := seedListings(t, env, seller, 4)
	env.state.setBalance(buyer, 100_000)

	if err := env.engine.BuyNFT(buyer, ids[1], big.NewInt(2_000)); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if err := env.engine.CancelListing(seller, ids[2]); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	page, err := env.engine.ActiveListings(0, 10)
	if err != nil {
		t.Fatalf("page failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[0] || page[1].ID != ids[3] {
		t.Fatalf("unexpected active set: %+v", page)
	}
	total, err := env.engine.TotalListings()
	if err != nil || total != 4 {
		t.Fatalf("total listings: want 4, got %d (err %v)", total, err)
	}
}

func TestListingsBySellerIncludesHistorical(t *testing.T) {
	env := newTestEnv(t)
	ids := seedListings(t, env, seller, 3)
	seedListings(t, env, buyer, 2)
	if err := env.engine.CancelListing(seller, ids[0]); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	page, err := env.engine.ListingsBySeller(seller, 0, 10)
	if err != nil {
		t.Fatalf("seller page failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("seller history: want 3 listings, got %d", len(page))
	}
	if page[0].Active {
		t.Fatalf("cancelled listing should carry Active=false")
	}
	if !page[1].Active || !page[2].Active {
		t.Fatalf("live listings should carry Active=true")
	}

	page, err = env.engine.ListingsBySeller(seller, 1, 1)
	if err != nil || len(page) != 1 || page[0].ID != ids[1] {
		t.Fatalf("unexpected seller window: %+v (err %v)", page, err)
	}
	page, err = env.engine.ListingsBySeller(addr(0x77), 0, 10)
	if err != nil || len(page) != 0 {
		t.Fatalf("unknown seller: want empty, got %d (err %v)", len(page), err)
	}
}

func TestListingByTokenOnlyReportsActive(t *testing.T) {
	env := newTestEnv(t)
	tokenID := env.mintTo(t, seller, 0)
	id, err := env.engine.CreateListing(seller, env.collection.Address(), tokenID, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if listed, _ := env.engine.IsTokenListed(env.collection.Address(), tokenID); !listed {
		t.Fatalf("expected token listed")
	}
	if err := env.engine.CancelListing(seller, id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, ok, err := env.engine.ListingByToken(env.collection.Address(), tokenID); ok || err != nil {
		t.Fatalf("cancelled token still resolves: ok=%v err=%v", ok, err)
	}
	if _, ok, err := env.engine.ListingByToken(env.collection.Address(), 999); ok || err != nil {
		t.Fatalf("unknown token resolves: ok=%v err=%v", ok, err)
	}
}
