package marketplace

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"melodia/core/events"
	"melodia/core/types"
	"melodia/native/common"
	"melodia/native/payments"
	"melodia/native/registry"
)

var (
	ErrListingNotFound     = errors.New("marketplace: listing not found")
	ErrListingNotActive    = errors.New("marketplace: listing not active")
	ErrNotListingOwner     = errors.New("marketplace: caller is not the listing owner")
	ErrInsufficientFunds   = errors.New("marketplace: attached payment below listing price")
	ErrInsufficientBalance = errors.New("marketplace: insufficient balance")
	ErrInvalidPrice        = errors.New("marketplace: price must be positive")
	ErrUnknownCollection   = errors.New("marketplace: unknown token contract")
	ErrNonexistentToken    = errors.New("marketplace: token does not exist")
	ErrTokenAlreadyListed  = errors.New("marketplace: token already listed")

	errNilState    = errors.New("marketplace: state not configured")
	errNilRegistry = errors.New("marketplace: registry not configured")
	errVaultNotSet = errors.New("marketplace: vault not configured")
	errOwnerNotSet = errors.New("marketplace: fee owner not configured")
)

// ModuleName is the pause-switch and event namespace for the engine.
const ModuleName = "marketplace"

// defaultFeeBps is the market fee retained on every sale.
const defaultFeeBps uint32 = 250

type engineState interface {
	payments.LedgerState
	ListingGet(id uint64) (*Listing, bool, error)
	ListingPut(listing *Listing) error
	ListingCounterGet() (uint64, error)
	ListingCounterPut(count uint64) error
	TokenListingGet(contract types.Address, tokenID uint64) (uint64, bool, error)
	TokenListingPut(contract types.Address, tokenID uint64, listingID uint64) error
	TokenListingDelete(contract types.Address, tokenID uint64) error
	SellerListingsGet(seller types.Address) ([]uint64, error)
	SellerListingAppend(seller types.Address, listingID uint64) error
	ActiveListingsGet() ([]uint64, error)
	ActiveListingAdd(listingID uint64) error
	ActiveListingRemove(listingID uint64) error
}

// Engine manages the listing lifecycle: custody moves into the module vault
// at creation, the sale price is split into ledger credits on purchase, and
// custody leaves the vault on purchase or cancellation. All entry points
// finalise owned state before calling out to the token registry; a registry
// failure aborts the operation and the caller discards the mutation batch.
type Engine struct {
	state      engineState
	registries registry.Resolver
	emitter    events.Emitter
	ledger     *payments.Ledger
	pauses     common.PauseView
	guard      common.CallGuard
	owner      types.Address
	vault      types.Address
	feeBps     uint32
	nowFn      func() int64
}

// NewEngine creates a marketplace engine with the default fee schedule and a
// no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ledger:  payments.NewLedger(ModuleName),
		feeBps:  defaultFeeBps,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend shared by the engine and its ledger.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.ledger.SetState(state)
}

// SetRegistries configures the resolver used for custody and royalty lookups.
func (e *Engine) SetRegistries(r registry.Resolver) { e.registries = r }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	e.ledger.SetEmitter(emitter)
}

// SetPauses wires the operator pause switches.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetOwner configures the address credited with market fees.
func (e *Engine) SetOwner(addr types.Address) { e.owner = addr }

// SetVault configures the module account holding escrowed funds and tokens.
func (e *Engine) SetVault(addr types.Address) {
	e.vault = addr
	e.ledger.SetVault(addr)
}

// SetFeeBps overrides the market fee in basis points. Values above 10000 are
// rejected.
func (e *Engine) SetFeeBps(bps uint32) error {
	if bps > 10_000 {
		return fmt.Errorf("marketplace: fee bps out of range: %d", bps)
	}
	e.feeBps = bps
	return nil
}

// FeeBps returns the current market fee in basis points.
func (e *Engine) FeeBps() uint32 { return e.feeBps }

// SetNowFunc overrides the time source used for listing timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.registries == nil:
		return errNilRegistry
	case types.IsZeroAddress(e.vault):
		return errVaultNotSet
	case e.feeBps > 0 && types.IsZeroAddress(e.owner):
		return errOwnerNotSet
	}
	return nil
}

func (e *Engine) resolve(contract types.Address) (registry.Token, error) {
	token, ok := e.registries.Resolve(contract)
	if !ok || token == nil {
		return nil, ErrUnknownCollection
	}
	return token, nil
}

// transferNative moves native balance between accounts, failing when the
// source cannot cover the amount.
func (e *Engine) transferNative(from, to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("marketplace: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = ensureAccount(toAcc)
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// CreateListing records a new sale offer and moves custody of the token into
// the module vault. The seller must be the current owner on the registry.
// The listing record and its indices are written before the custody call so a
// reentrant registry cannot observe a transferred token without a listing.
func (e *Engine) CreateListing(seller, nftContract types.Address, tokenID uint64, price *big.Int) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	if err := e.guard.Enter(); err != nil {
		return 0, err
	}
	defer e.guard.Exit()
	if price == nil || price.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}
	token, err := e.resolve(nftContract)
	if err != nil {
		return 0, err
	}
	owner, ok := registry.ProbeOwner(token, tokenID)
	if !ok {
		return 0, ErrNonexistentToken
	}
	if owner != seller {
		return 0, ErrNotListingOwner
	}
	if _, listed, err := e.state.TokenListingGet(nftContract, tokenID); err != nil {
		return 0, err
	} else if listed {
		return 0, ErrTokenAlreadyListed
	}
	counter, err := e.state.ListingCounterGet()
	if err != nil {
		return 0, err
	}
	id := counter + 1
	if err := e.state.ListingCounterPut(id); err != nil {
		return 0, err
	}
	listing := &Listing{
		ID:            id,
		Seller:        seller,
		TokenContract: nftContract,
		TokenID:       tokenID,
		Price:         new(big.Int).Set(price),
		Active:        true,
		CreatedAt:     e.now(),
	}
	if err := e.state.ListingPut(listing); err != nil {
		return 0, err
	}
	if err := e.state.TokenListingPut(nftContract, tokenID, id); err != nil {
		return 0, err
	}
	if err := e.state.SellerListingAppend(seller, id); err != nil {
		return 0, err
	}
	if err := e.state.ActiveListingAdd(id); err != nil {
		return 0, err
	}
	if err := token.Transfer(seller, e.vault, tokenID); err != nil {
		return 0, fmt.Errorf("marketplace: custody transfer failed: %w", err)
	}
	e.emit(ListedEvent(listing))
	return id, nil
}

// BuyNFT settles an active listing. The attached payment moves into the
// vault, the listing deactivates before any payout is computed, and the
// price is split into royalty, market fee and seller proceeds as ledger
// credits. Custody moves to the buyer and any excess payment is refunded
// last.
func (e *Engine) BuyNFT(buyer types.Address, listingID uint64, paid *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	listing, ok, err := e.state.ListingGet(listingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrListingNotFound
	}
	if paid == nil || paid.Cmp(listing.Price) < 0 {
		return ErrInsufficientFunds
	}
	if !listing.Active {
		return ErrListingNotActive
	}
	attached := new(big.Int).Set(paid)
	if err := e.transferNative(buyer, e.vault, attached); err != nil {
		return err
	}
	listing.Active = false
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	if err := e.state.ActiveListingRemove(listingID); err != nil {
		return err
	}
	if err := e.state.TokenListingDelete(listing.TokenContract, listing.TokenID); err != nil {
		return err
	}
	token, err := e.resolve(listing.TokenContract)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Set(listing.Price)
	if receiver, royalty, ok := registry.QueryRoyaltyInfo(token, listing.TokenID, listing.Price); ok {
		if royalty.Cmp(remaining) > 0 {
			royalty = new(big.Int).Set(remaining)
		}
		if err := e.ledger.RecordPayment(receiver, royalty); err != nil {
			return err
		}
		remaining.Sub(remaining, royalty)
	}
	fee := new(big.Int).Mul(listing.Price, new(big.Int).SetUint64(uint64(e.feeBps)))
	fee.Div(fee, big.NewInt(10_000))
	if fee.Cmp(remaining) > 0 {
		fee = new(big.Int).Set(remaining)
	}
	if fee.Sign() > 0 {
		if err := e.ledger.RecordPayment(e.owner, fee); err != nil {
			return err
		}
		remaining.Sub(remaining, fee)
	}
	if err := e.ledger.RecordPayment(listing.Seller, remaining); err != nil {
		return err
	}
	if err := token.Transfer(e.vault, buyer, listing.TokenID); err != nil {
		return fmt.Errorf("marketplace: custody transfer failed: %w", err)
	}
	refund := new(big.Int).Sub(attached, listing.Price)
	if refund.Sign() > 0 {
		if err := e.transferNative(e.vault, buyer, refund); err != nil {
			return fmt.Errorf("%w: refund", payments.ErrTransferFailed)
		}
	}
	e.emit(SoldEvent(listing, buyer))
	return nil
}

// CancelListing deactivates a listing and returns custody to the seller.
func (e *Engine) CancelListing(caller types.Address, listingID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	listing, ok, err := e.state.ListingGet(listingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrListingNotFound
	}
	if listing.Seller != caller {
		return ErrNotListingOwner
	}
	if !listing.Active {
		return ErrListingNotActive
	}
	listing.Active = false
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	if err := e.state.ActiveListingRemove(listingID); err != nil {
		return err
	}
	if err := e.state.TokenListingDelete(listing.TokenContract, listing.TokenID); err != nil {
		return err
	}
	token, err := e.resolve(listing.TokenContract)
	if err != nil {
		return err
	}
	if err := token.Transfer(e.vault, listing.Seller, listing.TokenID); err != nil {
		return fmt.Errorf("marketplace: custody transfer failed: %w", err)
	}
	e.emit(CancelledEvent(listing))
	return nil
}

// WithdrawPayments drains the caller's pending balance from the module vault.
func (e *Engine) WithdrawPayments(caller types.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	return e.ledger.Withdraw(caller)
}

// PendingPayment returns the caller's withdrawable balance.
func (e *Engine) PendingPayment(beneficiary types.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.ledger.PendingPayment(beneficiary)
}
