package streaming

import (
	"errors"
	"fmt"
	"math/big"

	"melodia/core/events"
	"melodia/core/types"
	"melodia/native/common"
	"melodia/native/payments"
	"melodia/native/registry"
)

var (
	ErrNonexistentToken    = errors.New("streaming: token does not exist")
	ErrInvalidListenCount  = errors.New("streaming: listen count must be positive")
	ErrInsufficientPayment = errors.New("streaming: attached payment below amount")
	ErrInsufficientBalance = errors.New("streaming: insufficient balance")
	ErrUnknownCollection   = errors.New("streaming: unknown token contract")

	errNilState    = errors.New("streaming: state not configured")
	errNilRegistry = errors.New("streaming: registry not configured")
	errVaultNotSet = errors.New("streaming: vault not configured")
)

// ModuleName is the pause-switch and event namespace for the engine.
const ModuleName = "streaming"

type engineState interface {
	payments.LedgerState
	ListenCountGet(contract types.Address, tokenID uint64) (uint64, error)
	ListenCountPut(contract types.Address, tokenID uint64, count uint64) error
	ContractListenTotalGet(contract types.Address) (uint64, error)
	ContractListenTotalPut(contract types.Address, total uint64) error
	ListenedTokensGet(contract types.Address) ([]uint64, error)
	ListenedTokenAdd(contract types.Address, tokenID uint64) error
}

// Engine records batched listen events and splits the attached payment
// between the current token holder and the original creator. Listen counters
// only ever grow; the per-contract total is maintained at write time so reads
// never loop over registry calls.
type Engine struct {
	state      engineState
	registries registry.Resolver
	emitter    events.Emitter
	ledger     *payments.Ledger
	pauses     common.PauseView
	guard      common.CallGuard
	vault      types.Address
}

// NewEngine creates a streaming engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ledger:  payments.NewLedger(ModuleName),
	}
}

// SetState configures the state backend shared by the engine and its ledger.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.ledger.SetState(state)
}

// SetRegistries configures the resolver used for ownership and royalty lookups.
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

// SetVault configures the module account holding streaming payments until
// withdrawal.
func (e *Engine) SetVault(addr types.Address) {
	e.vault = addr
	e.ledger.SetVault(addr)
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.registries == nil:
		return errNilRegistry
	case types.IsZeroAddress(e.vault):
		return errVaultNotSet
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

func (e *Engine) transferNative(from, to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("streaming: negative transfer amount")
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

// RecordBatchListens accumulates count listens for the token and splits
// amount between the current owner (streaming royalty share) and the
// original creator (remainder). When the registry cannot report royalty
// terms the whole amount is credited to the current owner. Excess attached
// payment is refunded to the caller last.
func (e *Engine) RecordBatchListens(caller, nftContract types.Address, tokenID, count uint64, amount, paid *big.Int) error {
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
	token, err := e.resolve(nftContract)
	if err != nil {
		return err
	}
	owner, ok := registry.ProbeOwner(token, tokenID)
	if !ok {
		return ErrNonexistentToken
	}
	if count == 0 {
		return ErrInvalidListenCount
	}
	charge := big.NewInt(0)
	if amount != nil {
		if amount.Sign() < 0 {
			return fmt.Errorf("streaming: negative payment amount")
		}
		charge = new(big.Int).Set(amount)
	}
	attached := big.NewInt(0)
	if paid != nil {
		attached = new(big.Int).Set(paid)
	}
	if attached.Cmp(charge) < 0 {
		return ErrInsufficientPayment
	}
	if err := e.transferNative(caller, e.vault, attached); err != nil {
		return err
	}
	previous, err := e.state.ListenCountGet(nftContract, tokenID)
	if err != nil {
		return err
	}
	if err := e.state.ListenCountPut(nftContract, tokenID, previous+count); err != nil {
		return err
	}
	if previous == 0 {
		if err := e.state.ListenedTokenAdd(nftContract, tokenID); err != nil {
			return err
		}
	}
	total, err := e.state.ContractListenTotalGet(nftContract)
	if err != nil {
		return err
	}
	if err := e.state.ContractListenTotalPut(nftContract, total+count); err != nil {
		return err
	}
	if charge.Sign() > 0 {
		if err := e.splitPayment(token, tokenID, owner, charge); err != nil {
			return err
		}
	}
	refund := new(big.Int).Sub(attached, charge)
	if refund.Sign() > 0 {
		if err := e.transferNative(e.vault, caller, refund); err != nil {
			return fmt.Errorf("%w: refund", payments.ErrTransferFailed)
		}
	}
	e.emit(BatchListensRecordedEvent(nftContract, tokenID, count, charge.String(), types.HexAddr(caller)))
	return nil
}

func (e *Engine) splitPayment(token registry.Token, tokenID uint64, owner types.Address, amount *big.Int) error {
	bps, creator, ok := registry.ProbeStreamingRoyalty(token, tokenID)
	if !ok {
		// Non-conforming registry: the current owner takes the whole amount.
		return e.ledger.RecordPayment(owner, amount)
	}
	royalty := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	royalty.Div(royalty, big.NewInt(10_000))
	if royalty.Sign() > 0 {
		if err := e.ledger.RecordPayment(owner, royalty); err != nil {
			return err
		}
	}
	remainder := new(big.Int).Sub(amount, royalty)
	return e.ledger.RecordPayment(creator, remainder)
}

// ListenCount returns the accumulated counter for the token. Existence is
// checked against the registry at query time, so tokens burned since their
// listens were recorded report as nonexistent here while still contributing
// to contract totals and rankings.
func (e *Engine) ListenCount(contract types.Address, tokenID uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	token, err := e.resolve(contract)
	if err != nil {
		return 0, err
	}
	if _, ok := registry.ProbeOwner(token, tokenID); !ok {
		return 0, ErrNonexistentToken
	}
	return e.state.ListenCountGet(contract, tokenID)
}

// TotalListenCount returns the per-contract accumulator maintained on the
// write path. It reads local state only; no registry calls.
func (e *Engine) TotalListenCount(contract types.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.ContractListenTotalGet(contract)
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
