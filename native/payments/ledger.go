package payments

import (
	"errors"
	"fmt"
	"math/big"

	"melodia/core/events"
	"melodia/core/types"
	"melodia/native/common"
)

var (
	ErrNoPaymentsPending = errors.New("payments: no payments pending")
	ErrTransferFailed    = errors.New("payments: transfer failed")

	errNilState    = errors.New("payments: state not configured")
	errVaultNotSet = errors.New("payments: vault not configured")
)

// LedgerState is the persistence surface a pending-payments ledger needs. One
// ledger instance owns one namespaced pending table; the account table is
// shared with the owning engine.
type LedgerState interface {
	PendingGet(beneficiary types.Address) (*big.Int, error)
	PendingPut(beneficiary types.Address, amount *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Ledger accumulates withdrawable balances for beneficiaries. Credits are
// bookkeeping only; funds stay in the module vault until Withdraw pays the
// full balance out in one step.
type Ledger struct {
	state   LedgerState
	emitter events.Emitter
	vault   types.Address
	module  string
	guard   common.CallGuard
}

// NewLedger constructs a ledger for the named owning module with a no-op
// emitter. Callers can override the emitter via SetEmitter.
func NewLedger(module string) *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}, module: module}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state LedgerState) { l.state = state }

// SetVault configures the holding account funds are paid out from.
func (l *Ledger) SetVault(addr types.Address) { l.vault = addr }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// Vault returns the configured holding account.
func (l *Ledger) Vault() types.Address { return l.vault }

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(WrapEvent(evt))
}

// RecordPayment credits amount to the beneficiary's withdrawable balance.
// A zero or nil amount and the zero-address beneficiary are safe no-ops: no
// entry is created for either.
func (l *Ledger) RecordPayment(beneficiary types.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("payments: negative credit amount")
	}
	if types.IsZeroAddress(beneficiary) {
		return nil
	}
	pending, err := l.state.PendingGet(beneficiary)
	if err != nil {
		return err
	}
	if pending == nil {
		pending = big.NewInt(0)
	}
	updated := new(big.Int).Add(pending, amount)
	if err := l.state.PendingPut(beneficiary, updated); err != nil {
		return err
	}
	l.emit(PaymentRecordedEvent(l.module, types.HexAddr(beneficiary), amount.String(), updated.String()))
	return nil
}

// PendingPayment returns the withdrawable balance for the beneficiary, zero
// for addresses that were never credited.
func (l *Ledger) PendingPayment(beneficiary types.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	pending, err := l.state.PendingGet(beneficiary)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(pending), nil
}

// Withdraw pays out the caller's full pending balance from the module vault.
// The balance is zeroed before funds move; a vault that cannot cover the
// payout fails the operation before any mutation so the zeroing and the
// payout land together or not at all.
func (l *Ledger) Withdraw(caller types.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if err := l.guard.Enter(); err != nil {
		return nil, err
	}
	defer l.guard.Exit()
	if types.IsZeroAddress(l.vault) {
		return nil, errVaultNotSet
	}
	pending, err := l.state.PendingGet(caller)
	if err != nil {
		return nil, err
	}
	if pending == nil || pending.Sign() == 0 {
		return nil, ErrNoPaymentsPending
	}
	amount := new(big.Int).Set(pending)
	vaultAcc, err := l.state.GetAccount(l.vault[:])
	if err != nil {
		return nil, err
	}
	vaultAcc = ensureAccount(vaultAcc)
	if vaultAcc.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: vault underfunded", ErrTransferFailed)
	}
	if err := l.state.PendingPut(caller, big.NewInt(0)); err != nil {
		return nil, err
	}
	callerAcc, err := l.state.GetAccount(caller[:])
	if err != nil {
		return nil, err
	}
	callerAcc = ensureAccount(callerAcc)
	vaultAcc.Balance = new(big.Int).Sub(vaultAcc.Balance, amount)
	callerAcc.Balance = new(big.Int).Add(callerAcc.Balance, amount)
	if err := l.state.PutAccount(l.vault[:], vaultAcc); err != nil {
		return nil, err
	}
	if err := l.state.PutAccount(caller[:], callerAcc); err != nil {
		return nil, err
	}
	l.emit(PaymentWithdrawnEvent(l.module, types.HexAddr(caller), amount.String()))
	return amount, nil
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
