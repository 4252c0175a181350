package payments

import (
	"errors"
	"math/big"
	"testing"

	"melodia/core/types"
)

type mockLedgerState struct {
	pendings map[types.Address]*big.Int
	accounts map[string]*types.Account
}

func newMockLedgerState() *mockLedgerState {
	return &mockLedgerState{
		pendings: make(map[types.Address]*big.Int),
		accounts: make(map[string]*types.Account),
	}
}

func (m *mockLedgerState) PendingGet(beneficiary types.Address) (*big.Int, error) {
	pending, ok := m.pendings[beneficiary]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(pending), nil
}

func (m *mockLedgerState) PendingPut(beneficiary types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		delete(m.pendings, beneficiary)
		return nil
	}
	m.pendings[beneficiary] = new(big.Int).Set(amount)
	return nil
}

func (m *mockLedgerState) GetAccount(addr []byte) (*types.Account, error) {
	if acc, ok := m.accounts[string(addr)]; ok {
		return acc.Clone(), nil
	}
	return nil, nil
}

func (m *mockLedgerState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		delete(m.accounts, string(addr))
		return nil
	}
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *mockLedgerState) setBalance(addr types.Address, amount int64) {
	m.accounts[string(addr[:])] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockLedgerState) balance(addr types.Address) *big.Int {
	if acc, ok := m.accounts[string(addr[:])]; ok && acc.Balance != nil {
		return new(big.Int).Set(acc.Balance)
	}
	return big.NewInt(0)
}

func (m *mockLedgerState) pendingSum() *big.Int {
	total := big.NewInt(0)
	for _, pending := range m.pendings {
		total = new(big.Int).Add(total, pending)
	}
	return total
}

func addr(last byte) types.Address {
	var out types.Address
	out[19] = last
	return out
}

func newTestLedger(state *mockLedgerState, vault types.Address) *Ledger {
	ledger := NewLedger("test")
	ledger.SetState(state)
	ledger.SetVault(vault)
	return ledger
}

func TestRecordPaymentAccumulates(t *testing.T) {
	state := newMockLedgerState()
	ledger := newTestLedger(state, addr(0xAA))
	beneficiary := addr(0x01)

	if err := ledger.RecordPayment(beneficiary, big.NewInt(100)); err != nil {
		t.Fatalf("first credit failed: %v", err)
	}
	if err := ledger.RecordPayment(beneficiary, big.NewInt(50)); err != nil {
		t.Fatalf("second credit failed: %v", err)
	}
	pending, err := ledger.PendingPayment(beneficiary)
	if err != nil {
		t.Fatalf("pending read failed: %v", err)
	}
	if pending.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("unexpected pending balance: %s", pending)
	}
}

func TestRecordPaymentZeroAndNullAreNoOps(t *testing.T) {
	state := newMockLedgerState()
	ledger := newTestLedger(state, addr(0xAA))

	if err := ledger.RecordPayment(addr(0x01), big.NewInt(0)); err != nil {
		t.Fatalf("zero credit should be a no-op: %v", err)
	}
	if err := ledger.RecordPayment(addr(0x01), nil); err != nil {
		t.Fatalf("nil credit should be a no-op: %v", err)
	}
	if err := ledger.RecordPayment(types.ZeroAddress, big.NewInt(500)); err != nil {
		t.Fatalf("null-beneficiary credit should be a no-op: %v", err)
	}
	if len(state.pendings) != 0 {
		t.Fatalf("ghost entries created: %d", len(state.pendings))
	}
}

func TestPendingPaymentUnknownBeneficiaryIsZero(t *testing.T) {
	ledger := newTestLedger(newMockLedgerState(), addr(0xAA))
	pending, err := ledger.PendingPayment(addr(0x42))
	if err != nil {
		t.Fatalf("pending read failed: %v", err)
	}
	if pending.Sign() != 0 {
		t.Fatalf("expected zero pending, got %s", pending)
	}
}

func TestWithdrawZeroBalanceFails(t *testing.T) {
	state := newMockLedgerState()
	ledger := newTestLedger(state, addr(0xAA))
	state.setBalance(addr(0xAA), 1_000)
	if err := ledger.RecordPayment(addr(0x02), big.NewInt(77)); err != nil {
		t.Fatalf("seed credit failed: %v", err)
	}

	if _, err := ledger.Withdraw(addr(0x01)); !errors.Is(err, ErrNoPaymentsPending) {
		t.Fatalf("expected ErrNoPaymentsPending, got %v", err)
	}
	if pending, _ := ledger.PendingPayment(addr(0x02)); pending.Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("unrelated balance disturbed: %s", pending)
	}
}

func TestWithdrawDrainsFullBalance(t *testing.T) {
	state := newMockLedgerState()
	vault := addr(0xAA)
	caller := addr(0x01)
	ledger := newTestLedger(state, vault)
	state.setBalance(vault, 500)
	if err := ledger.RecordPayment(caller, big.NewInt(300)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	amount, err := ledger.Withdraw(caller)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if amount.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected withdrawal amount: %s", amount)
	}
	if pending, _ := ledger.PendingPayment(caller); pending.Sign() != 0 {
		t.Fatalf("pending not zeroed: %s", pending)
	}
	if got := state.balance(caller); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("caller not paid: %s", got)
	}
	if got := state.balance(vault); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("vault not debited: %s", got)
	}
}

func TestWithdrawUnderfundedVaultLeavesStateUntouched(t *testing.T) {
	state := newMockLedgerState()
	vault := addr(0xAA)
	caller := addr(0x01)
	ledger := newTestLedger(state, vault)
	state.setBalance(vault, 10)
	if err := ledger.RecordPayment(caller, big.NewInt(300)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	if _, err := ledger.Withdraw(caller); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if pending, _ := ledger.PendingPayment(caller); pending.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("pending mutated on failed withdrawal: %s", pending)
	}
	if got := state.balance(vault); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("vault mutated on failed withdrawal: %s", got)
	}
}

func TestLedgerConservation(t *testing.T) {
	state := newMockLedgerState()
	vault := addr(0xAA)
	ledger := newTestLedger(state, vault)
	state.setBalance(vault, 10_000)

	recorded := big.NewInt(0)
	withdrawn := big.NewInt(0)
	credits := []struct {
		beneficiary types.Address
		amount      int64
	}{
		{addr(0x01), 100},
		{addr(0x02), 250},
		{addr(0x01), 50},
		{addr(0x03), 0},
		{types.ZeroAddress, 999},
		{addr(0x02), 75},
	}
	for _, credit := range credits {
		if err := ledger.RecordPayment(credit.beneficiary, big.NewInt(credit.amount)); err != nil {
			t.Fatalf("credit failed: %v", err)
		}
		if credit.amount > 0 && !types.IsZeroAddress(credit.beneficiary) {
			recorded = new(big.Int).Add(recorded, big.NewInt(credit.amount))
		}
		check := new(big.Int).Add(state.pendingSum(), withdrawn)
		if check.Cmp(recorded) != 0 {
			t.Fatalf("conservation violated after credit: pending+withdrawn=%s recorded=%s", check, recorded)
		}
	}

	amount, err := ledger.Withdraw(addr(0x01))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	withdrawn = new(big.Int).Add(withdrawn, amount)
	check := new(big.Int).Add(state.pendingSum(), withdrawn)
	if check.Cmp(recorded) != 0 {
		t.Fatalf("conservation violated after withdrawal: pending+withdrawn=%s recorded=%s", check, recorded)
	}
}
