// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🧪 TEST SUITE: STORAGE SLOT INDEX
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: Slot Derivation & Reverse Lookup Test Suite
//
// Description:
//   Validates selector derivation against the known ERC20_balances constant, slot derivation
//   purity, reverse-table probing under collision pressure, and worker-count invariance of the
//   parallel build.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package slotidx

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"golang.org/x/crypto/sha3"

	"main/utils"
)

// -----------------------------------------------------------------------------
// ░░ Helper Functions ░░
// -----------------------------------------------------------------------------

func feltFromUint(v uint64) fp.Element {
	var e fp.Element
	e.SetUint64(v)
	return e
}

func feltHex(e fp.Element) string {
	b := e.Bytes()
	return utils.EncodeHexFelt(b)
}

// -----------------------------------------------------------------------------
// ░░ Selector Derivation ░░
// -----------------------------------------------------------------------------

// The sn_keccak("ERC20_balances") digest is a protocol-level constant; any
// drift here would silently derive wrong slots for every account.
func TestBalancesSelectorConstant(t *testing.T) {
	const want = "0x03a4e8ec16e258a799fe707996fd5d21d42b29adc1499a370edf7f809d8c458a"
	if got := feltHex(BalancesSelector()); got != want {
		t.Fatalf("BalancesSelector() = %s, want %s", got, want)
	}
}

func TestStarknetKeccakMasksTo250Bits(t *testing.T) {
	inputs := [][]byte{[]byte(""), []byte("ERC20_balances"), []byte("ERC20_allowances"), {0xFF, 0x00, 0xFF}}
	for _, in := range inputs {
		e := StarknetKeccak(in)
		b := e.Bytes()
		if b[0] > 0x03 {
			t.Fatalf("StarknetKeccak(%q) exceeds 250 bits: top byte %#x", in, b[0])
		}
	}
}

// Cross-check the masking against a raw keccak256 of the same input.
func TestStarknetKeccakMatchesRawKeccak(t *testing.T) {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("ERC20_balances"))
	digest := h.Sum(nil)
	digest[0] &= 0x03

	var want fp.Element
	want.SetBytes(digest)
	got := StarknetKeccak([]byte("ERC20_balances"))
	if !got.Equal(&want) {
		t.Fatalf("StarknetKeccak = %s, want %s", feltHex(got), feltHex(want))
	}
}

// -----------------------------------------------------------------------------
// ░░ Slot Derivation ░░
// -----------------------------------------------------------------------------

func TestDeriveSlotDeterministic(t *testing.T) {
	selector := BalancesSelector()
	account := feltFromUint(0xDEADBEEF)

	first := DeriveSlot(&selector, &account)
	second := DeriveSlot(&selector, &account)
	if !first.Equal(&second) {
		t.Fatal("DeriveSlot is not deterministic for identical inputs")
	}

	other := feltFromUint(0xDEADBEF0)
	otherSlot := DeriveSlot(&selector, &other)
	if first.Equal(&otherSlot) {
		t.Fatal("distinct accounts derived the same slot")
	}
}

func TestDeriveSlotNonZero(t *testing.T) {
	selector := BalancesSelector()
	for v := uint64(1); v <= 64; v++ {
		account := feltFromUint(v)
		slot := DeriveSlot(&selector, &account)
		if slot.IsZero() {
			t.Fatalf("derived slot for account %d is the empty sentinel", v)
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Reverse Table: Put / Get Semantics ░░
// -----------------------------------------------------------------------------

func TestIndexPutGet(t *testing.T) {
	idx := NewIndex(16)
	selector := BalancesSelector()

	accounts := make([]fp.Element, 16)
	slots := make([]fp.Element, 16)
	for i := range accounts {
		accounts[i] = feltFromUint(uint64(i + 1))
		slots[i] = DeriveSlot(&selector, &accounts[i])
		idx.Put(slots[i], accounts[i])
	}

	for i := range accounts {
		got, ok := idx.Get(&slots[i])
		if !ok || !got.Equal(&accounts[i]) {
			t.Fatalf("Get(slot[%d]) = %s,%v ; want %s,true", i, feltHex(got), ok, feltHex(accounts[i]))
		}
	}
	if idx.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", idx.Len())
	}
}

func TestIndexMiss(t *testing.T) {
	idx := NewIndex(4)
	selector := BalancesSelector()
	account := feltFromUint(7)
	idx.Put(DeriveSlot(&selector, &account), account)

	foreign := feltFromUint(0xABCDEF) // not a derived slot
	if _, ok := idx.Get(&foreign); ok {
		t.Fatal("Get on a foreign slot should miss")
	}
}

func TestIndexOverwrite(t *testing.T) {
	idx := NewIndex(4)
	slot := feltFromUint(42)
	first := feltFromUint(100)
	second := feltFromUint(200)

	idx.Put(slot, first)
	idx.Put(slot, second)

	got, ok := idx.Get(&slot)
	if !ok || !got.Equal(&second) {
		t.Fatalf("after overwrite Get = %s,%v ; want %s,true", feltHex(got), ok, feltHex(second))
	}
	if idx.Len() != 1 {
		t.Fatalf("Len() after overwrite = %d, want 1", idx.Len())
	}
}

// -----------------------------------------------------------------------------
// ░░ Probing Under Load ░░
// -----------------------------------------------------------------------------

func TestIndexCollisionPressure(t *testing.T) {
	const n = 2048
	idx := NewIndex(n)
	selector := BalancesSelector()

	accounts := make([]fp.Element, n)
	slots := make([]fp.Element, n)
	for i := 0; i < n; i++ {
		accounts[i] = feltFromUint(uint64(i) + 1)
		slots[i] = DeriveSlot(&selector, &accounts[i])
		idx.Put(slots[i], accounts[i])
	}

	for i := 0; i < n; i++ {
		got, ok := idx.Get(&slots[i])
		if !ok || !got.Equal(&accounts[i]) {
			t.Fatalf("entry %d lost under probe pressure", i)
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Parallel Build ░░
// -----------------------------------------------------------------------------

func TestBuildWorkerCountInvariance(t *testing.T) {
	selector := BalancesSelector()
	accounts := make([]fp.Element, 3000)
	for i := range accounts {
		accounts[i] = feltFromUint(uint64(i) + 1)
	}

	serial := Build(selector, accounts, 1)
	parallel := Build(selector, accounts, 8)

	if serial.Len() != parallel.Len() {
		t.Fatalf("worker count changed table size: %d vs %d", serial.Len(), parallel.Len())
	}
	for i := range accounts {
		slot := DeriveSlot(&selector, &accounts[i])
		a, okA := serial.Get(&slot)
		b, okB := parallel.Get(&slot)
		if !okA || !okB || !a.Equal(&b) {
			t.Fatalf("account %d resolves differently under 1 vs 8 workers", i)
		}
	}
}

func TestBuildDuplicateAccountsCollapse(t *testing.T) {
	selector := BalancesSelector()
	account := feltFromUint(99)
	accounts := []fp.Element{account, account, account}

	idx := Build(selector, accounts, 2)
	if idx.Len() != 1 {
		t.Fatalf("duplicates should collapse to one slot, got Len() = %d", idx.Len())
	}
	slot := DeriveSlot(&selector, &account)
	if got, ok := idx.Get(&slot); !ok || !got.Equal(&account) {
		t.Fatal("collapsed entry lost its account binding")
	}
}
