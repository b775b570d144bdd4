// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ STORAGE SLOT INDEX
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: Slot Derivation & Reverse Lookup Table
//
// Description:
//   Derives, for every requested account, the storage slot a convention-following ERC-20
//   contract uses for that account's balance — Pedersen(selector, account) — and indexes the
//   results in a fixed-capacity open-addressing table for slot → account reverse lookups
//   during aggregation.
//
// Design Principles:
//   - Selector computed once from the storage-variable tag, passed in explicitly
//   - Embarrassingly parallel derivation: per-sector fan-out, index-aligned writes
//   - Fixed capacity with power-of-2 sizing for fast modulo operations
//   - Read-only after Build; safe for unsynchronized concurrent lookups
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package slotidx

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	pedersenhash "github.com/consensys/gnark-crypto/ecc/stark-curve/pedersen-hash"
	"golang.org/x/crypto/sha3"

	"main/constants"
	"main/utils"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SELECTOR DERIVATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// StarknetKeccak computes the starknet-keccak of data: keccak256 truncated to
// its low 250 bits so the digest always fits the stark field.
func StarknetKeccak(data []byte) fp.Element {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	digest := h.Sum(nil)
	digest[0] &= 0x03 // keep 250 bits

	var e fp.Element
	e.SetBytes(digest)
	return e
}

// BalancesSelector derives the map selector shared by every contract that
// follows the ERC20_balances storage convention. Pure; callers compute it
// once at startup and thread it through explicitly.
func BalancesSelector() fp.Element {
	return StarknetKeccak([]byte(constants.BalancesStorageTag))
}

// DeriveSlot binds an account to its expected balance slot for the given
// selector: Pedersen(selector, account).
func DeriveSlot(selector, account *fp.Element) fp.Element {
	return pedersenhash.Pedersen(selector, account)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// REVERSE LOOKUP TABLE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Index is a fixed-capacity, linear-probing slot → account table. Parallel
// arrays keep probe scans cache-friendly. The all-zero slot is the empty
// sentinel: a zero Pedersen output would require a hash preimage collision
// with the curve's shift point, so no derived slot can collide with it.
type Index struct {
	slots    []fp.Element // Slot array (zero = empty sentinel)
	accounts []fp.Element // Account array (parallel to slots)
	mask     uint64       // Size mask for fast modulo operation
	used     int          // Occupied slot count
}

// nextPow2 calculates the smallest power of 2 greater than or equal to n.
func nextPow2(n int) uint64 {
	s := uint64(1)
	for s < uint64(n) {
		s <<= 1
	}
	return s
}

// home computes a slot's ideal table position from an avalanche mix of its
// limbs. Pedersen outputs are already uniform; the mix just decorrelates the
// Montgomery representation from the power-of-2 mask.
//
//go:inline
func (idx *Index) home(slot *fp.Element) uint64 {
	return utils.Mix64(slot[0]^slot[3]) & idx.mask
}

// NewIndex creates a table sized for capacity entries with 2× headroom so
// probe chains stay short at 50% load factor.
func NewIndex(capacity int) *Index {
	if capacity < 1 {
		capacity = 1
	}
	sz := nextPow2(capacity * 2)
	return &Index{
		slots:    make([]fp.Element, sz),
		accounts: make([]fp.Element, sz),
		mask:     sz - 1,
	}
}

// Put inserts a slot → account binding. An existing slot is overwritten:
// duplicate accounts re-derive the same slot harmlessly, and two distinct
// accounts sharing a slot would need a Pedersen collision — accepted as
// effectively impossible rather than guarded against.
func (idx *Index) Put(slot, account fp.Element) {
	i := idx.home(&slot)
	for {
		if idx.slots[i].IsZero() {
			idx.slots[i] = slot
			idx.accounts[i] = account
			idx.used++
			return
		}
		if idx.slots[i].Equal(&slot) {
			idx.accounts[i] = account
			return
		}
		i = (i + 1) & idx.mask
	}
}

// Get returns the account whose derived slot matches, if any. Safe for
// unsynchronized concurrent use once Build has returned.
func (idx *Index) Get(slot *fp.Element) (fp.Element, bool) {
	i := idx.home(slot)
	for {
		if idx.slots[i].IsZero() {
			return fp.Element{}, false
		}
		if idx.slots[i].Equal(slot) {
			return idx.accounts[i], true
		}
		i = (i + 1) & idx.mask
	}
}

// Len reports the number of distinct slots indexed.
func (idx *Index) Len() int { return idx.used }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PARALLEL BUILD
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Build derives every account's balance slot and indexes the results.
// Derivation fans out across workers in fixed-size sectors claimed from an
// atomic cursor; each write is index-aligned into a preallocated buffer, so
// worker scheduling cannot reorder results. Insertions then replay in input
// order, keeping overwrite semantics deterministic. workers ≤ 0 means one
// per available core.
func Build(selector fp.Element, accounts []fp.Element, workers int) *Index {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(accounts) {
		workers = len(accounts)
	}
	if workers < 1 {
		workers = 1
	}

	derived := make([]fp.Element, len(accounts))
	var cursor atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				start := int(cursor.Add(constants.HashChunkSize)) - constants.HashChunkSize
				if start >= len(accounts) {
					return
				}
				end := start + constants.HashChunkSize
				if end > len(accounts) {
					end = len(accounts)
				}
				for i := start; i < end; i++ {
					derived[i] = pedersenhash.Pedersen(&selector, &accounts[i])
				}
			}
		}()
	}
	wg.Wait()

	idx := NewIndex(len(accounts))
	for i := range accounts {
		idx.Put(derived[i], accounts[i])
	}
	return idx
}
