// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🧪 TEST SUITE: PARTITIONED LOG SCANNER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: Sharded Snapshot Scan Test Suite
//
// Description:
//   Validates shard range arithmetic (disjoint, contiguous, complete coverage), observation
//   collection against synthetic snapshots, the empty-history and unknown-token paths, the
//   single-shard grouped reduction, and shard-failure identity propagation.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package logscan

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	_ "github.com/mattn/go-sqlite3"
)

// -----------------------------------------------------------------------------
// ░░ Snapshot Fixtures ░░
// -----------------------------------------------------------------------------

const snapshotSchema = `
CREATE TABLE contract_addresses (
	id INTEGER PRIMARY KEY,
	contract_address BLOB NOT NULL
);
CREATE TABLE storage_addresses (
	id INTEGER PRIMARY KEY,
	storage_address BLOB NOT NULL
);
CREATE TABLE storage_updates (
	id INTEGER PRIMARY KEY,
	contract_address_id INTEGER NOT NULL,
	storage_address_id INTEGER NOT NULL,
	storage_value BLOB NOT NULL,
	block_number INTEGER NOT NULL
);`

func feltFromUint(v uint64) fp.Element {
	var e fp.Element
	e.SetUint64(v)
	return e
}

func newSnapshot(t *testing.T) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(snapshotSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return path, db
}

func addContract(t *testing.T, db *sql.DB, id int64, token fp.Element) {
	t.Helper()
	raw := token.Bytes()
	if _, err := db.Exec(`INSERT INTO contract_addresses (id, contract_address) VALUES (?, ?)`, id, raw[:]); err != nil {
		t.Fatalf("insert contract: %v", err)
	}
}

func addStorageKey(t *testing.T, db *sql.DB, id int64, slot fp.Element) {
	t.Helper()
	raw := slot.Bytes()
	if _, err := db.Exec(`INSERT INTO storage_addresses (id, storage_address) VALUES (?, ?)`, id, raw[:]); err != nil {
		t.Fatalf("insert storage key: %v", err)
	}
}

func addUpdate(t *testing.T, db *sql.DB, contractID, storageID int64, value []byte, version int64) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO storage_updates (contract_address_id, storage_address_id, storage_value, block_number) VALUES (?, ?, ?, ?)`,
		contractID, storageID, value, version); err != nil {
		t.Fatalf("insert update: %v", err)
	}
}

func valueBytes(v uint64) []byte {
	e := feltFromUint(v)
	raw := e.Bytes()
	return raw[:]
}

// -----------------------------------------------------------------------------
// ░░ Shard Range Arithmetic ░░
// -----------------------------------------------------------------------------

func TestShardRangeCoversKeySpace(t *testing.T) {
	bounds := [][2]int64{{1, 1}, {1, 2}, {1, 100}, {5, 17}, {0, 1_000_000}}
	for _, b := range bounds {
		for count := 1; count <= 7; count++ {
			if int64(count) > b[1]-b[0]+1 {
				continue
			}
			next := b[0]
			for i := 0; i < count; i++ {
				lo, hi := (Shard{Index: i, Count: count}).Range(b[0], b[1])
				if lo != next {
					t.Fatalf("bounds %v count %d shard %d: lo = %d, want %d", b, count, i, lo, next)
				}
				if hi < lo {
					t.Fatalf("bounds %v count %d shard %d: empty range %d..%d", b, count, i, lo, hi)
				}
				next = hi + 1
			}
			if next != b[1]+1 {
				t.Fatalf("bounds %v count %d: coverage ends at %d, want %d", b, count, next-1, b[1])
			}
		}
	}
}

func TestShardRangeSpreadsRemainder(t *testing.T) {
	// 10 keys over 3 shards: sizes must be 4,3,3.
	sizes := []int64{}
	for i := 0; i < 3; i++ {
		lo, hi := (Shard{Index: i, Count: 3}).Range(1, 10)
		sizes = append(sizes, hi-lo+1)
	}
	if sizes[0] != 4 || sizes[1] != 3 || sizes[2] != 3 {
		t.Fatalf("shard sizes = %v, want [4 3 3]", sizes)
	}
}

// -----------------------------------------------------------------------------
// ░░ Observation Collection ░░
// -----------------------------------------------------------------------------

func TestScanCollectsObservations(t *testing.T) {
	path, db := newSnapshot(t)
	token := feltFromUint(0x1111)
	slotA := feltFromUint(0xAAAA)
	slotB := feltFromUint(0xBBBB)

	addContract(t, db, 1, token)
	addStorageKey(t, db, 1, slotA)
	addStorageKey(t, db, 2, slotB)
	addUpdate(t, db, 1, 1, valueBytes(1000), 100)
	addUpdate(t, db, 1, 1, valueBytes(2000), 200)
	addUpdate(t, db, 1, 2, valueBytes(3000), 150)

	scanner := NewScanner(path, []fp.Element{token})
	shards, err := scanner.ScanAll(2)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}

	total := 0
	for _, shard := range shards {
		for i := range shard {
			obs := &shard[i]
			if !obs.Contract.Equal(&token) {
				t.Fatal("observation tagged with wrong contract")
			}
			if !obs.Slot.Equal(&slotA) && !obs.Slot.Equal(&slotB) {
				t.Fatal("observation carries unknown slot")
			}
			total++
		}
	}
	if total != 3 {
		t.Fatalf("collected %d observations, want 3 (range template must not reduce)", total)
	}
}

func TestScanNarrowsToRequestedTokens(t *testing.T) {
	path, db := newSnapshot(t)
	wanted := feltFromUint(0x1111)
	other := feltFromUint(0x2222)
	slot := feltFromUint(0xAAAA)

	addContract(t, db, 1, wanted)
	addContract(t, db, 2, other)
	addStorageKey(t, db, 1, slot)
	addUpdate(t, db, 1, 1, valueBytes(10), 100)
	addUpdate(t, db, 2, 1, valueBytes(20), 100) // foreign contract's write

	scanner := NewScanner(path, []fp.Element{wanted})
	shards, err := scanner.ScanAll(1)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	for _, shard := range shards {
		for i := range shard {
			if !shard[i].Contract.Equal(&wanted) {
				t.Fatal("scan leaked a non-requested contract's rows")
			}
		}
	}
}

func TestScanUnknownTokenEmpty(t *testing.T) {
	path, db := newSnapshot(t)
	addContract(t, db, 1, feltFromUint(0x1111))
	addStorageKey(t, db, 1, feltFromUint(0xAAAA))
	addUpdate(t, db, 1, 1, valueBytes(10), 100)

	scanner := NewScanner(path, []fp.Element{feltFromUint(0x9999)})
	shards, err := scanner.ScanAll(4)
	if err != nil {
		t.Fatalf("unknown token must not error: %v", err)
	}
	for _, shard := range shards {
		if len(shard) != 0 {
			t.Fatal("unknown token produced observations")
		}
	}
}

func TestScanEmptySnapshot(t *testing.T) {
	path, db := newSnapshot(t)
	addContract(t, db, 1, feltFromUint(0x1111))
	// no storage keys, no updates

	scanner := NewScanner(path, []fp.Element{feltFromUint(0x1111)})
	shards, err := scanner.ScanAll(4)
	if err != nil {
		t.Fatalf("empty snapshot must not error: %v", err)
	}
	for _, shard := range shards {
		if len(shard) != 0 {
			t.Fatal("empty snapshot produced observations")
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Single-Shard Grouped Reduction ░░
// -----------------------------------------------------------------------------

func TestSingleShardGroupsToLatest(t *testing.T) {
	path, db := newSnapshot(t)
	token := feltFromUint(0x1111)
	slot := feltFromUint(0xAAAA)

	addContract(t, db, 1, token)
	addStorageKey(t, db, 1, slot)
	addUpdate(t, db, 1, 1, valueBytes(1000), 100)
	addUpdate(t, db, 1, 1, valueBytes(2000), 200)

	scanner := NewScanner(path, []fp.Element{token})
	shards, err := scanner.ScanAll(1)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(shards) != 1 || len(shards[0]) != 1 {
		t.Fatalf("grouped scan returned %d shards / %d rows, want 1 / 1", len(shards), len(shards[0]))
	}
	obs := shards[0][0]
	if obs.Version != 200 {
		t.Fatalf("grouped scan kept version %d, want 200", obs.Version)
	}
	var want fp.Element
	want.SetBytes(obs.Value)
	latest := feltFromUint(2000)
	if !want.Equal(&latest) {
		t.Fatal("grouped scan kept a superseded value")
	}
}

// -----------------------------------------------------------------------------
// ░░ Failure Propagation ░░
// -----------------------------------------------------------------------------

func TestShardFailureCarriesIdentity(t *testing.T) {
	// Snapshot with contract and storage-key tables but no storage_updates:
	// contract resolution and bounds succeed, every shard's query fails.
	path := filepath.Join(t.TempDir(), "broken.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`
		CREATE TABLE contract_addresses (id INTEGER PRIMARY KEY, contract_address BLOB NOT NULL);
		CREATE TABLE storage_addresses (id INTEGER PRIMARY KEY, storage_address BLOB NOT NULL);`); err != nil {
		t.Fatalf("schema: %v", err)
	}
	token := feltFromUint(0x1111)
	addContract(t, db, 1, token)
	addStorageKey(t, db, 1, feltFromUint(0xAAAA))

	scanner := NewScanner(path, []fp.Element{token})
	_, err = scanner.ScanAll(2)
	if err == nil {
		t.Fatal("scan over broken snapshot must fail")
	}
	if !strings.Contains(err.Error(), "scan failed: shard ") {
		t.Fatalf("error %q does not identify the failing shard", err)
	}
}
