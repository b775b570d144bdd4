// ════════════════════════════════════════════════════════════════════════════════════════════════
// Partitioned Storage-Log Scanner
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: Sharded SQLite Snapshot Scanner
//
// Description:
//   Executes key-range partitioned scans over the append-only storage_updates log. Work splits
//   into contiguous storage-key ordinal ranges, one shard per range; every shard owns its own
//   SQLite read handle for its whole lifetime and runs one of exactly two parameterized query
//   templates. A single shard failure aborts the whole scan.
//
// Correctness Note:
//   A slot's write history can straddle a range boundary, so shard outputs are PROVISIONAL:
//   only the merger's global max-version reduction yields the authoritative value per
//   (contract, slot) pair. With one shard the grouped template pushes that reduction into the
//   store instead.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package logscan

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	_ "github.com/mattn/go-sqlite3"

	"main/constants"
	"main/types"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// QUERY TEMPLATES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// The scanner's entire SQL surface: two fixed shapes, parameterized by a
// token-IN-list and (for the range template) a storage-key ordinal interval.
// Only the placeholder count varies with the token count.

// rangeTemplate returns every write whose storage key falls inside a shard's
// ordinal range. Per-(contract, slot) reduction is deferred to the merger.
const rangeTemplate = `
SELECT su.contract_address_id, sa.` + constants.ColumnStorageAddr + `, su.` + constants.ColumnStorageValue + `, su.` + constants.ColumnBlockNumber + `
FROM ` + constants.TableStorageUpdates + ` su
JOIN ` + constants.TableStorageKeys + ` sa ON sa.id = su.storage_address_id
WHERE su.contract_address_id IN (%s)
  AND sa.id BETWEEN ? AND ?`

// groupedTemplate performs the max-version reduction store-side. SQLite's
// bare-column rule guarantees the selected storage_value comes from the row
// that supplied MAX(block_number). Used only by single-shard scans, where no
// cross-shard re-reduction exists to catch split histories.
const groupedTemplate = `
SELECT su.contract_address_id, sa.` + constants.ColumnStorageAddr + `, su.` + constants.ColumnStorageValue + `, MAX(su.` + constants.ColumnBlockNumber + `)
FROM ` + constants.TableStorageUpdates + ` su
JOIN ` + constants.TableStorageKeys + ` sa ON sa.id = su.storage_address_id
WHERE su.contract_address_id IN (%s)
GROUP BY su.contract_address_id, su.storage_address_id`

// contractLookup is the point query resolving a token's raw 32-byte address
// to its log-internal contract id.
const contractLookup = `SELECT id FROM ` + constants.TableContracts + ` WHERE ` + constants.ColumnContractAddr + ` = ?`

// keyBounds yields the storage-key ordinal space the range template
// partitions. NULLs when the snapshot holds no storage keys at all.
const keyBounds = `SELECT MIN(id), MAX(id) FROM ` + constants.TableStorageKeys

// placeholders renders "?,?,...,?" for an IN list of n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SHARD DESCRIPTORS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Shard identifies one partition of the scan workload.
type Shard struct {
	Index int // 0-based shard ordinal
	Count int // total shards in the run
}

// Range computes this shard's contiguous, disjoint storage-key ordinal
// interval inside [min, max]. The remainder spreads across the first shards
// so no two shards differ by more than one key.
func (s Shard) Range(min, max int64) (int64, int64) {
	total := max - min + 1
	per := total / int64(s.Count)
	extra := total % int64(s.Count)

	lo := min + per*int64(s.Index)
	if int64(s.Index) < extra {
		lo += int64(s.Index)
	} else {
		lo += extra
	}
	size := per
	if int64(s.Index) < extra {
		size++
	}
	return lo, lo + size - 1
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SCANNER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Scanner runs partitioned scans of one storage snapshot for one token set.
// The snapshot is assumed immutable for the scan's duration; the scanner
// never writes.
type Scanner struct {
	dbPath string
	tokens []fp.Element
}

// NewScanner prepares a scanner for the snapshot at dbPath restricted to the
// given token contracts.
func NewScanner(dbPath string, tokens []fp.Element) *Scanner {
	return &Scanner{dbPath: dbPath, tokens: tokens}
}

// openHandle opens an independent read handle. SQLite handles must not be
// shared across shards, so every caller owns and closes its own.
func (s *Scanner) openHandle() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", s.dbPath, err)
	}
	return db, nil
}

// resolveContracts point-looks-up each requested token's contract id.
// Tokens absent from the snapshot are skipped — a token with no storage
// history is an empty result, not an error. Returns the id list for the IN
// clause plus the id → token mapping used to tag observations.
func (s *Scanner) resolveContracts(db *sql.DB) ([]int64, map[int64]fp.Element, error) {
	ids := make([]int64, 0, len(s.tokens))
	byID := make(map[int64]fp.Element, len(s.tokens))

	stmt, err := db.Prepare(contractLookup)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare contract lookup: %w", err)
	}
	defer stmt.Close()

	for i := range s.tokens {
		raw := s.tokens[i].Bytes()
		var id int64
		err := stmt.QueryRow(raw[:]).Scan(&id)
		switch {
		case err == sql.ErrNoRows:
			continue
		case err != nil:
			return nil, nil, fmt.Errorf("contract lookup: %w", err)
		}
		ids = append(ids, id)
		byID[id] = s.tokens[i]
	}
	return ids, byID, nil
}

// storageKeyBounds reads the ordinal interval the shards partition.
func (s *Scanner) storageKeyBounds(db *sql.DB) (int64, int64, bool, error) {
	var min, max sql.NullInt64
	if err := db.QueryRow(keyBounds).Scan(&min, &max); err != nil {
		return 0, 0, false, fmt.Errorf("storage key bounds: %w", err)
	}
	if !min.Valid || !max.Valid {
		return 0, 0, false, nil // empty snapshot
	}
	return min.Int64, max.Int64, true, nil
}

// scanShard executes one shard's template and collects its raw observations.
// Observations are narrowed to the requested contracts only; slot filtering
// is deliberately left to the merger.
func (s *Scanner) scanShard(shard Shard, lo, hi int64, ids []int64, byID map[int64]fp.Element) ([]types.Observation, error) {
	db, err := s.openHandle()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := groupedTemplate
	args := make([]any, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	if shard.Count > 1 {
		query = rangeTemplate
		args = append(args, lo, hi)
	}
	query = fmt.Sprintf(query, placeholders(len(ids)))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("partition query: %w", err)
	}
	defer rows.Close()

	var out []types.Observation
	for rows.Next() {
		var (
			contractID int64
			slotBlob   []byte
			valueBlob  []byte
			version    int64
		)
		if err := rows.Scan(&contractID, &slotBlob, &valueBlob, &version); err != nil {
			return nil, fmt.Errorf("row decode: %w", err)
		}

		obs := types.Observation{
			Contract: byID[contractID],
			Value:    append([]byte(nil), valueBlob...), // blob memory is reused by the driver
			Version:  version,
		}
		obs.Slot.SetBytes(slotBlob)
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return out, nil
}

// ScanAll fans the scan out across shardCount partitions and joins the
// results, indexed by shard. Any single shard failure aborts the whole run
// with that shard's identity; sibling shards run to completion and their
// results are discarded with the error.
func (s *Scanner) ScanAll(shardCount int) ([][]types.Observation, error) {
	if shardCount < 1 {
		shardCount = 1
	}
	if shardCount > constants.MaxShardCount {
		shardCount = constants.MaxShardCount
	}

	db, err := s.openHandle()
	if err != nil {
		return nil, err
	}
	ids, byID, err := s.resolveContracts(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	min, max, present, err := s.storageKeyBounds(db)
	db.Close()
	if err != nil {
		return nil, err
	}

	results := make([][]types.Observation, shardCount)
	if len(ids) == 0 || !present {
		return results, nil // nothing to scan; merger still seeds every token
	}
	if int64(shardCount) > max-min+1 {
		shardCount = int(max - min + 1)
		results = results[:shardCount]
	}

	errs := make([]error, shardCount)
	var wg sync.WaitGroup
	for i := 0; i < shardCount; i++ {
		wg.Add(1)
		go func(shard Shard) {
			defer wg.Done()
			lo, hi := shard.Range(min, max)
			results[shard.Index], errs[shard.Index] = s.scanShard(shard, lo, hi, ids, byID)
		}(Shard{Index: i, Count: shardCount})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("scan failed: shard %d: %w", i, err)
		}
	}
	return results, nil
}
