// ════════════════════════════════════════════════════════════════════════════════════════════════
// Observation Merger
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: Global Latest-Wins Aggregator
//
// Description:
//   Folds raw shard observations into the final token → account → balance mapping. Re-reduces
//   max-version per (contract, slot) ACROSS all shards — key-range sharding can split one
//   slot's write history over a range boundary, so per-shard maxima are only provisional.
//   Slots that match no requested account are discarded silently; malformed value blobs decode
//   to zero instead of failing the run.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package balmerge

import (
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"

	"main/slotidx"
	"main/types"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MERGE STATE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// pairKey identifies one (contract, slot) write target.
type pairKey struct {
	contract fp.Element
	slot     fp.Element
}

// winner is the highest-version observation seen so far for a pair.
type winner struct {
	value   []byte
	version int64
}

// Stats counts the merge's soft anomalies and bookkeeping. SlotMisses is the
// expected majority case — a contract's storage holds many variables besides
// balances. DecodeErrors never abort the run; each one becomes a zero
// balance.
type Stats struct {
	Matched      int // observations whose slot matched a requested account
	Superseded   int // matched observations beaten by a higher version
	SlotMisses   int // observations discarded for foreign slots
	DecodeErrors int // winning values decoded as zero due to malformed blobs
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MERGE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// decodeValue interprets a winning value blob as a field element. Blobs wider
// than a field word are malformed log rows; per the resolver's best-effort
// policy they yield zero rather than an error. Anything in range reduces
// mod p exactly as the chain would.
func decodeValue(blob []byte) (fp.Element, bool) {
	var v fp.Element
	if len(blob) > fp.Bytes {
		return v, false
	}
	v.SetBytes(blob)
	return v, true
}

// Merge folds all shard outputs, in shard-index order, into a BalanceMapping.
//
// Shard order is fixed by the scanner, so the fold is deterministic run to
// run; a strictly-greater version is required to displace a winner, so a
// genuine version tie resolves to the first observation merged. The result
// seeds every requested token up front — a token with no history is present
// with an empty account map, never missing.
func Merge(tokens []fp.Element, shards [][]types.Observation, idx *slotidx.Index) (types.BalanceMapping, Stats) {
	var stats Stats

	winners := make(map[pairKey]winner)
	owners := make(map[pairKey]fp.Element)

	for _, shard := range shards {
		for i := range shard {
			obs := &shard[i]
			account, ok := idx.Get(&obs.Slot)
			if !ok {
				stats.SlotMisses++
				continue
			}
			stats.Matched++

			key := pairKey{contract: obs.Contract, slot: obs.Slot}
			if prev, seen := winners[key]; seen {
				if obs.Version <= prev.version {
					stats.Superseded++
					continue
				}
				stats.Superseded++
			} else {
				owners[key] = account
			}
			winners[key] = winner{value: obs.Value, version: obs.Version}
		}
	}

	mapping := make(types.BalanceMapping, len(tokens))
	for _, token := range tokens {
		if _, seen := mapping[token]; !seen {
			mapping[token] = make(map[fp.Element]fp.Element)
		}
	}

	for key, win := range winners {
		balances, requested := mapping[key.contract]
		if !requested {
			// Cannot happen: the scanner narrows to requested contracts.
			continue
		}
		value, ok := decodeValue(win.value)
		if !ok {
			stats.DecodeErrors++
		}
		balances[owners[key]] = value
	}

	return mapping, stats
}
