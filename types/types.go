// ════════════════════════════════════════════════════════════════════════════════════════════════
// Shared Resolver Types
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: Engine Data Model
//
// Description:
//   Field-element identifiers, storage-log observations, and the resolver's
//   output mapping. Field elements use gnark-crypto's stark-curve fp.Element,
//   which is a comparable value type and therefore usable directly as a map
//   key across every stage.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package types

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/sugawarayuuta/sonnet"

	"main/utils"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// FIELD ELEMENT HELPERS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// FeltFromHex decodes a (0x-optional) hex string into a field element.
// Inputs wider than 32 bytes or containing non-hex characters are rejected;
// in-range 32-byte words are reduced mod p by SetBytes, matching how the
// chain itself interprets raw storage words.
func FeltFromHex(s string) (fp.Element, bool) {
	raw, ok := utils.ParseHexFelt(s)
	if !ok {
		return fp.Element{}, false
	}
	var e fp.Element
	e.SetBytes(raw[:])
	return e, true
}

// FeltHex renders a field element in the canonical 0x-prefixed 64-nibble form.
func FeltHex(e fp.Element) string {
	b := e.Bytes()
	return utils.EncodeHexFelt(b)
}

// FeltDecimal renders a field element as a base-10 balance string.
func FeltDecimal(e fp.Element) string {
	var v big.Int
	e.BigInt(&v)
	return v.String()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ENGINE DATA MODEL
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Observation is one historical write read from the storage log: the contract
// it belongs to, the storage slot written, the raw value blob, and the block
// height of the write. Value stays raw here — decoding (and the decode-as-zero
// policy for malformed blobs) is the merger's job, after the global
// latest-version winner for the (Contract, Slot) pair is known.
type Observation struct {
	Contract fp.Element // Token contract the write belongs to
	Slot     fp.Element // Storage slot written
	Value    []byte     // Raw value blob as stored in the log
	Version  int64      // Block height of the write; highest wins
}

// BalanceMapping is the resolver's sole output artifact:
// token → account → balance. Every requested token is present, even with an
// empty account map, so a token with no on-chain history is never silently
// dropped from the output.
type BalanceMapping map[fp.Element]map[fp.Element]fp.Element

// AddressSet holds the parsed, validated run inputs. Read-only after parsing.
type AddressSet struct {
	Accounts []fp.Element
	Tokens   []fp.Element
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INPUT FILE PARSING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// addressFile is the wire form of the input JSON:
// {"accounts":["0x..",...],"tokens":["0x..",...]}.
type addressFile struct {
	Accounts []string `json:"accounts"`
	Tokens   []string `json:"tokens"`
}

// ParseAddressFile decodes and validates the address file. Any malformed hex
// entry fails the whole run before scanning begins — input errors are hard
// errors, never skipped rows.
func ParseAddressFile(data []byte) (AddressSet, error) {
	var raw addressFile
	if err := sonnet.Unmarshal(data, &raw); err != nil {
		return AddressSet{}, fmt.Errorf("malformed address file: %w", err)
	}
	if len(raw.Accounts) == 0 {
		return AddressSet{}, fmt.Errorf("address file lists no accounts")
	}
	if len(raw.Tokens) == 0 {
		return AddressSet{}, fmt.Errorf("address file lists no tokens")
	}

	set := AddressSet{
		Accounts: make([]fp.Element, 0, len(raw.Accounts)),
		Tokens:   make([]fp.Element, 0, len(raw.Tokens)),
	}
	for _, s := range raw.Accounts {
		e, ok := FeltFromHex(s)
		if !ok {
			return AddressSet{}, fmt.Errorf("invalid account encoding: %q", s)
		}
		set.Accounts = append(set.Accounts, e)
	}
	for _, s := range raw.Tokens {
		e, ok := FeltFromHex(s)
		if !ok {
			return AddressSet{}, fmt.Errorf("invalid token encoding: %q", s)
		}
		set.Tokens = append(set.Tokens, e)
	}
	return set, nil
}
