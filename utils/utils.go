// utils.go — low-level helpers shared by the hasher, scanner & output paths.
package utils

import (
	"os"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Itoa renders a non-negative int without touching strconv's interning paths.
// Negative inputs render with a leading '-'; used only for log tags and
// counters.
//
//go:nosplit
//go:inline
func Itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// PrintWarning writes directly to stderr, bypassing fmt.
//
//go:nosplit
//go:inline
func PrintWarning(msg string) {
	os.Stderr.WriteString(msg)
}

///////////////////////////////////////////////////////////////////////////////
// Unaligned word loads (little-endian)
///////////////////////////////////////////////////////////////////////////////

//go:nosplit
//go:inline
func Load64(b []byte) uint64 { return *(*uint64)(unsafe.Pointer(&b[0])) }

///////////////////////////////////////////////////////////////////////////////
// Hex codecs for felt-width (≤64 nibble) strings
///////////////////////////////////////////////////////////////////////////////

// hexVal decodes one nibble; 0xFF marks an invalid character.
//
//go:nosplit
//go:inline
func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0xFF
}

// ParseHexFelt decodes a (0x-optional) hex string of at most 64 nibbles into
// a right-aligned 32-byte big-endian word. The second return is false for an
// empty body, an over-long body, or any non-hex character — the caller
// decides whether that is a hard input error or a skippable row.
//
//go:nosplit
func ParseHexFelt(s string) ([32]byte, bool) {
	var out [32]byte
	if len(s) >= 2 && s[0] == '0' && (s[1]|0x20) == 'x' {
		s = s[2:]
	}
	if len(s) == 0 || len(s) > 64 {
		return out, false
	}
	// Right-align: the last nibble of the string lands in out[31] low bits.
	shift := 0 // 0 = low nibble next, 1 = high nibble next
	pos := 31
	for i := len(s) - 1; i >= 0; i-- {
		v := hexVal(s[i])
		if v == 0xFF {
			return [32]byte{}, false
		}
		if shift == 0 {
			out[pos] = v
			shift = 1
		} else {
			out[pos] |= v << 4
			shift = 0
			pos--
		}
	}
	return out, true
}

// ParseHexU64 parses a (0x-optional) hex string into uint64, stopping at the
// first invalid nibble.
//
//go:nosplit
//go:inline
func ParseHexU64(b []byte) uint64 {
	j := 0
	if len(b) >= 2 && b[0] == '0' && (b[1]|0x20) == 'x' {
		j = 2
	}
	var u uint64
	for ; j < len(b) && j < 18; j++ { // max 16 nibbles = 64 bits
		c := b[j] | 0x20
		if c < '0' || c > 'f' || (c > '9' && c < 'a') {
			break
		}
		v := uint64(c - '0')
		if c > '9' {
			v -= 39 // 'a' → 10
		}
		u = (u << 4) | v
	}
	return u
}

const hexDigits = "0123456789abcdef"

// EncodeHexFelt renders a 32-byte word as the canonical 0x-prefixed,
// zero-padded 64-nibble form used by every output writer.
//
//go:nosplit
func EncodeHexFelt(w [32]byte) string {
	var buf [66]byte
	buf[0], buf[1] = '0', 'x'
	for i, b := range w {
		buf[2+i*2] = hexDigits[b>>4]
		buf[3+i*2] = hexDigits[b&0x0F]
	}
	return string(buf[:])
}

///////////////////////////////////////////////////////////////////////////////
// Misc – 64-bit avalanche mixer (MurmurHash3 finalizer)
///////////////////////////////////////////////////////////////////////////////

//go:nosplit
//go:inline
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
