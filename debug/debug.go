// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Alloc-light progress & error sink
//
// Purpose:
//   - Logs resolver stage transitions, per-stage wall times, and failure
//     diagnostics without pulling in a logging framework.
//   - Used only in cold paths: stage boundaries, shard failures, decode
//     warnings — never inside the per-row scan loop.
//
// Notes:
//   - Avoids fmt for the common tag+message case; direct stderr writes.
//
// ⚠️ Never invoke in hot loops — use only at stage granularity.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"time"

	"main/utils"
)

// DropError logs error diagnostics with a direct-concatenation strategy.
// A nil error prints just the tag (for tagged state transitions).
//
//go:nosplit
//go:inline
func DropError(prefix string, err error) {
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
	} else {
		utils.PrintWarning(prefix + "\n")
	}
}

// DropMessage logs tagged progress messages for cold-path diagnostics.
//
//go:nosplit
//go:inline
func DropMessage(prefix, message string) {
	utils.PrintWarning(prefix + ": " + message + "\n")
}

// DropTiming reports a stage's wall-clock duration in whole milliseconds.
// Every resolver stage (hashing, scanning, merging, each output writer)
// reports exactly once through this path.
//
//go:nosplit
//go:inline
func DropTiming(stage string, elapsed time.Duration) {
	utils.PrintWarning(stage + ": " + utils.Itoa(int(elapsed.Milliseconds())) + " ms\n")
}
