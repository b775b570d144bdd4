// ════════════════════════════════════════════════════════════════════════════════════════════════
// Result Writers
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: CSV / JSON / SQLite Output Sinks
//
// Description:
//   Serializes the resolver's final token → account → balance mapping to any combination of
//   the three supported artifacts. Writers consume the mapping as a read-only snapshot; the
//   engine is finished by the time any writer runs. Addresses render as canonical 0x-padded
//   hex, balances as decimal (CSV/SQLite) or hex (JSON).
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package output

import (
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"

	"main/constants"
	"main/debug"
	"main/types"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// FormatConfig selects which artifacts a run produces.
type FormatConfig struct {
	CSV    bool
	JSON   bool
	SQLite bool
}

// HasAny reports whether at least one output format is enabled.
func (c FormatConfig) HasAny() bool { return c.CSV || c.JSON || c.SQLite }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// WriteResults runs every enabled writer against the mapping. Each writer's
// wall time reports through the debug sink; the first writer failure aborts.
func WriteResults(mapping types.BalanceMapping, cfg FormatConfig) error {
	if !cfg.HasAny() {
		debug.DropMessage("OUTPUT", "no output format selected (use --csv, --json, or --sqlite)")
		return nil
	}

	if cfg.CSV {
		start := time.Now()
		if err := writeCSV(mapping); err != nil {
			return fmt.Errorf("csv output: %w", err)
		}
		debug.DropTiming("CSV", time.Since(start))
	}
	if cfg.JSON {
		start := time.Now()
		if err := writeJSON(mapping); err != nil {
			return fmt.Errorf("json output: %w", err)
		}
		debug.DropTiming("JSON", time.Since(start))
	}
	if cfg.SQLite {
		start := time.Now()
		if err := writeSQLite(mapping); err != nil {
			return fmt.Errorf("sqlite output: %w", err)
		}
		debug.DropTiming("SQLITE", time.Since(start))
	}
	return nil
}

// sortedRows flattens the mapping into (token, account, balance) string rows
// ordered by token then account hex. Map iteration order is randomized, so
// the sort keeps artifacts byte-stable between identical runs.
func sortedRows(mapping types.BalanceMapping, decimalBalance bool) [][3]string {
	rows := make([][3]string, 0, len(mapping))
	for token, balances := range mapping {
		tokenHex := types.FeltHex(token)
		for account, balance := range balances {
			rendered := types.FeltHex(balance)
			if decimalBalance {
				rendered = types.FeltDecimal(balance)
			}
			rows = append(rows, [3]string{tokenHex, types.FeltHex(account), rendered})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})
	return rows
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CSV WRITER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// writeCSV emits Token,Account,Balance records through one reused builder.
// Fields are fixed-width hex and decimal digits — never quoted, so records
// are assembled directly instead of going through a CSV library.
func writeCSV(mapping types.BalanceMapping) error {
	file, err := os.Create(constants.CSVOutputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	var builder strings.Builder
	builder.Grow(1 << 16)
	builder.WriteString("Token,Account,Balance\n")

	for _, row := range sortedRows(mapping, true) {
		builder.WriteString(row[0])
		builder.WriteByte(',')
		builder.WriteString(row[1])
		builder.WriteByte(',')
		builder.WriteString(row[2])
		builder.WriteByte('\n')

		if builder.Len() >= 1<<16 {
			if _, err := file.WriteString(builder.String()); err != nil {
				return err
			}
			builder.Reset()
		}
	}
	if builder.Len() > 0 {
		if _, err := file.WriteString(builder.String()); err != nil {
			return err
		}
	}
	return file.Sync()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// JSON WRITER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// writeJSON emits the nested token → account → balance object with every
// field element in canonical hex form.
func writeJSON(mapping types.BalanceMapping) error {
	doc := make(map[string]map[string]string, len(mapping))
	for token, balances := range mapping {
		inner := make(map[string]string, len(balances))
		for account, balance := range balances {
			inner[types.FeltHex(account)] = types.FeltHex(balance)
		}
		doc[types.FeltHex(token)] = inner
	}

	encoded, err := sonnet.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(constants.JSONOutputPath, encoded, 0644)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SQLITE WRITER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// writeSQLite loads the mapping into a token_map table, one transaction, one
// prepared statement for every row.
func writeSQLite(mapping types.BalanceMapping) error {
	db, err := sql.Open("sqlite3", constants.SQLiteOutputPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS token_map (
		token TEXT NOT NULL,
		account TEXT NOT NULL,
		balance TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO token_map (token, account, balance) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}

	for _, row := range sortedRows(mapping, true) {
		if _, err := stmt.Exec(row[0], row[1], row[2]); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert row: %w", err)
		}
	}
	stmt.Close()
	return tx.Commit()
}
