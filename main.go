// ════════════════════════════════════════════════════════════════════════════════════════════════
// Starknet ERC-20 Balance Resolver - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: Main Entry Point & Run Orchestration
//
// Description:
//   One-shot batch run with phased execution and clean separation of concerns.
//   Configuration → Input Parsing → Token Verification → Resolution → Output
//
// Architecture:
//   - Phase 0: Environment (.env) and flag configuration
//   - Phase 1: Address file parsing and validation (hard-fails on bad encodings)
//   - Phase 2: Optional on-chain token deployment verification
//   - Phase 3: Parallel balance resolution over the storage snapshot
//   - Phase 4: Result serialization to the selected formats
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"main/constants"
	"main/debug"
	"main/output"
	"main/resolver"
	"main/tokenverify"
	"main/types"
	"main/utils"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// runConfig is the fully resolved configuration for one run. Flags win over
// environment variables; the environment is seeded from .env when present.
type runConfig struct {
	dbPath    string
	inputFile string
	rpcURL    string
	shards    int
	formats   output.FormatConfig
}

// loadConfig merges .env, environment, and command-line flags.
func loadConfig() runConfig {
	godotenv.Load() // optional; absence of .env is not an error

	var cfg runConfig
	flag.StringVar(&cfg.dbPath, "db", os.Getenv(constants.EnvDBPath), "path to the storage snapshot database")
	flag.StringVar(&cfg.inputFile, "input", os.Getenv(constants.EnvInputFile), "path to the accounts/tokens JSON file")
	flag.StringVar(&cfg.rpcURL, "rpc", os.Getenv(constants.EnvRPCURL), "Starknet JSON-RPC URL for token verification (optional)")
	flag.IntVar(&cfg.shards, "shards", constants.DefaultShardCount, "scan shard count (0 = one per core)")
	flag.BoolVar(&cfg.formats.CSV, "csv", false, "write "+constants.CSVOutputPath)
	flag.BoolVar(&cfg.formats.JSON, "json", false, "write "+constants.JSONOutputPath)
	flag.BoolVar(&cfg.formats.SQLite, "sqlite", false, "write "+constants.SQLiteOutputPath)
	flag.Parse()

	return cfg
}

// setupSignalHandling aborts the batch run on interrupt. No partial results
// are flushed — a half-written mapping is worse than none.
func setupSignalHandling() {
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChannel
		debug.DropMessage("ABORT", "interrupted, discarding run")
		os.Exit(130)
	}()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MAIN ORCHESTRATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func main() {
	// PHASE 0: Configuration
	cfg := loadConfig()
	if cfg.dbPath == "" {
		debug.DropMessage("CONFIG", constants.EnvDBPath+" not set (or pass --db)")
		os.Exit(1)
	}
	if cfg.inputFile == "" {
		debug.DropMessage("CONFIG", constants.EnvInputFile+" not set (or pass --input)")
		os.Exit(1)
	}
	setupSignalHandling()

	// PHASE 1: Input parsing — malformed encodings fail the whole run here,
	// before any hashing or scanning starts.
	data, err := os.ReadFile(cfg.inputFile)
	if err != nil {
		debug.DropError("INPUT", err)
		os.Exit(1)
	}
	set, err := types.ParseAddressFile(data)
	if err != nil {
		debug.DropError("INPUT", err)
		os.Exit(1)
	}
	debug.DropMessage("INPUT", utils.Itoa(len(set.Accounts))+" accounts, "+
		utils.Itoa(len(set.Tokens))+" tokens")

	// PHASE 2: Optional on-chain verification that every token is deployed.
	if cfg.rpcURL != "" {
		if err := tokenverify.VerifyDeployed(cfg.rpcURL, set.Tokens); err != nil {
			debug.DropError("VERIFY", err)
			os.Exit(1)
		}
	}

	// PHASE 3: Resolution engine.
	totalStart := time.Now()
	mapping, err := resolver.ResolveWithShards(cfg.dbPath, set, cfg.shards)
	if err != nil {
		debug.DropError("RESOLVE", err)
		os.Exit(1)
	}
	debug.DropTiming("RESOLVE", time.Since(totalStart))

	// Per-token summary: every requested token is present, even when empty.
	for _, token := range set.Tokens {
		debug.DropMessage("TOKEN", types.FeltHex(token)+": "+
			utils.Itoa(len(mapping[token]))+" balances")
	}

	// PHASE 4: Output serialization.
	if err := output.WriteResults(mapping, cfg.formats); err != nil {
		debug.DropError("OUTPUT", err)
		os.Exit(1)
	}
}
