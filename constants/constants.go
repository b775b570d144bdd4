// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Global Resolver Tunables & Naming Conventions
//
// Purpose:
//   - Defines process-wide constants for slot hashing, shard scanning, and
//     output file naming.
//   - Collects every environment variable name and storage-schema identifier
//     in one place so query templates never assemble ad hoc strings.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Slot Hashing ───────────────────────────────

const (
	// BalancesStorageTag is the Cairo storage-variable name whose
	// starknet-keccak digest selects the balances mapping of every
	// convention-following ERC-20 contract. The digest is computed once at
	// startup and passed explicitly into the hasher.
	BalancesStorageTag = "ERC20_balances"

	// HashChunkSize is the number of accounts each hashing worker claims per
	// sector. Pedersen costs about a microsecond per account, so 1024 keeps
	// sector dispatch overhead negligible while leaving enough sectors to
	// balance load across cores.
	HashChunkSize = 1024
)

// ─────────────────────────────── Sharding ──────────────────────────────────

const (
	// DefaultShardCount of 0 means "one shard per available core"
	// (runtime.GOMAXPROCS). The resolver treats any non-positive request the
	// same way.
	DefaultShardCount = 0

	// MaxShardCount caps the fan-out. Each shard owns a SQLite read handle;
	// beyond 64 handles the scan is I/O-bound and extra shards only burn
	// file descriptors.
	MaxShardCount = 64
)

// ─────────────────────── Environment Configuration ─────────────────────────

const (
	// EnvDBPath names the SQLite storage snapshot to scan.
	EnvDBPath = "DB_PATH"

	// EnvInputFile names the JSON address file ({"accounts":[...],"tokens":[...]}).
	EnvInputFile = "INPUT_FILE"

	// EnvRPCURL names an optional Starknet JSON-RPC endpoint. When set, every
	// requested token is verified to be a deployed contract before scanning.
	EnvRPCURL = "STARKNET_RPC_URL"
)

// ───────────────────────────── Output Files ────────────────────────────────

const (
	// CSVOutputPath receives Token,Account,Balance rows.
	CSVOutputPath = "token_map.csv"

	// JSONOutputPath receives the nested token→account→balance object.
	JSONOutputPath = "token_map.json"

	// SQLiteOutputPath receives the token_map table.
	SQLiteOutputPath = "token_map.db"
)

// ─────────────────────── Storage Snapshot Schema ───────────────────────────

// Table and column names of the storage snapshot. The scanner builds its two
// query templates exclusively from these identifiers; no other SQL shape
// exists in the binary.
const (
	TableContracts      = "contract_addresses"
	TableStorageKeys    = "storage_addresses"
	TableStorageUpdates = "storage_updates"

	ColumnContractAddr = "contract_address"
	ColumnStorageAddr  = "storage_address"
	ColumnStorageValue = "storage_value"
	ColumnBlockNumber  = "block_number"
)
