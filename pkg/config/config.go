// Package config loads and validates the fisherman's runtime configuration:
// values start from Default() and are overridden by an optional YAML file.
// No configuration key is bound to a cobra flag.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"gopkg.in/yaml.v3"
)

// IndexerMode selects which events the Indexer persists.
type IndexerMode string

const (
	// IndexerModeFull persists every recognized event.
	IndexerModeFull IndexerMode = "full"
	// IndexerModeFishing persists only deletion-relevant events.
	IndexerModeFishing IndexerMode = "fishing"
)

// Config holds every recognized configuration key (see §6 of the design
// notes for the canonical key list) plus the ambient keys the teacher's
// stack always carries (logging, metrics).
type Config struct {
	// Chain RPC
	RPCURL          string        `yaml:"rpc_url"`
	ChainRPCTimeout time.Duration `yaml:"chain_rpc_timeout"`

	// Event store
	DBURL string `yaml:"db_url"`

	// Indexer
	IndexerMode              IndexerMode `yaml:"indexer_mode"`
	StandaloneIndexer        bool        `yaml:"standalone_indexer"`
	SyncModeMinBlocksBehind  uint64      `yaml:"sync_mode_min_blocks_behind"`
	IncompleteSyncMax        int         `yaml:"incomplete_sync_max"`
	IncompleteSyncPageSize   int         `yaml:"incomplete_sync_page_size"`
	BlockChannelCapacity     int         `yaml:"fisherman_block_channel_capacity"`

	// Fisherman scheduler
	BatchInterval             time.Duration `yaml:"batch_interval"`
	MaxConcurrentTargets      int           `yaml:"fisherman_max_concurrent_targets"`
	FishermanIncompleteSyncMax     int `yaml:"fisherman_incomplete_sync_max"`
	FishermanIncompleteSyncPageSize int `yaml:"fisherman_incomplete_sync_page_size"`

	// Forest-proof provider
	ProofProviderURL string `yaml:"proof_provider_url"`

	// Extrinsic construction. Call indexes are chain-metadata-specific
	// (module index, call index) and are not decoded at runtime by this
	// repo (see Non-goals: "the chain runtime/pallets"); they are supplied
	// as config instead, in "0xMMCC" hex form.
	DeleteFilesCallIndex           string `yaml:"delete_files_call_index"`
	DeleteFilesIncompleteCallIndex string `yaml:"delete_files_incomplete_call_index"`
	// FishermanSignerURI is the sr25519/ed25519 key URI (e.g. "//Fisherman"
	// or a BIP39 mnemonic) the scheduler signs deletion extrinsics with.
	FishermanSignerURI string `yaml:"fisherman_signer_uri"`

	// Ambient stack
	LogLevel   string `yaml:"log_level"`
	LogJSON    bool   `yaml:"log_json"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a Config populated with the defaults named in the design
// notes (60 s production batch interval, conservative sync thresholds).
func Default() Config {
	return Config{
		RPCURL:                   "ws://127.0.0.1:9944",
		ChainRPCTimeout:          30 * time.Second,
		DBURL:                    "sqlite://fisherman.db",
		IndexerMode:              IndexerModeFishing,
		StandaloneIndexer:        false,
		SyncModeMinBlocksBehind:  64,
		IncompleteSyncMax:        500,
		IncompleteSyncPageSize:   50,
		BlockChannelCapacity:     256,
		BatchInterval:            60 * time.Second,
		MaxConcurrentTargets:     0, // 0 = unbounded across targets
		FishermanIncompleteSyncMax:     1000,
		FishermanIncompleteSyncPageSize: 100,
		ProofProviderURL:         "http://127.0.0.1:8090",
		DeleteFilesCallIndex:           "0x2900",
		DeleteFilesIncompleteCallIndex: "0x2901",
		FishermanSignerURI:             "//Fisherman",
		LogLevel:                 "info",
		LogJSON:                  false,
		MetricsAddr:              ":9100",
	}
}

// Load reads path (if non-empty and it exists) as YAML on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, ferr.New(ferr.Fatal, "config.Load", fmt.Errorf("reading %s: %w", path, err))
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, ferr.New(ferr.InvalidInput, "config.Load", fmt.Errorf("parsing %s: %w", path, err))
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that would violate an invariant from the
// design notes before the process starts anything.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return ferr.Invalid("config.Validate", "rpc_url must not be empty")
	}
	if c.DBURL == "" {
		return ferr.Invalid("config.Validate", "db_url must not be empty")
	}
	if c.IndexerMode != IndexerModeFull && c.IndexerMode != IndexerModeFishing {
		return ferr.Invalid("config.Validate", "indexer_mode must be %q or %q, got %q", IndexerModeFull, IndexerModeFishing, c.IndexerMode)
	}
	if c.BatchInterval <= 0 {
		return ferr.Invalid("config.Validate", "batch_interval must be positive")
	}
	if c.IncompleteSyncPageSize <= 0 {
		return ferr.Invalid("config.Validate", "incomplete_sync_page_size must be positive")
	}
	if c.IncompleteSyncMax < c.IncompleteSyncPageSize {
		return ferr.Invalid("config.Validate", "incomplete_sync_max must be >= incomplete_sync_page_size")
	}
	if len(c.DeleteFilesCallIndex) != 6 || len(c.DeleteFilesIncompleteCallIndex) != 6 {
		return ferr.Invalid("config.Validate", "call indexes must be \"0x\" plus 2 hex bytes")
	}
	if c.FishermanSignerURI == "" {
		return ferr.Invalid("config.Validate", "fisherman_signer_uri must not be empty")
	}
	return nil
}
