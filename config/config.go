// Package config loads the engine-wide options: storage backend selection,
// LSM tuning knobs, and optimizer settings, from a JSON file with
// environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Backend selects the storage facade implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendBTree  Backend = "b+tree"
	BackendLSM    Backend = "lsm"
)

// Compression selects the per-block value codec used by the SSTable writer
// and compaction job.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
	CompressionZstd   Compression = "zstd"
)

// LSMOptions groups the `lsm.*` keys of the options file.
type LSMOptions struct {
	BlockSize            int         `json:"block_size"`
	SSTFileSize          int         `json:"sst_file_size"`
	BloomBitsPerKey      int         `json:"bloom_bits_per_key"`
	WriteBufferSize      int         `json:"write_buffer_size"`
	UseDirectIO          bool        `json:"use_direct_io"`
	Level0CompactionTrig int         `json:"level0_compaction_trigger"`
	Ratio                int         `json:"ratio"`
	BaseLevelSize        int64       `json:"base_level_size"`
	CompactionPolicy     string      `json:"compaction_policy"` // "leveled" | "tiered" | "lazy_leveling" | "fluid"
	FluidAlpha           float64     `json:"fluid_alpha"`
	BlockCompression     Compression `json:"block_compression"`
}

// OptimizerOptions groups the `optimizer.*` keys of the options file.
type OptimizerOptions struct {
	EnableCostBased         bool               `json:"enable_cost_based"`
	ScanCost                float64            `json:"scan_cost"`
	HashJoinCost            float64            `json:"hash_join_cost"`
	TrueCardinalityHints    map[string]float64 `json:"true_cardinality_hints"` // key: sorted table names joined by ","
	EnablePredicateTransfer bool               `json:"enable_predicate_transfer"`
}

// Options is the full set of configuration recognized by the core.
type Options struct {
	SizeBatch       int              `json:"size_batch"`
	BufPoolMaxPage  int              `json:"buf_pool_max_page"`
	StorageBackend  Backend          `json:"storage_backend_name"`
	CreateIfMissing bool             `json:"create_if_missing"`
	DataDir         string           `json:"data_dir"`
	LSM             LSMOptions       `json:"lsm"`
	Optimizer       OptimizerOptions `json:"optimizer"`
}

// Default returns the engine's default options, chosen to mirror a modest
// single-node deployment (e.g. 64KB SSTs built from 4KB blocks).
func Default() *Options {
	return &Options{
		SizeBatch:       2048,
		BufPoolMaxPage:  1024,
		StorageBackend:  BackendLSM,
		CreateIfMissing: true,
		DataDir:         "vecql-data",
		LSM: LSMOptions{
			BlockSize:            4096,
			SSTFileSize:          64 * 1024,
			BloomBitsPerKey:      10,
			WriteBufferSize:      4 << 20,
			UseDirectIO:          false,
			Level0CompactionTrig: 4,
			Ratio:                4,
			BaseLevelSize:        16 << 20,
			CompactionPolicy:     "leveled",
			FluidAlpha:           0.3,
			BlockCompression:     CompressionNone,
		},
		Optimizer: OptimizerOptions{
			EnableCostBased:         true,
			ScanCost:                1.0,
			HashJoinCost:            2.0,
			TrueCardinalityHints:    map[string]float64{},
			EnablePredicateTransfer: false,
		},
	}
}

// Load reads options from a JSON file, falling back to defaults for any
// field the file omits, then applies VECQL_-prefixed environment overrides.
// A missing file is not an error: Default() is used and persisted to path.
func Load(path string) (*Options, error) {
	opts := Default()

	if data, err := os.ReadFile(path); err == nil {
		if jerr := json.Unmarshal(data, opts); jerr != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, jerr)
		}
	} else if os.IsNotExist(err) {
		if serr := Save(opts, path); serr != nil {
			return nil, serr
		}
	} else {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnvOverrides(opts)
	return opts, nil
}

// Save persists opts as indented JSON to path, creating parent directories
// as needed.
func Save(opts *Options, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides overrides a handful of commonly-tuned fields from the
// environment, e.g. VECQL_LSM_RATIO=8. Unset variables leave the field
// untouched.
func applyEnvOverrides(opts *Options) {
	if v, ok := lookupInt("VECQL_SIZE_BATCH"); ok {
		opts.SizeBatch = v
	}
	if v, ok := os.LookupEnv("VECQL_STORAGE_BACKEND_NAME"); ok {
		opts.StorageBackend = Backend(strings.TrimSpace(v))
	}
	if v, ok := lookupInt("VECQL_LSM_RATIO"); ok {
		opts.LSM.Ratio = v
	}
	if v, ok := lookupInt("VECQL_LSM_LEVEL0_COMPACTION_TRIGGER"); ok {
		opts.LSM.Level0CompactionTrig = v
	}
	if v, ok := lookupBool("VECQL_OPTIMIZER_ENABLE_COST_BASED"); ok {
		opts.Optimizer.EnableCostBased = v
	}
}

func lookupInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupBool(name string) (bool, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

// CardinalityKey builds the lookup key for TrueCardinalityHints from a set
// of table names: the names sorted and joined by a comma, so that hints are
// matched by the set of tables in a join regardless of enumeration order.
func CardinalityKey(tableNames []string) string {
	sorted := append([]string(nil), tableNames...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return strings.Join(sorted, ",")
}
