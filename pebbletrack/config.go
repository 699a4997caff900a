package pebbletrack

import (
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Config holds the options used to open a tracked pebble database.
type Config struct {
	Path                  string `mapstructure:"path"`
	InMemory              bool   `mapstructure:"in_memory"`
	CacheSize             int64  `mapstructure:"cache_size" validate:"gte=0"`
	MemTableSize          int    `mapstructure:"mem_table_size" validate:"gte=0"`
	MaxOpenFiles          int    `mapstructure:"max_open_files" validate:"gte=0"`
	CompactionConcurrency int    `mapstructure:"compaction_concurrency" validate:"gte=0"`
	BlockSize             int    `mapstructure:"block_size" validate:"gte=0"`
	L0CompactionThreshold int    `mapstructure:"l0_compaction_threshold" validate:"gte=0"`
	L0StopWritesThreshold int    `mapstructure:"l0_stop_writes_threshold" validate:"gte=0"`
	CompressionEnabled    bool   `mapstructure:"compression_enabled"`
}

// DefaultConfig returns a production configuration for a database at path.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:                  path,
		CacheSize:             256 << 20, // 256MB
		MemTableSize:          64 << 20,  // 64MB
		MaxOpenFiles:          5000,
		CompactionConcurrency: 4,
		BlockSize:             32 << 10,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
		CompressionEnabled:    true,
	}
}

// MemConfig returns a small in-memory configuration, mostly for tests.
func MemConfig() *Config {
	return &Config{
		Path:                  "mem",
		InMemory:              true,
		CacheSize:             8 << 20,
		MemTableSize:          4 << 20,
		MaxOpenFiles:          100,
		CompactionConcurrency: 1,
		BlockSize:             4 << 10,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 10,
	}
}

// Options builds the pebble options. The returned options hold a reference
// on their cache; release it with Cache.Unref once the database is open.
func (c *Config) Options() *pebble.Options {
	compression := pebble.NoCompression
	if c.CompressionEnabled {
		compression = pebble.SnappyCompression
	}

	opts := &pebble.Options{
		MaxOpenFiles:          c.MaxOpenFiles,
		MemTableSize:          uint64(c.MemTableSize),
		L0CompactionThreshold: c.L0CompactionThreshold,
		L0StopWritesThreshold: c.L0StopWritesThreshold,
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 8 << 20, BlockSize: c.BlockSize, Compression: compression},
			{TargetFileSize: 32 << 20, BlockSize: c.BlockSize, Compression: compression},
			{TargetFileSize: 128 << 20, BlockSize: c.BlockSize, Compression: compression},
		},
	}
	if c.CacheSize > 0 {
		opts.Cache = pebble.NewCache(c.CacheSize)
	}
	if c.CompactionConcurrency > 0 {
		concurrency := c.CompactionConcurrency
		opts.MaxConcurrentCompactions = func() int { return concurrency }
	}
	if c.InMemory {
		opts.FS = vfs.NewMem()
	}
	return opts
}
