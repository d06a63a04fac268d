package malloc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultNumClasses is the default number of size classes (K). Must
	// stay odd: the prelude is 20+4*K bytes, and K odd is exactly what
	// keeps that a multiple of 8 so the prologue lands 8-byte aligned.
	DefaultNumClasses = 13

	// DefaultChunkSize is the default amount the heap grows by when no
	// free-list class can satisfy a request.
	DefaultChunkSize = 512

	// DefaultMaxArenaSize caps how much backing memory a Heap reserves
	// up front.
	DefaultMaxArenaSize = 64 << 20

	// DefaultDebugCapacity bounds the optional live-block side table.
	DefaultDebugCapacity = 2000
)

// Config holds the allocator's tunables. It can be loaded from a YAML
// file, which is handy for driving the test harness across several
// K/chunk-size combinations without recompiling.
type Config struct {
	NumClasses    int    `yaml:"num_classes"`
	ChunkSize     uint32 `yaml:"chunk_size"`
	MaxArenaSize  int    `yaml:"max_arena_size"`
	Debug         bool   `yaml:"debug"`
	DebugCapacity int    `yaml:"debug_capacity"`
}

// DefaultConfig returns the allocator's default tunables.
func DefaultConfig() Config {
	return Config{
		NumClasses:    DefaultNumClasses,
		ChunkSize:     DefaultChunkSize,
		MaxArenaSize:  DefaultMaxArenaSize,
		Debug:         false,
		DebugCapacity: DefaultDebugCapacity,
	}
}

// LoadConfig reads a YAML config file, overlaying it onto the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("segheap: reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("segheap: parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.NumClasses < 1 || c.NumClasses%2 == 0 {
		return fmt.Errorf("segheap: num_classes must be odd and >= 1, got %d", c.NumClasses)
	}
	if c.ChunkSize == 0 || c.ChunkSize%8 != 0 {
		return fmt.Errorf("segheap: chunk_size must be a nonzero multiple of 8, got %d", c.ChunkSize)
	}
	if c.MaxArenaSize <= 0 {
		return fmt.Errorf("segheap: max_arena_size must be positive, got %d", c.MaxArenaSize)
	}
	if c.Debug && c.DebugCapacity <= 0 {
		return fmt.Errorf("segheap: debug_capacity must be positive when debug is enabled, got %d", c.DebugCapacity)
	}
	return nil
}
