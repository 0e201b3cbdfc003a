package glyphkit

import (
	"math/bits"
	"runtime"
	"time"
)

// EvictionPolicy selects how the cache chooses victims under memory
// pressure. Only Ready entries are candidates; an in-flight production is
// never evicted.
type EvictionPolicy uint8

const (
	// PolicyLRU evicts the entry with the oldest last use. The default.
	PolicyLRU EvictionPolicy = iota
	// PolicyLFU evicts the entry with the lowest use count, ties broken
	// by oldest last use.
	PolicyLFU
	// PolicyFIFO evicts the oldest entry by creation time.
	PolicyFIFO
)

// String returns the string representation of the policy.
func (p EvictionPolicy) String() string {
	switch p {
	case PolicyLRU:
		return "LRU"
	case PolicyLFU:
		return "LFU"
	case PolicyFIFO:
		return "FIFO"
	default:
		return unknownStr
	}
}

// CacheConfig configures a GlyphCache. The zero value of any field means
// "use the default"; DefaultCacheConfig spells the defaults out.
type CacheConfig struct {
	// MaxBytes is the memory ceiling over all Ready artifacts.
	// Default: 16 MiB.
	MaxBytes int64

	// Shards is the number of independent cache partitions. Rounded up
	// to a power of two. Default: the core count, rounded up likewise.
	Shards int

	// Policy is the eviction policy. Default: PolicyLRU.
	Policy EvictionPolicy

	// HysteresisPct is how far below MaxBytes eviction drives usage,
	// in percent, to avoid oscillation at the boundary. Default: 10.
	// Negative disables hysteresis (evict exactly to MaxBytes).
	HysteresisPct int

	// NegativeTTL bounds how long a deterministic production failure is
	// remembered before the producer is retried. Zero keeps the default;
	// NegativeTTLDisabled turns negative memoization off.
	NegativeTTL time.Duration
}

// NegativeTTLDisabled disables negative memoization when assigned to
// CacheConfig.NegativeTTL.
const NegativeTTLDisabled = time.Duration(-1)

// Default cache parameters.
const (
	DefaultMaxBytes      = 16 << 20
	DefaultHysteresisPct = 10
	DefaultNegativeTTL   = 30 * time.Second
)

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxBytes:      DefaultMaxBytes,
		Shards:        runtime.NumCPU(),
		Policy:        PolicyLRU,
		HysteresisPct: DefaultHysteresisPct,
		NegativeTTL:   DefaultNegativeTTL,
	}
}

// normalize fills in defaults and rounds the shard count to a power of
// two.
func (c CacheConfig) normalize() CacheConfig {
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.Shards <= 0 {
		c.Shards = runtime.NumCPU()
	}
	c.Shards = nextPowerOfTwo(c.Shards)
	if c.HysteresisPct == 0 {
		c.HysteresisPct = DefaultHysteresisPct
	}
	if c.HysteresisPct < 0 {
		c.HysteresisPct = 0
	}
	if c.HysteresisPct > 90 {
		c.HysteresisPct = 90
	}
	if c.NegativeTTL == 0 {
		c.NegativeTTL = DefaultNegativeTTL
	}
	if c.NegativeTTL < 0 {
		c.NegativeTTL = 0
	}
	return c
}

// Validate reports configuration values that normalize cannot repair.
func (c CacheConfig) Validate() error {
	if c.Policy > PolicyFIFO {
		return &ConfigError{Field: "Policy", Reason: "unknown policy"}
	}
	if c.Shards > 1<<16 {
		return &ConfigError{Field: "Shards", Reason: "too many shards"}
	}
	return nil
}

// nextPowerOfTwo rounds n up to a power of two, minimum 1.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
