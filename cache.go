package glyphkit

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"
)

// Producer turns a fingerprint into an artifact. Implementations must be
// deterministic for a fixed fingerprint and backend state, and must be
// safe for concurrent use; the cache never serializes producer calls for
// different fingerprints.
type Producer interface {
	Produce(fp Fingerprint) (*Artifact, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(Fingerprint) (*Artifact, error)

// Produce implements Producer.
func (f ProducerFunc) Produce(fp Fingerprint) (*Artifact, error) { return f(fp) }

// entryState is the lifecycle state of a cache entry.
type entryState uint8

const (
	stateLoading entryState = iota
	stateReady
	stateEvicted
)

// String returns the string representation of the entry state.
func (s entryState) String() string {
	switch s {
	case stateLoading:
		return "Loading"
	case stateReady:
		return "Ready"
	case stateEvicted:
		return "Evicted"
	default:
		return unknownStr
	}
}

// cacheEntry is one cached fingerprint. Loading entries carry a one-shot
// done channel; art and err are written exactly once, before the channel
// closes, so waiters may read them lock-free afterwards.
type cacheEntry struct {
	key string
	fp  Fingerprint

	state entryState
	art   *Artifact
	err   error
	cost  int64

	createdAt int64
	lastUsed  int64
	useCount  uint64

	// done closes when the flight completes, successfully or not.
	done chan struct{}

	// dropped is set when the entry's font is invalidated while Loading:
	// the result is delivered to waiters but not cached.
	dropped bool

	prev, next *cacheEntry
}

// negativeEntry is a tombstone for a deterministic production failure.
type negativeEntry struct {
	err     error
	expires time.Time
}

// cacheShard is one independent cache partition with its own map,
// recency list and byte accounting.
type cacheShard struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	head, tail *cacheEntry
	usedBytes  int64
	negatives  map[string]negativeEntry
}

// CacheStats is a point-in-time snapshot of the cache counters. Counters
// are monotonic; reads are eventually consistent with concurrent
// operations.
type CacheStats struct {
	// Hits counts Ready lookups served without production.
	Hits uint64
	// Misses counts lookups that dispatched a producer.
	Misses uint64
	// Coalesced counts lookups that parked on another caller's flight.
	Coalesced uint64
	// NegativeHits counts lookups answered by a live failure tombstone.
	NegativeHits uint64
	// Evictions counts entries transitioned out of Ready.
	Evictions uint64
	// ProducedBytes totals the byte cost of every successful production.
	ProducedBytes uint64
	// CurrentBytes is the byte cost of all Ready entries right now.
	CurrentBytes int64
	// Entries is the number of Ready entries right now.
	Entries int
}

// cacheCounters holds the monotonic counters.
type cacheCounters struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	coalesced     atomic.Uint64
	negativeHits  atomic.Uint64
	evictions     atomic.Uint64
	producedBytes atomic.Uint64
}

// GlyphCache deduplicates glyph production, bounds memory and exposes
// read-through access keyed by fingerprint.
//
// The cache is partitioned into power-of-two shards selected by hashing
// the fingerprint; each shard owns its map, recency list and byte
// accounting. Production runs outside all shard locks. At most one
// producer call is in flight per fingerprint: concurrent requesters park
// on a per-fingerprint completion channel and observe the same artifact
// or the same failure.
//
// GlyphCache is safe for concurrent use.
type GlyphCache struct {
	shards    []*cacheShard
	shardMask uint64
	seed      maphash.Seed

	producer Producer

	policy   atomic.Uint32 // EvictionPolicy
	hystPct  atomic.Int32
	negTTL   atomic.Int64 // nanoseconds
	maxBytes atomic.Int64
	counters cacheCounters
	closed   atomic.Bool
}

// NewGlyphCache creates a cache over the given producer with the default
// configuration.
func NewGlyphCache(producer Producer) *GlyphCache {
	c, err := NewGlyphCacheWithConfig(producer, DefaultCacheConfig())
	if err != nil {
		// DefaultCacheConfig always validates.
		panic(err)
	}
	return c
}

// NewGlyphCacheWithConfig creates a cache with the given configuration.
// Zero-valued config fields assume their defaults.
func NewGlyphCacheWithConfig(producer Producer, config CacheConfig) (*GlyphCache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.normalize()

	c := &GlyphCache{
		shards:    make([]*cacheShard, config.Shards),
		shardMask: uint64(config.Shards - 1),
		seed:      maphash.MakeSeed(),
		producer:  producer,
	}
	c.policy.Store(uint32(config.Policy))
	c.hystPct.Store(int32(config.HysteresisPct))
	c.negTTL.Store(int64(config.NegativeTTL))
	c.maxBytes.Store(config.MaxBytes)
	for i := range c.shards {
		c.shards[i] = &cacheShard{
			entries:   make(map[string]*cacheEntry),
			negatives: make(map[string]negativeEntry),
		}
	}
	return c, nil
}

// shardFor hashes the fingerprint key onto a shard.
func (c *GlyphCache) shardFor(key string) *cacheShard {
	return c.shards[maphash.String(c.seed, key)&c.shardMask]
}

// GetOrProduce returns the artifact for the fingerprint, producing it at
// most once per concurrent burst of requesters.
//
// The context bounds only this caller's wait on another caller's flight;
// an abandoned wait returns ErrTimeout and leaves the production running
// for the remaining waiters.
//
// When a produced artifact's cost exceeds the whole budget, GetOrProduce
// returns the artifact together with ErrBudgetExhausted: usable, but not
// cached.
func (c *GlyphCache) GetOrProduce(ctx context.Context, fp Fingerprint) (*Artifact, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	if err := fp.Validate(); err != nil {
		return nil, err
	}

	key := fp.key()
	shard := c.shardFor(key)
	now := time.Now().UnixNano()

	shard.mu.Lock()

	if neg, ok := shard.negatives[key]; ok {
		if time.Now().Before(neg.expires) {
			shard.mu.Unlock()
			c.counters.negativeHits.Add(1)
			return nil, neg.err
		}
		delete(shard.negatives, key)
	}

	if e, ok := shard.entries[key]; ok {
		switch e.state {
		case stateReady:
			shard.touch(e, EvictionPolicy(c.policy.Load()), now)
			art := e.art
			shard.mu.Unlock()
			c.counters.hits.Add(1)
			return art, nil
		case stateLoading:
			done := e.done
			shard.mu.Unlock()
			c.counters.coalesced.Add(1)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			case <-done:
				// art and err are written before done closes and never
				// mutated afterwards.
				return e.art, e.err
			}
		case stateEvicted:
			// Evicted behaves as absent; drop the tombstone and refill.
			delete(shard.entries, key)
		}
	}

	e := &cacheEntry{
		key:       key,
		fp:        fp,
		state:     stateLoading,
		createdAt: now,
		done:      make(chan struct{}),
	}
	shard.entries[key] = e
	shard.mu.Unlock()
	c.counters.misses.Add(1)

	// The producer runs with no shard lock held; it may block on backend
	// I/O without stalling unrelated requests.
	art, err := c.producer.Produce(fp)
	return c.complete(shard, e, art, err)
}

// complete installs a flight's result and wakes its waiters.
func (c *GlyphCache) complete(shard *cacheShard, e *cacheEntry, art *Artifact, err error) (*Artifact, error) {
	now := time.Now().UnixNano()

	shard.mu.Lock()
	if err != nil {
		delete(shard.entries, e.key)
		if ttl := time.Duration(c.negTTL.Load()); isDeterministicFailure(err) && ttl > 0 {
			shard.negatives[e.key] = negativeEntry{err: err, expires: time.Now().Add(ttl)}
		}
		e.err = err
		close(e.done)
		shard.mu.Unlock()
		return nil, err
	}

	cost := art.ByteCost()
	c.counters.producedBytes.Add(uint64(cost))

	if e.dropped {
		// The font was invalidated mid-flight: deliver, do not cache.
		delete(shard.entries, e.key)
		e.art = art
		close(e.done)
		shard.mu.Unlock()
		return art, nil
	}

	if cost > c.maxBytes.Load() {
		delete(shard.entries, e.key)
		e.art = art
		e.err = ErrBudgetExhausted
		close(e.done)
		shard.mu.Unlock()
		return art, ErrBudgetExhausted
	}

	e.art = art
	e.cost = cost
	e.state = stateReady
	e.lastUsed = now
	e.useCount = 1
	shard.addToFront(e)
	shard.usedBytes += cost
	close(e.done)
	shard.mu.Unlock()

	c.evictOverBudget(e)
	return art, nil
}

// evictOverBudget drives usage down to the hysteresis target when it
// exceeds the budget, never evicting the entry whose insertion triggered
// the pass. Only one shard lock is held at a time.
func (c *GlyphCache) evictOverBudget(exclude *cacheEntry) {
	maxBytes := c.maxBytes.Load()
	if c.usedBytes() <= maxBytes {
		return
	}
	target := maxBytes - maxBytes*int64(c.hystPct.Load())/100

	for c.usedBytes() > target {
		if !c.evictOne(exclude) {
			return
		}
	}
}

// evictOne selects the globally best victim across shards and evicts it.
// Returns false when no shard has a candidate.
func (c *GlyphCache) evictOne(exclude *cacheEntry) bool {
	var victimShard *cacheShard
	var victim *cacheEntry
	var victimMetric int64

	policy := EvictionPolicy(c.policy.Load())
	for _, shard := range c.shards {
		shard.mu.Lock()
		e, metric := shard.victim(policy, exclude)
		shard.mu.Unlock()
		if e == nil {
			continue
		}
		if victim == nil || metric < victimMetric {
			victimShard, victim, victimMetric = shard, e, metric
		}
	}
	if victim == nil {
		return false
	}

	victimShard.mu.Lock()
	// Recheck under the lock: the entry may have been touched, evicted or
	// refilled since the peek.
	if victim.state != stateReady {
		victimShard.mu.Unlock()
		return true
	}
	victimShard.evictLocked(victim)
	victimShard.mu.Unlock()
	c.counters.evictions.Add(1)
	logger().Debug("glyphkit: evicted", "glyph", uint32(victim.fp.Glyph), "cost", victim.cost)
	return true
}

// evictLocked transitions a Ready entry to Evicted and releases its
// bytes. The map slot survives until the next sweep. Caller holds the
// shard lock.
func (s *cacheShard) evictLocked(e *cacheEntry) {
	s.unlink(e)
	s.usedBytes -= e.cost
	e.state = stateEvicted
	e.art = nil
	e.cost = 0
}

// usedBytes sums all shards' Ready byte costs.
func (c *GlyphCache) usedBytes() int64 {
	var total int64
	for _, shard := range c.shards {
		shard.mu.Lock()
		total += shard.usedBytes
		shard.mu.Unlock()
	}
	return total
}

// Invalidate marks every entry keyed on the handle as Evicted. In-flight
// productions for the handle complete and deliver to their waiters, but
// their results are not cached.
func (c *GlyphCache) Invalidate(h FontHandle) {
	evicted := uint64(0)
	for _, shard := range c.shards {
		shard.mu.Lock()
		for _, e := range shard.entries {
			if e.fp.Font != h {
				continue
			}
			switch e.state {
			case stateReady:
				shard.evictLocked(e)
				evicted++
			case stateLoading:
				e.dropped = true
			case stateEvicted:
				// Already dead.
			}
		}
		shard.mu.Unlock()
	}
	if evicted > 0 {
		c.counters.evictions.Add(evicted)
	}
}

// InvalidateFingerprint removes a single entry. An in-flight production
// completes and delivers, but is not cached.
func (c *GlyphCache) InvalidateFingerprint(fp Fingerprint) {
	key := fp.key()
	shard := c.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	e, ok := shard.entries[key]
	if !ok {
		return
	}
	switch e.state {
	case stateReady:
		shard.evictLocked(e)
		c.counters.evictions.Add(1)
	case stateLoading:
		e.dropped = true
	case stateEvicted:
	}
}

// SetBudget adjusts the memory ceiling. Shrinking below current usage
// triggers eviction until the hysteresis target is satisfied; growing is
// a no-op for cache contents.
func (c *GlyphCache) SetBudget(maxBytes int64) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	c.maxBytes.Store(maxBytes)
	c.evictOverBudget(nil)
}

// Budget returns the current memory ceiling.
func (c *GlyphCache) Budget() int64 { return c.maxBytes.Load() }

// SetPolicy switches the eviction policy. Existing entries keep their
// recorded usage; the new policy only changes how future victims are
// picked.
func (c *GlyphCache) SetPolicy(p EvictionPolicy) error {
	if p > PolicyFIFO {
		return &ConfigError{Field: "Policy", Reason: "unknown policy"}
	}
	c.policy.Store(uint32(p))
	return nil
}

// Policy returns the current eviction policy.
func (c *GlyphCache) Policy() EvictionPolicy { return EvictionPolicy(c.policy.Load()) }

// SetHysteresis adjusts how far below the budget eviction drives usage,
// in percent, clamped to [0, 90]. Zero evicts exactly to the budget.
func (c *GlyphCache) SetHysteresis(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 90 {
		pct = 90
	}
	c.hystPct.Store(int32(pct))
}

// SetNegativeTTL adjusts how long deterministic production failures are
// remembered. Zero or negative disables negative memoization for future
// failures; live memos keep their original expiry.
func (c *GlyphCache) SetNegativeTTL(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.negTTL.Store(int64(d))
}

// Sweep prunes Evicted map slots and expired negative memos. Call it
// periodically; nothing else reclaims the map slots of evicted entries.
func (c *GlyphCache) Sweep() {
	now := time.Now()
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, e := range shard.entries {
			if e.state == stateEvicted {
				delete(shard.entries, key)
			}
		}
		for key, neg := range shard.negatives {
			if !now.Before(neg.expires) {
				delete(shard.negatives, key)
			}
		}
		shard.mu.Unlock()
	}
}

// Len returns the number of Ready entries.
func (c *GlyphCache) Len() int {
	n := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		for _, e := range shard.entries {
			if e.state == stateReady {
				n++
			}
		}
		shard.mu.Unlock()
	}
	return n
}

// Stats returns a snapshot of the cache counters.
func (c *GlyphCache) Stats() CacheStats {
	return CacheStats{
		Hits:          c.counters.hits.Load(),
		Misses:        c.counters.misses.Load(),
		Coalesced:     c.counters.coalesced.Load(),
		NegativeHits:  c.counters.negativeHits.Load(),
		Evictions:     c.counters.evictions.Load(),
		ProducedBytes: c.counters.producedBytes.Load(),
		CurrentBytes:  c.usedBytes(),
		Entries:       c.Len(),
	}
}

// HitRate returns the hit rate as a percentage, zero when no lookups
// have happened.
func (c *GlyphCache) HitRate() float64 {
	hits := c.counters.hits.Load()
	misses := c.counters.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// ResetStats zeroes the monotonic counters. Entry state and byte
// accounting are untouched.
func (c *GlyphCache) ResetStats() {
	c.counters.hits.Store(0)
	c.counters.misses.Store(0)
	c.counters.coalesced.Store(0)
	c.counters.negativeHits.Store(0)
	c.counters.evictions.Store(0)
	c.counters.producedBytes.Store(0)
}

// Close marks the cache closed. Subsequent GetOrProduce calls fail with
// ErrCacheClosed; in-flight productions complete normally.
func (c *GlyphCache) Close() error {
	c.closed.Store(true)
	return nil
}

// snapshot returns every Ready entry's fingerprint and artifact, for the
// dump writer.
func (c *GlyphCache) snapshot() []snapshotEntry {
	var out []snapshotEntry
	for _, shard := range c.shards {
		shard.mu.Lock()
		for _, e := range shard.entries {
			if e.state == stateReady {
				out = append(out, snapshotEntry{fp: e.fp, art: e.art})
			}
		}
		shard.mu.Unlock()
	}
	return out
}

// snapshotEntry pairs a fingerprint with its artifact for serialization.
type snapshotEntry struct {
	fp  Fingerprint
	art *Artifact
}

// install inserts a restored entry as Ready, used by dump loading. The
// entry is skipped when a live entry already holds the key or when it
// would blow the budget on its own.
func (c *GlyphCache) install(fp Fingerprint, art *Artifact) bool {
	cost := art.ByteCost()
	if cost > c.maxBytes.Load() {
		return false
	}
	key := fp.key()
	shard := c.shardFor(key)
	now := time.Now().UnixNano()

	shard.mu.Lock()
	if prev, ok := shard.entries[key]; ok && prev.state != stateEvicted {
		shard.mu.Unlock()
		return false
	}
	done := make(chan struct{})
	close(done)
	e := &cacheEntry{
		key:       key,
		fp:        fp,
		state:     stateReady,
		art:       art,
		cost:      cost,
		createdAt: now,
		lastUsed:  now,
		useCount:  1,
		done:      done,
	}
	shard.entries[key] = e
	shard.addToFront(e)
	shard.usedBytes += cost
	shard.mu.Unlock()

	c.evictOverBudget(e)
	return true
}
