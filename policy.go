package glyphkit

// Intrusive recency list plumbing and victim selection for a cache shard.
// All functions here are called with the shard lock held.

// addToFront inserts an entry at the head (most recently used) position.
func (s *cacheShard) addToFront(e *cacheEntry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

// moveToFront promotes an entry to the head position.
func (s *cacheShard) moveToFront(e *cacheEntry) {
	if e == s.head {
		return
	}
	s.unlink(e)
	s.addToFront(e)
}

// unlink detaches an entry from the list. Map bookkeeping is the
// caller's job.
func (s *cacheShard) unlink(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if s.head == e {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if s.tail == e {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

// touch records an access under the given policy. LRU promotes; FIFO and
// LFU leave list order alone (FIFO orders by insertion, LFU selects by
// use count).
func (s *cacheShard) touch(e *cacheEntry, policy EvictionPolicy, now int64) {
	e.lastUsed = now
	e.useCount++
	if policy == PolicyLRU {
		s.moveToFront(e)
	}
}

// victim returns this shard's best eviction candidate under the policy,
// excluding the given entry (the one whose insertion triggered the
// eviction), along with a comparable badness metric: lower evicts first
// across shards. Returns nil when the shard has no candidate.
func (s *cacheShard) victim(policy EvictionPolicy, exclude *cacheEntry) (*cacheEntry, int64) {
	switch policy {
	case PolicyLFU:
		// The list is insertion-ordered for LFU; scan for the lowest use
		// count, ties broken by oldest last use. Shards are small enough
		// that the scan stays cheap.
		var best *cacheEntry
		for e := s.tail; e != nil; e = e.prev {
			if e == exclude {
				continue
			}
			if best == nil ||
				e.useCount < best.useCount ||
				(e.useCount == best.useCount && e.lastUsed < best.lastUsed) {
				best = e
			}
		}
		if best == nil {
			return nil, 0
		}
		return best, int64(best.useCount)
	default:
		// LRU: tail is the oldest access. FIFO: entries are never
		// promoted, so tail is the oldest insertion.
		e := s.tail
		if e == exclude {
			e = e.prev
		}
		if e == nil {
			return nil, 0
		}
		if policy == PolicyFIFO {
			return e, e.createdAt
		}
		return e, e.lastUsed
	}
}
