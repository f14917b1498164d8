package cache

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/rs/zerolog"
)

// MemoryStore is a Store backed by an LRU list.
type MemoryStore struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, *Entry]
	opts    Options
	version uint64
	closed  bool
	log     zerolog.Logger

	// keys with a revalidation in flight, and the token that started it
	revalidating map[string]uint64
	token        uint64

	evictions atomic.Int64
	rejected  atomic.Int64
}

// NewMemoryStore creates a MemoryStore with the given limits.
func NewMemoryStore(opts Options, log zerolog.Logger) (*MemoryStore, error) {
	s := &MemoryStore{
		opts:         opts.withDefaults(),
		log:          log.With().Str("store", "memory").Logger(),
		revalidating: make(map[string]uint64),
	}
	lru, err := simplelru.NewLRU[string, *Entry](s.opts.MaxEntries, nil)
	if err != nil {
		return nil, err
	}
	s.lru = lru
	return s, nil
}

func (s *MemoryStore) Get(key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Entry{}, false, ErrClosed
	}
	e, ok := s.lru.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	entry := e.clone()
	if _, ok := s.revalidating[key]; ok {
		entry.State = Revalidating
	}
	return entry, true, nil
}

func (s *MemoryStore) Put(entry Entry) (bool, error) {
	if entry.Size() > s.opts.MaxObjectSize {
		s.rejected.Add(1)
		s.log.Debug().Str("key", entry.Key).Int64("size", entry.Size()).Msg("Entry too large to store")
		return false, nil
	}
	entry = entry.clone()
	// the state is kept per key, see revalidating
	entry.State = Idle

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	s.version++
	entry.Version = s.version
	if !s.lru.Contains(entry.Key) && s.lru.Len() >= s.opts.MaxEntries {
		if evicted, _, ok := s.lru.RemoveOldest(); ok {
			s.evictions.Add(1)
			s.log.Debug().Str("key", evicted).Msg("Evicted entry")
		}
	}
	s.lru.Add(entry.Key, &entry)
	return true, nil
}

func (s *MemoryStore) Invalidate(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lru.Remove(key)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *MemoryStore) BeginRevalidation(key string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, ErrClosed
	}
	if _, ok := s.revalidating[key]; ok || !s.lru.Contains(key) {
		return 0, false, nil
	}
	s.token++
	s.revalidating[key] = s.token
	return s.token, true, nil
}

func (s *MemoryStore) EndRevalidation(key string, token uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.revalidating[key] == token {
		delete(s.revalidating, key)
	}
	return nil
}

func (s *MemoryStore) Stats() Stats {
	return Stats{
		Size:      s.Len(),
		MaxSize:   s.opts.MaxEntries,
		Evictions: s.evictions.Load(),
		Rejected:  s.rejected.Load(),
	}
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.lru.Purge()
	clear(s.revalidating)
	return nil
}
