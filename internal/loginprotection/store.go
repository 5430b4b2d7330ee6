package loginprotection

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// Record is the per-key failure history.
type Record struct {
	Failures    int
	LastFailure time.Time
}

// Store persists failure records keyed by (username, client address).
// Implementations must make Increment and Clear atomic per key.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Increment(ctx context.Context, key string, now time.Time) (Record, error)
	Clear(ctx context.Context, key string) error
}

// Key builds the storage key for a (username, client address) pair.
// Keying by the pair lets an attacker hammering from one address be
// locked out without denying service to the same username elsewhere.
func Key(username, clientAddr string) string {
	return username + "@" + clientAddr
}

const shardCount = 32

// MemoryStore is the default in-process Store. It shards the key space
// across independently locked maps so concurrent updates for unrelated
// keys do not contend on a single lock.
type MemoryStore struct {
	shards [shardCount]memoryShard
}

type memoryShard struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].records = make(map[string]Record)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	return rec, ok, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, now time.Time) (Record, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec := sh.records[key]
	rec.Failures++
	rec.LastFailure = now
	sh.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.records, key)
	return nil
}

// Prune drops records whose most recent failure is older than ttl.
// Called periodically by the background sweeper to bound memory use.
// Returns the number of records removed.
func (s *MemoryStore) Prune(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, rec := range sh.records {
			if now.Sub(rec.LastFailure) > ttl {
				delete(sh.records, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of live records across all shards.
func (s *MemoryStore) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.records)
		sh.mu.Unlock()
	}
	return total
}
