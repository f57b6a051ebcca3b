package cohort

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ChicagoDave/buildstock/pkg/series"
)

// unbounded is the LRU size used when a cache is created without a limit.
const unbounded = math.MaxInt32

// Cache memoises Results by key so interactive callers can re-run a scenario
// without recomputing unchanged (region, category, lifetime, stock)
// combinations. Cached results keep their cohort matrix and must be treated
// as read-only. Safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, *Result]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache returns a cache holding at most capacity results. The least
// recently used entry is evicted first. capacity <= 0 means unbounded.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = unbounded
	}
	l, err := lru.New[string, *Result](capacity)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	return &Cache{entries: l}
}

// Get returns the cached result for key.
func (c *Cache) Get(key string) (*Result, bool) {
	r, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return r, ok
}

// Put stores r under key.
func (c *Cache) Put(key string, r *Result) {
	c.entries.Add(key, r)
}

// Len returns the number of cached results.
func (c *Cache) Len() int { return c.entries.Len() }

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	return int(c.hits.Load()), int(c.misses.Load())
}

// SolveCached returns the cached result for key or builds the survival
// table, solves and stores the result. The table is only built on a miss.
// A nil cache always solves. The second return reports a cache hit.
func SolveCached(c *Cache, key string, stock series.Series, table func() (Survival, error)) (*Result, bool, error) {
	if c != nil {
		if r, ok := c.Get(key); ok {
			return r, true, nil
		}
	}
	sf, err := table()
	if err != nil {
		return nil, false, err
	}
	r, err := Solve(stock, sf)
	if err != nil {
		return nil, false, err
	}
	if c != nil {
		c.Put(key, r)
	}
	return r, false, nil
}

// Fingerprint hashes a label and any number of series into a cache key
// component. Identical inputs give identical keys across runs.
func Fingerprint(label string, list ...series.Series) string {
	h := fnv.New64a()
	h.Write([]byte(label))
	var buf [8]byte
	for _, s := range list {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(s.Start)))
		h.Write(buf[:])
		for _, v := range s.Values {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return fmt.Sprintf("%s/%016x", label, h.Sum64())
}
