// Package store implements the per-database typed keyspace: key lookup with
// lazy+eager expiration, typed narrowing, random sampling, glob matching,
// and the last-modified metadata WATCH depends on.
package store

import (
	"container/heap"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/k0kubun/redisd/internal/values"
)

type entry struct {
	value        values.Value
	expireAt     time.Time // zero value means "no expiration"
	lastModified time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// Database is one logical database: the keyspace map plus its time-ordered
// expires index (store invariant 1). Every operation takes the caller's
// notion of "now" so tests can control expiration deterministically.
type Database struct {
	mu      sync.RWMutex
	values  map[string]*entry
	expires expireHeap
}

func NewDatabase() *Database {
	return &Database{values: make(map[string]*entry)}
}

// Lock/Unlock/RLock/RUnlock expose the reader-writer lock directly so the
// command dispatcher can hold it for a whole MULTI/EXEC replay (spec.md §5).
func (d *Database) Lock()    { d.mu.Lock() }
func (d *Database) Unlock()  { d.mu.Unlock() }
func (d *Database) RLock()   { d.mu.RLock() }
func (d *Database) RUnlock() { d.mu.RUnlock() }

// Get returns the value stored at key, or ok=false if missing or expired.
// Expired keys are evicted lazily on this path. Caller must hold the lock.
func (d *Database) Get(key string, now time.Time) (values.Value, bool) {
	e, ok := d.values[key]
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		delete(d.values, key)
		return nil, false
	}
	return e.value, true
}

var ErrKeyExists = errors.New("ERR key already exists")

// Insert stores value under key with the given absolute expiration (zero
// for none). It fails if key is already present and unexpired.
func (d *Database) Insert(key string, expireAt time.Time, value values.Value, now time.Time) error {
	if _, ok := d.Get(key, now); ok {
		return ErrKeyExists
	}
	d.set(key, expireAt, value, now)
	return nil
}

// Replace unconditionally stores value under key, overwriting any prior
// entry (and its variant, if different).
func (d *Database) Replace(key string, expireAt time.Time, value values.Value, now time.Time) {
	d.set(key, expireAt, value, now)
}

func (d *Database) set(key string, expireAt time.Time, value values.Value, now time.Time) {
	d.values[key] = &entry{value: value, expireAt: expireAt, lastModified: now}
	if !expireAt.IsZero() {
		d.RegisterExpiration(expireAt, key)
	}
}

// Touch updates a key's last-modified timestamp without changing its value,
// used after in-place mutations (APPEND, LPUSH, HSET, ...).
func (d *Database) Touch(key string, now time.Time) {
	if e, ok := d.values[key]; ok {
		e.lastModified = now
	}
}

// Erase removes key unconditionally.
func (d *Database) Erase(key string) {
	delete(d.values, key)
}

// Exists reports whether key is present and unexpired.
func (d *Database) Exists(key string, now time.Time) bool {
	_, ok := d.Get(key, now)
	return ok
}

// LastModified returns the timestamp of the most recent mutation to key,
// used by the WATCH/EXEC invalidation check.
func (d *Database) LastModified(key string, now time.Time) (time.Time, bool) {
	e, ok := d.values[key]
	if !ok || e.expired(now) {
		return time.Time{}, false
	}
	return e.lastModified, true
}

// ExpireAt returns key's absolute expiration and whether one is set.
func (d *Database) ExpireAt(key string, now time.Time) (time.Time, bool, bool) {
	e, ok := d.values[key]
	if !ok || e.expired(now) {
		return time.Time{}, false, false
	}
	if e.expireAt.IsZero() {
		return time.Time{}, false, true
	}
	return e.expireAt, true, true
}

// SetExpireAt sets or clears (zero value) key's expiration. Returns false if
// key is absent.
func (d *Database) SetExpireAt(key string, expireAt time.Time, now time.Time) bool {
	e, ok := d.values[key]
	if !ok || e.expired(now) {
		return false
	}
	e.expireAt = expireAt
	if !expireAt.IsZero() {
		d.RegisterExpiration(expireAt, key)
	}
	return true
}

// Persist clears key's expiration, returning true if it had one.
func (d *Database) Persist(key string, now time.Time) bool {
	e, ok := d.values[key]
	if !ok || e.expired(now) || e.expireAt.IsZero() {
		return false
	}
	e.expireAt = time.Time{}
	return true
}

// Len reports the number of stored entries, counting expired entries that
// have not yet been evicted (a full sweep is not forced).
func (d *Database) Len() int {
	return len(d.values)
}

// Flush removes every key.
func (d *Database) Flush() {
	d.values = make(map[string]*entry)
	d.expires = nil
}

// RandomKey uniformly samples one present key, evicting and retrying on any
// expired entry it draws, per spec.md §4.3.
func (d *Database) RandomKey(now time.Time) (string, bool) {
	for len(d.values) > 0 {
		i, target := rand.Intn(len(d.values)), 0
		var key string
		for k := range d.values {
			if target == i {
				key = k
				break
			}
			target++
		}
		if d.values[key].expired(now) {
			delete(d.values, key)
			continue
		}
		return key, true
	}
	return "", false
}

// Keys returns every unexpired key, sweeping expired entries it encounters.
func (d *Database) Keys(now time.Time) []string {
	out := make([]string, 0, len(d.values))
	for k, e := range d.values {
		if e.expired(now) {
			delete(d.values, k)
			continue
		}
		out = append(out, k)
	}
	return out
}

// Match returns every unexpired key matching the glob pattern (spec.md §4.3).
func (d *Database) Match(pattern string, now time.Time) []string {
	var out []string
	for _, k := range d.Keys(now) {
		if GlobMatch(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

type expireEntry struct {
	at  time.Time
	key string
}

type expireHeap []expireEntry

func (h expireHeap) Len() int            { return len(h) }
func (h expireHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h expireHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expireHeap) Push(x interface{}) { *h = append(*h, x.(expireEntry)) }
func (h *expireHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// RegisterExpiration adds key to the time-ordered secondary index so
// FlushExpired can sweep it eagerly without waiting for a read.
func (d *Database) RegisterExpiration(at time.Time, key string) {
	heap.Push(&d.expires, expireEntry{at: at, key: key})
}

// FlushExpired evicts every key whose registered expiration is <= now. A
// key may appear multiple times in the index (its expiration was updated);
// each pop is validated against the live entry before eviction, satisfying
// store invariant 1.
func (d *Database) FlushExpired(now time.Time) int {
	evicted := 0
	for d.expires.Len() > 0 {
		top := d.expires[0]
		if top.at.After(now) {
			break
		}
		heap.Pop(&d.expires)
		e, ok := d.values[top.key]
		if ok && !e.expireAt.IsZero() && e.expireAt.Equal(top.at) {
			delete(d.values, top.key)
			evicted++
		}
	}
	return evicted
}

// Range calls fn for every unexpired entry, in an order stable for the
// duration of the call — required for a consistent snapshot write. fn must
// not mutate the database.
func (d *Database) Range(now time.Time, fn func(key string, expireAt time.Time, value values.Value)) {
	for k, e := range d.values {
		if e.expired(now) {
			continue
		}
		fn(k, e.expireAt, e.value)
	}
}
