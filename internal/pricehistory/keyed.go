// Package pricehistory holds per-token market history in process memory.
package pricehistory

import (
	"hash/fnv"
	"sort"
	"sync"
)

const numShards = 16

// Keyed is a sharded map keyed by token identifier. Operations on distinct
// keys only contend when they hash to the same shard.
type Keyed[T any] struct {
	shards [numShards]*shard[T]
}

type shard[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
}

// NewKeyed creates an empty sharded store.
func NewKeyed[T any]() *Keyed[T] {
	k := &Keyed[T]{}
	for i := 0; i < numShards; i++ {
		k.shards[i] = &shard[T]{items: make(map[string]*T)}
	}
	return k
}

func (k *Keyed[T]) getShard(key string) *shard[T] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return k.shards[h.Sum32()%numShards]
}

// Get returns the value for key, or nil.
func (k *Keyed[T]) Get(key string) (*T, bool) {
	s := k.getShard(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

// GetOrCreate returns the value for key, creating it with init when absent.
func (k *Keyed[T]) GetOrCreate(key string, init func() *T) *T {
	s := k.getShard(key)

	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items[key]; ok {
		return v
	}
	v = init()
	s.items[key] = v
	return v
}

// Update runs fn on the value for key under the shard's write lock,
// creating the value with init first if needed.
func (k *Keyed[T]) Update(key string, init func() *T, fn func(v *T)) {
	s := k.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[key]
	if !ok {
		v = init()
		s.items[key] = v
	}
	fn(v)
}

// View runs fn on the value for key under the shard's read lock.
// Returns false if key is absent.
func (k *Keyed[T]) View(key string, fn func(v *T)) bool {
	s := k.getShard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	if !ok {
		return false
	}
	fn(v)
	return true
}

// Delete removes key.
func (k *Keyed[T]) Delete(key string) {
	s := k.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns total items across all shards.
func (k *Keyed[T]) Len() int {
	total := 0
	for _, s := range k.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Keys returns all keys, sorted.
func (k *Keyed[T]) Keys() []string {
	var keys []string
	for _, s := range k.shards {
		s.mu.RLock()
		for key := range s.items {
			keys = append(keys, key)
		}
		s.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}
