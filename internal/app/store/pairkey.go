/*
Package store contains the durable state of the messaging engine: the conversation
log, the friend graph, the block list, and user accounts. All components share a
single pgx connection pool and serialize conflicting writes per conversation pair
rather than behind one global lock.
*/
package store

import (
	"hash/fnv"
	"sync"
)

// PairKey returns the canonical key for an unordered user pair.
// Both (a,b) and (b,a) map to the same key.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// OrderPair returns the two ids in canonical ascending order,
// matching the friendships table's (user_a < user_b) constraint.
func OrderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// shardCount is the number of stripes in the pair lock. Conflicts only occur
// between operations on pairs that hash to the same stripe.
const shardCount = 64

// PairLock serializes operations per conversation pair using striped mutexes,
// so concurrent appends to different conversations proceed in parallel. The
// zero value is ready to use. The delivery router holds its own PairLock
// across append and push to keep push order aligned with append order.
type PairLock struct {
	shards [shardCount]sync.Mutex
}

func (l *PairLock) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}

// Lock acquires the stripe for the given pair and returns its unlock function.
func (l *PairLock) Lock(a, b string) func() {
	mu := l.shard(PairKey(a, b))
	mu.Lock()
	return mu.Unlock
}
