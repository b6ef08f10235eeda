package selector

import (
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// idleUnboundedCapacity is the capacity handed to simplelru.NewLRU. The
// selector never wants capacity-based eviction — membership must mirror
// the live connection set exactly — so this is sized far beyond any
// realistic connection count purely to satisfy simplelru's "size must be
// positive" constructor requirement.
const idleUnboundedCapacity = math.MaxInt32

// idleLRU tracks id -> last-active-timestamp in access order, giving O(1)
// touch and O(1) oldest-peek for the idle reaper. It wraps
// hashicorp/golang-lru's simplelru rather than reimplementing the
// intrusive doubly-linked list by hand.
type idleLRU struct {
	lru *simplelru.LRU[string, time.Time]
}

func newIdleLRU() *idleLRU {
	// size is never exceeded in practice (see idleUnboundedCapacity), so
	// onEvict is unreachable and only present to satisfy the constructor.
	lru, err := simplelru.NewLRU[string, time.Time](idleUnboundedCapacity, nil)
	if err != nil {
		// Only returns an error for a non-positive size, which is a
		// compile-time constant here.
		panic(err)
	}
	return &idleLRU{lru: lru}
}

// Touch records id as most-recently-active at t, inserting it if new.
func (l *idleLRU) Touch(id string, t time.Time) {
	l.lru.Add(id, t)
}

// Remove drops id from the tracker. A no-op if id is not tracked.
func (l *idleLRU) Remove(id string) {
	l.lru.Remove(id)
}

// Len returns the number of tracked ids.
func (l *idleLRU) Len() int {
	return l.lru.Len()
}

// Oldest returns the least-recently-active id and its last-active time,
// without removing it. ok is false if nothing is tracked.
func (l *idleLRU) Oldest() (id string, lastActive time.Time, ok bool) {
	return l.lru.GetOldest()
}
