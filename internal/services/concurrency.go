package services

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// MutationLimiter serializes remote mutations that target the same database
// and bounds how many mutations are in flight overall.
// It uses channel-based counting semaphores at two levels: global and per-key.
// A key's semaphore is dropped once no caller holds or waits for it.
type MutationLimiter struct {
	global      chan struct{}
	perKey      map[string]*keySlot
	mu          sync.Mutex
	limits      dbadmin.MutationLimits
	activeCount atomic.Int64
}

// NewMutationLimiter creates a limiter with the given limits.
func NewMutationLimiter(limits dbadmin.MutationLimits) *MutationLimiter {
	if limits.GlobalMax <= 0 {
		limits.GlobalMax = 10
	}
	if limits.PerDatabase <= 0 {
		limits.PerDatabase = 1
	}

	return &MutationLimiter{
		global: make(chan struct{}, limits.GlobalMax),
		perKey: make(map[string]*keySlot),
		limits: limits,
	}
}

// Acquire blocks until both a global slot and a slot for key are available,
// or returns an error if the context is cancelled.
func (c *MutationLimiter) Acquire(ctx context.Context, key string) error {
	select {
	case c.global <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	slot := c.holdKey(key)
	select {
	case slot.ch <- struct{}{}:
		c.activeCount.Add(1)
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		c.dropKey(key, slot)
		c.mu.Unlock()
		// Give back the global slot we already hold.
		<-c.global
		return ctx.Err()
	}
}

// Release returns both the global and per-key slots.
func (c *MutationLimiter) Release(key string) {
	c.activeCount.Add(-1)

	c.mu.Lock()
	if slot, ok := c.perKey[key]; ok {
		select {
		case <-slot.ch:
		default:
		}
		c.dropKey(key, slot)
	}
	c.mu.Unlock()

	select {
	case <-c.global:
	default:
	}
}

// MutationStats reports current usage.
type MutationStats struct {
	InFlight    int `json:"in_flight"`
	Keys        int `json:"keys"`
	GlobalMax   int `json:"global_max"`
	PerDatabase int `json:"per_database"`
}

// Stats returns the current limiter statistics.
func (c *MutationLimiter) Stats() MutationStats {
	c.mu.Lock()
	keys := len(c.perKey)
	c.mu.Unlock()
	return MutationStats{
		InFlight:    int(c.activeCount.Load()),
		Keys:        keys,
		GlobalMax:   c.limits.GlobalMax,
		PerDatabase: c.limits.PerDatabase,
	}
}

// keySlot is the per-key semaphore. refs counts holders and waiters.
type keySlot struct {
	ch   chan struct{}
	refs int
}

func (c *MutationLimiter) holdKey(key string) *keySlot {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.perKey[key]
	if !ok {
		slot = &keySlot{ch: make(chan struct{}, c.limits.PerDatabase)}
		c.perKey[key] = slot
	}
	slot.refs++
	return slot
}

// dropKey must be called with c.mu held.
func (c *MutationLimiter) dropKey(key string, slot *keySlot) {
	slot.refs--
	if slot.refs <= 0 && c.perKey[key] == slot {
		delete(c.perKey, key)
	}
}


// idKey and nameKey build limiter keys. Creates have no id yet, so they are
// serialized by name.
func idKey(id int64) string      { return "id:" + strconv.FormatInt(id, 10) }
func nameKey(name string) string { return "name:" + name }
