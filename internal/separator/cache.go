package separator

import (
	"sync"
	"time"
)

// cacheTTL is how long a device->flight mapping is trusted before the
// next point for that device forces a Store re-read, bounding how long
// a stale in-memory decision can persist past the Writer confirming a
// flight row exists (spec §4.4).
const cacheTTL = time.Hour

type cacheEntry struct {
	flightID  string
	expiresAt time.Time
}

// deviceCache is an in-memory device_id -> flight_id cache backing the
// separator's hot path so most points never need a Store round trip.
type deviceCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newDeviceCache() *deviceCache {
	return &deviceCache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached flight_id for a device, or ok=false if there
// is no entry or it has expired.
func (c *deviceCache) Get(deviceID string) (flightID string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, found := c.entries[deviceID]
	if !found || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.flightID, true
}

// Set records a device's current flight_id, refreshing the TTL.
func (c *deviceCache) Set(deviceID, flightID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[deviceID] = cacheEntry{flightID: flightID, expiresAt: time.Now().Add(cacheTTL)}
}

// Invalidate drops a device's cached flight_id, forcing the next point
// to re-read the Store. Resolve does not call it: when it opens a new
// flight, Set overwrites the device's entry instead.
func (c *deviceCache) Invalidate(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, deviceID)
}
