package gpstcp

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DeviceRateLimiter enforces the spec's per-device fix cadence: no more
// than one fix every minInterval, and no more than maxPerWindow within
// window. Reconnections are tracked separately and exempted up to
// reconnectExempt times per window, since a flapping link shouldn't be
// punished the same as a chatty device.
type DeviceRateLimiter struct {
	mu             sync.Mutex
	devices        map[string]*deviceLimiterEntry
	minInterval    time.Duration
	window         time.Duration
	maxPerWindow   int
	reconnectLimit int
}

type deviceLimiterEntry struct {
	limiter        *rate.Limiter
	lastSeen       time.Time
	lastFix        time.Time
	reconnectCount int
	windowStart    time.Time
}

// NewDeviceRateLimiter builds the default device limiter: min 2s between
// fixes, 20 fixes per 60s window, 100 reconnects per 5 minutes exempt
// from the fix cadence.
func NewDeviceRateLimiter() *DeviceRateLimiter {
	return &DeviceRateLimiter{
		devices:        make(map[string]*deviceLimiterEntry),
		minInterval:    2 * time.Second,
		window:         60 * time.Second,
		maxPerWindow:   20,
		reconnectLimit: 100,
	}
}

// AllowFix reports whether a fix from deviceID should be accepted now.
func (d *DeviceRateLimiter) AllowFix(deviceID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	entry, ok := d.devices[deviceID]
	if !ok {
		entry = &deviceLimiterEntry{
			limiter:     rate.NewLimiter(rate.Every(d.window/time.Duration(d.maxPerWindow)), d.maxPerWindow),
			windowStart: now,
		}
		d.devices[deviceID] = entry
	}
	entry.lastSeen = now
	if !entry.lastFix.IsZero() && now.Sub(entry.lastFix) < d.minInterval {
		return false
	}
	if !entry.limiter.Allow() {
		return false
	}
	entry.lastFix = now
	return true
}

// AllowReconnect reports whether another connection from deviceID within
// the reconnect window is permitted.
func (d *DeviceRateLimiter) AllowReconnect(deviceID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.devices[deviceID]
	now := time.Now()
	if !ok || now.Sub(entry.windowStart) > 5*time.Minute {
		d.devices[deviceID] = &deviceLimiterEntry{
			limiter:        rate.NewLimiter(rate.Every(d.window/time.Duration(d.maxPerWindow)), d.maxPerWindow),
			windowStart:    now,
			reconnectCount: 1,
			lastSeen:       now,
		}
		return true
	}
	entry.reconnectCount++
	return entry.reconnectCount <= d.reconnectLimit
}

// Cleanup removes device entries untouched for longer than idleAfter.
func (d *DeviceRateLimiter) Cleanup(idleAfter time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := time.Now().Add(-idleAfter)
	for id, entry := range d.devices {
		if entry.lastSeen.Before(cutoff) {
			delete(d.devices, id)
		}
	}
}

// IPGuard blacklists source IPs that open connections faster than an
// abuse threshold, exempting loopback (useful for local integration
// tests and co-located health checks).
type IPGuard struct {
	mu          sync.Mutex
	conns       map[string][]time.Time
	blacklist   map[string]time.Time
	maxPerSec   int
	banDuration time.Duration
}

// NewIPGuard builds the default guard: more than 10 connections/sec from
// one IP triggers a 60s blacklist.
func NewIPGuard() *IPGuard {
	return &IPGuard{
		conns:       make(map[string][]time.Time),
		blacklist:   make(map[string]time.Time),
		maxPerSec:   10,
		banDuration: 60 * time.Second,
	}
}

// Allow reports whether a new connection from addr should be accepted.
func (g *IPGuard) Allow(addr net.Addr) bool {
	host := hostOf(addr)
	if host == "" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if until, banned := g.blacklist[host]; banned {
		if now.Before(until) {
			return false
		}
		delete(g.blacklist, host)
	}

	recent := g.conns[host]
	cutoff := now.Add(-time.Second)
	kept := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	g.conns[host] = kept

	if len(kept) > g.maxPerSec {
		g.blacklist[host] = now.Add(g.banDuration)
		return false
	}
	return true
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
