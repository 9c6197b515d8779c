package fanout

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/metrics"
	"github.com/paraglide-live/trackcore/internal/store"
)

// Config controls one Hub's tick cadence and delay.
type Config struct {
	UpdateInterval    time.Duration // spec default 10s
	DelaySeconds      int           // spec default 60
	InterpolationRate int           // seconds, client-side hint only
}

func (c Config) withDefaults() Config {
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = 10 * time.Second
	}
	if c.DelaySeconds <= 0 {
		c.DelaySeconds = 60
	}
	if c.InterpolationRate <= 0 {
		c.InterpolationRate = 1
	}
	return c
}

// PositionStore is the subset of store.Store a Hub reads from.
type PositionStore interface {
	LatestPositionsAsOf(ctx context.Context, raceID string, asOf time.Time) ([]store.PilotPosition, error)
}

// Hub fans delayed positions out to every WebSocket client subscribed to
// one race, strictly serially per tick (spec §5: "fan-out ticks for one
// race are strictly serial").
type Hub struct {
	race  RaceConfigData
	store PositionStore
	cfg   Config

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub builds a Hub for one race.
func NewHub(race RaceConfigData, st PositionStore, cfg Config) *Hub {
	cfg = cfg.withDefaults()
	race.DelaySeconds = cfg.DelaySeconds
	race.UpdateInterval = int(cfg.UpdateInterval.Seconds())
	race.InterpolationRate = cfg.InterpolationRate
	race.ProtocolVersion = protocolVersion
	return &Hub{
		race:       race,
		store:      st,
		cfg:        cfg,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Accept registers a new client and sends its initial race_config frame.
func (h *Hub) Accept(c *Client) {
	c.enqueue(Envelope{Type: string(TypeRaceConfig), Data: h.race})
	h.register <- c
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs the Hub's event loop: lifecycle events, a tick ticker, and
// a viewer-count ticker, until ctx is canceled. Matches the
// suture.Service shape the supervisor runs it under.
func (h *Hub) Serve(ctx context.Context) error {
	tick := time.NewTicker(h.cfg.UpdateInterval)
	defer tick.Stop()
	viewerTick := time.NewTicker(30 * time.Second)
	defer viewerTick.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			metrics.FanoutConnections.WithLabelValues(h.race.RaceID).Set(float64(h.ClientCount()))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			metrics.FanoutConnections.WithLabelValues(h.race.RaceID).Set(float64(h.ClientCount()))

		case <-viewerTick.C:
			h.broadcastViewerCount()

		case <-tick.C:
			h.broadcastDelta(ctx, time.Now())
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) broadcastViewerCount() {
	env := Envelope{Type: string(TypeViewerCount), Data: ViewerCountData{
		Count:     h.ClientCount(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}}
	h.forEachClient(func(c *Client) { c.enqueue(env) })
}

// broadcastDelta reads positions as of now-delay_seconds and pushes each
// client only the pilots visible in its subscribed tiles, plus its own
// pilot_id unconditionally (spec §4.6 subscription semantics).
func (h *Hub) broadcastDelta(ctx context.Context, now time.Time) {
	start := time.Now()
	defer func() {
		metrics.FanoutTickDuration.WithLabelValues(h.race.RaceID).Observe(time.Since(start).Seconds())
	}()

	asOf := now.Add(-time.Duration(h.cfg.DelaySeconds) * time.Second)
	positions, err := h.store.LatestPositionsAsOf(ctx, h.race.RaceID, asOf)
	if err != nil {
		logging.Warn().Err(err).Str("race_id", h.race.RaceID).Msg("fanout: failed to load positions for tick")
		return
	}
	if len(positions) == 0 {
		h.broadcastHeartbeat()
		return
	}

	h.forEachClient(func(c *Client) {
		h.sendDeltaTo(c, positions, now)
	})
}

func (h *Hub) sendDeltaTo(c *Client, positions []store.PilotPosition, now time.Time) {
	entries := make([]DeltaEntry, 0, len(positions))
	for _, p := range positions {
		if p.PilotID != c.pilotID && !c.Subscribed(p.Lat, p.Lon) {
			continue
		}
		x, y := MercatorXY(p.Lat, p.Lon)
		entries = append(entries, DeltaEntry{
			PilotID: p.PilotID, PilotName: p.PilotName,
			Lat: p.Lat, Lon: p.Lon, Elevation: p.Elevation,
			Timestamp: p.Timestamp.UTC().Format(time.RFC3339),
			XMercator: x, YMercator: y,
		})
	}
	if len(entries) == 0 {
		return
	}

	payload := DeltaPayload{Type: "delta", Timestamp: now.UTC().Format(time.RFC3339), Updates: entries}
	encoded, err := encodeGzipBase64(payload)
	if err != nil {
		logging.Warn().Err(err).Msg("fanout: failed to encode delta payload")
		return
	}

	c.enqueue(Envelope{Type: string(TypeDeltaUpdate), Data: DeltaUpdateData{
		RaceID: h.race.RaceID, Data: encoded, Timestamp: payload.Timestamp,
		Compression: "gzip", UpdateCount: len(entries),
	}})
	metrics.FanoutDeltasSent.WithLabelValues(h.race.RaceID).Inc()
}

func (h *Hub) broadcastHeartbeat() {
	env := Envelope{Type: string(TypeHeartbeat), Data: HeartbeatData{Timestamp: time.Now().UTC().Format(time.RFC3339)}}
	h.forEachClient(func(c *Client) { c.enqueue(env) })
}

// sendCatchUp pushes c an immediate delta with everything currently
// visible in its (possibly just-changed) subscription set, per spec's
// "may send a catch-up delta_update" allowance.
func (h *Hub) sendCatchUp(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	now := time.Now()
	asOf := now.Add(-time.Duration(h.cfg.DelaySeconds) * time.Second)
	positions, err := h.store.LatestPositionsAsOf(ctx, h.race.RaceID, asOf)
	if err != nil {
		return
	}
	h.sendDeltaTo(c, positions, now)
}

func (h *Hub) forEachClient(fn func(*Client)) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		fn(c)
	}
}

func encodeGzipBase64(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return "", err
	}
	if err := gw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
