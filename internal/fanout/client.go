package fanout

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/paraglide-live/trackcore/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// sendBufferSize bounds per-client buffering (spec §4.6: bounded
	// buffering, oldest un-sent delta_update dropped on overflow).
	sendBufferSize = 32
)

var clientIDCounter atomic.Uint64

// Client is one subscriber connection inside a race's Hub.
type Client struct {
	id        uint64
	hub       *Hub
	conn      *websocket.Conn
	pilotID   string
	pilotName string

	send chan Envelope

	mu    sync.RWMutex
	tiles map[Tile]bool
}

// NewClient wraps an accepted WebSocket connection as a fan-out Client.
func NewClient(hub *Hub, conn *websocket.Conn, pilotID, pilotName string) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		hub:       hub,
		conn:      conn,
		pilotID:   pilotID,
		pilotName: pilotName,
		send:      make(chan Envelope, sendBufferSize),
		tiles:     make(map[Tile]bool),
	}
}

// ID returns the client's unique identifier for deterministic ordering.
func (c *Client) ID() uint64 { return c.id }

// Subscribed reports whether lat/lon falls in any of the client's
// currently-subscribed tiles.
func (c *Client) Subscribed(lat, lon float64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for t := range c.tiles {
		if CalculateTileBounds(t.Z, t.X, t.Y).Contains(lat, lon) {
			return true
		}
	}
	return false
}

func (c *Client) tileCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tiles)
}

func (c *Client) setTiles(coords [][3]int) {
	next := make(map[Tile]bool, len(coords))
	for _, t := range coords {
		next[Tile{Z: t[0], X: t[1], Y: t[2]}] = true
	}
	c.mu.Lock()
	c.tiles = next
	c.mu.Unlock()
}

// enqueue sends env to the client. On overflow, a frame other than
// tile_data first drops the oldest buffered frame if that frame is a
// delta_update, and is itself discarded if there is still no room.
// tile_data never makes room by dropping other frames: it waits up to
// writeWait for space and is discarded (and logged) if the buffer stays
// full that long.
func (c *Client) enqueue(env Envelope) {
	select {
	case c.send <- env:
		return
	default:
	}

	if env.Type != string(TypeTileData) {
		c.dropOldestDelta()
		select {
		case c.send <- env:
		default:
		}
		return
	}

	// tile_data does not evict other frames; wait up to writeWait for room.
	select {
	case c.send <- env:
	case <-time.After(writeWait):
		logging.Warn().Uint64("client_id", c.id).Msg("fanout: dropped tile_data, client send buffer stuck")
	}
}

// dropOldestDelta removes the oldest buffered frame to make room if it
// is a delta_update. Any other frame at the head is put back at the tail
// of the buffer, and no later frame is inspected.
func (c *Client) dropOldestDelta() {
	select {
	case env := <-c.send:
		if env.Type != string(TypeDeltaUpdate) {
			// Put it back; nothing else to drop right now.
			select {
			case c.send <- env:
			default:
			}
		}
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("fanout: unexpected close")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		c.handleClientMessage(env, raw)
	}
}

func (c *Client) handleClientMessage(env Envelope, raw []byte) {
	switch MessageType(env.Type) {
	case TypeViewportUpdate:
		var payload struct {
			Data ViewportUpdateData `json:"data"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return
		}
		c.setTiles(payload.Data.Tiles)
		c.hub.sendCatchUp(c)

	case TypeRequestInitialData:
		c.hub.sendCatchUp(c)

	case TypePing:
		c.enqueue(Envelope{Type: string(TypePong)})

	case TypeGetStats:
		c.enqueue(Envelope{Type: string(TypeStats), Data: StatsData{
			ViewerCount:     c.hub.ClientCount(),
			SubscribedTiles: c.tileCount(),
		}})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins the client's read/write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
