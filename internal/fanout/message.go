package fanout

// MessageType tags the outer envelope of every frame on the wire, both
// directions.
type MessageType string

const (
	TypeRaceConfig         MessageType = "race_config"
	TypeViewerCount        MessageType = "viewer_count"
	TypeTileData           MessageType = "tile_data"
	TypeDeltaUpdate        MessageType = "delta_update"
	TypeHeartbeat          MessageType = "heartbeat"
	TypeViewportUpdate     MessageType = "viewport_update"
	TypeRequestInitialData MessageType = "request_initial_data"
	TypePing               MessageType = "ping"
	TypePong               MessageType = "pong"
	TypeGetStats           MessageType = "get_stats"
	TypeStats              MessageType = "stats"
)

const protocolVersion = "2.0"

// Envelope is the outer shape of every WebSocket frame.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// RaceConfigData is sent once, immediately after a successful handshake.
type RaceConfigData struct {
	RaceID            string   `json:"race_id"`
	Name              string   `json:"name"`
	Timezone          string   `json:"timezone"`
	DelaySeconds      int      `json:"delay_seconds"`
	UpdateInterval    int      `json:"update_interval"`
	InterpolationRate int      `json:"interpolation_rate"`
	ProtocolVersion   string   `json:"protocol_version"`
	Features          []string `json:"features"`
}

// ViewerCountData is pushed at least every 30s.
type ViewerCountData struct {
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

// TileDataData carries one compressed MVT tile, sent on demand.
type TileDataData struct {
	Tile        [3]int `json:"tile"` // [z, x, y]
	Format      string `json:"format"`
	Compression string `json:"compression"`
	Data        string `json:"data"` // base64(gzip(MVT))
	Timestamp   string `json:"timestamp"`
}

// DeltaEntry is one pilot's delayed position inside a delta_update.
type DeltaEntry struct {
	PilotID    string   `json:"pilot_id"`
	PilotName  string   `json:"pilot_name"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Elevation  *float64 `json:"elevation,omitempty"`
	Timestamp  string   `json:"timestamp"`
	XMercator  float64  `json:"x_mercator"`
	YMercator  float64  `json:"y_mercator"`
}

// DeltaPayload is the decoded JSON carried inside delta_update.data
// (gzip+base64 on the wire).
type DeltaPayload struct {
	Type      string       `json:"type"`
	Timestamp string       `json:"timestamp"`
	Updates   []DeltaEntry `json:"updates"`
}

// DeltaUpdateData is the outer delta_update envelope.
type DeltaUpdateData struct {
	RaceID      string `json:"race_id"`
	Data        string `json:"data"`
	Timestamp   string `json:"timestamp"`
	Compression string `json:"compression"`
	UpdateCount int    `json:"update_count"`
}

// HeartbeatData keeps idle connections alive.
type HeartbeatData struct {
	Timestamp string `json:"timestamp"`
}

// ViewportUpdateData is sent client -> server to replace the
// subscription set atomically.
type ViewportUpdateData struct {
	Tiles [][3]int `json:"tiles"`
}

// StatsData answers a get_stats request.
type StatsData struct {
	ViewerCount     int `json:"viewer_count"`
	SubscribedTiles int `json:"subscribed_tiles"`
}
