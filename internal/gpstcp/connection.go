package gpstcp

import (
	"bufio"
	"net"
	"time"

	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/metrics"
)

// connState tracks where a connection is in its lifecycle.
type connState string

const (
	stateAwaitingLogin connState = "awaiting_login"
	stateActive        connState = "active"
	stateIdle          connState = "idle"
	stateClosing       connState = "closing"
)

const (
	maxBufferedBytes = 8192
	idleTimeout      = 5 * time.Minute
	maxMalformed     = 3
)

// connection owns one device's TCP socket for the lifetime of the link.
type connection struct {
	conn         net.Conn
	server       *Server
	deviceID     string
	protocol     string // "watch" or "tk103", fixed after the first decoded frame
	state        connState
	malformed    int
	lastActivity time.Time
}

func newConnection(c net.Conn, s *Server) *connection {
	return &connection{conn: c, server: s, state: stateAwaitingLogin, lastActivity: time.Now()}
}

// serve reads frames until the connection closes or is rejected for
// abuse; each complete frame is decoded and dispatched to the server.
func (c *connection) serve() {
	defer c.close()

	remote := c.conn.RemoteAddr()
	_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 1024), maxBufferedBytes)
	scanner.Split(splitFrames)

	for scanner.Scan() {
		_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		c.lastActivity = time.Now()
		frame := scanner.Text()
		if frame == "" {
			continue
		}
		if !c.handleFrame(frame) {
			metrics.GPSTCPFramesRejected.WithLabelValues("malformed").Inc()
			c.malformed++
			if c.malformed >= maxMalformed {
				logging.Warn().Str("remote", remote.String()).Msg("gpstcp: closing connection after repeated malformed frames")
				return
			}
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		logging.Debug().Err(err).Str("remote", remote.String()).Msg("gpstcp: connection read error")
	}
}

func (c *connection) handleFrame(frame string) bool {
	var msg *Message
	var err error

	switch {
	case c.protocol == "tk103" || (c.protocol == "" && IsTK103Frame(frame)):
		msg, err = DecodeTK103(frame)
		if err == nil {
			c.protocol = "tk103"
		}
	case c.protocol == "watch" || (c.protocol == "" && IsWatchFrame(frame)):
		msg, err = DecodeWatch(frame)
		if err == nil {
			c.protocol = "watch"
		}
	default:
		return false
	}
	if err != nil {
		return false
	}

	metrics.GPSTCPFramesDecoded.WithLabelValues(c.protocol, string(msg.Kind)).Inc()

	if c.deviceID == "" {
		c.deviceID = msg.DeviceID
	}
	c.state = stateActive

	if !c.server.devices.AllowFix(c.deviceID) && msg.Kind != KindHeartbeat {
		metrics.GPSTCPFramesRejected.WithLabelValues("rate_limited").Inc()
		logging.Debug().Str("device_id", c.deviceID).Msg("gpstcp: dropping fix, device over rate limit")
		return true
	}

	c.server.dispatch(c, msg)

	if ack := c.ackFor(msg); ack != "" {
		_, _ = c.conn.Write([]byte(ack))
	}
	return true
}

func (c *connection) ackFor(msg *Message) string {
	switch msg.Kind {
	case KindLocation, KindBatchLocation, KindHeartbeat:
		if c.protocol == "watch" {
			return WatchAck(msg.DeviceID)
		}
	}
	return ""
}

func (c *connection) close() {
	c.state = stateClosing
	_ = c.conn.Close()
}

// splitFrames is a bufio.SplitFunc that finds the first complete Watch
// (']'-terminated) or TK103 (')'-terminated) frame in the buffer.
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == ']' || b == ')' {
			return i + 1, data[:i+1], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
