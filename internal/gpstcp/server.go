package gpstcp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/metrics"
	"github.com/paraglide-live/trackcore/internal/models"
	"github.com/paraglide-live/trackcore/internal/separator"
	"github.com/paraglide-live/trackcore/internal/store"
)

const maxConnections = 1000

// Directory resolves a bare device_id into the race/pilot binding the
// Flight separator needs, and the race's timezone for day-boundary
// detection.
type Directory interface {
	GetDeviceRegistration(ctx context.Context, deviceID string) (store.DeviceRegistration, error)
	GetRace(ctx context.Context, raceID string) (*models.Race, error)
}

// Separator is the subset of separator.Separator the front-end needs.
type Separator interface {
	Resolve(ctx context.Context, source models.Source, raceID, pilotID, pilotName, deviceID string, point separator.Point, raceLoc *time.Location, now time.Time) (flightID string, isNew bool, err error)
}

// Enqueuer is the subset of queue.Queue the front-end needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, item models.QueueItem) error
}

// Config holds the listener address. The connection caps (maxConnections
// in total, 50 per source IP) are fixed constants, not configurable here.
type Config struct {
	Addr string
}

// Server accepts raw GPS tracker connections, decodes their binary
// protocols, resolves each fix to a flight through the separator, and
// enqueues it for the Writer.
type Server struct {
	cfg       Config
	directory Directory
	separator Separator
	queue     Enqueuer
	devices   *DeviceRateLimiter
	ipGuard   *IPGuard

	mu    sync.Mutex
	conns map[string]int // count by raw IP, for the per-IP connection cap
}

// NewServer builds a Server. directory, sep, and q must be non-nil.
func NewServer(cfg Config, directory Directory, sep Separator, q Enqueuer) *Server {
	return &Server{
		cfg:       cfg,
		directory: directory,
		separator: sep,
		queue:     q,
		devices:   NewDeviceRateLimiter(),
		ipGuard:   NewIPGuard(),
		conns:     make(map[string]int),
	}
}

// Serve implements the suture.Service shape the supervisor runs it
// under: listen until ctx is canceled, then stop accepting.
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	logging.Info().Str("addr", s.cfg.Addr).Msg("gpstcp: listening for tracker connections")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanup.C:
				s.devices.Cleanup(idleTimeout)
			}
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logging.Warn().Err(err).Msg("gpstcp: accept failed")
				continue
			}
		}
		if !s.acceptConnection(conn) {
			_ = conn.Close()
			continue
		}
		metrics.GPSTCPConnections.Inc()
		go func() {
			c := newConnection(conn, s)
			c.serve()
			s.releaseConnection(conn)
			metrics.GPSTCPConnections.Dec()
		}()
	}
}

func (s *Server) acceptConnection(conn net.Conn) bool {
	if !s.ipGuard.Allow(conn.RemoteAddr()) {
		logging.Debug().Str("remote", conn.RemoteAddr().String()).Msg("gpstcp: connection rejected, IP blacklisted")
		return false
	}

	host := hostOf(conn.RemoteAddr())
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.conns {
		total += n
	}
	if total >= maxConnections {
		return false
	}
	if s.conns[host] >= 50 {
		return false
	}
	s.conns[host]++
	return true
}

func (s *Server) releaseConnection(conn net.Conn) {
	host := hostOf(conn.RemoteAddr())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[host]--
	if s.conns[host] <= 0 {
		delete(s.conns, host)
	}
}

// dispatch resolves a decoded Message's fixes to a flight and enqueues
// them into live_points. Alarms are logged, not enqueued; heartbeat,
// login and unknown frames are neither logged nor enqueued.
func (s *Server) dispatch(c *connection, msg *Message) {
	switch msg.Kind {
	case KindAlarm:
		logging.Warn().Str("device_id", msg.DeviceID).Str("alarm", msg.AlarmType).Msg("gpstcp: tracker alarm")
		return
	case KindHeartbeat, KindLogin, KindUnknown:
		return
	}
	if len(msg.Fixes) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reg, err := s.directory.GetDeviceRegistration(ctx, msg.DeviceID)
	if err != nil {
		logging.Warn().Err(err).Str("device_id", msg.DeviceID).Msg("gpstcp: device not registered, dropping fixes")
		return
	}
	race, err := s.directory.GetRace(ctx, reg.RaceID)
	if err != nil {
		logging.Warn().Err(err).Str("race_id", reg.RaceID).Msg("gpstcp: race lookup failed, dropping fixes")
		return
	}
	raceLoc := race.Loc()

	qps := make([]models.QueuePoint, 0, len(msg.Fixes))
	var flightID string
	for _, fix := range msg.Fixes {
		if !fix.Valid {
			continue
		}
		now := time.Now().UTC()
		id, _, err := s.separator.Resolve(ctx, reg.Source, reg.RaceID, reg.PilotID, reg.PilotName, msg.DeviceID,
			separator.Point{Timestamp: fix.Timestamp, Elevation: fix.Elevation, SpeedKMH: fix.Speed}, raceLoc, now)
		if err != nil {
			logging.Warn().Err(err).Str("device_id", msg.DeviceID).Msg("gpstcp: flight separation failed")
			continue
		}
		flightID = id
		qps = append(qps, models.QueuePoint{
			Lat: fix.Lat, Lon: fix.Lon, Elevation: fix.Elevation,
			Datetime: fix.Timestamp.Format(time.RFC3339),
			Battery:  fix.Battery, Speed: fix.Speed, Heading: fix.Heading,
		})
	}
	if len(qps) == 0 {
		return
	}

	item := models.NewQueueItem(models.QueueLivePoints, flightID, qps)
	if err := s.queue.Enqueue(ctx, item); err != nil {
		logging.Error().Err(err).Str("flight_id", flightID).Msg("gpstcp: failed to enqueue fixes")
		return
	}
	metrics.QueueEnqueued.WithLabelValues(string(models.QueueLivePoints)).Add(float64(len(qps)))
}
