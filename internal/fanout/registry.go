package fanout

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/thejerf/suture/v4"

	"github.com/paraglide-live/trackcore/internal/logging"
	"github.com/paraglide-live/trackcore/internal/models"
)

// RaceLookup is the subset of store.Store the registry needs to build a
// new Hub's race_config frame.
type RaceLookup interface {
	GetRace(ctx context.Context, id string) (*models.Race, error)
}

// HubSupervisor is the subset of the supervisor tree's fan-out layer the
// registry needs to supervise race Hubs individually, so a panic or crash
// in one race's Hub gets restarted without the registry managing restart
// policy itself.
type HubSupervisor interface {
	AddFanoutService(svc suture.Service) suture.ServiceToken
	RemoveFanoutService(token suture.ServiceToken) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// raceHub pairs a running Hub with the token the supervisor tree assigned
// it, so the registry can remove it again when the race concludes.
type raceHub struct {
	hub   *Hub
	token suture.ServiceToken
}

// Registry owns one Hub per active race, created lazily on first
// subscriber and supervised individually by the fan-out layer so that one
// race's crash doesn't affect any other.
type Registry struct {
	store      PositionStore
	races      RaceLookup
	verifier   *TokenVerifier
	cfg        Config
	supervisor HubSupervisor

	mu   sync.Mutex
	hubs map[string]*raceHub
}

// NewRegistry builds a Registry. sup is the supervisor tree's fan-out
// layer; hubs added via hubFor are supervised there instead of running
// as unsupervised goroutines.
func NewRegistry(store PositionStore, races RaceLookup, verifier *TokenVerifier, cfg Config, sup HubSupervisor) *Registry {
	return &Registry{
		store:      store,
		races:      races,
		verifier:   verifier,
		cfg:        cfg,
		supervisor: sup,
		hubs:       make(map[string]*raceHub),
	}
}

// hubFor returns the Hub for raceID, creating it and registering it with
// the fan-out supervisor on first use.
func (reg *Registry) hubFor(ctx context.Context, raceID string) (*Hub, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if rh, ok := reg.hubs[raceID]; ok {
		return rh.hub, nil
	}

	race, err := reg.races.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}

	h := NewHub(RaceConfigData{
		RaceID:   race.ID,
		Name:     race.Name,
		Timezone: race.Timezone,
		Features: []string{"tiles", "delta_update"},
	}, reg.store, reg.cfg)

	token := reg.supervisor.AddFanoutService(h)
	reg.hubs[raceID] = &raceHub{hub: h, token: token}
	logging.Info().Str("race_id", raceID).Msg("fanout: hub started")
	return h, nil
}

// StopRace removes raceID's Hub from the fan-out supervisor, disconnecting
// its viewers. Call this once a race has concluded and its live feed is
// no longer needed.
func (reg *Registry) StopRace(raceID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rh, ok := reg.hubs[raceID]
	if !ok {
		return nil
	}
	delete(reg.hubs, raceID)
	return reg.supervisor.RemoveFanoutService(rh.token)
}

// ServeHTTP upgrades a …/ws/live/{race_id} request after verifying the
// bearer token, then registers the client with that race's Hub.
func (reg *Registry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "race_id")
	if raceID == "" {
		http.Error(w, "race_id required", http.StatusBadRequest)
		return
	}

	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	claims, err := reg.verifier.Verify(token, raceID)
	if err != nil {
		http.Error(w, "invalid race token", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	hub, err := reg.hubFor(ctx, raceID)
	if err != nil {
		http.Error(w, "race not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Msg("fanout: websocket upgrade failed")
		return
	}

	client := NewClient(hub, conn, claims.PilotID, claims.PilotName)
	hub.Accept(client)
	client.Start()
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return r.URL.Query().Get("token")
}
