package fanout

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"

	"github.com/paraglide-live/trackcore/internal/models"
)

type fakeRaceLookup struct {
	races map[string]*models.Race
}

func (f *fakeRaceLookup) GetRace(_ context.Context, id string) (*models.Race, error) {
	r, ok := f.races[id]
	if !ok {
		return nil, errors.New("race not found")
	}
	return r, nil
}

type fakeHubSupervisor struct {
	added   []suture.Service
	removed []suture.ServiceToken
}

func (f *fakeHubSupervisor) AddFanoutService(svc suture.Service) suture.ServiceToken {
	f.added = append(f.added, svc)
	return suture.ServiceToken{}
}

func (f *fakeHubSupervisor) RemoveFanoutService(token suture.ServiceToken) error {
	f.removed = append(f.removed, token)
	return nil
}

func newTestRegistry(sup HubSupervisor) *Registry {
	return NewRegistry(
		&fakePositionStore{},
		&fakeRaceLookup{races: map[string]*models.Race{
			"race1": {ID: "race1", Name: "Test Race", Timezone: "UTC"},
		}},
		&TokenVerifier{},
		Config{},
		sup,
	)
}

func TestHubForCreatesAndSupervisesHubOnce(t *testing.T) {
	sup := &fakeHubSupervisor{}
	reg := newTestRegistry(sup)

	h1, err := reg.hubFor(context.Background(), "race1")
	require.NoError(t, err)
	require.NotNil(t, h1)
	require.Len(t, sup.added, 1)

	h2, err := reg.hubFor(context.Background(), "race1")
	require.NoError(t, err)
	require.Same(t, h1, h2)
	require.Len(t, sup.added, 1, "second call must not create a second Hub")
}

func TestHubForUnknownRaceReturnsError(t *testing.T) {
	sup := &fakeHubSupervisor{}
	reg := newTestRegistry(sup)

	_, err := reg.hubFor(context.Background(), "missing")
	require.Error(t, err)
	require.Empty(t, sup.added)
}

func TestStopRaceRemovesFromSupervisor(t *testing.T) {
	sup := &fakeHubSupervisor{}
	reg := newTestRegistry(sup)

	_, err := reg.hubFor(context.Background(), "race1")
	require.NoError(t, err)

	require.NoError(t, reg.StopRace("race1"))
	require.Len(t, sup.removed, 1)

	_, stillTracked := reg.hubs["race1"]
	require.False(t, stillTracked)
}

func TestStopRaceOnUnknownRaceIsNoop(t *testing.T) {
	sup := &fakeHubSupervisor{}
	reg := newTestRegistry(sup)

	require.NoError(t, reg.StopRace("never-started"))
	require.Empty(t, sup.removed)
}

func TestStopRaceAllowsRestartOnNextSubscriber(t *testing.T) {
	sup := &fakeHubSupervisor{}
	reg := newTestRegistry(sup)

	h1, err := reg.hubFor(context.Background(), "race1")
	require.NoError(t, err)
	require.NoError(t, reg.StopRace("race1"))

	h2, err := reg.hubFor(context.Background(), "race1")
	require.NoError(t, err)
	require.NotSame(t, h1, h2, "restarting a race must build a fresh Hub")
	require.Len(t, sup.added, 2)
}

func TestBearerTokenPrefersAuthorizationHeader(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/ws/live/race1?token=query-token", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer header-token")

	require.Equal(t, "header-token", bearerToken(req))
}

func TestBearerTokenFallsBackToQueryParam(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/ws/live/race1?token=query-token", nil)
	require.NoError(t, err)

	require.Equal(t, "query-token", bearerToken(req))
}
