package fanout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateTileBoundsContainsOrigin(t *testing.T) {
	// z=1 tile (0,0) covers the NW quadrant: lon [-180,0], lat [0, ~85.05]
	b := CalculateTileBounds(1, 0, 0)
	require.InDelta(t, -180.0, b.MinLon, 1e-6)
	require.InDelta(t, 0.0, b.MaxLon, 1e-6)
	require.True(t, b.Contains(0, 0))
	require.True(t, b.Contains(10, -90))
	require.False(t, b.Contains(10, 90))
}

func TestTileForLonLatRoundTrips(t *testing.T) {
	x, y := TileForLonLat(5, 7.5, 45.0)
	bounds := CalculateTileBounds(5, x, y)
	require.True(t, bounds.Contains(45.0, 7.5))
}

func TestMercatorXYOriginIsZero(t *testing.T) {
	x, y := MercatorXY(0, 0)
	require.InDelta(t, 0, x, 1e-6)
	require.InDelta(t, 0, y, 1e-6)
}
