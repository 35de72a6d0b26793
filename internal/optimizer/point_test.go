package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-optimizer/internal/models"
)

func TestOptimalPoint_BetweenNeighbours(t *testing.T) {
	opt, _ := newMockOptimizer(t, Config{})
	tp := cylinder(46, 8, 1000)
	prev := models.Coordinates{Lat: 45, Lon: 7.9}
	next := models.Coordinates{Lat: 45, Lon: 8.1}

	p, err := opt.OptimalPoint(tp, prev, &next)
	require.NoError(t, err)

	// both neighbours are due south, so the crossing is the southern tip
	assert.InDelta(t, 46-1000.0/111000, p.Lat, 1e-9)
	assert.InDelta(t, 8.0, p.Lon, 1e-9)
}

func TestOptimalPoint_LastZone(t *testing.T) {
	opt, _ := newMockOptimizer(t, Config{})
	tp := cylinder(46, 8, 1000)

	p, err := opt.OptimalPoint(tp, models.Coordinates{Lat: 46, Lon: 7}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 46.0, p.Lat, 1e-9)
	assert.InDelta(t, 8-1000.0/111000, p.Lon, 1e-9)
}

func TestOptimalPoint_ZeroRadius(t *testing.T) {
	opt, geo := newMockOptimizer(t, Config{})
	tp := cylinder(46, 8, 0)
	next := models.Coordinates{Lat: 47, Lon: 8}

	p, err := opt.OptimalPoint(tp, models.Coordinates{Lat: 45, Lon: 8}, &next)
	require.NoError(t, err)
	assert.Equal(t, tp.Center, p)
	assert.Equal(t, 0, geo.Calls())
}

func TestOptimalPoint_GoalLineStaysOnSegment(t *testing.T) {
	opt, geo := newMockOptimizer(t, Config{})
	tp := goalLine(46, 8, 1000)
	prev := models.Coordinates{Lat: 45.5, Lon: 7.8}

	p, err := opt.OptimalPoint(tp, prev, nil)
	require.NoError(t, err)

	d, err := geo.Distance(p, tp.Center)
	require.NoError(t, err)
	assert.LessOrEqual(t, d, 1000+1e-6)

	// the cylinder answer would be the tangent point towards prev
	tangent, err := opt.OptimalPoint(cylinder(46, 8, 1000), prev, nil)
	require.NoError(t, err)
	assert.NotEqual(t, tangent, p)
}

func TestOptimizedPerimeterPoints(t *testing.T) {
	opt, _ := newMockOptimizer(t, Config{})
	tp := cylinder(46, 8, 1000)
	next := models.Coordinates{Lat: 45, Lon: 8.1}

	points, err := opt.OptimizedPerimeterPoints(tp, models.Coordinates{Lat: 45, Lon: 7.9}, &next, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)

	want, err := opt.OptimalPoint(tp, models.Coordinates{Lat: 45, Lon: 7.9}, &next)
	require.NoError(t, err)
	assert.Equal(t, want, points[0])
}
