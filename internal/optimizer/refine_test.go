package optimizer

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-optimizer/internal/models"
)

func TestRefinePass_DoesNotMutateInput(t *testing.T) {
	opt, _ := newMockOptimizer(t, Config{})
	course := zigzagCourse(t)
	route := course.Centers()
	snapshot := slices.Clone(route)

	refined, length, err := opt.RefinePass(course, route)
	require.NoError(t, err)

	assert.Equal(t, snapshot, route)
	assert.NotEqual(t, route, refined)

	centers, err := opt.DistanceThroughCenters(course)
	require.NoError(t, err)
	assert.Less(t, length, centers)
}

func TestRefinePass_NeverLengthens(t *testing.T) {
	opt, _ := newMockOptimizer(t, Config{})
	course := overlapCourse(t)

	route, err := opt.OptimizedRoute(t.Context(), course)
	require.NoError(t, err)
	before, err := opt.routeLength(route, true)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		next, after, err := opt.RefinePass(course, route)
		require.NoError(t, err)
		assert.LessOrEqual(t, after, before+1e-9)
		route, before = next, after
	}
}

func TestRefinePass_KeepsTakeoffAndGoalCylinder(t *testing.T) {
	opt, _ := newMockOptimizer(t, Config{})
	course := zigzagCourse(t)
	route := course.Centers()

	refined, _, err := opt.RefinePass(course, route)
	require.NoError(t, err)

	assert.Equal(t, route[0], refined[0])
	assert.Equal(t, route[len(route)-1], refined[len(refined)-1])
}

func TestRefinePass_MovesGoalLine(t *testing.T) {
	opt, geo := newMockOptimizer(t, Config{})
	course := mustCourse(t,
		cylinder(46.0, 8.0, 0),
		goalLine(46.1, 8.0, 1000),
	)

	// start at the eastern end of the line
	start := models.Coordinates{Lat: 46.1, Lon: 8.0 + 1000.0/111000}
	refined, length, err := opt.RefinePass(course, []models.Coordinates{course.At(0).Center, start})
	require.NoError(t, err)

	assert.Equal(t, course.At(1).Center, refined[1])
	d, _ := geo.Distance(course.At(0).Center, course.At(1).Center)
	assert.InDelta(t, d, length, 1e-9)
}

func TestRefinePass_CoincidentBlockMovesTogether(t *testing.T) {
	opt, geo := newMockOptimizer(t, Config{})
	course := overlapCourse(t)

	// zones 1 and 2 tagged at one point inside both
	shared := models.Coordinates{Lat: 46.0 + 9000.0/111000, Lon: 8.0}
	route := []models.Coordinates{course.At(0).Center, shared, shared, {Lat: 46.3 - 1000.0/111000, Lon: 8.0}}

	refined, _, err := opt.RefinePass(course, route)
	require.NoError(t, err)

	assert.Equal(t, refined[1], refined[2])
	for _, i := range []int{1, 2} {
		tp := course.At(i)
		d, _ := geo.Distance(refined[i], tp.Center)
		assert.LessOrEqual(t, d, tp.Radius+1e-6, "zone %d", i)
	}
}

func TestRefinePass_RouteLengthMismatch(t *testing.T) {
	opt, _ := newMockOptimizer(t, Config{})
	_, _, err := opt.RefinePass(zigzagCourse(t), []models.Coordinates{{Lat: 46, Lon: 8}})
	assert.Error(t, err)
}
