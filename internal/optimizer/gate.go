package optimizer

import (
	"fmt"
	"math"
	"sort"

	"task-optimizer/internal/models"
)

// containSlack absorbs round-off when a boundary point is tested against
// its own cylinder after a Forward/Distance round trip.
const containSlack = 1e-6

// PerimeterPoints samples a turnpoint boundary at every angleStep degrees,
// starting at azimuth 0. A zero radius yields the center only. A goal line
// has no approach direction here, so it also yields its center.
func (o *Optimizer) PerimeterPoints(tp models.Turnpoint, angleStep float64) ([]models.Coordinates, error) {
	if tp.Radius == 0 {
		return []models.Coordinates{tp.Center}, nil
	}

	switch tp.Geometry.Kind {
	case models.GeometryCylinder:
		return o.circlePoints(tp.Center, tp.Radius, angleStep)
	case models.GeometryLine:
		return []models.Coordinates{tp.Center}, nil
	default:
		return nil, &models.ErrInvalidGeometry{Index: -1, Reason: fmt.Sprintf("unknown geometry kind %q", tp.Geometry.Kind)}
	}
}

func (o *Optimizer) circlePoints(center models.Coordinates, radius, angleStep float64) ([]models.Coordinates, error) {
	if angleStep <= 0 || math.IsNaN(angleStep) {
		return nil, &ErrInvalidConfig{Field: "angle_step_deg", Reason: "must be positive"}
	}

	n := sampleCount(angleStep)
	points := make([]models.Coordinates, 0, n)
	for k := 0; k < n; k++ {
		p, err := o.geo.Forward(center, float64(k)*angleStep, radius)
		if err != nil {
			return nil, fmt.Errorf("failed to sample perimeter: %w", err)
		}
		points = append(points, p)
	}
	return points, nil
}

// GoalLinePoints returns candidate crossing points of a goal line approached
// from prev. The line runs through the center perpendicular to the bearing
// from prev, with half its length on each side. Candidates are the two
// endpoints, the center and the arc samples of the approach-side semicircle
// projected back onto the line, ordered from the left endpoint to the right.
// A zero radius collapses the line to its center.
func (o *Optimizer) GoalLinePoints(tp models.Turnpoint, prev models.Coordinates, angleStep float64) ([]models.Coordinates, error) {
	if tp.Radius == 0 {
		return []models.Coordinates{tp.Center}, nil
	}
	if angleStep <= 0 || math.IsNaN(angleStep) {
		return nil, &ErrInvalidConfig{Field: "angle_step_deg", Reason: "must be positive"}
	}

	inv, err := o.geo.Inverse(prev, tp.Center)
	if err != nil {
		return nil, fmt.Errorf("failed to compute approach bearing: %w", err)
	}
	if inv.DistanceMeters == 0 {
		// no approach direction to orient the line against
		return []models.Coordinates{tp.Center}, nil
	}

	half := tp.GoalLineLength() / 2
	bearing := inv.Azimuth2

	offsets := []float64{0}
	for k := 0; float64(k)*angleStep < 180; k++ {
		offsets = append(offsets, -half*math.Cos(float64(k)*angleStep*math.Pi/180))
	}
	offsets = append(offsets, half)
	for i, s := range offsets {
		if math.Abs(s) < 1e-9 {
			offsets[i] = 0
		}
	}
	sort.Float64s(offsets)

	points := make([]models.Coordinates, 0, len(offsets))
	last := math.NaN()
	for _, s := range offsets {
		if s == last {
			continue
		}
		last = s

		var p models.Coordinates
		switch {
		case s < 0:
			p, err = o.geo.Forward(tp.Center, bearing-90, -s)
		case s > 0:
			p, err = o.geo.Forward(tp.Center, bearing+90, s)
		default:
			p = tp.Center
		}
		if err != nil {
			return nil, fmt.Errorf("failed to sample goal line: %w", err)
		}
		points = append(points, p)
	}
	return points, nil
}

// zoneCandidates picks the sampler for a turnpoint given its approach point
func (o *Optimizer) zoneCandidates(tp models.Turnpoint, prev models.Coordinates, angleStep float64) ([]models.Coordinates, error) {
	if tp.IsLine() {
		return o.GoalLinePoints(tp, prev, angleStep)
	}
	return o.PerimeterPoints(tp, angleStep)
}

// contains reports whether p lies inside a cylinder. Lines have no interior.
func (o *Optimizer) contains(tp models.Turnpoint, p models.Coordinates) (bool, error) {
	if tp.IsLine() {
		return false, nil
	}
	d, err := o.geo.Distance(p, tp.Center)
	if err != nil {
		return false, err
	}
	return d <= tp.Radius+containSlack, nil
}

// reach is the farthest a valid crossing point can be from the center
func reach(tp models.Turnpoint) float64 {
	if tp.IsLine() && tp.Radius > 0 {
		return tp.GoalLineLength() / 2
	}
	return tp.Radius
}
