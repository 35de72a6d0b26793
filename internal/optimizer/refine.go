package optimizer

import (
	"context"
	"fmt"
	"math"
	"slices"

	"task-optimizer/internal/models"
)

// RefinePass makes one Gauss-Seidel sweep over the route and returns the new
// route with its length. The input slice is not modified.
//
// Each interior point is moved to the best crossing point of its zone given
// its current neighbours. Consecutive indices sharing one point (a pilot
// tagging several overlapping cylinders at once) move as a block and stay
// inside every zone of the block. A point only moves on strict improvement,
// so the length never grows. The takeoff never moves, and the goal only
// moves when it is a line.
func (o *Optimizer) RefinePass(course models.Course, route []models.Coordinates) ([]models.Coordinates, float64, error) {
	if len(route) != course.Len() {
		return nil, 0, fmt.Errorf("route has %d points for %d turnpoints", len(route), course.Len())
	}
	freeFirst, err := o.launchInside(course)
	if err != nil {
		return nil, 0, err
	}

	refined, err := o.refinePass(course, route, freeFirst)
	if err != nil {
		return nil, 0, err
	}
	length, err := o.routeLength(refined, freeFirst)
	if err != nil {
		return nil, 0, err
	}
	return refined, length, nil
}

func (o *Optimizer) refinePass(course models.Course, route []models.Coordinates, freeFirst bool) ([]models.Coordinates, error) {
	out := slices.Clone(route)
	n := len(out)

	for s := 1; s < n; {
		e := s + 1
		for e < n && out[e] == out[s] {
			e++
		}

		if err := o.refineBlock(course, out, s, e, freeFirst); err != nil {
			return nil, fmt.Errorf("refining zone %d: %w", s, err)
		}
		s = e
	}
	return out, nil
}

// refineBlock moves the block out[s:e] in place
func (o *Optimizer) refineBlock(course models.Course, out []models.Coordinates, s, e int, freeFirst bool) error {
	n := len(out)
	first := course.At(s)

	// a lone goal cylinder is where the task ends; it stays put
	if s == n-1 && !first.IsLine() {
		return nil
	}
	if first.Radius == 0 && !first.IsLine() {
		return nil
	}

	obj := legObjective{prev: out[s-1], freePrev: s == 1 && freeFirst}
	if e < n {
		nx := out[e]
		obj.next = &nx
	}

	insideRest := func(p models.Coordinates) (bool, error) {
		for j := s + 1; j < e; j++ {
			ok, err := o.contains(course.At(j), p)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}

	current := out[s]
	bestScore, err := o.score(obj, current)
	if err != nil {
		return err
	}
	best := current

	// joining the predecessor costs no incoming leg at all
	if ok, err := o.contains(first, obj.prev); err != nil {
		return err
	} else if ok {
		if ok, err = insideRest(obj.prev); err != nil {
			return err
		} else if ok {
			sc, err := o.score(obj, obj.prev)
			if err != nil {
				return err
			}
			if sc < bestScore {
				best, bestScore = obj.prev, sc
			}
		}
	}

	cands, err := o.zoneCandidates(first, obj.prev, o.cfg.FineAngleStep)
	if err != nil {
		return err
	}
	idx, sc, err := o.pickBest(cands, obj, insideRest)
	if err != nil {
		return err
	}
	if idx >= 0 && sc < bestScore {
		best = cands[idx]
	}

	for j := s; j < e; j++ {
		out[j] = best
	}
	return nil
}

// routeLegs returns the length of every leg; legs[i] ends at route[i] and
// legs[0] is always 0. A launch inside zone 1 makes legs[1] free.
func (o *Optimizer) routeLegs(route []models.Coordinates, freeFirst bool) ([]float64, error) {
	legs := make([]float64, len(route))
	for i := 1; i < len(route); i++ {
		if i == 1 && freeFirst {
			continue
		}
		d, err := o.geo.Distance(route[i-1], route[i])
		if err != nil {
			return nil, err
		}
		legs[i] = d
	}
	return legs, nil
}

func (o *Optimizer) routeLength(route []models.Coordinates, freeFirst bool) (float64, error) {
	legs, err := o.routeLegs(route, freeFirst)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, d := range legs {
		total += d
	}
	return total, nil
}

// solveRoute seeds with the beam route and refines it until the length
// settles within Tolerance or NumIterations passes have run.
func (o *Optimizer) solveRoute(ctx context.Context, course models.Course) ([]models.Coordinates, float64, int, error) {
	if course.Len() < 2 {
		return course.Centers(), 0, 0, nil
	}

	freeFirst, err := o.launchInside(course)
	if err != nil {
		return nil, 0, 0, err
	}

	route, _, err := o.beamSearch(ctx, course, freeFirst)
	if err != nil {
		return nil, 0, 0, err
	}
	length, err := o.routeLength(route, freeFirst)
	if err != nil {
		return nil, 0, 0, err
	}

	iterations := 1
	for iterations < o.cfg.NumIterations {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}

		refined, err := o.refinePass(course, route, freeFirst)
		if err != nil {
			return nil, 0, 0, err
		}
		refinedLength, err := o.routeLength(refined, freeFirst)
		if err != nil {
			return nil, 0, 0, err
		}
		iterations++

		// summation order can add round-off on an unchanged route
		if refinedLength > length {
			break
		}
		converged := math.Abs(length-refinedLength) < o.cfg.Tolerance
		route, length = refined, refinedLength
		if converged {
			break
		}
	}
	return route, length, iterations, nil
}
