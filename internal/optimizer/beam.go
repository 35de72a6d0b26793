package optimizer

import (
	"context"
	"fmt"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"task-optimizer/internal/models"
)

// stageEntry is one DP state. pred indexes the previous stage slice.
type stageEntry struct {
	point models.Coordinates
	cost  float64
	pred  int
}

// launchInside reports whether the takeoff center already lies in zone 1.
// The first leg is then free: the pilot starts inside the zone.
func (o *Optimizer) launchInside(course models.Course) (bool, error) {
	if course.Len() < 2 {
		return false, nil
	}
	tp := course.At(1)
	if tp.IsLine() {
		return false, nil
	}
	d, err := o.geo.Distance(course.At(0).Center, tp.Center)
	if err != nil {
		return false, err
	}
	return d <= tp.Radius, nil
}

// beamSearch runs the stage-wise DP and returns the cheapest route found
func (o *Optimizer) beamSearch(ctx context.Context, course models.Course, freeFirst bool) ([]models.Coordinates, float64, error) {
	n := course.Len()
	stages := make([][]stageEntry, n)
	stages[0] = []stageEntry{{point: course.At(0).Center, cost: 0, pred: -1}}

	for i := 1; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		tp := course.At(i)
		prev := stages[i-1]

		cands, err := o.zoneCandidates(tp, bestEntry(prev).point, o.cfg.AngleStep)
		if err != nil {
			return nil, 0, fmt.Errorf("stage %d: %w", i, err)
		}

		entries, err := o.evaluateStage(ctx, prev, cands, i == 1 && freeFirst)
		if err != nil {
			return nil, 0, fmt.Errorf("stage %d: %w", i, err)
		}

		// states already inside the cylinder cross it with a zero-length leg
		for k, e := range prev {
			inside, err := o.contains(tp, e.point)
			if err != nil {
				return nil, 0, fmt.Errorf("stage %d: %w", i, err)
			}
			if inside {
				entries = append(entries, stageEntry{point: e.point, cost: e.cost, pred: k})
			}
		}

		if len(entries) == 0 {
			return nil, 0, &ErrSolverExhausted{Stage: i, Reason: "no reachable candidates"}
		}

		var next *models.Turnpoint
		if i+1 < n {
			t := course.At(i + 1)
			next = &t
		}
		stages[i], err = o.prune(entries, next)
		if err != nil {
			return nil, 0, fmt.Errorf("stage %d: %w", i, err)
		}
	}

	last := stages[n-1]
	best := 0
	for k := range last {
		if last[k].cost < last[best].cost {
			best = k
		}
	}

	route := make([]models.Coordinates, n)
	k := best
	for i := n - 1; i >= 0; i-- {
		e := stages[i][k]
		route[i] = e.point
		k = e.pred
	}
	return route, last[best].cost, nil
}

// evaluateStage prices every candidate against all states of the previous
// stage. Each candidate writes only its own slot, so the fan-out produces the
// same result as the sequential loop.
func (o *Optimizer) evaluateStage(ctx context.Context, prev []stageEntry, cands []models.Coordinates, free bool) ([]stageEntry, error) {
	entries := make([]stageEntry, len(cands))

	eval := func(j int) error {
		best := stageEntry{point: cands[j], cost: math.Inf(1), pred: -1}
		for k, p := range prev {
			leg := 0.0
			if !free {
				d, err := o.geo.Distance(p.point, cands[j])
				if err != nil {
					return err
				}
				leg = d
			}
			if c := p.cost + leg; c < best.cost {
				best.cost = c
				best.pred = k
			}
		}
		entries[j] = best
		return nil
	}

	if o.cfg.Workers <= 1 || len(cands) < 2 {
		for j := range cands {
			if err := eval(j); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.Workers)
		for j := range cands {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return eval(j)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := entries[:0]
	for _, e := range entries {
		if e.pred >= 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

// prune keeps the BeamWidth most promising states. States are ranked by cost
// plus a lower bound on the leg to the next zone, so that equal-cost states
// (a launch inside zone 1 makes all of them zero) are told apart by how close
// they sit to where the route goes next. Ties keep candidate order.
func (o *Optimizer) prune(entries []stageEntry, next *models.Turnpoint) ([]stageEntry, error) {
	type ranked struct {
		entry stageEntry
		key   float64
	}

	rs := make([]ranked, len(entries))
	for j, e := range entries {
		key := e.cost
		if next != nil {
			d, err := o.geo.Distance(e.point, next.Center)
			if err != nil {
				return nil, err
			}
			key += math.Max(0, d-reach(*next))
		}
		rs[j] = ranked{entry: e, key: key}
	}

	slices.SortStableFunc(rs, func(a, b ranked) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		}
		return 0
	})

	width := min(o.cfg.BeamWidth, len(rs))
	kept := make([]stageEntry, width)
	for j := range kept {
		kept[j] = rs[j].entry
	}
	return kept, nil
}

// bestEntry is the lowest-cost state, the first one on ties
func bestEntry(stage []stageEntry) stageEntry {
	best := stage[0]
	for _, e := range stage[1:] {
		if e.cost < best.cost {
			best = e
		}
	}
	return best
}
