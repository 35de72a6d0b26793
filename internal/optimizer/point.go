package optimizer

import (
	"fmt"
	"math"

	"task-optimizer/internal/models"
)

// legObjective scores a crossing point c of one zone against its neighbours
type legObjective struct {
	prev models.Coordinates
	next *models.Coordinates
	// freePrev drops the incoming leg, used when the pilot launches inside the zone
	freePrev bool
}

func (o *Optimizer) score(obj legObjective, c models.Coordinates) (float64, error) {
	total := 0.0
	if !obj.freePrev {
		d, err := o.geo.Distance(obj.prev, c)
		if err != nil {
			return 0, err
		}
		total += d
	}
	if obj.next != nil {
		d, err := o.geo.Distance(c, *obj.next)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// pickBest returns the index of the lowest-scoring candidate. The first of
// several equal scores wins. Candidates rejected by accept are skipped; -1
// means none was accepted.
func (o *Optimizer) pickBest(cands []models.Coordinates, obj legObjective, accept func(models.Coordinates) (bool, error)) (int, float64, error) {
	best, bestScore := -1, math.Inf(1)
	for i, c := range cands {
		if accept != nil {
			ok, err := accept(c)
			if err != nil {
				return -1, 0, err
			}
			if !ok {
				continue
			}
		}
		s, err := o.score(obj, c)
		if err != nil {
			return -1, 0, err
		}
		if s < bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore, nil
}

// OptimalPoint finds the crossing point of tp that minimizes
// d(prev, c) + d(c, next) over the fine sample. A nil next marks the last
// zone, where only the incoming leg counts.
func (o *Optimizer) OptimalPoint(tp models.Turnpoint, prev models.Coordinates, next *models.Coordinates) (models.Coordinates, error) {
	return o.optimalPointAt(tp, prev, next, o.cfg.FineAngleStep)
}

// OptimizedPerimeterPoints returns the single best crossing point as a
// one-element candidate list, searched at the finer of angleStep and the
// configured fine step.
func (o *Optimizer) OptimizedPerimeterPoints(tp models.Turnpoint, prev models.Coordinates, next *models.Coordinates, angleStep float64) ([]models.Coordinates, error) {
	step := o.cfg.FineAngleStep
	if angleStep > 0 && angleStep < step {
		step = angleStep
	}
	p, err := o.optimalPointAt(tp, prev, next, step)
	if err != nil {
		return nil, err
	}
	return []models.Coordinates{p}, nil
}

func (o *Optimizer) optimalPointAt(tp models.Turnpoint, prev models.Coordinates, next *models.Coordinates, step float64) (models.Coordinates, error) {
	if tp.Radius == 0 {
		return tp.Center, nil
	}

	cands, err := o.zoneCandidates(tp, prev, step)
	if err != nil {
		return models.Coordinates{}, err
	}

	idx, _, err := o.pickBest(cands, legObjective{prev: prev, next: next}, nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to score crossing points: %w", err)
	}
	if idx < 0 {
		return models.Coordinates{}, &ErrSolverExhausted{Stage: -1, Reason: "no crossing point candidates"}
	}
	return cands[idx], nil
}
