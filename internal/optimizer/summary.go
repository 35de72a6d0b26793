package optimizer

import (
	"context"

	"task-optimizer/internal/models"
)

// DistanceThroughCenters sums the geodesic legs between consecutive centers
func (o *Optimizer) DistanceThroughCenters(course models.Course) (float64, error) {
	return o.routeLength(course.Centers(), false)
}

// TaskSummary optimizes the course and reports center and optimized
// distances with per-zone cumulative values.
func (o *Optimizer) TaskSummary(ctx context.Context, course models.Course) (*models.TaskSummary, error) {
	route, length, iterations, err := o.solveRoute(ctx, course)
	if err != nil {
		return nil, err
	}
	result, err := o.buildResult(course, route, length, iterations)
	if err != nil {
		return nil, err
	}
	return &result.Summary, nil
}

func (o *Optimizer) buildResult(course models.Course, route []models.Coordinates, length float64, iterations int) (*models.TaskResult, error) {
	freeFirst, err := o.launchInside(course)
	if err != nil {
		return nil, err
	}
	centerLegs, err := o.routeLegs(course.Centers(), false)
	if err != nil {
		return nil, err
	}
	optLegs, err := o.routeLegs(route, freeFirst)
	if err != nil {
		return nil, err
	}

	perZone := make([]models.ZoneSummary, course.Len())
	cumCenter, cumOpt := 0.0, 0.0
	for i := range perZone {
		cumCenter += centerLegs[i]
		cumOpt += optLegs[i]
		perZone[i] = models.ZoneSummary{
			Index:                     i,
			Role:                      course.At(i).Role,
			CumulativeCenterMeters:    cumCenter,
			CumulativeOptimizedMeters: cumOpt,
		}
	}

	summary := models.TaskSummary{
		CenterDistanceMeters:    cumCenter,
		OptimizedDistanceMeters: length,
		SavingsMeters:           cumCenter - length,
		PerZone:                 perZone,
	}
	if cumCenter > 0 {
		summary.SavingsPercent = summary.SavingsMeters / cumCenter * 100
	}

	out := make([]models.Coordinates, len(route))
	copy(out, route)

	return &models.TaskResult{
		OptimizedDistanceMeters: length,
		Route:                   out,
		Summary:                 summary,
		Iterations:              iterations,
		Warnings:                []string{},
	}, nil
}

// centersResult is the result reported when optimization is abandoned
func (o *Optimizer) centersResult(course models.Course) (*models.TaskResult, error) {
	centers := course.Centers()
	legs, err := o.routeLegs(centers, false)
	if err != nil {
		return nil, err
	}
	perZone := make([]models.ZoneSummary, course.Len())
	cum := 0.0
	for i := range perZone {
		cum += legs[i]
		perZone[i] = models.ZoneSummary{
			Index:                     i,
			Role:                      course.At(i).Role,
			CumulativeCenterMeters:    cum,
			CumulativeOptimizedMeters: cum,
		}
	}
	length := cum

	return &models.TaskResult{
		OptimizedDistanceMeters: length,
		Route:                   centers,
		Summary: models.TaskSummary{
			CenterDistanceMeters:    length,
			OptimizedDistanceMeters: length,
			PerZone:                 perZone,
		},
		Fallback: true,
		Warnings: []string{},
	}, nil
}
