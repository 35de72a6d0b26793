package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"task-optimizer/internal/geodesy"
	"task-optimizer/internal/models"
)

var tracer = otel.Tracer("task-optimizer/optimizer")

// Optimizer finds the shortest legal route through the zones of a task
type Optimizer struct {
	geo geodesy.Provider
	cfg Config
}

// New creates an optimizer. Zero config fields take their defaults.
func New(geo geodesy.Provider, cfg Config) (*Optimizer, error) {
	if geo == nil {
		return nil, errors.New("geodesy provider is required")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{geo: geo, cfg: cfg}, nil
}

// Config returns the effective configuration
func (o *Optimizer) Config() Config {
	return o.cfg
}

// withConfig returns a copy of o using cfg, or o itself for a zero cfg
func (o *Optimizer) withConfig(cfg Config) (*Optimizer, error) {
	if cfg == (Config{}) {
		return o, nil
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{geo: o.geo, cfg: cfg}, nil
}

// Solve optimizes the course and returns the route, distance and summary.
// A non-zero req.Config overrides the optimizer's configuration.
func (o *Optimizer) Solve(ctx context.Context, req *SolveRequest) (*models.TaskResult, error) {
	opt, err := o.withConfig(req.Config)
	if err != nil {
		return nil, err
	}
	course := req.Course

	ctx, span := tracer.Start(ctx, "optimizer.Solve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("task.zones", course.Len()),
		attribute.Float64("solver.angle_step", opt.cfg.AngleStep),
		attribute.Int("solver.beam_width", opt.cfg.BeamWidth),
	)

	totalStart := time.Now()
	log.Printf("[OPTIMIZE] Starting: zones=%d angle_step=%.1f beam_width=%d iterations=%d workers=%d",
		course.Len(), opt.cfg.AngleStep, opt.cfg.BeamWidth, opt.cfg.NumIterations, opt.cfg.Workers)

	route, length, iterations, err := opt.solveRoute(ctx, course)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil || !opt.cfg.FallbackToCenters {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		log.Printf("[OPTIMIZE] fallback: using center route after error: %v", err)
		result, ferr := opt.centersResult(course)
		if ferr != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("optimization failed, distance is measured through centers: %v", err))
		return result, nil
	}
	log.Printf("[TIMING] Solve: %v (iterations=%d)", time.Since(totalStart), iterations)

	result, err := opt.buildResult(course, route, length, iterations)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Float64("task.optimized_distance_m", length))
	log.Printf("[OPTIMIZE] Complete: optimized=%.0fm centers=%.0fm savings=%.1f%%",
		length, result.Summary.CenterDistanceMeters, result.Summary.SavingsPercent)
	return result, nil
}

// OptimizedRoute returns one crossing point per turnpoint
func (o *Optimizer) OptimizedRoute(ctx context.Context, course models.Course) ([]models.Coordinates, error) {
	route, _, _, err := o.solveRoute(ctx, course)
	return route, err
}

// OptimizedDistance returns the length of the optimized route in meters
func (o *Optimizer) OptimizedDistance(ctx context.Context, course models.Course) (float64, error) {
	_, length, _, err := o.solveRoute(ctx, course)
	return length, err
}
