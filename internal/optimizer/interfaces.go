package optimizer

import (
	"context"
	"fmt"

	"task-optimizer/internal/models"
)

// SolveRequest contains the input for a task optimization
type SolveRequest struct {
	Course models.Course
	Config Config
}

// Solver computes the optimized route and distance of a task
type Solver interface {
	Solve(ctx context.Context, req *SolveRequest) (*models.TaskResult, error)
}

// ErrSolverExhausted is returned when a beam-search stage has no candidates
type ErrSolverExhausted struct {
	Stage  int
	Reason string
}

func (e *ErrSolverExhausted) Error() string {
	return fmt.Sprintf("solver exhausted at stage %d: %s", e.Stage, e.Reason)
}

// ErrInvalidConfig is returned when solver parameters are out of range
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}
