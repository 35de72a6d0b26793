package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/sync/errgroup"

	"task-optimizer/internal/models"
	"task-optimizer/internal/optimizer"
)

// maxBatchTasks caps the number of tasks in one batch request
const maxBatchTasks = 100

// TaskRequest is the body of the optimize and centers endpoints
type TaskRequest struct {
	Turnpoints []models.TurnpointRecord `json:"turnpoints"`
	Config     *optimizer.Config        `json:"config,omitempty"`
}

// SSSRequest asks for the start of speed section entry point. Route is an
// already optimized route; when absent the task is solved first.
type SSSRequest struct {
	Turnpoints []models.TurnpointRecord `json:"turnpoints"`
	Route      []models.Coordinates     `json:"route,omitempty"`
	Config     *optimizer.Config        `json:"config,omitempty"`
}

// BatchRequest carries several independent tasks
type BatchRequest struct {
	Tasks []TaskRequest `json:"tasks"`
}

// BatchItem holds either the result or the error of one batch task
type BatchItem struct {
	Result *models.TaskResult `json:"result,omitempty"`
	Error  *ErrorDetail       `json:"error,omitempty"`
}

// BatchResponse lists the batch outcomes in request order
type BatchResponse struct {
	Results []BatchItem `json:"results"`
}

// CentersResponse is the distance through the turnpoint centers
type CentersResponse struct {
	CenterDistanceMeters float64 `json:"center_distance_m"`
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	cacheStatus := "disabled"

	if h.CacheHealth != nil {
		cacheStatus = "connected"
		if err := h.CacheHealth(r.Context()); err != nil {
			log.Printf("[HTTP] GET /api/v1/health: cache error=%v", err)
			status = "degraded"
			cacheStatus = "error"
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": "1.0.0",
		"cache":   cacheStatus,
	})
}

// HandleOptimizeTask handles POST /api/v1/tasks/optimize
func (h *Handler) HandleOptimizeTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/tasks/optimize: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body", nil)
		return
	}

	result, err := h.solveTask(r.Context(), req)
	if err != nil {
		log.Printf("[HTTP] POST /api/v1/tasks/optimize: error=%v", err)
		h.handleError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/tasks/optimize: zones=%d distance=%.0fm fallback=%t",
		len(req.Turnpoints), result.OptimizedDistanceMeters, result.Fallback)
	h.writeJSON(w, http.StatusOK, result)
}

// HandleCenterDistance handles POST /api/v1/tasks/centers
func (h *Handler) HandleCenterDistance(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/tasks/centers: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body", nil)
		return
	}

	course, err := models.NewCourseFromRecords(req.Turnpoints)
	if err != nil {
		h.handleError(w, err)
		return
	}

	dist, err := h.Optimizer.DistanceThroughCenters(course)
	if err != nil {
		log.Printf("[HTTP] POST /api/v1/tasks/centers: error=%v", err)
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, CentersResponse{CenterDistanceMeters: dist})
}

// HandleSSSEntry handles POST /api/v1/tasks/sss
func (h *Handler) HandleSSSEntry(w http.ResponseWriter, r *http.Request) {
	var req SSSRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/tasks/sss: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body", nil)
		return
	}

	course, err := models.NewCourseFromRecords(req.Turnpoints)
	if err != nil {
		h.handleError(w, err)
		return
	}

	idx := course.IndexOfRole(models.RoleSSS)
	if course.Len() < 2 || idx < 0 || idx == course.Len()-1 {
		h.handleNotFound(w, "NO_SSS", "The task has no start of speed section with a following turnpoint.")
		return
	}

	route := req.Route
	if len(route) > 0 && len(route) != course.Len() {
		h.handleValidationError(w, fmt.Sprintf("route has %d points, task has %d turnpoints", len(route), course.Len()), nil)
		return
	}
	if len(route) == 0 {
		result, err := h.solve(r.Context(), course, req.Config)
		if err != nil {
			log.Printf("[HTTP] POST /api/v1/tasks/sss: solve error=%v", err)
			h.handleError(w, err)
			return
		}
		route = result.Route
	}

	info, err := h.Optimizer.SSSInfo(course, route)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if info == nil {
		h.handleNotFound(w, "NO_SSS", "The task has no start of speed section with a following turnpoint.")
		return
	}

	log.Printf("[HTTP] POST /api/v1/tasks/sss: sss_index=%d entry=%s", info.SSSIndex, info.OptimalEntryPoint)
	h.writeJSON(w, http.StatusOK, info)
}

// HandleBatchOptimize handles POST /api/v1/tasks/batch. Tasks are solved
// concurrently and a failing task does not fail the batch.
func (h *Handler) HandleBatchOptimize(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/tasks/batch: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body", nil)
		return
	}
	if len(req.Tasks) == 0 {
		h.handleValidationError(w, "Please provide at least one task.", nil)
		return
	}
	if len(req.Tasks) > maxBatchTasks {
		h.handleValidationError(w, fmt.Sprintf("A batch holds at most %d tasks.", maxBatchTasks), map[string]interface{}{
			"tasks": len(req.Tasks),
		})
		return
	}

	limit := h.BatchLimit
	if limit < 1 {
		limit = 1
	}

	items := make([]BatchItem, len(req.Tasks))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(limit)
	for i, task := range req.Tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := h.solveTask(ctx, task)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				_, detail := classifyError(err)
				items[i] = BatchItem{Error: &detail}
				return nil
			}
			items[i] = BatchItem{Result: result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[HTTP] POST /api/v1/tasks/batch: aborted err=%v", err)
		h.handleError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/tasks/batch: tasks=%d limit=%d", len(req.Tasks), limit)
	h.writeJSON(w, http.StatusOK, BatchResponse{Results: items})
}

func (h *Handler) solveTask(ctx context.Context, req TaskRequest) (*models.TaskResult, error) {
	course, err := models.NewCourseFromRecords(req.Turnpoints)
	if err != nil {
		return nil, err
	}
	return h.solve(ctx, course, req.Config)
}

func (h *Handler) solve(ctx context.Context, course models.Course, override *optimizer.Config) (*models.TaskResult, error) {
	cfg, err := h.requestConfig(override)
	if err != nil {
		return nil, err
	}
	return h.Solver.Solve(ctx, &optimizer.SolveRequest{Course: course, Config: cfg})
}

// requestConfig lays the non-zero fields of override over the service
// defaults. A nil override keeps the defaults.
func (h *Handler) requestConfig(override *optimizer.Config) (optimizer.Config, error) {
	if override == nil {
		return optimizer.Config{}, nil
	}

	cfg := optimizer.DefaultConfig()
	if h.Optimizer != nil {
		cfg = h.Optimizer.Config()
	}
	if override.AngleStep != 0 {
		cfg.AngleStep = override.AngleStep
	}
	if override.BeamWidth != 0 {
		cfg.BeamWidth = override.BeamWidth
	}
	if override.NumIterations != 0 {
		cfg.NumIterations = override.NumIterations
	}
	if override.Tolerance != 0 {
		cfg.Tolerance = override.Tolerance
	}
	if override.FineAngleStep != 0 {
		cfg.FineAngleStep = override.FineAngleStep
	}
	if override.Workers != 0 {
		cfg.Workers = override.Workers
	}
	if override.FallbackToCenters {
		cfg.FallbackToCenters = true
	}

	if err := cfg.Validate(); err != nil {
		return optimizer.Config{}, err
	}
	return cfg, nil
}
