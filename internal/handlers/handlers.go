package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"task-optimizer/internal/geodesy"
	"task-optimizer/internal/models"
	"task-optimizer/internal/optimizer"
)

// maxBodyBytes caps request bodies; a task is a few dozen turnpoints
const maxBodyBytes = 1 << 20

// Handler provides common handler utilities and dependencies
type Handler struct {
	// Solver answers optimize requests, usually a cache.CachedSolver
	Solver optimizer.Solver
	// Optimizer serves the cheap geometric queries directly
	Optimizer *optimizer.Optimizer
	// BatchLimit bounds concurrent solves in one batch request
	BatchLimit int
	// CacheHealth reports the state of the cache backend, nil when none
	CacheHealth func(ctx context.Context) error
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, code, message string) {
	h.writeError(w, http.StatusNotFound, code, message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string, details interface{}) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, details)
}

// handleError maps an optimizer error onto the matching response
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	status, detail := classifyError(err)
	h.writeJSON(w, status, ErrorResponse{Error: detail})
}

// classifyError returns the status and error body for err. Unknown errors
// are logged and reported without their message.
func classifyError(err error) (int, ErrorDetail) {
	var gerr *models.ErrInvalidGeometry
	var cerr *optimizer.ErrInvalidConfig
	var exhausted *optimizer.ErrSolverExhausted
	var geoErr *geodesy.ErrGeodesyFailed

	switch {
	case errors.As(err, &gerr):
		details := map[string]interface{}{"reason": gerr.Reason}
		if gerr.Index >= 0 {
			details["turnpoint"] = gerr.Index
		}
		return http.StatusBadRequest, ErrorDetail{Code: "VALIDATION_ERROR", Message: gerr.Error(), Details: details}
	case errors.As(err, &cerr):
		return http.StatusBadRequest, ErrorDetail{Code: "VALIDATION_ERROR", Message: cerr.Error(), Details: map[string]interface{}{"field": cerr.Field}}
	case errors.As(err, &exhausted):
		return http.StatusUnprocessableEntity, ErrorDetail{Code: "SOLVER_FAILED", Message: exhausted.Reason, Details: map[string]interface{}{"stage": exhausted.Stage}}
	case errors.As(err, &geoErr):
		return http.StatusUnprocessableEntity, ErrorDetail{Code: "SOLVER_FAILED", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorDetail{Code: "TIMEOUT", Message: "The optimization took too long."}
	default:
		log.Printf("[ERROR] Internal error: %v", err)
		return http.StatusInternalServerError, ErrorDetail{Code: "INTERNAL_ERROR", Message: "An error occurred. Please try again."}
	}
}

// decodeJSON reads a size-limited JSON body into v
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
