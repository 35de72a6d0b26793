package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-optimizer/internal/models"
	"task-optimizer/internal/optimizer"
)

func sampleTask() []models.TurnpointRecord {
	return []models.TurnpointRecord{
		{Lat: 0, Lon: 0, Role: models.RoleTakeoff},
		{Lat: 0.05, Lon: 0.1, RadiusMeters: 2000},
		{Lat: 0, Lon: 0.2, RadiusMeters: 1000, Role: models.RoleGoal},
	}
}

func sssTask() []models.TurnpointRecord {
	return []models.TurnpointRecord{
		{Lat: 0, Lon: 0, Role: models.RoleTakeoff},
		{Lat: 0, Lon: 0.05, RadiusMeters: 2000, Role: models.RoleSSS},
		{Lat: 0.05, Lon: 0.1, RadiusMeters: 1000},
		{Lat: 0, Lon: 0.2, Role: models.RoleGoal},
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestHandleHealthCheck(t *testing.T) {
	h := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["cache"])

	h.CacheHealth = func(context.Context) error { return errors.New("down") }
	w = httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "error", body["cache"])
}

func TestHandleOptimizeTask(t *testing.T) {
	h := setupTestHandler(t)

	w := postJSON(t, h.HandleOptimizeTask, "/api/v1/tasks/optimize", TaskRequest{Turnpoints: sampleTask()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.TaskResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Len(t, result.Route, 3)
	assert.Greater(t, result.OptimizedDistanceMeters, 0.0)
	assert.LessOrEqual(t, result.OptimizedDistanceMeters, result.Summary.CenterDistanceMeters)
	assert.Len(t, result.Summary.PerZone, 3)
	assert.NotNil(t, result.Warnings)
}

func TestHandleOptimizeTaskWithConfig(t *testing.T) {
	h := setupTestHandler(t)

	w := postJSON(t, h.HandleOptimizeTask, "/api/v1/tasks/optimize", TaskRequest{
		Turnpoints: sampleTask(),
		Config:     &optimizer.Config{AngleStep: 5, BeamWidth: 4},
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandleOptimizeTaskValidation(t *testing.T) {
	h := setupTestHandler(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"negative radius", TaskRequest{Turnpoints: []models.TurnpointRecord{{Lat: 0, Lon: 0, RadiusMeters: -1}}}},
		{"latitude out of range", TaskRequest{Turnpoints: []models.TurnpointRecord{{Lat: 95, Lon: 0}}}},
		{"unknown role", TaskRequest{Turnpoints: []models.TurnpointRecord{{Lat: 0, Lon: 0, Role: "finish"}}}},
		{"bad config", TaskRequest{Turnpoints: sampleTask(), Config: &optimizer.Config{BeamWidth: -3}}},
		{"unknown field", map[string]interface{}{"turnpoints": sampleTask(), "speed": 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, h.HandleOptimizeTask, "/api/v1/tasks/optimize", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
		})
	}
}

func TestHandleOptimizeTaskInvalidJSON(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/tasks/optimize", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	h.HandleOptimizeTask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleOptimizeTaskSolverFailure(t *testing.T) {
	h := setupTestHandler(t)
	h.Solver = &stubSolver{err: &optimizer.ErrSolverExhausted{Stage: 1, Reason: "no candidates"}}

	w := postJSON(t, h.HandleOptimizeTask, "/api/v1/tasks/optimize", TaskRequest{Turnpoints: sampleTask()})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "SOLVER_FAILED", decodeError(t, w).Code)
}

func TestHandleCenterDistance(t *testing.T) {
	h := setupTestHandler(t)

	w := postJSON(t, h.HandleCenterDistance, "/api/v1/tasks/centers", TaskRequest{
		Turnpoints: []models.TurnpointRecord{
			{Lat: 0, Lon: 0},
			{Lat: 0, Lon: 0.1, RadiusMeters: 400},
			{Lat: 0, Lon: 0.2},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp CentersResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.InDelta(t, 22200, resp.CenterDistanceMeters, 1e-6)
}

func TestHandleSSSEntry(t *testing.T) {
	h := setupTestHandler(t)

	w := postJSON(t, h.HandleSSSEntry, "/api/v1/tasks/sss", SSSRequest{Turnpoints: sssTask()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var info models.SSSInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, 1, info.SSSIndex)
	assert.Equal(t, models.Coordinates{Lat: 0, Lon: 0.05}, info.SSSCenter)
	assert.Equal(t, models.Coordinates{Lat: 0, Lon: 0}, info.TakeoffCenter)

	// entry lies on the SSS cylinder
	d, err := h.Optimizer.DistanceThroughCenters(mustCourse(t, []models.Coordinates{info.SSSCenter, info.OptimalEntryPoint}))
	require.NoError(t, err)
	assert.InDelta(t, 2000, d, 1)
}

func TestHandleSSSEntryWithRoute(t *testing.T) {
	h := setupTestHandler(t)
	h.Solver = &stubSolver{err: errors.New("must not solve")}

	route := []models.Coordinates{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.05},
		{Lat: 0.045, Lon: 0.1},
		{Lat: 0, Lon: 0.2},
	}
	w := postJSON(t, h.HandleSSSEntry, "/api/v1/tasks/sss", SSSRequest{Turnpoints: sssTask(), Route: route})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var info models.SSSInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, route[2], info.FirstTPAfterSSS)

	// a route of the wrong length is rejected
	w = postJSON(t, h.HandleSSSEntry, "/api/v1/tasks/sss", SSSRequest{Turnpoints: sssTask(), Route: route[:2]})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSSSEntryNoSSS(t *testing.T) {
	h := setupTestHandler(t)

	w := postJSON(t, h.HandleSSSEntry, "/api/v1/tasks/sss", SSSRequest{Turnpoints: sampleTask()})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_SSS", decodeError(t, w).Code)

	// SSS as the last zone has no successor
	last := sampleTask()
	last[2].Role = models.RoleSSS
	w = postJSON(t, h.HandleSSSEntry, "/api/v1/tasks/sss", SSSRequest{Turnpoints: last})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleBatchOptimize(t *testing.T) {
	h := setupTestHandler(t)

	w := postJSON(t, h.HandleBatchOptimize, "/api/v1/tasks/batch", BatchRequest{Tasks: []TaskRequest{
		{Turnpoints: sampleTask()},
		{Turnpoints: []models.TurnpointRecord{{Lat: 0, Lon: 0, RadiusMeters: -5}}},
		{Turnpoints: sssTask()},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp BatchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 3)

	require.NotNil(t, resp.Results[0].Result)
	assert.Nil(t, resp.Results[0].Error)

	assert.Nil(t, resp.Results[1].Result)
	require.NotNil(t, resp.Results[1].Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Results[1].Error.Code)

	require.NotNil(t, resp.Results[2].Result)
	assert.Len(t, resp.Results[2].Result.Route, 4)
}

func TestHandleBatchOptimizeMatchesSingle(t *testing.T) {
	h := setupTestHandler(t)

	single := postJSON(t, h.HandleOptimizeTask, "/api/v1/tasks/optimize", TaskRequest{Turnpoints: sampleTask()})
	var want models.TaskResult
	require.NoError(t, json.NewDecoder(single.Body).Decode(&want))

	w := postJSON(t, h.HandleBatchOptimize, "/api/v1/tasks/batch", BatchRequest{Tasks: []TaskRequest{
		{Turnpoints: sampleTask()},
		{Turnpoints: sampleTask()},
	}})
	var resp BatchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	for _, item := range resp.Results {
		require.NotNil(t, item.Result)
		assert.Equal(t, want.OptimizedDistanceMeters, item.Result.OptimizedDistanceMeters)
	}
}

func TestHandleBatchOptimizeValidation(t *testing.T) {
	h := setupTestHandler(t)

	w := postJSON(t, h.HandleBatchOptimize, "/api/v1/tasks/batch", BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tasks := make([]TaskRequest, maxBatchTasks+1)
	for i := range tasks {
		tasks[i] = TaskRequest{Turnpoints: sampleTask()}
	}
	w = postJSON(t, h.HandleBatchOptimize, "/api/v1/tasks/batch", BatchRequest{Tasks: tasks})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleBatchOptimizeCanceled(t *testing.T) {
	h := setupTestHandler(t)

	b, err := json.Marshal(BatchRequest{Tasks: []TaskRequest{{Turnpoints: sampleTask()}}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest("POST", "/api/v1/tasks/batch", bytes.NewReader(b)).WithContext(ctx)
	w := httptest.NewRecorder()
	h.HandleBatchOptimize(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func mustCourse(t *testing.T, points []models.Coordinates) models.Course {
	t.Helper()
	tps := make([]models.Turnpoint, len(points))
	for i, p := range points {
		tps[i] = models.Turnpoint{Center: p}
	}
	course, err := models.NewCourse(tps)
	require.NoError(t, err)
	return course
}
