package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-optimizer/internal/models"
	"task-optimizer/internal/optimizer"
	"task-optimizer/internal/testutil"
)

func testCourse(t *testing.T) models.Course {
	t.Helper()
	course, err := models.NewCourse([]models.Turnpoint{
		{Center: models.Coordinates{Lat: 46.0, Lon: 8.0}},
		{Center: models.Coordinates{Lat: 46.1, Lon: 8.1}, Radius: 2000},
		{Center: models.Coordinates{Lat: 46.2, Lon: 8.0}, Radius: 400, Geometry: models.Line(0), Role: models.RoleGoal},
	})
	require.NoError(t, err)
	return course
}

func testResult() *models.TaskResult {
	return &models.TaskResult{
		OptimizedDistanceMeters: 24321.5,
		Route: []models.Coordinates{
			{Lat: 46.0, Lon: 8.0},
			{Lat: 46.09, Lon: 8.09},
			{Lat: 46.2, Lon: 8.0},
		},
		Summary: models.TaskSummary{
			CenterDistanceMeters:    26000,
			OptimizedDistanceMeters: 24321.5,
			SavingsMeters:           1678.5,
			SavingsPercent:          6.45,
			PerZone: []models.ZoneSummary{
				{Index: 0, Role: models.RoleNone},
				{Index: 1, Role: models.RoleNone, CumulativeCenterMeters: 13000, CumulativeOptimizedMeters: 12000},
				{Index: 2, Role: models.RoleGoal, CumulativeCenterMeters: 26000, CumulativeOptimizedMeters: 24321.5},
			},
		},
		Iterations: 3,
		Warnings:   []string{},
	}
}

func TestKeyIsStable(t *testing.T) {
	course := testCourse(t)

	a, err := Key(course, optimizer.Config{})
	require.NoError(t, err)
	b, err := Key(course, optimizer.DefaultConfig())
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "zero config and defaults should hash the same")
}

func TestKeyTracksInputs(t *testing.T) {
	course := testCourse(t)
	base, err := Key(course, optimizer.Config{})
	require.NoError(t, err)

	other, err := Key(course, optimizer.Config{AngleStep: 5})
	require.NoError(t, err)
	assert.NotEqual(t, base, other)

	tps := course.Turnpoints()
	tps[1].Radius = 2001
	moved, err := models.NewCourse(tps)
	require.NoError(t, err)
	movedKey, err := Key(moved, optimizer.Config{})
	require.NoError(t, err)
	assert.NotEqual(t, base, movedKey)

	// worker count does not change results
	workers, err := Key(course, optimizer.Config{Workers: 8})
	require.NoError(t, err)
	assert.Equal(t, base, workers)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)

	miss, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, store.Set(ctx, "a", testResult()))
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, testResult(), got)

	// results are copies
	got.Route[0].Lat = 0
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 46.0, again.Route[0].Lat)

	require.NoError(t, store.Set(ctx, "b", testResult()))
	require.NoError(t, store.Set(ctx, "c", testResult()))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Len())
	assert.NoError(t, store.Close())
}

func setupSQLiteStore(t *testing.T, ttl time.Duration) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", DefaultDBFileName)
	store, err := NewSQLiteStore(path, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreSetGet(t *testing.T) {
	store := setupSQLiteStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", testResult()))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testResult(), got)

	// overwrite
	updated := testResult()
	updated.OptimizedDistanceMeters = 1
	require.NoError(t, store.Set(ctx, "k1", updated))
	got, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.OptimizedDistanceMeters)
}

func TestSQLiteStoreGetNotFound(t *testing.T) {
	store := setupSQLiteStore(t, 0)

	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStoreClear(t *testing.T) {
	store := setupSQLiteStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", testResult()))
	require.NoError(t, store.Clear(ctx))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStoreExpiry(t *testing.T) {
	store := setupSQLiteStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "fresh", testResult()))
	_, err := store.db.ExecContext(ctx,
		"INSERT INTO solve_cache (cache_key, result, optimized_distance_meters, created_at) VALUES (?, ?, ?, ?)",
		"stale", []byte{0x80}, 0.0, time.Now().Add(-2*time.Hour).Unix())
	require.NoError(t, err)

	stale, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, stale)

	pruned, err := store.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	fresh, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBFileName)
	ctx := context.Background()

	store, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "persisted", testResult()))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, path, reopened.GetDBPath())
	assert.NoError(t, reopened.HealthCheck(ctx))
	got, err := reopened.Get(ctx, "persisted")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	store, err := NewRedisStore(OpenRedis(addr, os.Getenv("REDIS_PASS"), 0), time.Minute)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.HealthCheck(ctx))
	require.NoError(t, store.Clear(ctx))

	miss, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, store.Set(ctx, "k1", testResult()))
	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, testResult(), got)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreRequiresClient(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
	_, err := NewRedisStore(nil, 0)
	assert.Error(t, err)
}

// countingSolver returns a fixed result and counts calls
type countingSolver struct {
	mu     sync.Mutex
	calls  int
	result *models.TaskResult
	err    error
}

func (s *countingSolver) Solve(ctx context.Context, req *optimizer.SolveRequest) (*models.TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := *s.result
	return &out, nil
}

func TestCachedSolverServesHits(t *testing.T) {
	inner := &countingSolver{result: testResult()}
	store := testutil.NewMockCache()
	solver := NewCachedSolver(inner, store, nil)
	req := &optimizer.SolveRequest{Course: testCourse(t)}

	first, err := solver.Solve(context.Background(), req)
	require.NoError(t, err)
	second, err := solver.Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.OptimizedDistanceMeters, second.OptimizedDistanceMeters)
	assert.Equal(t, 1, store.Count())
	assert.Equal(t, 2, store.Gets())
}

func TestCachedSolverSkipsFallbackResults(t *testing.T) {
	res := testResult()
	res.Fallback = true
	inner := &countingSolver{result: res}
	store := testutil.NewMockCache()
	solver := NewCachedSolver(inner, store, nil)

	_, err := solver.Solve(context.Background(), &optimizer.SolveRequest{Course: testCourse(t)})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestCachedSolverIsAdvisory(t *testing.T) {
	inner := &countingSolver{result: testResult()}
	store := testutil.NewMockCache()
	store.FailReads = true
	store.FailWrites = true
	solver := NewCachedSolver(inner, store, nil)

	result, err := solver.Solve(context.Background(), &optimizer.SolveRequest{Course: testCourse(t)})
	require.NoError(t, err)
	assert.Equal(t, testResult().OptimizedDistanceMeters, result.OptimizedDistanceMeters)
	assert.Equal(t, 1, store.Sets())
}

func TestCachedSolverPropagatesErrors(t *testing.T) {
	inner := &countingSolver{err: testutil.ErrMockGeodesy}
	solver := NewCachedSolver(inner, nil, nil)

	_, err := solver.Solve(context.Background(), &optimizer.SolveRequest{Course: testCourse(t)})
	assert.ErrorIs(t, err, testutil.ErrMockGeodesy)
	assert.Equal(t, optimizer.DefaultConfig(), solver.Config())
}

func TestCachedSolverWithOptimizer(t *testing.T) {
	opt, err := optimizer.New(testutil.NewMockGeodesy(), optimizer.Config{NumIterations: 2})
	require.NoError(t, err)
	store := NewMemoryStore(8, 0)
	solver := NewCachedSolver(opt, store, nil)
	req := &optimizer.SolveRequest{Course: testCourse(t)}

	first, err := solver.Solve(context.Background(), req)
	require.NoError(t, err)
	second, err := solver.Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 2, solver.Config().NumIterations)
}

func TestOpenBackends(t *testing.T) {
	store, err := Open(Options{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(Options{Backend: BackendMemory, MemorySize: 4})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	path := filepath.Join(t.TempDir(), DefaultDBFileName)
	store, err = Open(Options{Backend: BackendSQLite, SQLitePath: path, TTL: time.Hour})
	require.NoError(t, err)
	defer store.Close()
	sqlite, ok := store.(*SQLiteStore)
	if !ok {
		t.Fatalf("expected *SQLiteStore, got %T", store)
	}
	assert.Equal(t, path, sqlite.GetDBPath())
	_, isChecker := store.(HealthChecker)
	assert.True(t, isChecker)

	_, err = Open(Options{Backend: BackendRedis})
	assert.Error(t, err)

	_, err = Open(Options{Backend: "memcached"})
	assert.Error(t, err)
}
