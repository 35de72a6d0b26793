package testutil

import (
	"errors"
	"math"
	"sync"

	"task-optimizer/internal/geodesy"
	"task-optimizer/internal/models"
)

// MockGeodesy is a planar geodesy provider for deterministic tests.
// Latitude and longitude are treated as flat axes scaled by ScaleFactor,
// azimuth 0 is +lat (north) and 90 is +lon (east).
type MockGeodesy struct {
	ScaleFactor float64

	mu    sync.Mutex
	calls int
}

// NewMockGeodesy returns a planar provider with 1 degree = 111km
func NewMockGeodesy() *MockGeodesy {
	return &MockGeodesy{ScaleFactor: 111000}
}

func (m *MockGeodesy) count() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

// Calls returns the number of provider calls made so far
func (m *MockGeodesy) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ResetCalls clears the recorded call count
func (m *MockGeodesy) ResetCalls() {
	m.mu.Lock()
	m.calls = 0
	m.mu.Unlock()
}

func (m *MockGeodesy) Distance(p1, p2 models.Coordinates) (float64, error) {
	m.count()
	dLat := p2.Lat - p1.Lat
	dLon := p2.Lon - p1.Lon
	return math.Sqrt(dLat*dLat+dLon*dLon) * m.ScaleFactor, nil
}

func (m *MockGeodesy) Forward(p models.Coordinates, azimuthDeg, distanceMeters float64) (models.Coordinates, error) {
	m.count()
	rad := azimuthDeg * math.Pi / 180
	d := distanceMeters / m.ScaleFactor
	return models.Coordinates{
		Lat: p.Lat + d*math.Cos(rad),
		Lon: p.Lon + d*math.Sin(rad),
	}, nil
}

func (m *MockGeodesy) Inverse(p1, p2 models.Coordinates) (geodesy.InverseResult, error) {
	dist, _ := m.Distance(p1, p2)
	az := math.Atan2(p2.Lon-p1.Lon, p2.Lat-p1.Lat) * 180 / math.Pi
	return geodesy.InverseResult{DistanceMeters: dist, Azimuth1: az, Azimuth2: az}, nil
}

// ErrMockGeodesy is the error returned by FailingGeodesy
var ErrMockGeodesy = errors.New("mock geodesy failure")

// FailingGeodesy wraps a provider and starts failing after FailAfter calls
type FailingGeodesy struct {
	Inner     geodesy.Provider
	FailAfter int

	mu    sync.Mutex
	calls int
}

func (f *FailingGeodesy) tick() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls > f.FailAfter {
		return ErrMockGeodesy
	}
	return nil
}

func (f *FailingGeodesy) Distance(p1, p2 models.Coordinates) (float64, error) {
	if err := f.tick(); err != nil {
		return 0, err
	}
	return f.Inner.Distance(p1, p2)
}

func (f *FailingGeodesy) Forward(p models.Coordinates, azimuthDeg, distanceMeters float64) (models.Coordinates, error) {
	if err := f.tick(); err != nil {
		return models.Coordinates{}, err
	}
	return f.Inner.Forward(p, azimuthDeg, distanceMeters)
}

func (f *FailingGeodesy) Inverse(p1, p2 models.Coordinates) (geodesy.InverseResult, error) {
	if err := f.tick(); err != nil {
		return geodesy.InverseResult{}, err
	}
	return f.Inner.Inverse(p1, p2)
}
