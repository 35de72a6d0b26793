package geodesy

import (
	"fmt"
	"math"

	"github.com/tidwall/geodesic"

	"task-optimizer/internal/models"
)

type ellipsoidProvider struct {
	e *geodesic.Ellipsoid
}

// NewWGS84 creates a provider that solves geodesics on the WGS84 ellipsoid
func NewWGS84() Provider {
	return &ellipsoidProvider{e: geodesic.WGS84}
}

// NewSpherical creates a provider using great-circle math on a sphere of
// the WGS84 equatorial radius. Faster, but only good to ~0.5%.
func NewSpherical() Provider {
	return &ellipsoidProvider{e: geodesic.Globe}
}

func checkPoint(op string, p models.Coordinates) error {
	if !p.IsFinite() {
		return &ErrGeodesyFailed{Op: op, From: p, Reason: "coordinate is not finite"}
	}
	if p.Lat < -90 || p.Lat > 90 {
		return &ErrGeodesyFailed{Op: op, From: p, Reason: fmt.Sprintf("latitude %.6f out of range", p.Lat)}
	}
	return nil
}

func (g *ellipsoidProvider) Distance(p1, p2 models.Coordinates) (float64, error) {
	if p1 == p2 {
		return 0, nil
	}
	if err := checkPoint("distance", p1); err != nil {
		return 0, err
	}
	if err := checkPoint("distance", p2); err != nil {
		return 0, err
	}

	var s12 float64
	g.e.Inverse(p1.Lat, p1.Lon, p2.Lat, p2.Lon, &s12, nil, nil)
	if math.IsNaN(s12) {
		return 0, &ErrGeodesyFailed{Op: "distance", From: p1, To: p2, Reason: "solution did not converge"}
	}
	return s12, nil
}

func (g *ellipsoidProvider) Forward(p models.Coordinates, azimuthDeg, distanceMeters float64) (models.Coordinates, error) {
	if err := checkPoint("forward", p); err != nil {
		return models.Coordinates{}, err
	}
	if math.IsNaN(azimuthDeg) || math.IsInf(azimuthDeg, 0) || math.IsNaN(distanceMeters) || math.IsInf(distanceMeters, 0) {
		return models.Coordinates{}, &ErrGeodesyFailed{Op: "forward", From: p, Reason: "azimuth and distance must be finite"}
	}
	if distanceMeters == 0 {
		return p, nil
	}

	var lat2, lon2 float64
	g.e.Direct(p.Lat, p.Lon, azimuthDeg, distanceMeters, &lat2, &lon2, nil)
	out := models.Coordinates{Lat: lat2, Lon: lon2}
	if !out.IsFinite() {
		return models.Coordinates{}, &ErrGeodesyFailed{Op: "forward", From: p, Reason: "solution is not finite"}
	}
	return out, nil
}

func (g *ellipsoidProvider) Inverse(p1, p2 models.Coordinates) (InverseResult, error) {
	if err := checkPoint("inverse", p1); err != nil {
		return InverseResult{}, err
	}
	if err := checkPoint("inverse", p2); err != nil {
		return InverseResult{}, err
	}

	var s12, azi1, azi2 float64
	g.e.Inverse(p1.Lat, p1.Lon, p2.Lat, p2.Lon, &s12, &azi1, &azi2)
	if math.IsNaN(s12) || math.IsNaN(azi1) || math.IsNaN(azi2) {
		return InverseResult{}, &ErrGeodesyFailed{Op: "inverse", From: p1, To: p2, Reason: "solution did not converge"}
	}
	return InverseResult{DistanceMeters: s12, Azimuth1: azi1, Azimuth2: azi2}, nil
}
