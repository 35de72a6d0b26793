package geodesy

import (
	"fmt"

	"task-optimizer/internal/models"
)

// InverseResult contains the solution of the inverse geodesic problem
type InverseResult struct {
	DistanceMeters float64
	Azimuth1       float64 // forward azimuth at the first point, degrees
	Azimuth2       float64 // forward azimuth at the second point, degrees
}

// Provider supplies the ellipsoidal primitives the optimizer is built on.
// Implementations must be safe for concurrent use.
type Provider interface {
	Distance(p1, p2 models.Coordinates) (float64, error)
	Forward(p models.Coordinates, azimuthDeg, distanceMeters float64) (models.Coordinates, error)
	Inverse(p1, p2 models.Coordinates) (InverseResult, error)
}

// ErrGeodesyFailed is returned when a geodesic computation cannot be performed
type ErrGeodesyFailed struct {
	Op     string
	From   models.Coordinates
	To     models.Coordinates
	Reason string
}

func (e *ErrGeodesyFailed) Error() string {
	return fmt.Sprintf("geodesy %s failed: %s", e.Op, e.Reason)
}
