package models

import (
	"fmt"
	"math"
)

// Coordinates represents a geographic point on the WGS84 ellipsoid
type Coordinates struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lon float64 `json:"lon" msgpack:"lon"`
}

// String formats the point for log lines
func (c Coordinates) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", c.Lat, c.Lon)
}

// IsFinite reports whether both components are real numbers
func (c Coordinates) IsFinite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0)
}

// RoundCoordinate rounds a coordinate to 6 decimal places (~0.1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// GeometryKind selects the zone shape
type GeometryKind string

const (
	GeometryCylinder GeometryKind = "cylinder"
	GeometryLine     GeometryKind = "line"
)

// Geometry is the shape of a turnpoint zone. LineLength is only read for
// GeometryLine; zero means the length is derived from the zone radius.
type Geometry struct {
	Kind       GeometryKind `json:"kind" msgpack:"kind"`
	LineLength float64      `json:"line_length_m,omitempty" msgpack:"line_length_m,omitempty"`
}

// Cylinder returns the circular zone geometry
func Cylinder() Geometry {
	return Geometry{Kind: GeometryCylinder}
}

// Line returns a goal line geometry. A zero length defers to 2×radius.
func Line(length float64) Geometry {
	return Geometry{Kind: GeometryLine, LineLength: length}
}

// Role tags a turnpoint with its function in the task
type Role string

const (
	RoleNone    Role = "none"
	RoleTakeoff Role = "takeoff"
	RoleSSS     Role = "sss"
	RoleESS     Role = "ess"
	RoleGoal    Role = "goal"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleTakeoff, RoleSSS, RoleESS, RoleGoal:
		return true
	}
	return false
}

// Turnpoint is a single zone of a task
type Turnpoint struct {
	Center   Coordinates `json:"center" msgpack:"center"`
	Radius   float64     `json:"radius_m" msgpack:"radius_m"`
	Geometry Geometry    `json:"geometry" msgpack:"geometry"`
	Role     Role        `json:"role" msgpack:"role"`
}

// NewTurnpoint builds and validates a turnpoint
func NewTurnpoint(center Coordinates, radius float64, geometry Geometry, role Role) (Turnpoint, error) {
	if geometry.Kind == "" {
		geometry.Kind = GeometryCylinder
	}
	if role == "" {
		role = RoleNone
	}
	tp := Turnpoint{Center: center, Radius: radius, Geometry: geometry, Role: role}
	if err := tp.Validate(); err != nil {
		return Turnpoint{}, err
	}
	return tp, nil
}

// Validate checks the construction-time invariants of the zone
func (t Turnpoint) Validate() error {
	if !t.Center.IsFinite() {
		return &ErrInvalidGeometry{Index: -1, Reason: "center is not a finite coordinate"}
	}
	if t.Center.Lat < -90 || t.Center.Lat > 90 {
		return &ErrInvalidGeometry{Index: -1, Reason: fmt.Sprintf("latitude %.6f out of range", t.Center.Lat)}
	}
	if math.IsNaN(t.Radius) || math.IsInf(t.Radius, 0) {
		return &ErrInvalidGeometry{Index: -1, Reason: "radius is not finite"}
	}
	if t.Radius < 0 {
		return &ErrInvalidGeometry{Index: -1, Reason: fmt.Sprintf("negative radius %.1f", t.Radius)}
	}
	if !t.Role.Valid() {
		return &ErrInvalidGeometry{Index: -1, Reason: fmt.Sprintf("unknown role %q", t.Role)}
	}

	switch t.Geometry.Kind {
	case GeometryCylinder:
		return nil
	case GeometryLine:
		if t.Geometry.LineLength < 0 || math.IsNaN(t.Geometry.LineLength) {
			return &ErrInvalidGeometry{Index: -1, Reason: "goal line length must be positive"}
		}
		if t.GoalLineLength() <= 0 {
			return &ErrInvalidGeometry{Index: -1, Reason: "goal line has no length and no radius to derive one from"}
		}
		return nil
	default:
		return &ErrInvalidGeometry{Index: -1, Reason: fmt.Sprintf("unknown geometry kind %q", t.Geometry.Kind)}
	}
}

// IsLine reports whether the zone is a goal line
func (t Turnpoint) IsLine() bool {
	return t.Geometry.Kind == GeometryLine
}

// GoalLineLength returns the effective line length in meters. An explicit
// length wins; otherwise the line spans the zone diameter.
func (t Turnpoint) GoalLineLength() float64 {
	if t.Geometry.LineLength > 0 {
		return t.Geometry.LineLength
	}
	return 2 * t.Radius
}

// ErrInvalidGeometry is returned when a zone fails construction-time validation
type ErrInvalidGeometry struct {
	Index  int
	Reason string
}

func (e *ErrInvalidGeometry) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid geometry: %s", e.Reason)
	}
	return fmt.Sprintf("invalid geometry at turnpoint %d: %s", e.Index, e.Reason)
}

// ZoneSummary holds the cumulative distances up to and including one zone
type ZoneSummary struct {
	Index                     int     `json:"index" msgpack:"index"`
	Role                      Role    `json:"role" msgpack:"role"`
	CumulativeCenterMeters    float64 `json:"cumulative_center_m" msgpack:"cumulative_center_m"`
	CumulativeOptimizedMeters float64 `json:"cumulative_optimized_m" msgpack:"cumulative_optimized_m"`
}

// TaskSummary contains aggregate stats for a task
type TaskSummary struct {
	CenterDistanceMeters    float64       `json:"center_distance_m" msgpack:"center_distance_m"`
	OptimizedDistanceMeters float64       `json:"optimized_distance_m" msgpack:"optimized_distance_m"`
	SavingsMeters           float64       `json:"savings_m" msgpack:"savings_m"`
	SavingsPercent          float64       `json:"savings_percent" msgpack:"savings_percent"`
	PerZone                 []ZoneSummary `json:"per_zone" msgpack:"per_zone"`
}

// TaskResult contains the full result of a task optimization
type TaskResult struct {
	OptimizedDistanceMeters float64       `json:"optimized_distance_m" msgpack:"optimized_distance_m"`
	Route                   []Coordinates `json:"route" msgpack:"route"`
	Summary                 TaskSummary   `json:"summary" msgpack:"summary"`
	Iterations              int           `json:"iterations" msgpack:"iterations"`
	Fallback                bool          `json:"fallback,omitempty" msgpack:"fallback,omitempty"`
	Warnings                []string      `json:"warnings" msgpack:"warnings"`
}

// SSSInfo describes the optimal entry into the start of speed section
type SSSInfo struct {
	SSSIndex          int         `json:"sss_index"`
	SSSCenter         Coordinates `json:"sss_center"`
	OptimalEntryPoint Coordinates `json:"optimal_entry_point"`
	FirstTPAfterSSS   Coordinates `json:"first_tp_after_sss"`
	TakeoffCenter     Coordinates `json:"takeoff_center"`
}
