package models

import (
	"errors"
	"fmt"
)

// Course is an ordered, read-only list of turnpoints. Index 0 is the
// takeoff, the last entry is the goal.
type Course struct {
	turnpoints []Turnpoint
}

// NewCourse validates every turnpoint and freezes the list
func NewCourse(turnpoints []Turnpoint) (Course, error) {
	tps := make([]Turnpoint, len(turnpoints))
	for i, tp := range turnpoints {
		if tp.Geometry.Kind == "" {
			tp.Geometry.Kind = GeometryCylinder
		}
		if tp.Role == "" {
			tp.Role = RoleNone
		}
		if err := tp.Validate(); err != nil {
			var gerr *ErrInvalidGeometry
			if errors.As(err, &gerr) {
				return Course{}, &ErrInvalidGeometry{Index: i, Reason: gerr.Reason}
			}
			return Course{}, err
		}
		tps[i] = tp
	}
	return Course{turnpoints: tps}, nil
}

// Len returns the number of turnpoints
func (c Course) Len() int {
	return len(c.turnpoints)
}

// At returns the turnpoint at index i
func (c Course) At(i int) Turnpoint {
	return c.turnpoints[i]
}

// Turnpoints returns a copy of the turnpoint list
func (c Course) Turnpoints() []Turnpoint {
	out := make([]Turnpoint, len(c.turnpoints))
	copy(out, c.turnpoints)
	return out
}

// Centers returns the zone centers in order
func (c Course) Centers() []Coordinates {
	out := make([]Coordinates, len(c.turnpoints))
	for i, tp := range c.turnpoints {
		out[i] = tp.Center
	}
	return out
}

// IndexOfRole returns the first turnpoint with the given role, or -1
func (c Course) IndexOfRole(role Role) int {
	for i, tp := range c.turnpoints {
		if tp.Role == role {
			return i
		}
	}
	return -1
}

// TurnpointRecord is the flat wire form produced by task parsers
type TurnpointRecord struct {
	Lat          float64      `json:"lat"`
	Lon          float64      `json:"lon"`
	RadiusMeters float64      `json:"radius_m"`
	GeometryKind GeometryKind `json:"geometry_kind,omitempty"`
	LineLength   *float64     `json:"line_length_m,omitempty"`
	Role         Role         `json:"role,omitempty"`
	Name         string       `json:"name,omitempty"`
}

// ToTurnpoint converts a wire record into a validated turnpoint
func (r TurnpointRecord) ToTurnpoint() (Turnpoint, error) {
	geometry := Cylinder()
	switch r.GeometryKind {
	case "", GeometryCylinder:
	case GeometryLine:
		length := 0.0
		if r.LineLength != nil {
			if *r.LineLength <= 0 {
				return Turnpoint{}, &ErrInvalidGeometry{Index: -1, Reason: fmt.Sprintf("goal line length %.1f must be positive", *r.LineLength)}
			}
			length = *r.LineLength
		}
		geometry = Line(length)
	default:
		return Turnpoint{}, &ErrInvalidGeometry{Index: -1, Reason: fmt.Sprintf("unknown geometry kind %q", r.GeometryKind)}
	}
	return NewTurnpoint(Coordinates{Lat: r.Lat, Lon: r.Lon}, r.RadiusMeters, geometry, r.Role)
}

// NewCourseFromRecords converts and validates a list of wire records
func NewCourseFromRecords(records []TurnpointRecord) (Course, error) {
	tps := make([]Turnpoint, len(records))
	for i, r := range records {
		tp, err := r.ToTurnpoint()
		if err != nil {
			var gerr *ErrInvalidGeometry
			if errors.As(err, &gerr) {
				return Course{}, &ErrInvalidGeometry{Index: i, Reason: gerr.Reason}
			}
			return Course{}, err
		}
		tps[i] = tp
	}
	return NewCourse(tps)
}
