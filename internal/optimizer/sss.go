package optimizer

import (
	"task-optimizer/internal/models"
)

// OptimalSSSEntryPoint returns where the pilot should cross the start of
// speed section coming from takeoff and heading for firstAfter.
func (o *Optimizer) OptimalSSSEntryPoint(sss models.Turnpoint, takeoff, firstAfter models.Coordinates) (models.Coordinates, error) {
	if sss.Radius == 0 {
		return sss.Center, nil
	}
	return o.OptimalPoint(sss, takeoff, &firstAfter)
}

// SSSInfo describes the start of speed section of a course. It returns nil
// when the course has fewer than two zones, no SSS or an SSS as its last
// zone. When route matches the course, the successor is taken from the
// route, otherwise from the next turnpoint center.
func (o *Optimizer) SSSInfo(course models.Course, route []models.Coordinates) (*models.SSSInfo, error) {
	if course.Len() < 2 {
		return nil, nil
	}
	idx := course.IndexOfRole(models.RoleSSS)
	if idx < 0 || idx == course.Len()-1 {
		return nil, nil
	}

	sss := course.At(idx)
	takeoff := course.At(0).Center
	firstAfter := course.At(idx + 1).Center
	if len(route) == course.Len() {
		firstAfter = route[idx+1]
	}

	entry, err := o.OptimalSSSEntryPoint(sss, takeoff, firstAfter)
	if err != nil {
		return nil, err
	}

	return &models.SSSInfo{
		SSSIndex:          idx,
		SSSCenter:         sss.Center,
		OptimalEntryPoint: entry,
		FirstTPAfterSSS:   firstAfter,
		TakeoffCenter:     takeoff,
	}, nil
}
