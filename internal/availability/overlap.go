package availability

import (
	"time"

	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/models"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Conflict returns the first time-blocking appointment of employeeID that
// overlaps [start, end), or nil. Both the slot listing and the booking guard
// use it so that every offered slot is bookable.
func Conflict(appointments []models.Appointment, employeeID uuid.UUID, start, end time.Time) *models.Appointment {
	for i := range appointments {
		a := &appointments[i]
		if a.EmployeeID == nil || *a.EmployeeID != employeeID {
			continue
		}
		if !a.Status.BlocksTime() {
			continue
		}
		if Overlaps(a.StartsAt, a.EndsAt, start, end) {
			return a
		}
	}
	return nil
}
