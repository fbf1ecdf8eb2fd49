package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/models"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	tests := []struct {
		name           string
		aS, aE, bS, bE int
		want           bool
	}{
		{"identical", 0, 60, 0, 60, true},
		{"partial", 0, 60, 30, 90, true},
		{"contained", 0, 120, 30, 60, true},
		{"touching end", 0, 60, 60, 120, false},
		{"touching start", 60, 120, 0, 60, false},
		{"disjoint", 0, 30, 90, 120, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(at(tt.aS), at(tt.aE), at(tt.bS), at(tt.bE)); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := Overlaps(at(tt.bS), at(tt.bE), at(tt.aS), at(tt.aE)); got != tt.want {
				t.Errorf("Overlaps (swapped) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConflict(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	ana, bea := uuid.New(), uuid.New()
	appts := []models.Appointment{
		{EmployeeID: &ana, StartsAt: base, EndsAt: base.Add(time.Hour), Status: models.StatusCancelled},
		{EmployeeID: nil, StartsAt: base, EndsAt: base.Add(time.Hour), Status: models.StatusPending},
		{EmployeeID: &bea, StartsAt: base, EndsAt: base.Add(time.Hour), Status: models.StatusConfirmed},
	}

	if c := Conflict(appts, ana, base, base.Add(time.Hour)); c != nil {
		t.Errorf("cancelled or unassigned appointment reported as conflict: %+v", c)
	}
	c := Conflict(appts, bea, base.Add(30*time.Minute), base.Add(90*time.Minute))
	if c == nil || c.EmployeeID == nil || *c.EmployeeID != bea {
		t.Fatalf("Conflict = %+v, want Bea's appointment", c)
	}

	appts = append(appts, models.Appointment{EmployeeID: &ana, StartsAt: base, EndsAt: base.Add(time.Hour), Status: models.StatusCompleted})
	if Conflict(appts, ana, base, base.Add(time.Hour)) == nil {
		t.Error("completed appointment must still block its time")
	}
}
