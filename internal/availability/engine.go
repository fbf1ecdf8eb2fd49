// Package availability computes the bookable slots of a project day and
// owns the interval-overlap rule shared with the booking write path.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/botconfig"
	"github.com/meetlines/meetlines/internal/repository"
	"go.uber.org/zap"
)

const DateLayout = "2006-01-02"

// ErrServiceNotFound is returned when a service filter names a service that
// does not exist in the project or is inactive.
var ErrServiceNotFound = errors.New("service not found")

// Slot is one bookable start time for one employee.
type Slot struct {
	Time         string    `json:"time"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	EmployeeID   uuid.UUID `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	AreaName     string    `json:"area_name,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
}

type DaySlots struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// Recorder receives the number of slots offered per query.
type Recorder interface {
	Slots(n int)
}

type Engine struct {
	botConfigs   repository.BotConfigRepository
	employees    repository.EmployeeRepository
	services     repository.ServiceRepository
	appointments repository.AppointmentRepository
	logger       *zap.Logger

	// Now is the clock used for lead-time filtering. Tests pin it.
	Now      func() time.Time
	Recorder Recorder
}

func NewEngine(
	botConfigs repository.BotConfigRepository,
	employees repository.EmployeeRepository,
	services repository.ServiceRepository,
	appointments repository.AppointmentRepository,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		botConfigs:   botConfigs,
		employees:    employees,
		services:     services,
		appointments: appointments,
		logger:       logger,
		Now:          time.Now,
	}
}

// Policy loads the project's booking policy. ok is false when booking is not
// configured, disabled, or the stored configuration cannot be parsed.
func (e *Engine) Policy(ctx context.Context, projectID uuid.UUID) (*botconfig.Transactional, bool, error) {
	rec, err := e.botConfigs.Get(ctx, projectID)
	if err != nil {
		return nil, false, fmt.Errorf("load bot config: %w", err)
	}
	if rec == nil {
		return nil, false, nil
	}
	cfg, err := botconfig.Parse(rec.Raw)
	if err != nil {
		e.logger.Warn("ignoring invalid bot config",
			zap.String("project_id", projectID.String()),
			zap.Error(err),
		)
		return nil, false, nil
	}
	t, ok := cfg.Booking()
	return t, ok, nil
}

// GetAvailableSlots returns the slots of the calendar day of date (its year,
// month and day are read; the clock and zone are ignored). A missing or
// disabled booking policy, a closed day, and a day beyond the max-advance
// window all yield an empty list.
func (e *Engine) GetAvailableSlots(ctx context.Context, projectID uuid.UUID, date time.Time, serviceID *uuid.UUID) (*DaySlots, error) {
	y, m, d := date.Date()
	out := &DaySlots{
		Date:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(DateLayout),
		Slots: make([]Slot, 0),
	}

	policy, ok, err := e.Policy(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}

	length := policy.SlotDuration()
	if serviceID != nil {
		svc, err := e.services.GetByID(ctx, projectID, *serviceID)
		if err != nil {
			return nil, fmt.Errorf("load service: %w", err)
		}
		if svc == nil || !svc.Active {
			return nil, ErrServiceNotFound
		}
		length = svc.Duration()
	}

	now := e.Now()
	if beyondMaxAdvance(policy, now, y, m, d) {
		return out, nil
	}

	open, closing, ok := policy.Window(y, m, d)
	if !ok {
		return out, nil
	}

	employees, err := e.employees.ListActive(ctx, projectID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}
	if len(employees) == 0 {
		return out, nil
	}

	booked, err := e.appointments.ListBlocking(ctx, projectID, nil, open, closing)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	earliest := now.Add(policy.MinAdvance())
	step := policy.SlotDuration() + policy.Buffer()
	loc := policy.Location()

	for start := open; !start.Add(length).After(closing); start = start.Add(step) {
		end := start.Add(length)
		if !start.After(now) || start.Before(earliest) {
			continue
		}
		for _, emp := range employees {
			if Conflict(booked, emp.ID, start, end) != nil {
				continue
			}
			out.Slots = append(out.Slots, Slot{
				Time:         start.In(loc).Format(botconfig.TimeLayout),
				StartsAt:     start,
				EndsAt:       end,
				EmployeeID:   emp.ID,
				EmployeeName: emp.Name,
				AreaName:     emp.AreaName,
				AvatarURL:    emp.AvatarURL,
			})
		}
	}

	sort.SliceStable(out.Slots, func(i, j int) bool {
		a, b := out.Slots[i], out.Slots[j]
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.Before(b.StartsAt)
		}
		return a.EmployeeName < b.EmployeeName
	})

	if e.Recorder != nil {
		e.Recorder.Slots(len(out.Slots))
	}
	return out, nil
}

// beyondMaxAdvance reports whether the day lies more than MaxAdvanceDays
// calendar days after today in the project's zone. Zero disables the limit.
func beyondMaxAdvance(t *botconfig.Transactional, now time.Time, y int, m time.Month, d int) bool {
	if t.MaxAdvanceDays <= 0 {
		return false
	}
	ny, nm, nd := now.In(t.Location()).Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	target := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return target.Sub(today) > time.Duration(t.MaxAdvanceDays)*24*time.Hour
}

// WithinBusinessHours reports whether [start, end) lies inside the business
// hours of the day start falls on, in the project's zone.
func WithinBusinessHours(t *botconfig.Transactional, start, end time.Time) bool {
	y, m, d := start.In(t.Location()).Date()
	open, closing, ok := t.Window(y, m, d)
	if !ok {
		return false
	}
	return !start.Before(open) && !end.After(closing)
}

// WithinAdvanceWindow reports whether start honours the minimum lead time
// and the max-advance window relative to now.
func WithinAdvanceWindow(t *botconfig.Transactional, now, start time.Time) bool {
	if start.Before(now.Add(t.MinAdvance())) || !start.After(now) {
		return false
	}
	y, m, d := start.In(t.Location()).Date()
	return !beyondMaxAdvance(t, now, y, m, d)
}
