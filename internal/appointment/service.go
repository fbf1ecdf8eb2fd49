// Package appointment enforces the appointment state machine and the
// booking rules that guard every write.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/availability"
	"github.com/meetlines/meetlines/internal/botconfig"
	"github.com/meetlines/meetlines/internal/events"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
	"go.uber.org/zap"
)

// PolicySource loads a project's booking policy. *availability.Engine
// satisfies it.
type PolicySource interface {
	Policy(ctx context.Context, projectID uuid.UUID) (*botconfig.Transactional, bool, error)
}

// Recorder counts status transitions.
type Recorder interface {
	Transition(status string)
}

type Service struct {
	appointments repository.AppointmentRepository
	services     repository.ServiceRepository
	employees    repository.EmployeeRepository
	customers    repository.CustomerRepository
	policies     PolicySource
	logger       *zap.Logger

	Now       func() time.Time
	Publisher events.Publisher
	Recorder  Recorder
}

func NewService(
	appointments repository.AppointmentRepository,
	services repository.ServiceRepository,
	employees repository.EmployeeRepository,
	customers repository.CustomerRepository,
	policies PolicySource,
	logger *zap.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		services:     services,
		employees:    employees,
		customers:    customers,
		policies:     policies,
		logger:       logger,
		Now:          time.Now,
	}
}

// CreateInput describes a booking request. EmployeeID nil means "any
// employee"; the first free eligible employee by name is assigned. Staff may
// name an existing CustomerID or pass Customer details to upsert; a
// customer actor always books for themselves.
type CreateInput struct {
	ServiceID  uuid.UUID
	EmployeeID *uuid.UUID
	CustomerID *uuid.UUID
	Customer   *models.Customer
	StartsAt   time.Time
	Notes      string
}

// Create books a new pending appointment. The overlap rule is checked here
// and again by the store, which turns a lost race into CodeSlotTaken.
func (s *Service) Create(ctx context.Context, projectID uuid.UUID, actor Actor, in CreateInput) (*models.Appointment, error) {
	if in.StartsAt.IsZero() {
		return nil, newError(CodeValidation, "starts_at is required")
	}

	svc, err := s.services.GetByID(ctx, projectID, in.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	if svc == nil || !svc.Active {
		return nil, newError(CodeNotFound, "service not found")
	}

	start := in.StartsAt
	end := start.Add(svc.Duration())

	if actor.IsCustomer() {
		policy, ok, err := s.policies.Policy(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newError(CodeBookingDisabled, "online booking is disabled for this project")
		}
		if !availability.WithinAdvanceWindow(policy, s.Now(), start) {
			return nil, newError(CodeLeadTime, "start time is outside the booking window")
		}
		if !availability.WithinBusinessHours(policy, start, end) {
			return nil, newError(CodeValidation, "start time is outside business hours")
		}
	}

	customerID, err := s.resolveCustomer(ctx, projectID, actor, in)
	if err != nil {
		return nil, err
	}

	employee, err := s.pickEmployee(ctx, projectID, svc.ID, in.EmployeeID, start, end)
	if err != nil {
		return nil, err
	}

	created, err := s.appointments.Create(ctx, &models.Appointment{
		ProjectID:  projectID,
		ServiceID:  svc.ID,
		EmployeeID: &employee.ID,
		CustomerID: customerID,
		StartsAt:   start,
		EndsAt:     end,
		Status:     models.StatusPending,
		Price:      svc.Price,
		Currency:   svc.Currency,
		Notes:      in.Notes,
	})
	if err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, &Error{Code: CodeSlotTaken, Message: "slot is no longer available", Err: err}
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.record(created.Status)
	s.publish(ctx, events.Event{Type: events.TypeCreated, ProjectID: projectID, Appointment: *created})
	return created, nil
}

func (s *Service) resolveCustomer(ctx context.Context, projectID uuid.UUID, actor Actor, in CreateInput) (*uuid.UUID, error) {
	id := in.CustomerID
	if actor.IsCustomer() {
		id = &actor.ID
	}

	if id != nil {
		c, err := s.customers.GetByID(ctx, projectID, *id)
		if err != nil {
			return nil, fmt.Errorf("load customer: %w", err)
		}
		if c == nil {
			return nil, newError(CodeNotFound, "customer not found")
		}
		return &c.ID, nil
	}

	if in.Customer == nil {
		return nil, nil
	}
	if in.Customer.Name == "" || (in.Customer.Phone == "" && in.Customer.Email == "") {
		return nil, newError(CodeValidation, "customer needs a name and a phone or email")
	}
	details := *in.Customer
	details.ProjectID = projectID
	c, err := s.customers.Upsert(ctx, &details)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	return &c.ID, nil
}

// pickEmployee returns the requested employee when it is eligible and free,
// or the first free eligible employee when none is requested.
func (s *Service) pickEmployee(ctx context.Context, projectID, serviceID uuid.UUID, requested *uuid.UUID, start, end time.Time) (*models.Employee, error) {
	eligible, err := s.employees.ListActive(ctx, projectID, &serviceID)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}

	booked, err := s.appointments.ListBlocking(ctx, projectID, requested, start, end)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	if requested != nil {
		for i := range eligible {
			if eligible[i].ID != *requested {
				continue
			}
			if availability.Conflict(booked, eligible[i].ID, start, end) != nil {
				return nil, newError(CodeSlotTaken, "slot is no longer available")
			}
			return &eligible[i], nil
		}
		return nil, newError(CodeNotFound, "employee not found or does not offer this service")
	}

	for i := range eligible {
		if availability.Conflict(booked, eligible[i].ID, start, end) == nil {
			return &eligible[i], nil
		}
	}
	return nil, newError(CodeSlotTaken, "no employee is free at this time")
}

// Get returns an appointment. Customers only see their own.
func (s *Service) Get(ctx context.Context, projectID, appointmentID uuid.UUID, actor Actor) (*models.Appointment, error) {
	a, err := s.load(ctx, projectID, appointmentID)
	if err != nil {
		return nil, err
	}
	if actor.IsCustomer() && !ownedBy(a, actor.ID) {
		return nil, newError(CodeNotFound, "appointment not found")
	}
	return a, nil
}

func (s *Service) Confirm(ctx context.Context, projectID, appointmentID uuid.UUID) (*models.Appointment, error) {
	return s.transition(ctx, projectID, appointmentID, models.StatusConfirmed, repository.StatusChange{}, nil)
}

func (s *Service) Complete(ctx context.Context, projectID, appointmentID uuid.UUID) (*models.Appointment, error) {
	return s.transition(ctx, projectID, appointmentID, models.StatusCompleted, repository.StatusChange{}, nil)
}

func (s *Service) MarkNoShow(ctx context.Context, projectID, appointmentID uuid.UUID) (*models.Appointment, error) {
	return s.transition(ctx, projectID, appointmentID, models.StatusNoShow, repository.StatusChange{}, nil)
}

// Cancel cancels a non-terminal appointment. A customer may only cancel
// their own appointment, only when the project allows it, and only with at
// least the configured notice. Staff skip the notice rule.
func (s *Service) Cancel(ctx context.Context, projectID, appointmentID uuid.UUID, actor Actor, reason string) (*models.Appointment, error) {
	change := repository.StatusChange{Reason: reason, CancelledBy: string(actor.Kind)}

	return s.transition(ctx, projectID, appointmentID, models.StatusCancelled, change, func(a *models.Appointment) error {
		if !actor.IsCustomer() {
			return nil
		}
		if !ownedBy(a, actor.ID) {
			return newError(CodeForbidden, "appointment belongs to another customer")
		}
		policy, ok, err := s.policies.Policy(ctx, projectID)
		if err != nil {
			return err
		}
		if !ok || !policy.Cancellation.Allowed {
			return newError(CodeValidation, "cancellation is not allowed for this project")
		}
		if notice := policy.MinCancelNotice(); a.StartsAt.Sub(s.Now()) < notice {
			return newError(CodeLeadTime, "appointments must be cancelled at least %d hours in advance",
				policy.Cancellation.MinHoursBefore)
		}
		return nil
	})
}

// MarkNoShows moves every pending or confirmed appointment of the project
// that started before cutoff to no_show and returns how many moved.
// Appointments that change concurrently are skipped.
func (s *Service) MarkNoShows(ctx context.Context, projectID uuid.UUID, cutoff time.Time) (int, error) {
	open, err := s.appointments.ListOpenStartedBefore(ctx, projectID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list open appointments: %w", err)
	}

	marked := 0
	for _, a := range open {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		_, err := s.MarkNoShow(ctx, projectID, a.ID)
		switch {
		case err == nil:
			marked++
		case IsCode(err, CodeConflict), IsCode(err, CodeTerminalState), IsCode(err, CodeNotFound):
			s.logger.Debug("skipping appointment in no-show sweep",
				zap.String("appointment_id", a.ID.String()),
				zap.Error(err),
			)
		default:
			return marked, err
		}
	}
	return marked, nil
}

func (s *Service) transition(
	ctx context.Context,
	projectID, appointmentID uuid.UUID,
	to models.AppointmentStatus,
	change repository.StatusChange,
	check func(*models.Appointment) error,
) (*models.Appointment, error) {
	a, err := s.load(ctx, projectID, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, newError(CodeTerminalState, "appointment is already %s", a.Status)
	}
	if !CanTransition(a.Status, to) {
		return nil, newError(CodeValidation, "cannot move appointment from %s to %s", a.Status, to)
	}
	if check != nil {
		if err := check(a); err != nil {
			return nil, err
		}
	}

	change.From = a.Status
	change.To = to
	updated, err := s.appointments.UpdateStatus(ctx, projectID, appointmentID, change)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, &Error{Code: CodeConflict, Message: "appointment was modified concurrently", Err: err}
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	if updated == nil {
		return nil, newError(CodeNotFound, "appointment not found")
	}

	s.record(updated.Status)
	s.publish(ctx, events.Event{
		Type:        events.TypeStatusChanged,
		ProjectID:   projectID,
		Appointment: *updated,
		From:        string(change.From),
	})
	return updated, nil
}

func (s *Service) load(ctx context.Context, projectID, appointmentID uuid.UUID) (*models.Appointment, error) {
	a, err := s.appointments.GetByID(ctx, projectID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if a == nil {
		return nil, newError(CodeNotFound, "appointment not found")
	}
	return a, nil
}

func ownedBy(a *models.Appointment, customerID uuid.UUID) bool {
	return a.CustomerID != nil && *a.CustomerID == customerID
}

func (s *Service) record(status models.AppointmentStatus) {
	if s.Recorder != nil {
		s.Recorder.Transition(string(status))
	}
}

// publish is best effort; a lost notification never fails the write.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.Publisher == nil {
		return
	}
	e.OccurredAt = s.Now()
	if err := s.Publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish appointment event",
			zap.String("type", e.Type),
			zap.String("appointment_id", e.Appointment.ID.String()),
			zap.Error(err),
		)
	}
}
