package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/models"
)

// Every method takes ctx first so a client disconnect cancels the query.
// Lookups return nil, nil when nothing matches; every tenant-owned read
// filters by projectID, even when the row id alone would be unique.

var (
	// ErrSubdomainTaken is returned when a project subdomain collides with an
	// existing one.
	ErrSubdomainTaken = errors.New("subdomain already taken")
	// ErrEmailTaken is returned when an owner email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrSlotTaken is returned when the store refuses an appointment that
	// overlaps another non-cancelled appointment of the same employee.
	ErrSlotTaken = errors.New("time slot already booked")
	// ErrStaleStatus is returned when an appointment changed status between
	// read and write.
	ErrStaleStatus = errors.New("appointment status changed concurrently")
)

type ProjectRepository interface {
	Create(ctx context.Context, p *models.Project) (*models.Project, error)
	GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Project, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error)
	// ListActive is used by batch jobs that sweep every tenant.
	ListActive(ctx context.Context) ([]models.Project, error)
	UpdateSubdomain(ctx context.Context, projectID uuid.UUID, subdomain string) (*models.Project, error)
	UpdateStatus(ctx context.Context, projectID uuid.UUID, status models.ProjectStatus) (*models.Project, error)
}

type UserRepository interface {
	Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type EmployeeRepository interface {
	Create(ctx context.Context, e *models.Employee) (*models.Employee, error)
	GetByID(ctx context.Context, projectID, employeeID uuid.UUID) (*models.Employee, error)
	List(ctx context.Context, projectID uuid.UUID) ([]models.Employee, error)
	// ListActive returns active employees. With a serviceID, employees linked
	// to that service are returned; when the service has no links at all,
	// every active employee is eligible.
	ListActive(ctx context.Context, projectID uuid.UUID, serviceID *uuid.UUID) ([]models.Employee, error)
	SetActive(ctx context.Context, projectID, employeeID uuid.UUID, active bool) (*models.Employee, error)
}

type ServiceRepository interface {
	Create(ctx context.Context, s *models.Service) (*models.Service, error)
	GetByID(ctx context.Context, projectID, serviceID uuid.UUID) (*models.Service, error)
	List(ctx context.Context, projectID uuid.UUID) ([]models.Service, error)
	SetEmployees(ctx context.Context, projectID, serviceID uuid.UUID, employeeIDs []uuid.UUID) error
}

type CustomerRepository interface {
	// Upsert matches an existing customer by phone, then email, within the
	// project and creates one otherwise.
	Upsert(ctx context.Context, c *models.Customer) (*models.Customer, error)
	GetByID(ctx context.Context, projectID, customerID uuid.UUID) (*models.Customer, error)
}

type BotConfigRepository interface {
	Get(ctx context.Context, projectID uuid.UUID) (*models.BotConfigRecord, error)
	Upsert(ctx context.Context, projectID uuid.UUID, raw []byte) (*models.BotConfigRecord, error)
}

// AppointmentFilter narrows List. Nil fields do not filter.
type AppointmentFilter struct {
	From       *time.Time
	To         *time.Time
	EmployeeID *uuid.UUID
	Status     *models.AppointmentStatus
}

// StatusChange moves an appointment from one status to another. The write
// only applies while the stored status still equals From.
type StatusChange struct {
	From        models.AppointmentStatus
	To          models.AppointmentStatus
	Reason      string
	CancelledBy string
}

type AppointmentRepository interface {
	// Create stores a new appointment and returns ErrSlotTaken when it would
	// overlap another time-blocking appointment of the same employee.
	Create(ctx context.Context, a *models.Appointment) (*models.Appointment, error)
	GetByID(ctx context.Context, projectID, appointmentID uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, projectID uuid.UUID, filter AppointmentFilter) ([]models.Appointment, error)
	// ListBlocking returns non-cancelled appointments overlapping [from, to),
	// optionally restricted to one employee.
	ListBlocking(ctx context.Context, projectID uuid.UUID, employeeID *uuid.UUID, from, to time.Time) ([]models.Appointment, error)
	// ListOpenStartedBefore returns pending and confirmed appointments whose
	// start is before cutoff.
	ListOpenStartedBefore(ctx context.Context, projectID uuid.UUID, cutoff time.Time) ([]models.Appointment, error)
	// UpdateStatus returns ErrStaleStatus when the stored status is no longer
	// change.From, and nil, nil when the appointment does not exist.
	UpdateStatus(ctx context.Context, projectID, appointmentID uuid.UUID, change StatusChange) (*models.Appointment, error)
}
