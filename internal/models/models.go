package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProjectStatus is the soft-disable flag of a tenant.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectDisabled ProjectStatus = "disabled"
)

// Project is a tenant. Every employee, service, appointment and bot
// configuration belongs to exactly one project, addressed publicly by its
// subdomain.
type Project struct {
	ID          uuid.UUID     `json:"id"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	Name        string        `json:"name"`
	Subdomain   string        `json:"subdomain"`
	Status      ProjectStatus `json:"status"`
	WhatsAppID  string        `json:"whatsapp_phone_id,omitempty"`
	TelegramBot string        `json:"telegram_bot,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (p *Project) IsActive() bool {
	return p != nil && p.Status == ProjectActive
}

// User is a project owner account. Password hashes never leave the server.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Area groups employees into teams (e.g. "Barbers", "Colorists").
type Area struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
}

type Employee struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	AreaID    *uuid.UUID `json:"area_id,omitempty"`
	AreaName  string     `json:"area_name,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

type Service struct {
	ID              uuid.UUID       `json:"id"`
	ProjectID       uuid.UUID       `json:"project_id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Customer is the end customer (app user) that books through the bot or the
// public widget.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// IsTerminal reports whether no further transition is allowed.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// BlocksTime reports whether an appointment in this status occupies its
// employee's calendar. Only cancellation frees the slot.
func (s AppointmentStatus) BlocksTime() bool {
	return s != StatusCancelled
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Appointment is a booking. Price and Currency are captured when the
// appointment is created and never follow later service price changes.
type Appointment struct {
	ID                 uuid.UUID         `json:"id"`
	ProjectID          uuid.UUID         `json:"project_id"`
	ServiceID          uuid.UUID         `json:"service_id"`
	EmployeeID         *uuid.UUID        `json:"employee_id,omitempty"`
	CustomerID         *uuid.UUID        `json:"customer_id,omitempty"`
	StartsAt           time.Time         `json:"starts_at"`
	EndsAt             time.Time         `json:"ends_at"`
	Status             AppointmentStatus `json:"status"`
	Price              decimal.Decimal   `json:"price"`
	Currency           string            `json:"currency"`
	Notes              string            `json:"notes,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	CancelledBy        string            `json:"cancelled_by,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// BotConfigRecord is the raw, persisted bot configuration of a project.
// Parsing and validation live in the botconfig package.
type BotConfigRecord struct {
	ProjectID uuid.UUID `json:"project_id"`
	Raw       []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}
