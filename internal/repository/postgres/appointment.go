package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetlines/meetlines/internal/db"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
	"github.com/shopspring/decimal"
)

const appointmentColumns = `id, project_id, service_id, employee_id, customer_id, starts_at, ends_at, status,
	price::text, currency, notes, cancellation_reason, cancelled_by, created_at, updated_at`

type AppointmentStore struct {
	pool *pgxpool.Pool
}

func NewAppointmentStore(pool *pgxpool.Pool) *AppointmentStore {
	return &AppointmentStore{pool: pool}
}

// Create inserts the appointment inside a transaction that first locks the
// employee row, so two bookings for one employee are serialized. The
// appointments_no_overlap exclusion constraint is the final guard.
func (s *AppointmentStore) Create(ctx context.Context, a *models.Appointment) (*models.Appointment, error) {
	var out *models.Appointment
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if a.EmployeeID != nil {
			if _, err := tx.Exec(ctx, `SELECT 1 FROM employees WHERE id = $1 FOR UPDATE`, *a.EmployeeID); err != nil {
				return fmt.Errorf("lock employee: %w", err)
			}

			var taken bool
			overlap := `
				SELECT EXISTS (
					SELECT 1 FROM appointments
					WHERE employee_id = $1 AND status <> 'cancelled'
					  AND starts_at < $3 AND ends_at > $2
				)`
			if err := tx.QueryRow(ctx, overlap, *a.EmployeeID, a.StartsAt, a.EndsAt).Scan(&taken); err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}
			if taken {
				return repository.ErrSlotTaken
			}
		}

		insert := `
			INSERT INTO appointments (project_id, service_id, employee_id, customer_id, starts_at, ends_at,
				status, price, currency, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10)
			RETURNING ` + appointmentColumns

		created, err := scanAppointment(tx.QueryRow(ctx, insert,
			a.ProjectID, a.ServiceID, a.EmployeeID, a.CustomerID, a.StartsAt, a.EndsAt,
			a.Status, a.Price.String(), a.Currency, a.Notes,
		))
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, appointmentInsertError(err)
	}
	return out, nil
}

func (s *AppointmentStore) GetByID(ctx context.Context, projectID, appointmentID uuid.UUID) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE project_id = $1 AND id = $2`
	a, err := scanAppointment(s.pool.QueryRow(ctx, query, projectID, appointmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *AppointmentStore) List(ctx context.Context, projectID uuid.UUID, f repository.AppointmentFilter) ([]models.Appointment, error) {
	conds := []string{"project_id = $1"}
	args := []any{projectID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("ends_at > $%d", *f.From)
	}
	if f.To != nil {
		add("starts_at < $%d", *f.To)
	}
	if f.EmployeeID != nil {
		add("employee_id = $%d", *f.EmployeeID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY starts_at`
	return s.list(ctx, "list appointments", query, args...)
}

func (s *AppointmentStore) ListBlocking(ctx context.Context, projectID uuid.UUID, employeeID *uuid.UUID, from, to time.Time) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE project_id = $1 AND status <> 'cancelled'
		  AND starts_at < $3 AND ends_at > $2
		  AND ($4::uuid IS NULL OR employee_id = $4)
		ORDER BY starts_at`
	return s.list(ctx, "list blocking appointments", query, projectID, from, to, employeeID)
}

func (s *AppointmentStore) ListOpenStartedBefore(ctx context.Context, projectID uuid.UUID, cutoff time.Time) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE project_id = $1 AND status IN ('pending', 'confirmed') AND starts_at < $2
		ORDER BY starts_at`
	return s.list(ctx, "list open appointments", query, projectID, cutoff)
}

// UpdateStatus is a compare-and-set on the status column: a concurrent
// transition makes the WHERE clause miss and yields ErrStaleStatus.
func (s *AppointmentStore) UpdateStatus(ctx context.Context, projectID, appointmentID uuid.UUID, change repository.StatusChange) (*models.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $4,
		    cancellation_reason = CASE WHEN $4 = 'cancelled' THEN $5 ELSE cancellation_reason END,
		    cancelled_by = CASE WHEN $4 = 'cancelled' THEN $6 ELSE cancelled_by END,
		    updated_at = now()
		WHERE project_id = $1 AND id = $2 AND status = $3
		RETURNING ` + appointmentColumns

	a, err := scanAppointment(s.pool.QueryRow(ctx, query,
		projectID, appointmentID, string(change.From), string(change.To), change.Reason, change.CancelledBy,
	))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	current, getErr := s.GetByID(ctx, projectID, appointmentID)
	if getErr != nil {
		return nil, getErr
	}
	if current == nil {
		return nil, nil
	}
	return nil, repository.ErrStaleStatus
}

func (s *AppointmentStore) list(ctx context.Context, op, query string, args ...any) ([]models.Appointment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	appointments := make([]models.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return appointments, nil
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var (
		a     models.Appointment
		price string
	)
	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.ServiceID,
		&a.EmployeeID,
		&a.CustomerID,
		&a.StartsAt,
		&a.EndsAt,
		&a.Status,
		&price,
		&a.Currency,
		&a.Notes,
		&a.CancellationReason,
		&a.CancelledBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	return &a, nil
}
