package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetlines/meetlines/internal/db"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/shopspring/decimal"
)

// Prices travel as text so numeric precision survives the round trip into
// decimal.Decimal.
const serviceColumns = `id, project_id, name, duration_minutes, price::text, currency, active, created_at`

type ServiceStore struct {
	pool *pgxpool.Pool
}

func NewServiceStore(pool *pgxpool.Pool) *ServiceStore {
	return &ServiceStore{pool: pool}
}

func (s *ServiceStore) Create(ctx context.Context, svc *models.Service) (*models.Service, error) {
	query := `
		INSERT INTO services (project_id, name, duration_minutes, price, currency, active)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING ` + serviceColumns

	out, err := scanService(s.pool.QueryRow(ctx, query,
		svc.ProjectID, svc.Name, svc.DurationMinutes, svc.Price.String(), svc.Currency, svc.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("insert service: %w", err)
	}
	return out, nil
}

func (s *ServiceStore) GetByID(ctx context.Context, projectID, serviceID uuid.UUID) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE project_id = $1 AND id = $2`
	svc, err := scanService(s.pool.QueryRow(ctx, query, projectID, serviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *ServiceStore) List(ctx context.Context, projectID uuid.UUID) ([]models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE project_id = $1 ORDER BY name`
	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]models.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

// SetEmployees replaces the employee links of a service. Employees of other
// projects are silently ignored.
func (s *ServiceStore) SetEmployees(ctx context.Context, projectID, serviceID uuid.UUID, employeeIDs []uuid.UUID) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM employee_services WHERE service_id = $1`, serviceID); err != nil {
			return fmt.Errorf("clear service employees: %w", err)
		}
		if len(employeeIDs) == 0 {
			return nil
		}
		query := `
			INSERT INTO employee_services (service_id, employee_id)
			SELECT $2, e.id FROM employees e
			WHERE e.project_id = $1 AND e.id = ANY($3)
			ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, query, projectID, serviceID, employeeIDs); err != nil {
			return fmt.Errorf("link service employees: %w", err)
		}
		return nil
	})
}

func scanService(row pgx.Row) (*models.Service, error) {
	var (
		svc   models.Service
		price string
	)
	err := row.Scan(
		&svc.ID,
		&svc.ProjectID,
		&svc.Name,
		&svc.DurationMinutes,
		&price,
		&svc.Currency,
		&svc.Active,
		&svc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if svc.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	return &svc, nil
}
