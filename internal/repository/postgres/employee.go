package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetlines/meetlines/internal/models"
)

const employeeSelect = `
	SELECT e.id, e.project_id, e.area_id, COALESCE(a.name, ''), e.name, e.email, e.phone,
	       e.avatar_url, e.active, e.created_at
	FROM employees e
	LEFT JOIN areas a ON a.id = e.area_id`

type EmployeeStore struct {
	pool *pgxpool.Pool
}

func NewEmployeeStore(pool *pgxpool.Pool) *EmployeeStore {
	return &EmployeeStore{pool: pool}
}

func (s *EmployeeStore) Create(ctx context.Context, e *models.Employee) (*models.Employee, error) {
	query := `
		INSERT INTO employees (project_id, area_id, name, email, phone, avatar_url, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	out := *e
	err := s.pool.QueryRow(ctx, query,
		e.ProjectID, e.AreaID, e.Name, e.Email, e.Phone, e.AvatarURL, e.Active,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert employee: %w", err)
	}
	return &out, nil
}

func (s *EmployeeStore) GetByID(ctx context.Context, projectID, employeeID uuid.UUID) (*models.Employee, error) {
	query := employeeSelect + ` WHERE e.project_id = $1 AND e.id = $2`
	e, err := scanEmployee(s.pool.QueryRow(ctx, query, projectID, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

func (s *EmployeeStore) List(ctx context.Context, projectID uuid.UUID) ([]models.Employee, error) {
	query := employeeSelect + ` WHERE e.project_id = $1 ORDER BY e.name`
	return s.list(ctx, query, projectID)
}

func (s *EmployeeStore) ListActive(ctx context.Context, projectID uuid.UUID, serviceID *uuid.UUID) ([]models.Employee, error) {
	if serviceID == nil {
		query := employeeSelect + ` WHERE e.project_id = $1 AND e.active ORDER BY e.name`
		return s.list(ctx, query, projectID)
	}

	// A service without any employee links is offered by everyone.
	query := employeeSelect + `
		WHERE e.project_id = $1 AND e.active
		  AND (
		    NOT EXISTS (SELECT 1 FROM employee_services es WHERE es.service_id = $2)
		    OR EXISTS (SELECT 1 FROM employee_services es WHERE es.service_id = $2 AND es.employee_id = e.id)
		  )
		ORDER BY e.name`
	return s.list(ctx, query, projectID, *serviceID)
}

func (s *EmployeeStore) SetActive(ctx context.Context, projectID, employeeID uuid.UUID, active bool) (*models.Employee, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE employees SET active = $3 WHERE project_id = $1 AND id = $2`,
		projectID, employeeID, active,
	)
	if err != nil {
		return nil, fmt.Errorf("update employee active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, projectID, employeeID)
}

func (s *EmployeeStore) list(ctx context.Context, query string, args ...any) ([]models.Employee, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	employees := make([]models.Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var e models.Employee
	err := row.Scan(
		&e.ID,
		&e.ProjectID,
		&e.AreaID,
		&e.AreaName,
		&e.Name,
		&e.Email,
		&e.Phone,
		&e.AvatarURL,
		&e.Active,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
