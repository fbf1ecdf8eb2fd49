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

type CustomerStore struct {
	pool *pgxpool.Pool
}

func NewCustomerStore(pool *pgxpool.Pool) *CustomerStore {
	return &CustomerStore{pool: pool}
}

func (s *CustomerStore) Upsert(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	lookup := `
		SELECT id, project_id, name, phone, email, created_at
		FROM customers
		WHERE project_id = $1
		  AND (($2 <> '' AND phone = $2) OR ($3 <> '' AND lower(email) = lower($3)))
		ORDER BY (phone = $2) DESC
		LIMIT 1`

	existing, err := scanCustomer(s.pool.QueryRow(ctx, lookup, c.ProjectID, c.Phone, c.Email))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find customer: %w", err)
	}

	insert := `
		INSERT INTO customers (project_id, name, phone, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, project_id, name, phone, email, created_at`
	out, err := scanCustomer(s.pool.QueryRow(ctx, insert, c.ProjectID, c.Name, c.Phone, c.Email))
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return out, nil
}

func (s *CustomerStore) GetByID(ctx context.Context, projectID, customerID uuid.UUID) (*models.Customer, error) {
	query := `
		SELECT id, project_id, name, phone, email, created_at
		FROM customers
		WHERE project_id = $1 AND id = $2`
	c, err := scanCustomer(s.pool.QueryRow(ctx, query, projectID, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
