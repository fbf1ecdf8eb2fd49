package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
)

const projectColumns = `id, owner_id, name, subdomain, status, whatsapp_phone_id, telegram_bot, created_at, updated_at`

type ProjectStore struct {
	pool *pgxpool.Pool
}

func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{pool: pool}
}

func (s *ProjectStore) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	status := p.Status
	if status == "" {
		status = models.ProjectActive
	}
	query := `
		INSERT INTO projects (owner_id, name, subdomain, status, whatsapp_phone_id, telegram_bot)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + projectColumns

	out, err := scanProject(s.pool.QueryRow(ctx, query,
		p.OwnerID, p.Name, p.Subdomain, status, p.WhatsAppID, p.TelegramBot,
	))
	if err != nil {
		if isConstraintViolation(err, uniqueViolation, "ux_projects_subdomain") {
			return nil, repository.ErrSubdomainTaken
		}
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return out, nil
}

func (s *ProjectStore) GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return s.getOne(ctx, "get project", query, projectID)
}

func (s *ProjectStore) GetBySubdomain(ctx context.Context, subdomain string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE subdomain = $1`
	return s.getOne(ctx, "get project by subdomain", query, subdomain)
}

func (s *ProjectStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = $1 ORDER BY subdomain`
	return s.list(ctx, "list projects by owner", query, ownerID)
}

func (s *ProjectStore) ListActive(ctx context.Context) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE status = 'active' ORDER BY subdomain`
	return s.list(ctx, "list active projects", query)
}

func (s *ProjectStore) UpdateSubdomain(ctx context.Context, projectID uuid.UUID, subdomain string) (*models.Project, error) {
	query := `
		UPDATE projects SET subdomain = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + projectColumns

	p, err := s.getOne(ctx, "update project subdomain", query, projectID, subdomain)
	if err != nil && isConstraintViolation(err, uniqueViolation, "ux_projects_subdomain") {
		return nil, repository.ErrSubdomainTaken
	}
	return p, err
}

func (s *ProjectStore) UpdateStatus(ctx context.Context, projectID uuid.UUID, status models.ProjectStatus) (*models.Project, error) {
	query := `
		UPDATE projects SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + projectColumns
	return s.getOne(ctx, "update project status", query, projectID, status)
}

func (s *ProjectStore) getOne(ctx context.Context, op, query string, args ...any) (*models.Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *ProjectStore) list(ctx context.Context, op, query string, args ...any) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Subdomain,
		&p.Status,
		&p.WhatsAppID,
		&p.TelegramBot,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
