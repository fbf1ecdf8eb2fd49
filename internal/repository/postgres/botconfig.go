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

type BotConfigStore struct {
	pool *pgxpool.Pool
}

func NewBotConfigStore(pool *pgxpool.Pool) *BotConfigStore {
	return &BotConfigStore{pool: pool}
}

func (s *BotConfigStore) Get(ctx context.Context, projectID uuid.UUID) (*models.BotConfigRecord, error) {
	query := `SELECT project_id, config::text, updated_at FROM bot_configs WHERE project_id = $1`

	var (
		rec models.BotConfigRecord
		raw string
	)
	err := s.pool.QueryRow(ctx, query, projectID).Scan(&rec.ProjectID, &raw, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bot config: %w", err)
	}
	rec.Raw = []byte(raw)
	return &rec, nil
}

func (s *BotConfigStore) Upsert(ctx context.Context, projectID uuid.UUID, raw []byte) (*models.BotConfigRecord, error) {
	query := `
		INSERT INTO bot_configs (project_id, config, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (project_id) DO UPDATE SET config = EXCLUDED.config, updated_at = now()
		RETURNING updated_at`

	rec := models.BotConfigRecord{ProjectID: projectID, Raw: raw}
	if err := s.pool.QueryRow(ctx, query, projectID, string(raw)).Scan(&rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert bot config: %w", err)
	}
	return &rec, nil
}
