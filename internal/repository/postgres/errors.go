package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meetlines/meetlines/internal/repository"
)

// Postgres SQLSTATE codes the stores translate into repository errors.
const (
	uniqueViolation    = "23505"
	exclusionViolation = "23P01"
)

func isConstraintViolation(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// appointmentInsertError maps a failed booking transaction to ErrSlotTaken when
// either the locked overlap check or the exclusion constraint rejected it.
func appointmentInsertError(err error) error {
	if errors.Is(err, repository.ErrSlotTaken) || isConstraintViolation(err, exclusionViolation, "appointments_no_overlap") {
		return repository.ErrSlotTaken
	}
	return fmt.Errorf("insert appointment: %w", err)
}
