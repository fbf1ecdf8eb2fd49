package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meetlines/meetlines/internal/repository"
)

func pgError(code, constraint string) error {
	return fmt.Errorf("commit: %w", &pgconn.PgError{Code: code, ConstraintName: constraint})
}

func TestIsConstraintViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		code       string
		constraint string
		want       bool
	}{
		{"overlap exclusion", pgError("23P01", "appointments_no_overlap"), exclusionViolation, "appointments_no_overlap", true},
		{"other constraint", pgError("23P01", "rooms_no_overlap"), exclusionViolation, "appointments_no_overlap", false},
		{"other code", pgError("23505", "appointments_no_overlap"), exclusionViolation, "appointments_no_overlap", false},
		{"any constraint", pgError("23P01", "rooms_no_overlap"), exclusionViolation, "", true},
		{"subdomain unique", pgError("23505", "ux_projects_subdomain"), uniqueViolation, "ux_projects_subdomain", true},
		{"plain error", errors.New("connection reset"), exclusionViolation, "", false},
		{"nil", nil, exclusionViolation, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConstraintViolation(tt.err, tt.code, tt.constraint); got != tt.want {
				t.Errorf("isConstraintViolation = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppointmentInsertError(t *testing.T) {
	if err := appointmentInsertError(pgError("23P01", "appointments_no_overlap")); !errors.Is(err, repository.ErrSlotTaken) {
		t.Errorf("exclusion violation: got %v, want ErrSlotTaken", err)
	}
	if err := appointmentInsertError(fmt.Errorf("tx: %w", repository.ErrSlotTaken)); !errors.Is(err, repository.ErrSlotTaken) {
		t.Errorf("locked overlap check: got %v, want ErrSlotTaken", err)
	}

	fk := pgError("23503", "appointments_service_id_fkey")
	err := appointmentInsertError(fk)
	if errors.Is(err, repository.ErrSlotTaken) {
		t.Fatal("foreign key violation must not read as a taken slot")
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23503" {
		t.Errorf("original error lost: %v", err)
	}
}
