package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"petsitter/internal/domain"
)

const applicationColumns = `id,job_id,applicant_id,status,created_at,updated_at`

type ApplicationFilters struct {
	JobID       *uuid.UUID
	ApplicantID *uuid.UUID
}

func scanApplication(row interface{ Scan(...any) error }) (domain.JobApplication, error) {
	var a domain.JobApplication
	var status string
	err := row.Scan(&a.ID, &a.JobID, &a.ApplicantID, &status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.Status = domain.ApplicationStatus(status)
	return a, err
}

// InsertApplication returns ErrConflict when the applicant already applied to the job.
func (r Repo) InsertApplication(ctx context.Context, tx *sql.Tx, a domain.JobApplication) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO job_applications(`+applicationColumns+`) VALUES (?,?,?,?,?,?)`,
		a.ID, a.JobID, a.ApplicantID, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert job application: %w", ErrConflict)
		}
		return fmt.Errorf("insert job application: %w", err)
	}
	return nil
}

func (r Repo) GetApplication(ctx context.Context, tx *sql.Tx, id uuid.UUID) (domain.JobApplication, error) {
	return scanApplication(r.q(tx).QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id=?`, id))
}

func (r Repo) ListApplications(ctx context.Context, tx *sql.Tx, f ApplicationFilters) ([]domain.JobApplication, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.JobID != nil {
		clauses = append(clauses, "job_id=?")
		args = append(args, *f.JobID)
	}
	if f.ApplicantID != nil {
		clauses = append(clauses, "applicant_id=?")
		args = append(args, *f.ApplicantID)
	}
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at, id`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.JobApplication{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateApplication(ctx context.Context, tx *sql.Tx, a domain.JobApplication) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE job_applications SET job_id=?, applicant_id=?, status=?, updated_at=? WHERE id=?`,
		a.JobID, a.ApplicantID, string(a.Status), a.UpdatedAt, a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update job application: %w", ErrConflict)
		}
		return fmt.Errorf("update job application: %w", err)
	}
	return affectedOrNotFound(res)
}
