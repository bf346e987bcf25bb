package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"petsitter/internal/domain"
)

const jobColumns = `id,owner_id,start_time,end_time,activity,dog_name,dog_age,dog_breed,dog_size,created_at,updated_at`

func scanJob(row interface{ Scan(...any) error }) (domain.Job, error) {
	var j domain.Job
	var start, end string
	err := row.Scan(&j.ID, &j.OwnerID, &start, &end, &j.Activity,
		&j.Dog.Name, &j.Dog.Age, &j.Dog.Breed, &j.Dog.Size, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	if j.StartTime, err = parseTimestamp(start); err != nil {
		return j, err
	}
	if j.EndTime, err = parseTimestamp(end); err != nil {
		return j, err
	}
	return j, nil
}

func (r Repo) InsertJob(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO jobs(`+jobColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.OwnerID, timestamp(j.StartTime), timestamp(j.EndTime), j.Activity,
		j.Dog.Name, j.Dog.Age, j.Dog.Breed, j.Dog.Size, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r Repo) GetJob(ctx context.Context, tx *sql.Tx, id uuid.UUID) (domain.Job, error) {
	return scanJob(r.q(tx).QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id))
}

// ListJobs returns every job, or only those of ownerID when it is set.
func (r Repo) ListJobs(ctx context.Context, tx *sql.Tx, ownerID *uuid.UUID) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if ownerID != nil {
		query += ` WHERE owner_id=?`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY start_time, id`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

func (r Repo) UpdateJob(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE jobs SET owner_id=?, start_time=?, end_time=?, activity=?,
dog_name=?, dog_age=?, dog_breed=?, dog_size=?, updated_at=? WHERE id=?`,
		j.OwnerID, timestamp(j.StartTime), timestamp(j.EndTime), j.Activity,
		j.Dog.Name, j.Dog.Age, j.Dog.Breed, j.Dog.Size, j.UpdatedAt, j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteJobTx deletes a job together with its applications.
func (r Repo) DeleteJobTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_applications WHERE job_id=?`, id); err != nil {
		return fmt.Errorf("delete job applications: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return affectedOrNotFound(res)
}
