package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"petsitter/internal/domain"
)

// Lookup answers validation questions inside a transaction.
type Lookup struct {
	Repo Repo
	Tx   *sql.Tx
}

func (r Repo) Lookup(tx *sql.Tx) Lookup {
	return Lookup{Repo: r, Tx: tx}
}

func (l Lookup) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	err := l.Repo.q(l.Tx).QueryRowContext(ctx, query, args...).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (l Lookup) JobOwner(ctx context.Context, jobID uuid.UUID) (uuid.UUID, bool, error) {
	var owner uuid.UUID
	err := l.Repo.q(l.Tx).QueryRowContext(ctx, `SELECT owner_id FROM jobs WHERE id=?`, jobID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return owner, true, nil
}

func (l Lookup) JobExists(ctx context.Context, jobID uuid.UUID) (bool, error) {
	return l.exists(ctx, `SELECT 1 FROM jobs WHERE id=? LIMIT 1`, jobID)
}

func (l Lookup) ExistsWithRole(ctx context.Context, userID uuid.UUID, role domain.Role) (bool, error) {
	return l.exists(ctx, `SELECT 1 FROM user_roles WHERE user_id=? AND role=? LIMIT 1`, userID, string(role))
}

func (l Lookup) ApplicationExists(ctx context.Context, jobID, applicantID uuid.UUID) (bool, error) {
	return l.exists(ctx, `SELECT 1 FROM job_applications WHERE job_id=? AND applicant_id=? LIMIT 1`, jobID, applicantID)
}

func (l Lookup) EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	return l.exists(ctx, `SELECT 1 FROM users WHERE lower(email)=? AND id<>? LIMIT 1`, strings.ToLower(email), except)
}
