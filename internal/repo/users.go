package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"petsitter/internal/domain"
)

const userColumns = `id,email,password_hash,full_name,created_at,updated_at`

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	q := r.q(tx)
	_, err := q.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user %s: %w", u.Email, ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return replaceRoles(ctx, q, u.ID, u.Roles)
}

func replaceRoles(ctx context.Context, q querier, userID uuid.UUID, roles domain.RoleSet) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=?`, userID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	for _, role := range roles.Roles() {
		if _, err := q.ExecContext(ctx, `INSERT INTO user_roles(user_id, role) VALUES (?,?)`, userID, string(role)); err != nil {
			return fmt.Errorf("insert role %s: %w", role, err)
		}
	}
	return nil
}

func loadRoles(ctx context.Context, q querier, userID uuid.UUID) (domain.RoleSet, error) {
	rows, err := q.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id=?`, userID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var raw []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return 0, err
		}
		raw = append(raw, role)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return domain.ParseRoles(raw)
}

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id uuid.UUID) (domain.User, error) {
	q := r.q(tx)
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if err != nil {
		return u, err
	}
	u.Roles, err = loadRoles(ctx, q, u.ID)
	return u, err
}

func (r Repo) GetUserByEmail(ctx context.Context, tx *sql.Tx, email string) (domain.User, error) {
	q := r.q(tx)
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email))
	if err != nil {
		return u, err
	}
	u.Roles, err = loadRoles(ctx, q, u.ID)
	return u, err
}

func (r Repo) ListUsers(ctx context.Context, tx *sql.Tx) ([]domain.User, error) {
	q := r.q(tx)
	rows, err := q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, err
	}
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Roles, err = loadRoles(ctx, q, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// UpdateUser overwrites the stored user and its roles.
func (r Repo) UpdateUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	q := r.q(tx)
	res, err := q.ExecContext(ctx, `UPDATE users SET email=?, password_hash=?, full_name=?, updated_at=? WHERE id=?`,
		u.Email, u.PasswordHash, u.FullName, u.UpdatedAt, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user %s: %w", u.Email, ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	return replaceRoles(ctx, q, u.ID, u.Roles)
}

// DeleteUserTx deletes the applications the user filed, the applications to
// the user's jobs, those jobs, the user's roles and finally the user.
func (r Repo) DeleteUserTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	steps := []struct {
		name  string
		query string
	}{
		{"applications filed", `DELETE FROM job_applications WHERE applicant_id=?`},
		{"applications to owned jobs", `DELETE FROM job_applications WHERE job_id IN (SELECT id FROM jobs WHERE owner_id=?)`},
		{"owned jobs", `DELETE FROM jobs WHERE owner_id=?`},
		{"roles", `DELETE FROM user_roles WHERE user_id=?`},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, id); err != nil {
			return fmt.Errorf("delete %s: %w", s.name, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affectedOrNotFound(res)
}
