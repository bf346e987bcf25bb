package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"petsitter/internal/domain"
	"petsitter/internal/engine/auth"
	"petsitter/internal/events"
	"petsitter/internal/permission"
	"petsitter/internal/repo"
	"petsitter/internal/session"
	"petsitter/internal/validate"
)

// RegisterUser is the only operation that runs without a session.
func (e Engine) RegisterUser(ctx context.Context, p domain.UserPayload) (domain.User, error) {
	req := permission.UserCreate{Payload: p}
	if perm := permission.DecideUnauthenticated(req); !perm.IsGranted() {
		return domain.User{}, auth.Forbidden(string(req.Action()), perm.Reason(), "requested User")
	}
	return e.createUser(ctx, p, session.Session{}, "user.registered")
}

// BootstrapAdmin creates an administrator without a permission decision.
// Registration can never grant ADMIN, so operators use this from the CLI.
func (e Engine) BootstrapAdmin(ctx context.Context, email, fullName, password string) (domain.User, error) {
	p := domain.UserPayload{
		Email:    &email,
		Password: &password,
		FullName: &fullName,
		Roles:    []domain.Role{domain.RoleAdmin},
	}
	return e.createUser(ctx, p, session.Session{}, "user.bootstrapped")
}

func (e Engine) createUser(ctx context.Context, p domain.UserPayload, s session.Session, evtType string) (domain.User, error) {
	p.Email = normalizeEmail(p.Email)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := validate.UserRegistration(ctx, e.Repo.Lookup(tx), p); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(*p.Password)
	if err != nil {
		return domain.User{}, err
	}
	now := e.timestamp()
	u := p.ApplyTo(domain.User{ID: uuid.New(), PasswordHash: hash, CreatedAt: now, UpdatedAt: now})
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, emailTaken(err, u.Email)
	}
	evt, err := e.appendEvent(ctx, tx, evtType, "user", u.ID.String(), s, events.EventPayload{"roles": u.Roles.Strings()})
	if err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	e.publish(ctx, evt)
	return u, nil
}

// Authenticate checks credentials for a login.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	fail := auth.UnauthorizedError{Verb: "create", Detail: "Session, invalid email or password"}
	u, err := e.Repo.GetUserByEmail(ctx, nil, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, fail
	}
	if err != nil {
		return domain.User{}, err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return domain.User{}, fail
	}
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	detail := fmt.Sprintf("User %s", id)
	s, err := e.session(ctx, permission.View, detail)
	if err != nil {
		return domain.User{}, err
	}
	if err := authorize(s, permission.UserView{UserID: id}, detail); err != nil {
		return domain.User{}, err
	}
	u, err := e.Repo.GetUser(ctx, nil, id)
	if err != nil {
		return domain.User{}, notFound(err, "User %s", id)
	}
	return u, nil
}

// ListUsers is restricted to administrators.
func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	s, err := e.session(ctx, permission.View, "Users")
	if err != nil {
		return nil, err
	}
	if !s.HasRole(domain.RoleAdmin) {
		return nil, auth.Forbidden(string(permission.View), "", "Users")
	}
	return e.Repo.ListUsers(ctx, nil)
}

// ModifyUser merges p over the stored user. A new password is re-hashed.
func (e Engine) ModifyUser(ctx context.Context, id uuid.UUID, p domain.UserPayload) (domain.User, error) {
	detail := fmt.Sprintf("User %s", id)
	s, err := e.session(ctx, permission.Modify, detail)
	if err != nil {
		return domain.User{}, err
	}
	if err := authorize(s, permission.UserModify{UserID: id, Payload: p}, detail); err != nil {
		return domain.User{}, err
	}
	p.Email = normalizeEmail(p.Email)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	current, err := e.Repo.GetUser(ctx, tx, id)
	if err != nil {
		return domain.User{}, notFound(err, "User %s", id)
	}
	if err := validate.UserModify(ctx, e.Repo.Lookup(tx), id, p); err != nil {
		return domain.User{}, err
	}
	next := p.ApplyTo(current)
	if p.Password != nil {
		if next.PasswordHash, err = auth.HashPassword(*p.Password); err != nil {
			return domain.User{}, err
		}
	}
	next.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateUser(ctx, tx, next); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, notFound(err, "User %s", id)
		}
		return domain.User{}, emailTaken(err, next.Email)
	}
	evt, err := e.appendEvent(ctx, tx, "user.modified", "user", id.String(), s, events.EventPayload{"roles": next.Roles.Strings()})
	if err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	e.publish(ctx, evt)
	return next, nil
}

// DeleteUser removes the user, their jobs with every application to them,
// and the applications they filed, atomically.
func (e Engine) DeleteUser(ctx context.Context, id uuid.UUID) error {
	detail := fmt.Sprintf("User %s", id)
	s, err := e.session(ctx, permission.Delete, detail)
	if err != nil {
		return err
	}
	if err := authorize(s, permission.UserDelete{UserID: id}, detail); err != nil {
		return err
	}
	return e.deleteUser(ctx, id, s)
}

// RemoveUser deletes a user without a permission decision. Operators use it
// from the CLI; it cascades and records user.deleted like DeleteUser.
func (e Engine) RemoveUser(ctx context.Context, id uuid.UUID) error {
	return e.deleteUser(ctx, id, session.Session{})
}

func (e Engine) deleteUser(ctx context.Context, id uuid.UUID, s session.Session) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteUserTx(ctx, tx, id); err != nil {
		return notFound(err, "User %s", id)
	}
	evt, err := e.appendEvent(ctx, tx, "user.deleted", "user", id.String(), s, nil)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.publish(ctx, evt)
	return nil
}

func (e Engine) ListJobsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Job, error) {
	detail := fmt.Sprintf("Jobs for User %s", userID)
	s, err := e.session(ctx, permission.View, detail)
	if err != nil {
		return nil, err
	}
	if err := authorize(s, permission.JobView{OwnerID: &userID}, detail); err != nil {
		return nil, err
	}
	return e.Repo.ListJobs(ctx, nil, &userID)
}

func (e Engine) ListApplicationsForUser(ctx context.Context, userID uuid.UUID) ([]domain.JobApplication, error) {
	detail := fmt.Sprintf("Job Applications for User %s", userID)
	s, err := e.session(ctx, permission.View, detail)
	if err != nil {
		return nil, err
	}
	if err := authorize(s, permission.ApplicationView{ApplicantID: &userID}, detail); err != nil {
		return nil, err
	}
	return e.Repo.ListApplications(ctx, nil, repo.ApplicationFilters{ApplicantID: &userID})
}

// normalizeEmail lower-cases an email so that stored addresses, logins and
// the uniqueness check agree on one spelling.
func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(*email)
	return &v
}

func emailTaken(err error, email string) error {
	if errors.Is(err, repo.ErrConflict) {
		return validate.Invalid("user", "email", fmt.Sprintf("username %s already exists", email))
	}
	return err
}
