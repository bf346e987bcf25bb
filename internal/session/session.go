package session

import (
	"context"

	"github.com/google/uuid"

	"petsitter/internal/domain"
)

// Session is the authenticated actor of a single request. It is immutable.
type Session struct {
	userID uuid.UUID
	roles  domain.RoleSet
}

func New(userID uuid.UUID, roles ...domain.Role) Session {
	return Session{userID: userID, roles: domain.NewRoleSet(roles...)}
}

func FromRoleSet(userID uuid.UUID, roles domain.RoleSet) Session {
	return Session{userID: userID, roles: roles}
}

func (s Session) UserID() uuid.UUID { return s.userID }

func (s Session) Roles() domain.RoleSet { return s.roles }

func (s Session) HasID(id uuid.UUID) bool { return s.userID == id }

// HasRole reports whether the session holds at least one of roles.
func (s Session) HasRole(roles ...domain.Role) bool {
	return s.roles.HasAny(roles...)
}

func (s Session) HasRoleAndID(role domain.Role, id uuid.UUID) bool {
	return s.HasID(id) && s.roles.Has(role)
}

func (s Session) HasRoleOrID(role domain.Role, id uuid.UUID) bool {
	return s.HasID(id) || s.roles.Has(role)
}

// Provider resolves the session of the current request, if any.
type Provider interface {
	Current(ctx context.Context) (Session, bool)
}

type ProviderFunc func(ctx context.Context) (Session, bool)

func (f ProviderFunc) Current(ctx context.Context) (Session, bool) { return f(ctx) }

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// ContextProvider reads the session stored by WithSession.
type ContextProvider struct{}

func (ContextProvider) Current(ctx context.Context) (Session, bool) { return FromContext(ctx) }
