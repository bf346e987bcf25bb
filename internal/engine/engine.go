package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"petsitter/internal/config"
	"petsitter/internal/engine/auth"
	"petsitter/internal/events"
	"petsitter/internal/permission"
	"petsitter/internal/repo"
	"petsitter/internal/session"
	"petsitter/internal/validate"
)

// Engine orchestrates every operation: it resolves the session, asks for a
// permission decision, validates the payload and writes through the
// repository inside one transaction.
type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Publisher events.Publisher
	Sessions  session.Provider
	Config    *config.Config
	Logger    *log.Logger
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Sessions: session.ContextProvider{},
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// session returns the acting session or an UnauthorizedError naming the attempt.
func (e Engine) session(ctx context.Context, action permission.Action, detail string) (session.Session, error) {
	provider := e.Sessions
	if provider == nil {
		provider = session.ContextProvider{}
	}
	s, ok := provider.Current(ctx)
	if !ok {
		return session.Session{}, auth.UnauthorizedError{Verb: string(action), Detail: detail}
	}
	return s, nil
}

func authorize(s session.Session, req permission.Request, fallback string) error {
	p := permission.Decide(s, req)
	if p.IsGranted() {
		return nil
	}
	return auth.Forbidden(string(req.Action()), p.Reason(), fallback)
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID string, s session.Session, payload events.EventPayload) (events.Event, error) {
	w := e.Events
	w.Now = e.now
	actor := ""
	if s.UserID() != uuid.Nil {
		actor = s.UserID().String()
	}
	return w.Append(ctx, tx, evtType, entityKind, entityID, actor, payload)
}

// publish hands committed events to the publisher. Failures are logged only:
// the change is already durable.
func (e Engine) publish(ctx context.Context, evt events.Event) {
	if e.Publisher == nil {
		return
	}
	if err := e.Publisher.Publish(ctx, evt); err != nil {
		e.logger().Printf("publish %s %s: %v", evt.Type, evt.EntityID, err)
	}
}

// notFound converts repo.ErrNotFound into a NotFoundError for resource.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repo.ErrNotFound) {
		return validate.NotFoundError{Resource: fmt.Sprintf(format, args...)}
	}
	return err
}
