package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"petsitter/internal/domain"
	"petsitter/internal/events"
	"petsitter/internal/permission"
	"petsitter/internal/repo"
	"petsitter/internal/validate"
)

// CreateJob creates a job owned by the payload creator, or by the acting
// user when no creator is given.
func (e Engine) CreateJob(ctx context.Context, p domain.JobPayload) (domain.Job, error) {
	s, err := e.session(ctx, permission.Create, "Job")
	if err != nil {
		return domain.Job{}, err
	}
	owner := s.UserID()
	if p.CreatorUserID != nil {
		owner = *p.CreatorUserID
	}
	if err := authorize(s, permission.JobCreate{OwnerID: owner, Payload: p}, fmt.Sprintf("Job for User %s", owner)); err != nil {
		return domain.Job{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	if err := validate.JobCreate(ctx, e.Repo.Lookup(tx), p); err != nil {
		return domain.Job{}, err
	}
	now := e.timestamp()
	j := p.ApplyTo(domain.Job{ID: uuid.New(), OwnerID: owner, CreatedAt: now, UpdatedAt: now})
	if err := e.Repo.InsertJob(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	evt, err := e.appendEvent(ctx, tx, "job.created", "job", j.ID.String(), s, events.EventPayload{"owner_id": j.OwnerID.String()})
	if err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	e.publish(ctx, evt)
	return j, nil
}

// ListJobs returns every job. Only Pet Sitters and administrators may browse.
func (e Engine) ListJobs(ctx context.Context) ([]domain.Job, error) {
	s, err := e.session(ctx, permission.View, "Jobs")
	if err != nil {
		return nil, err
	}
	if err := authorize(s, permission.JobView{}, "Jobs"); err != nil {
		return nil, err
	}
	return e.Repo.ListJobs(ctx, nil, nil)
}

func (e Engine) GetJob(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	s, err := e.session(ctx, permission.View, fmt.Sprintf("Job %s", id))
	if err != nil {
		return domain.Job{}, err
	}
	j, err := e.Repo.GetJob(ctx, nil, id)
	if err != nil {
		return domain.Job{}, notFound(err, "Job %s", id)
	}
	if err := authorize(s, permission.JobView{OwnerID: &j.OwnerID}, fmt.Sprintf("Job %s", id)); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// ModifyJob merges p over the stored job.
func (e Engine) ModifyJob(ctx context.Context, id uuid.UUID, p domain.JobPayload) (domain.Job, error) {
	s, err := e.session(ctx, permission.Modify, fmt.Sprintf("Job %s", id))
	if err != nil {
		return domain.Job{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	current, err := e.Repo.GetJob(ctx, tx, id)
	if err != nil {
		return domain.Job{}, notFound(err, "Job %s", id)
	}
	req := permission.JobModify{JobID: id, OwnerID: current.OwnerID, Payload: p}
	if err := authorize(s, req, fmt.Sprintf("Job %s", id)); err != nil {
		return domain.Job{}, err
	}
	if err := validate.JobModify(ctx, e.Repo.Lookup(tx), current, p); err != nil {
		return domain.Job{}, err
	}
	next := p.ApplyTo(current)
	next.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateJob(ctx, tx, next); err != nil {
		return domain.Job{}, notFound(err, "Job %s", id)
	}
	payload := events.EventPayload{"owner_id": next.OwnerID.String()}
	if next.OwnerID != current.OwnerID {
		payload["previous_owner_id"] = current.OwnerID.String()
	}
	evt, err := e.appendEvent(ctx, tx, "job.modified", "job", id.String(), s, payload)
	if err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	e.publish(ctx, evt)
	return next, nil
}

// DeleteJob removes the job and its applications in one transaction.
func (e Engine) DeleteJob(ctx context.Context, id uuid.UUID) error {
	s, err := e.session(ctx, permission.Delete, fmt.Sprintf("Job %s", id))
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := e.Repo.GetJob(ctx, tx, id)
	if err != nil {
		return notFound(err, "Job %s", id)
	}
	if err := authorize(s, permission.JobDelete{JobID: id, OwnerID: current.OwnerID}, fmt.Sprintf("Job %s", id)); err != nil {
		return err
	}
	if err := e.Repo.DeleteJobTx(ctx, tx, id); err != nil {
		return notFound(err, "Job %s", id)
	}
	evt, err := e.appendEvent(ctx, tx, "job.deleted", "job", id.String(), s, events.EventPayload{"owner_id": current.OwnerID.String()})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.publish(ctx, evt)
	return nil
}

// ListApplicationsForJob is reserved to the job owner and administrators.
func (e Engine) ListApplicationsForJob(ctx context.Context, jobID uuid.UUID) ([]domain.JobApplication, error) {
	detail := fmt.Sprintf("Job Applications for Job %s", jobID)
	s, err := e.session(ctx, permission.View, detail)
	if err != nil {
		return nil, err
	}
	j, err := e.Repo.GetJob(ctx, nil, jobID)
	if err != nil {
		return nil, notFound(err, "Job %s", jobID)
	}
	if err := authorize(s, permission.ApplicationView{JobOwnerID: &j.OwnerID}, detail); err != nil {
		return nil, err
	}
	return e.Repo.ListApplications(ctx, nil, repo.ApplicationFilters{JobID: &jobID})
}
