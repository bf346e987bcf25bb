package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"petsitter/internal/domain"
	"petsitter/internal/events"
	"petsitter/internal/permission"
	"petsitter/internal/repo"
	"petsitter/internal/validate"
)

// CreateApplication files an application to jobID by the payload user, or
// by the acting user when no user is given.
func (e Engine) CreateApplication(ctx context.Context, jobID uuid.UUID, p domain.JobApplicationPayload) (domain.JobApplication, error) {
	s, err := e.session(ctx, permission.Create, fmt.Sprintf("Job Application for Job %s", jobID))
	if err != nil {
		return domain.JobApplication{}, err
	}
	applicant := s.UserID()
	if p.UserID != nil {
		applicant = *p.UserID
	}
	req := permission.ApplicationCreate{JobID: jobID, ApplicantID: applicant, Payload: p}
	if err := authorize(s, req, fmt.Sprintf("Job Application for Job %s and User %s", jobID, applicant)); err != nil {
		return domain.JobApplication{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.JobApplication{}, err
	}
	defer tx.Rollback()

	if err := validate.ApplicationCreate(ctx, e.Repo.Lookup(tx), jobID, applicant, p); err != nil {
		return domain.JobApplication{}, err
	}
	now := e.timestamp()
	a := domain.JobApplication{
		ID:          uuid.New(),
		JobID:       jobID,
		ApplicantID: applicant,
		Status:      *p.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertApplication(ctx, tx, a); err != nil {
		return domain.JobApplication{}, duplicateApplication(err, a)
	}
	evt, err := e.appendEvent(ctx, tx, "job_application.created", "job_application", a.ID.String(), s, events.EventPayload{
		"job_id":       jobID.String(),
		"applicant_id": applicant.String(),
		"status":       string(a.Status),
	})
	if err != nil {
		return domain.JobApplication{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobApplication{}, err
	}
	e.publish(ctx, evt)
	return a, nil
}

func (e Engine) GetApplication(ctx context.Context, id uuid.UUID) (domain.JobApplication, error) {
	detail := fmt.Sprintf("Job Application %s", id)
	s, err := e.session(ctx, permission.View, detail)
	if err != nil {
		return domain.JobApplication{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.JobApplication{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetApplication(ctx, tx, id)
	if err != nil {
		return domain.JobApplication{}, notFound(err, "Job Application %s", id)
	}
	owner, err := e.jobOwner(ctx, e.Repo.Lookup(tx), a.JobID)
	if err != nil {
		return domain.JobApplication{}, err
	}
	if err := authorize(s, permission.ApplicationView{ApplicantID: &a.ApplicantID, JobOwnerID: &owner}, detail); err != nil {
		return domain.JobApplication{}, err
	}
	return a, nil
}

// ModifyApplication merges p over the stored application.
func (e Engine) ModifyApplication(ctx context.Context, id uuid.UUID, p domain.JobApplicationPayload) (domain.JobApplication, error) {
	detail := fmt.Sprintf("Job Application %s", id)
	s, err := e.session(ctx, permission.Modify, detail)
	if err != nil {
		return domain.JobApplication{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.JobApplication{}, err
	}
	defer tx.Rollback()

	current, err := e.Repo.GetApplication(ctx, tx, id)
	if err != nil {
		return domain.JobApplication{}, notFound(err, "Job Application %s", id)
	}
	lookup := e.Repo.Lookup(tx)
	owner, err := e.jobOwner(ctx, lookup, current.JobID)
	if err != nil {
		return domain.JobApplication{}, err
	}
	if err := authorize(s, permission.ApplicationModify{Current: current, JobOwnerID: owner, Payload: p}, detail); err != nil {
		return domain.JobApplication{}, err
	}
	if err := validate.ApplicationModify(ctx, lookup, current, p); err != nil {
		return domain.JobApplication{}, err
	}
	next := p.ApplyTo(current)
	next.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateApplication(ctx, tx, next); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.JobApplication{}, notFound(err, "Job Application %s", id)
		}
		return domain.JobApplication{}, duplicateApplication(err, next)
	}
	evt, err := e.appendEvent(ctx, tx, "job_application.modified", "job_application", id.String(), s, events.EventPayload{
		"job_id":          next.JobID.String(),
		"applicant_id":    next.ApplicantID.String(),
		"status":          string(next.Status),
		"previous_status": string(current.Status),
	})
	if err != nil {
		return domain.JobApplication{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobApplication{}, err
	}
	e.publish(ctx, evt)
	return next, nil
}

func (e Engine) jobOwner(ctx context.Context, l repo.Lookup, jobID uuid.UUID) (uuid.UUID, error) {
	owner, ok, err := l.JobOwner(ctx, jobID)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, validate.NotFoundError{Resource: fmt.Sprintf("Job %s", jobID)}
	}
	return owner, nil
}

// duplicateApplication reports a lost race on UNIQUE(job_id, applicant_id)
// the same way validation reports a visible duplicate.
func duplicateApplication(err error, a domain.JobApplication) error {
	if errors.Is(err, repo.ErrConflict) {
		return validate.Invalid("jobApplication", "", validate.DuplicateApplication(a.ApplicantID, a.JobID))
	}
	return err
}
