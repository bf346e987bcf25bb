package server

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"petsitter/internal/domain"
	"petsitter/internal/validate"
)

// Request payloads. Every field is optional so PATCH bodies can be merge
// patches; required fields are enforced by validation.

type UserRequest struct {
	ID       *string  `json:"id,omitempty" doc:"Must be omitted; identifiers are assigned by the server"`
	Email    *string  `json:"email,omitempty" example:"owner@example.com"`
	Password *string  `json:"password,omitempty" example:"Secret123"`
	FullName *string  `json:"full_name,omitempty" example:"Pat Owner"`
	Roles    []string `json:"roles,omitempty" example:"[\"PET_OWNER\"]"`
}

type DogRequest struct {
	Name  *string `json:"name,omitempty" example:"Rex"`
	Age   *int    `json:"age,omitempty" example:"3"`
	Breed *string `json:"breed,omitempty" example:"Beagle"`
	Size  *string `json:"size,omitempty" example:"small"`
}

type JobRequest struct {
	ID            *string     `json:"id,omitempty"`
	CreatorUserID *string     `json:"creator_user_id,omitempty" doc:"Pet Owner the job is created for; required for administrators"`
	StartTime     *string     `json:"start_time,omitempty" example:"2030-06-01 10:00" doc:"Layout yyyy-MM-dd HH:mm, UTC"`
	EndTime       *string     `json:"end_time,omitempty" example:"2030-06-01 12:00" doc:"Layout yyyy-MM-dd HH:mm, UTC"`
	Activity      *string     `json:"activity,omitempty" example:"Walk around the park"`
	Dog           *DogRequest `json:"dog,omitempty"`
}

type JobApplicationRequest struct {
	ID     *string `json:"id,omitempty"`
	Status *string `json:"status,omitempty" enum:"PENDING,ACCEPTED,REJECTED,WITHDRAWN"`
	UserID *string `json:"user_id,omitempty" doc:"Pet Sitter applying; required for administrators"`
	JobID  *string `json:"job_id,omitempty"`
}

type SessionRequest struct {
	Email    string `json:"email" example:"owner@example.com"`
	Password string `json:"password" example:"Secret123"`
}

// Responses

type UserResponse struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
}

type DogResponse struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Breed string `json:"breed"`
	Size  string `json:"size"`
}

type JobResponse struct {
	ID            string      `json:"id"`
	CreatorUserID string      `json:"creator_user_id"`
	StartTime     string      `json:"start_time"`
	EndTime       string      `json:"end_time"`
	Activity      string      `json:"activity"`
	Dog           DogResponse `json:"dog"`
}

type JobApplicationResponse struct {
	ID     string `json:"id"`
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type SessionResponse struct {
	UserID     string `json:"user_id"`
	AuthHeader string `json:"auth_header" example:"Bearer eyJhbGciOiJIUzI1NiJ9..."`
	ExpiresAt  string `json:"expires_at" format:"date-time"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID.String(), Email: u.Email, FullName: u.FullName, Roles: u.Roles.Strings()}
}

func jobResponse(j domain.Job) JobResponse {
	return JobResponse{
		ID:            j.ID.String(),
		CreatorUserID: j.OwnerID.String(),
		StartTime:     j.StartTime.UTC().Format(domain.DateTimeLayout),
		EndTime:       j.EndTime.UTC().Format(domain.DateTimeLayout),
		Activity:      j.Activity,
		Dog:           DogResponse(j.Dog),
	}
}

func applicationResponse(a domain.JobApplication) JobApplicationResponse {
	return JobApplicationResponse{ID: a.ID.String(), JobID: a.JobID.String(), UserID: a.ApplicantID.String(), Status: string(a.Status)}
}

func mapJobs(items []domain.Job) []JobResponse {
	out := make([]JobResponse, 0, len(items))
	for _, j := range items {
		out = append(out, jobResponse(j))
	}
	return out
}

func mapApplications(items []domain.JobApplication) []JobApplicationResponse {
	out := make([]JobApplicationResponse, 0, len(items))
	for _, a := range items {
		out = append(out, applicationResponse(a))
	}
	return out
}

func mapUsers(items []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for _, u := range items {
		out = append(out, userResponse(u))
	}
	return out
}

// decoder turns wire strings into domain values, collecting every failure.
type decoder struct {
	object string
	errs   []validate.FieldError
}

func (d *decoder) fail(field, detail string) {
	d.errs = append(d.errs, validate.FieldError{Object: d.object, Field: field, Detail: detail})
}

func (d *decoder) err() error {
	if len(d.errs) == 0 {
		return nil
	}
	return validate.InvalidArgumentError{Errors: d.errs}
}

func (d *decoder) id(field string, v *string) *uuid.UUID {
	if v == nil {
		return nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*v))
	if err != nil {
		d.fail(field, "must be a valid UUID")
		return nil
	}
	return &id
}

func (d *decoder) dateTime(field string, v *string) *time.Time {
	if v == nil {
		return nil
	}
	t, err := time.ParseInLocation(domain.DateTimeLayout, strings.TrimSpace(*v), time.UTC)
	if err != nil {
		d.fail(field, "must match yyyy-MM-dd HH:mm")
		return nil
	}
	return &t
}

func (req UserRequest) payload() (domain.UserPayload, error) {
	d := decoder{object: "user"}
	p := domain.UserPayload{
		ID:       d.id("id", req.ID),
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}
	if req.Roles != nil {
		p.Roles = make([]domain.Role, 0, len(req.Roles))
		for _, raw := range req.Roles {
			role, err := domain.ParseRole(raw)
			if err != nil {
				d.fail("roles", err.Error())
				continue
			}
			p.Roles = append(p.Roles, role)
		}
	}
	return p, d.err()
}

func (req JobRequest) payload() (domain.JobPayload, error) {
	d := decoder{object: "job"}
	p := domain.JobPayload{
		ID:            d.id("id", req.ID),
		CreatorUserID: d.id("creator_user_id", req.CreatorUserID),
		StartTime:     d.dateTime("start_time", req.StartTime),
		EndTime:       d.dateTime("end_time", req.EndTime),
		Activity:      req.Activity,
	}
	if req.Dog != nil {
		p.Dog = &domain.DogPayload{Name: req.Dog.Name, Age: req.Dog.Age, Breed: req.Dog.Breed, Size: req.Dog.Size}
	}
	return p, d.err()
}

// payload decodes the request. New applications default to PENDING.
func (req JobApplicationRequest) payload(create bool) (domain.JobApplicationPayload, error) {
	d := decoder{object: "jobApplication"}
	p := domain.JobApplicationPayload{
		ID:     d.id("id", req.ID),
		UserID: d.id("user_id", req.UserID),
		JobID:  d.id("job_id", req.JobID),
	}
	switch {
	case req.Status != nil:
		st, err := domain.ParseApplicationStatus(*req.Status)
		if err != nil {
			d.fail("status", err.Error())
		} else {
			p.Status = &st
		}
	case create:
		st := domain.StatusPending
		p.Status = &st
	}
	return p, d.err()
}

func parseID(object, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, validate.Invalid(object, "id", "must be a valid UUID")
	}
	return id, nil
}
