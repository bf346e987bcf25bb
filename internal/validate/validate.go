// Package validate checks mutation payloads before they are written. Field
// problems are collected into one InvalidArgumentError; a missing referenced
// entity stops validation with a NotFoundError.
package validate

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"petsitter/internal/domain"
)

const (
	NullValue  = "cannot be null"
	BlankValue = "cannot be blank"
)

// FieldError names the offending object and, optionally, its field.
type FieldError struct {
	Object string
	Field  string
	Detail string
}

// Path returns "object.field", or just "object" for object-level errors.
func (e FieldError) Path() string {
	if e.Field == "" {
		return e.Object
	}
	return e.Object + "." + e.Field
}

type InvalidArgumentError struct {
	Errors []FieldError
}

func (e InvalidArgumentError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Path() + ": " + fe.Detail
	}
	return "Invalid argument(s) - " + strings.Join(parts, "; ")
}

// Contains reports whether the error lists the given triple.
func (e InvalidArgumentError) Contains(object, field, detail string) bool {
	for _, fe := range e.Errors {
		if fe.Object == object && fe.Field == field && fe.Detail == detail {
			return true
		}
	}
	return false
}

// Invalid returns a single-entry InvalidArgumentError.
func Invalid(object, field, detail string) InvalidArgumentError {
	return InvalidArgumentError{Errors: []FieldError{{Object: object, Field: field, Detail: detail}}}
}

type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	return "Cannot find resource - " + e.Resource
}

func notFound(format string, args ...any) NotFoundError {
	return NotFoundError{Resource: fmt.Sprintf(format, args...)}
}

// Lookup answers the referential questions validation needs. Implementations
// should read through the transaction of the enclosing operation.
type Lookup interface {
	JobOwner(ctx context.Context, jobID uuid.UUID) (uuid.UUID, bool, error)
	JobExists(ctx context.Context, jobID uuid.UUID) (bool, error)
	ExistsWithRole(ctx context.Context, userID uuid.UUID, role domain.Role) (bool, error)
	ApplicationExists(ctx context.Context, jobID, applicantID uuid.UUID) (bool, error)
	// EmailTaken ignores the user identified by except; pass uuid.Nil to check every user.
	EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error)
}

const (
	jobObject         = "job"
	applicationObject = "jobApplication"
	userObject        = "user"

	maxActivity = 500
	maxDogText  = 30
	maxDogAge   = 50
	maxFullName = 50
	minPassword = 8
	maxPassword = 20
	minRoles    = 1
	maxRoles    = 3
)

type collector struct {
	object string
	errs   []FieldError
}

func (c *collector) add(field, format string, args ...any) {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	c.errs = append(c.errs, FieldError{Object: c.object, Field: field, Detail: detail})
}

func (c *collector) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return InvalidArgumentError{Errors: c.errs}
}

func (c *collector) text(field string, v *string, required bool, max int) {
	if v == nil {
		if required {
			c.add(field, BlankValue)
		}
		return
	}
	if strings.TrimSpace(*v) == "" {
		c.add(field, BlankValue)
		return
	}
	if utf8.RuneCountInString(*v) > max {
		c.add(field, "size must be between 0 and %d", max)
	}
}

func (c *collector) dog(d *domain.DogPayload, required bool) {
	c.text("dog.name", d.Name, required, maxDogText)
	c.text("dog.breed", d.Breed, required, maxDogText)
	c.text("dog.size", d.Size, required, maxDogText)
	switch {
	case d.Age == nil:
		if required {
			c.add("dog.age", NullValue)
		}
	case *d.Age < 0:
		c.add("dog.age", "must be greater than or equal to 0")
	case *d.Age > maxDogAge:
		c.add("dog.age", "must be less than or equal to %d", maxDogAge)
	}
}

func formatTime(t time.Time) string {
	return t.Format(domain.DateTimeLayout)
}

func requireRole(ctx context.Context, l Lookup, userID uuid.UUID, role domain.Role, label string) error {
	ok, err := l.ExistsWithRole(ctx, userID, role)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("%s with ID %s", label, userID)
	}
	return nil
}

// JobCreate validates a new job. An explicit creator must be an existing Pet Owner.
func JobCreate(ctx context.Context, l Lookup, p domain.JobPayload) error {
	c := collector{object: jobObject}
	if p.StartTime == nil {
		c.add("start_time", NullValue)
	}
	if p.EndTime == nil {
		c.add("end_time", NullValue)
	}
	if p.StartTime != nil && p.EndTime != nil && !p.StartTime.Before(*p.EndTime) {
		c.add("", "start time must be before end time")
	}
	c.text("activity", p.Activity, true, maxActivity)
	if p.Dog == nil {
		c.add("dog", NullValue)
	} else {
		c.dog(p.Dog, true)
	}
	if p.CreatorUserID != nil {
		if err := requireRole(ctx, l, *p.CreatorUserID, domain.RolePetOwner, "Pet Owner"); err != nil {
			return err
		}
	}
	return c.err()
}

// JobModify validates a partial update against the stored job.
func JobModify(ctx context.Context, l Lookup, current domain.Job, p domain.JobPayload) error {
	c := collector{object: jobObject}
	switch {
	case p.StartTime != nil && p.EndTime != nil:
		if !p.StartTime.Before(*p.EndTime) {
			c.add("", "start time %s must be before end time %s", formatTime(*p.StartTime), formatTime(*p.EndTime))
		}
	case p.StartTime != nil:
		if !p.StartTime.Before(current.EndTime) {
			c.add("start_time", "start time %s must be before current end time %s", formatTime(*p.StartTime), formatTime(current.EndTime))
		}
	case p.EndTime != nil:
		if !current.StartTime.Before(*p.EndTime) {
			c.add("end_time", "end time %s must be after current start time %s", formatTime(*p.EndTime), formatTime(current.StartTime))
		}
	}
	c.text("activity", p.Activity, false, maxActivity)
	if p.Dog != nil {
		c.dog(p.Dog, false)
	}
	if p.CreatorUserID != nil && *p.CreatorUserID != current.OwnerID {
		newOwner := *p.CreatorUserID
		if err := requireRole(ctx, l, newOwner, domain.RolePetOwner, "Pet Owner"); err != nil {
			return err
		}
		applied, err := l.ApplicationExists(ctx, current.ID, newOwner)
		if err != nil {
			return err
		}
		if applied {
			c.add("creator_user_id", "Job creator cannot be a Job applicant, User %s Job %s", newOwner, current.ID)
		}
	}
	return c.err()
}

// ApplicationCreate validates an application of applicantID to jobID.
func ApplicationCreate(ctx context.Context, l Lookup, jobID, applicantID uuid.UUID, p domain.JobApplicationPayload) error {
	c := collector{object: applicationObject}
	if p.JobID != nil && *p.JobID != jobID {
		c.add("job_id", "Job ID mismatch. If specified, Job Application Job ID must equal %s. Value specified %s", jobID, *p.JobID)
	}
	if p.UserID != nil {
		if err := requireRole(ctx, l, *p.UserID, domain.RolePetSitter, "Pet Sitter"); err != nil {
			return err
		}
	}
	if err := checkApplicant(ctx, l, &c, jobID, applicantID); err != nil {
		return err
	}
	return c.err()
}

// ApplicationModify validates a partial update against the stored application.
func ApplicationModify(ctx context.Context, l Lookup, current domain.JobApplication, p domain.JobApplicationPayload) error {
	c := collector{object: applicationObject}
	moved := false
	if p.UserID != nil && *p.UserID != current.ApplicantID {
		if err := requireRole(ctx, l, *p.UserID, domain.RolePetSitter, "Pet Sitter"); err != nil {
			return err
		}
		moved = true
	}
	if p.JobID != nil && *p.JobID != current.JobID {
		ok, err := l.JobExists(ctx, *p.JobID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("Job %s", *p.JobID)
		}
		moved = true
	}
	if moved {
		next := p.ApplyTo(current)
		if err := checkApplicant(ctx, l, &c, next.JobID, next.ApplicantID); err != nil {
			return err
		}
	}
	return c.err()
}

func checkApplicant(ctx context.Context, l Lookup, c *collector, jobID, applicantID uuid.UUID) error {
	owner, ok, err := l.JobOwner(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Job %s", jobID)
	}
	if owner == applicantID {
		c.add("", "Job applicant cannot be Job creator, Applicant %s Job %s", applicantID, jobID)
	}
	dup, err := l.ApplicationExists(ctx, jobID, applicantID)
	if err != nil {
		return err
	}
	if dup {
		c.add("", "%s", DuplicateApplication(applicantID, jobID))
	}
	return nil
}

// DuplicateApplication is the detail reported for a second application by
// the same applicant to the same job.
func DuplicateApplication(applicantID, jobID uuid.UUID) string {
	return fmt.Sprintf("Job applicant cannot have more than one application for the same job. Applicant %s Job %s", applicantID, jobID)
}

// UserRegistration validates a self-registration payload.
func UserRegistration(ctx context.Context, l Lookup, p domain.UserPayload) error {
	c := collector{object: userObject}
	if p.Email == nil {
		c.add("email", NullValue)
	} else if err := checkEmail(ctx, l, &c, *p.Email, uuid.Nil); err != nil {
		return err
	}
	if p.Password == nil {
		c.add("password", NullValue)
	} else {
		checkPassword(&c, *p.Password)
	}
	c.text("full_name", p.FullName, true, maxFullName)
	if p.Roles == nil {
		c.add("roles", NullValue)
	} else {
		checkRoles(&c, p)
	}
	return c.err()
}

// UserModify validates a partial update of userID.
func UserModify(ctx context.Context, l Lookup, userID uuid.UUID, p domain.UserPayload) error {
	c := collector{object: userObject}
	if p.Email != nil {
		if err := checkEmail(ctx, l, &c, *p.Email, userID); err != nil {
			return err
		}
	}
	if p.Password != nil {
		checkPassword(&c, *p.Password)
	}
	c.text("full_name", p.FullName, false, maxFullName)
	if p.Roles != nil {
		checkRoles(&c, p)
	}
	return c.err()
}

func checkEmail(ctx context.Context, l Lookup, c *collector, email string, except uuid.UUID) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		c.add("email", "must be a well-formed email address")
		return nil
	}
	taken, err := l.EmailTaken(ctx, email, except)
	if err != nil {
		return err
	}
	if taken {
		c.add("email", "username %s already exists", email)
	}
	return nil
}

func checkPassword(c *collector, password string) {
	n := utf8.RuneCountInString(password)
	if n < minPassword || n > maxPassword {
		c.add("password", "size must be between %d and %d", minPassword, maxPassword)
	}
}

func checkRoles(c *collector, p domain.UserPayload) {
	roles, _ := p.RoleSet()
	if n := roles.Len(); n < minRoles || n > maxRoles {
		c.add("roles", "size must be between %d and %d", minRoles, maxRoles)
	}
}
