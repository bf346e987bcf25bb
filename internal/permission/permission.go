// Package permission decides whether a session may perform an action on a
// resource. Decisions are pure: every fact they need travels in the request.
package permission

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"petsitter/internal/domain"
	"petsitter/internal/session"
)

type Action string

const (
	Create Action = "create"
	View   Action = "view"
	Modify Action = "modify"
	Delete Action = "delete"
)

type Resource string

const (
	User           Resource = "User"
	Job            Resource = "Job"
	JobApplication Resource = "Job Application"
)

// Permission is the outcome of a decision. A denial may carry a reason.
type Permission struct {
	granted bool
	reason  string
}

var (
	Granted = Permission{granted: true}
	Denied  = Permission{}
)

func Deny(format string, args ...any) Permission {
	return Permission{reason: fmt.Sprintf(format, args...)}
}

func (p Permission) IsGranted() bool { return p.granted }

// Reason returns the denial reason, or "" when there is none.
func (p Permission) Reason() string { return p.reason }

func grantIf(ok bool) Permission {
	if ok {
		return Granted
	}
	return Denied
}

// Request is implemented by one struct per (resource, action) pair.
type Request interface {
	Resource() Resource
	Action() Action
	request()
}

// UserCreate is registration. Sessions can never create users; see DecideUnauthenticated.
type UserCreate struct {
	Payload domain.UserPayload
}

type UserView struct {
	UserID uuid.UUID
}

type UserModify struct {
	UserID  uuid.UUID
	Payload domain.UserPayload
}

type UserDelete struct {
	UserID uuid.UUID
}

// JobCreate carries the proposed owner: the payload creator when given,
// otherwise the acting user.
type JobCreate struct {
	OwnerID uuid.UUID
	Payload domain.JobPayload
}

// JobView with a nil OwnerID asks for every job.
type JobView struct {
	OwnerID *uuid.UUID
}

type JobModify struct {
	JobID   uuid.UUID
	OwnerID uuid.UUID
	Payload domain.JobPayload
}

type JobDelete struct {
	JobID   uuid.UUID
	OwnerID uuid.UUID
}

// ApplicationCreate carries the proposed applicant: the payload user when
// given, otherwise the acting user.
type ApplicationCreate struct {
	JobID       uuid.UUID
	ApplicantID uuid.UUID
	Payload     domain.JobApplicationPayload
}

// ApplicationView names the applicant, the owner of the job applied to, or both.
type ApplicationView struct {
	ApplicantID *uuid.UUID
	JobOwnerID  *uuid.UUID
}

type ApplicationModify struct {
	Current    domain.JobApplication
	JobOwnerID uuid.UUID
	Payload    domain.JobApplicationPayload
}

type ApplicationDelete struct {
	ApplicationID uuid.UUID
}

func (UserCreate) Resource() Resource        { return User }
func (UserView) Resource() Resource          { return User }
func (UserModify) Resource() Resource        { return User }
func (UserDelete) Resource() Resource        { return User }
func (JobCreate) Resource() Resource         { return Job }
func (JobView) Resource() Resource           { return Job }
func (JobModify) Resource() Resource         { return Job }
func (JobDelete) Resource() Resource         { return Job }
func (ApplicationCreate) Resource() Resource { return JobApplication }
func (ApplicationView) Resource() Resource   { return JobApplication }
func (ApplicationModify) Resource() Resource { return JobApplication }
func (ApplicationDelete) Resource() Resource { return JobApplication }

func (UserCreate) Action() Action        { return Create }
func (UserView) Action() Action          { return View }
func (UserModify) Action() Action        { return Modify }
func (UserDelete) Action() Action        { return Delete }
func (JobCreate) Action() Action         { return Create }
func (JobView) Action() Action           { return View }
func (JobModify) Action() Action         { return Modify }
func (JobDelete) Action() Action         { return Delete }
func (ApplicationCreate) Action() Action { return Create }
func (ApplicationView) Action() Action   { return View }
func (ApplicationModify) Action() Action { return Modify }
func (ApplicationDelete) Action() Action { return Delete }

func (UserCreate) request()        {}
func (UserView) request()          {}
func (UserModify) request()        {}
func (UserDelete) request()        {}
func (JobCreate) request()         {}
func (JobView) request()           {}
func (JobModify) request()         {}
func (JobDelete) request()         {}
func (ApplicationCreate) request() {}
func (ApplicationView) request()   {}
func (ApplicationModify) request() {}
func (ApplicationDelete) request() {}

// Decide evaluates req on behalf of s. Administrators bypass ownership
// checks but never the structural ones (identifier mismatch, ADMIN
// escalation, missing status). Ownership grants always require the
// matching role as well.
func Decide(s session.Session, req Request) Permission {
	switch r := req.(type) {
	case UserCreate:
		return Denied
	case UserView:
		return grantIf(s.HasRoleOrID(domain.RoleAdmin, r.UserID))
	case UserDelete:
		return grantIf(s.HasRoleOrID(domain.RoleAdmin, r.UserID))
	case UserModify:
		return decideUserModify(s, r)
	case JobCreate:
		return decideJobCreate(s, r)
	case JobView:
		if s.HasRole(domain.RolePetSitter, domain.RoleAdmin) {
			return Granted
		}
		return grantIf(r.OwnerID != nil && s.HasRoleAndID(domain.RolePetOwner, *r.OwnerID))
	case JobModify:
		return decideJobModify(s, r)
	case JobDelete:
		return grantIf(s.HasRoleAndID(domain.RolePetOwner, r.OwnerID) || s.HasRole(domain.RoleAdmin))
	case ApplicationCreate:
		return decideApplicationCreate(s, r)
	case ApplicationView:
		if r.ApplicantID != nil && s.HasRoleAndID(domain.RolePetSitter, *r.ApplicantID) {
			return Granted
		}
		if r.JobOwnerID != nil && s.HasRoleAndID(domain.RolePetOwner, *r.JobOwnerID) {
			return Granted
		}
		return grantIf(s.HasRole(domain.RoleAdmin))
	case ApplicationModify:
		return decideApplicationModify(s, r)
	case ApplicationDelete:
		return Denied
	default:
		panic(fmt.Sprintf("permission: unsupported request %T", req))
	}
}

// DecideUnauthenticated evaluates requests made without a session. Only
// registration can be granted.
func DecideUnauthenticated(req Request) Permission {
	r, ok := req.(UserCreate)
	if !ok {
		return Denied
	}
	if r.Payload.ID != nil {
		return Deny("User with ID %s", *r.Payload.ID)
	}
	if roles, ok := r.Payload.RoleSet(); ok && roles.Has(domain.RoleAdmin) {
		return Deny("User with ADMIN role")
	}
	return Granted
}

func decideUserModify(s session.Session, r UserModify) Permission {
	if r.Payload.ID != nil && *r.Payload.ID != r.UserID {
		return Deny("User ID %s", r.UserID)
	}
	if s.HasRole(domain.RoleAdmin) {
		return Granted
	}
	if roles, ok := r.Payload.RoleSet(); ok && roles.Has(domain.RoleAdmin) {
		return Deny("User %s with ADMIN role", r.UserID)
	}
	return grantIf(s.HasID(r.UserID))
}

func decideJobCreate(s session.Session, r JobCreate) Permission {
	if r.Payload.ID != nil {
		return Deny("Job with ID %s", *r.Payload.ID)
	}
	if s.HasRoleAndID(domain.RolePetOwner, r.OwnerID) {
		return Granted
	}
	if s.HasRole(domain.RoleAdmin) {
		if r.Payload.CreatorUserID == nil {
			return Deny("creating Job as administrator, creator user ID (Pet Owner) must be specified")
		}
		return Granted
	}
	return Denied
}

func decideJobModify(s session.Session, r JobModify) Permission {
	if r.Payload.ID != nil && *r.Payload.ID != r.JobID {
		return Deny("Job ID %s", r.JobID)
	}
	if s.HasRole(domain.RoleAdmin) {
		return Granted
	}
	if r.Payload.CreatorUserID != nil && *r.Payload.CreatorUserID != r.OwnerID {
		return Deny("Job creator user ID, Job %s", r.JobID)
	}
	return grantIf(s.HasRoleAndID(domain.RolePetOwner, r.OwnerID))
}

func decideApplicationCreate(s session.Session, r ApplicationCreate) Permission {
	if r.Payload.ID != nil {
		return Deny("Job Application with ID %s", *r.Payload.ID)
	}
	if r.Payload.Status == nil {
		return Deny("Job Application status must be specified")
	}
	admin := s.HasRole(domain.RoleAdmin)
	if s.HasRoleAndID(domain.RolePetSitter, r.ApplicantID) {
		if *r.Payload.Status == domain.StatusPending {
			return Granted
		}
		if !admin {
			return Deny("Job Application status must equal PENDING")
		}
	}
	if admin {
		if r.Payload.UserID == nil {
			return Deny("creating Job Application as administrator, user ID (Pet Sitter) must be specified")
		}
		return Granted
	}
	return Denied
}

var (
	sitterStatuses = []domain.ApplicationStatus{domain.StatusPending, domain.StatusWithdrawn}
	ownerStatuses  = []domain.ApplicationStatus{domain.StatusAccepted, domain.StatusPending, domain.StatusRejected}
)

func decideApplicationModify(s session.Session, r ApplicationModify) Permission {
	id := r.Current.ID
	if r.Payload.ID != nil && *r.Payload.ID != id {
		return Deny("Job Application ID %s", id)
	}
	if s.HasRole(domain.RoleAdmin) {
		return Granted
	}
	if r.Payload.UserID != nil && *r.Payload.UserID != r.Current.ApplicantID {
		return Deny("Job Application user ID. Job Application %s", id)
	}
	if r.Payload.JobID != nil && *r.Payload.JobID != r.Current.JobID {
		return Deny("Job Application Job ID. Job Application %s", id)
	}
	asPetSitter := s.HasRoleAndID(domain.RolePetSitter, r.Current.ApplicantID)
	asPetOwner := s.HasRoleAndID(domain.RolePetOwner, r.JobOwnerID)
	if asPetSitter {
		if statusIn(r.Payload.Status, sitterStatuses) {
			return Granted
		}
		if !asPetOwner {
			return Deny("modifying Job Application as Pet Sitter, status must be in %s", statusList(sitterStatuses))
		}
	}
	if asPetOwner {
		if statusIn(r.Payload.Status, ownerStatuses) {
			return Granted
		}
		return Deny("modifying Job Application as Pet Owner, status must be in %s", statusList(ownerStatuses))
	}
	return Denied
}

// statusIn reports whether the target status is one of allowed. A request
// without a target status is never in the set.
func statusIn(st *domain.ApplicationStatus, allowed []domain.ApplicationStatus) bool {
	if st == nil {
		return false
	}
	for _, a := range allowed {
		if *st == a {
			return true
		}
	}
	return false
}

func statusList(statuses []domain.ApplicationStatus) string {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
