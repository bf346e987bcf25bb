package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateTimeLayout is the wire and message layout for job times.
const DateTimeLayout = "2006-01-02 15:04"

type Role string

const (
	RolePetOwner  Role = "PET_OWNER"
	RolePetSitter Role = "PET_SITTER"
	RoleAdmin     Role = "ADMIN"
)

// AllRoles lists roles in their canonical order.
var AllRoles = []Role{RolePetOwner, RolePetSitter, RoleAdmin}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) bit() RoleSet {
	switch r {
	case RolePetOwner:
		return 1 << 0
	case RolePetSitter:
		return 1 << 1
	case RoleAdmin:
		return 1 << 2
	}
	return 0
}

// RoleSet is a closed set of roles stored as a bitmask.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= r.bit()
	}
	return s
}

func (s RoleSet) Has(r Role) bool {
	b := r.bit()
	return b != 0 && s&b == b
}

// HasAny reports whether the set intersects roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

func (s RoleSet) Len() int {
	n := 0
	for _, r := range AllRoles {
		if s.Has(r) {
			n++
		}
	}
	return n
}

func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(AllRoles))
	for _, r := range AllRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) Strings() []string {
	roles := s.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func (s RoleSet) String() string {
	return strings.Join(s.Strings(), " ")
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set, err := ParseRoles(raw)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

func ParseRoles(raw []string) (RoleSet, error) {
	var s RoleSet
	for _, v := range raw {
		r, err := ParseRole(v)
		if err != nil {
			return 0, err
		}
		s |= r.bit()
	}
	return s, nil
}

type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "PENDING"
	StatusAccepted  ApplicationStatus = "ACCEPTED"
	StatusRejected  ApplicationStatus = "REJECTED"
	StatusWithdrawn ApplicationStatus = "WITHDRAWN"
)

func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusAccepted, StatusRejected, StatusWithdrawn:
		return st, nil
	}
	return "", fmt.Errorf("unknown job application status %q", s)
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Roles        RoleSet   `json:"roles"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

type Dog struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Breed string `json:"breed"`
	Size  string `json:"size"`
}

type Job struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"creator_user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Activity  string    `json:"activity"`
	Dog       Dog       `json:"dog"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

type JobApplication struct {
	ID          uuid.UUID         `json:"id"`
	JobID       uuid.UUID         `json:"job_id"`
	ApplicantID uuid.UUID         `json:"user_id"`
	Status      ApplicationStatus `json:"status"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// Payloads carry merge-patch semantics: a nil field is absent.

type UserPayload struct {
	ID       *uuid.UUID
	Email    *string
	Password *string
	FullName *string
	Roles    []Role
}

// RoleSet returns the payload roles as a set and whether roles were supplied.
func (p UserPayload) RoleSet() (RoleSet, bool) {
	if p.Roles == nil {
		return 0, false
	}
	return NewRoleSet(p.Roles...), true
}

type DogPayload struct {
	Name  *string
	Age   *int
	Breed *string
	Size  *string
}

type JobPayload struct {
	ID            *uuid.UUID
	CreatorUserID *uuid.UUID
	StartTime     *time.Time
	EndTime       *time.Time
	Activity      *string
	Dog           *DogPayload
}

type JobApplicationPayload struct {
	ID     *uuid.UUID
	Status *ApplicationStatus
	UserID *uuid.UUID
	JobID  *uuid.UUID
}

// ApplyTo merges the payload over a job; absent fields keep their value.
func (p JobPayload) ApplyTo(j Job) Job {
	if p.CreatorUserID != nil {
		j.OwnerID = *p.CreatorUserID
	}
	if p.StartTime != nil {
		j.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		j.EndTime = *p.EndTime
	}
	if p.Activity != nil {
		j.Activity = *p.Activity
	}
	if p.Dog != nil {
		if p.Dog.Name != nil {
			j.Dog.Name = *p.Dog.Name
		}
		if p.Dog.Age != nil {
			j.Dog.Age = *p.Dog.Age
		}
		if p.Dog.Breed != nil {
			j.Dog.Breed = *p.Dog.Breed
		}
		if p.Dog.Size != nil {
			j.Dog.Size = *p.Dog.Size
		}
	}
	return j
}

func (p JobApplicationPayload) ApplyTo(a JobApplication) JobApplication {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.UserID != nil {
		a.ApplicantID = *p.UserID
	}
	if p.JobID != nil {
		a.JobID = *p.JobID
	}
	return a
}

// ApplyTo merges the payload over a user. The password is handled by the caller.
func (p UserPayload) ApplyTo(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if roles, ok := p.RoleSet(); ok {
		u.Roles = roles
	}
	return u
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload,omitempty"`
}
