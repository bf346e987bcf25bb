package validate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"petsitter/internal/domain"
)

type fakeLookup struct {
	jobs    map[uuid.UUID]uuid.UUID // job -> owner
	roles   map[uuid.UUID]domain.RoleSet
	applied map[[2]uuid.UUID]bool // {job, applicant}
	emails  map[string]uuid.UUID
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		jobs:    map[uuid.UUID]uuid.UUID{},
		roles:   map[uuid.UUID]domain.RoleSet{},
		applied: map[[2]uuid.UUID]bool{},
		emails:  map[string]uuid.UUID{},
	}
}

func (f *fakeLookup) JobOwner(_ context.Context, jobID uuid.UUID) (uuid.UUID, bool, error) {
	owner, ok := f.jobs[jobID]
	return owner, ok, nil
}

func (f *fakeLookup) JobExists(_ context.Context, jobID uuid.UUID) (bool, error) {
	_, ok := f.jobs[jobID]
	return ok, nil
}

func (f *fakeLookup) ExistsWithRole(_ context.Context, userID uuid.UUID, role domain.Role) (bool, error) {
	return f.roles[userID].Has(role), nil
}

func (f *fakeLookup) ApplicationExists(_ context.Context, jobID, applicantID uuid.UUID) (bool, error) {
	return f.applied[[2]uuid.UUID{jobID, applicantID}], nil
}

func (f *fakeLookup) EmailTaken(_ context.Context, email string, except uuid.UUID) (bool, error) {
	id, ok := f.emails[strings.ToLower(email)]
	return ok && id != except, nil
}

func ptr[T any](v T) *T { return &v }

func at(s string) *time.Time {
	t, err := time.ParseInLocation(domain.DateTimeLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return &t
}

func validJob() domain.JobPayload {
	return domain.JobPayload{
		StartTime: at("2030-06-01 10:00"),
		EndTime:   at("2030-06-01 12:00"),
		Activity:  ptr("Walk around the park"),
		Dog:       &domain.DogPayload{Name: ptr("Rex"), Age: ptr(3), Breed: ptr("Beagle"), Size: ptr("small")},
	}
}

func invalidArgument(t *testing.T, err error) InvalidArgumentError {
	t.Helper()
	var ie InvalidArgumentError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InvalidArgumentError, got %v", err)
	}
	return ie
}

func TestJobCreateValid(t *testing.T) {
	if err := JobCreate(context.Background(), newFakeLookup(), validJob()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJobCreateCollectsEveryProblem(t *testing.T) {
	p := domain.JobPayload{
		StartTime: at("2030-06-01 12:00"),
		EndTime:   at("2030-06-01 10:00"),
		Activity:  ptr("   "),
		Dog:       &domain.DogPayload{Name: ptr(strings.Repeat("x", 31)), Age: ptr(51), Size: ptr("small")},
	}
	ie := invalidArgument(t, JobCreate(context.Background(), newFakeLookup(), p))
	want := []FieldError{
		{"job", "", "start time must be before end time"},
		{"job", "activity", BlankValue},
		{"job", "dog.name", "size must be between 0 and 30"},
		{"job", "dog.breed", BlankValue},
		{"job", "dog.age", "must be less than or equal to 50"},
	}
	for _, w := range want {
		if !ie.Contains(w.Object, w.Field, w.Detail) {
			t.Errorf("missing %s: %s in %v", w.Path(), w.Detail, ie)
		}
	}
	if len(ie.Errors) != len(want) {
		t.Fatalf("got %d errors, want %d: %v", len(ie.Errors), len(want), ie)
	}
}

func TestJobCreateEqualTimes(t *testing.T) {
	p := validJob()
	p.EndTime = at("2030-06-01 10:00")
	ie := invalidArgument(t, JobCreate(context.Background(), newFakeLookup(), p))
	if len(ie.Errors) != 1 || !ie.Contains("job", "", "start time must be before end time") {
		t.Fatalf("unexpected %v", ie)
	}
}

func TestJobCreateMissingFields(t *testing.T) {
	ie := invalidArgument(t, JobCreate(context.Background(), newFakeLookup(), domain.JobPayload{}))
	for _, field := range []string{"start_time", "end_time", "dog"} {
		if !ie.Contains("job", field, NullValue) {
			t.Errorf("missing null error for %s: %v", field, ie)
		}
	}
}

func TestJobCreateUnknownCreator(t *testing.T) {
	l := newFakeLookup()
	sitter := uuid.New()
	l.roles[sitter] = domain.NewRoleSet(domain.RolePetSitter)
	p := validJob()
	p.CreatorUserID = &sitter
	var nf NotFoundError
	if err := JobCreate(context.Background(), l, p); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Error() != "Cannot find resource - Pet Owner with ID "+sitter.String() {
		t.Fatalf("message = %q", nf.Error())
	}
}

func TestJobModifyTimes(t *testing.T) {
	current := domain.Job{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		StartTime: *at("2030-06-01 10:00"),
		EndTime:   *at("2030-06-01 12:00"),
	}
	l := newFakeLookup()
	ctx := context.Background()

	ie := invalidArgument(t, JobModify(ctx, l, current, domain.JobPayload{StartTime: at("2030-06-01 13:00")}))
	if !ie.Contains("job", "start_time", "start time 2030-06-01 13:00 must be before current end time 2030-06-01 12:00") {
		t.Fatalf("unexpected %v", ie)
	}
	ie = invalidArgument(t, JobModify(ctx, l, current, domain.JobPayload{EndTime: at("2030-06-01 09:00")}))
	if !ie.Contains("job", "end_time", "end time 2030-06-01 09:00 must be after current start time 2030-06-01 10:00") {
		t.Fatalf("unexpected %v", ie)
	}
	ie = invalidArgument(t, JobModify(ctx, l, current, domain.JobPayload{StartTime: at("2030-06-02 10:00"), EndTime: at("2030-06-02 09:00")}))
	if !ie.Contains("job", "", "start time 2030-06-02 10:00 must be before end time 2030-06-02 09:00") {
		t.Fatalf("unexpected %v", ie)
	}
	ie = invalidArgument(t, JobModify(ctx, l, current, domain.JobPayload{StartTime: at("2030-06-02 10:00"), EndTime: at("2030-06-02 10:00")}))
	if !ie.Contains("job", "", "start time 2030-06-02 10:00 must be before end time 2030-06-02 10:00") {
		t.Fatalf("unexpected %v", ie)
	}
	ie = invalidArgument(t, JobModify(ctx, l, current, domain.JobPayload{EndTime: at("2030-06-01 10:00")}))
	if !ie.Contains("job", "end_time", "end time 2030-06-01 10:00 must be after current start time 2030-06-01 10:00") {
		t.Fatalf("unexpected %v", ie)
	}
	if err := JobModify(ctx, l, current, domain.JobPayload{EndTime: at("2030-06-01 18:00")}); err != nil {
		t.Fatalf("valid end time: %v", err)
	}
	if err := JobModify(ctx, l, current, domain.JobPayload{}); err != nil {
		t.Fatalf("empty patch: %v", err)
	}
}

func TestJobModifyNewCreatorAlreadyApplied(t *testing.T) {
	l := newFakeLookup()
	current := domain.Job{ID: uuid.New(), OwnerID: uuid.New(), StartTime: *at("2030-06-01 10:00"), EndTime: *at("2030-06-01 12:00")}
	both := uuid.New()
	l.roles[both] = domain.NewRoleSet(domain.RolePetOwner, domain.RolePetSitter)
	l.applied[[2]uuid.UUID{current.ID, both}] = true
	ie := invalidArgument(t, JobModify(context.Background(), l, current, domain.JobPayload{CreatorUserID: &both}))
	if len(ie.Errors) != 1 || ie.Errors[0].Field != "creator_user_id" {
		t.Fatalf("unexpected %v", ie)
	}
}

func TestApplicationCreate(t *testing.T) {
	l := newFakeLookup()
	ctx := context.Background()
	owner, sitter, job := uuid.New(), uuid.New(), uuid.New()
	l.roles[owner] = domain.NewRoleSet(domain.RolePetOwner)
	l.roles[sitter] = domain.NewRoleSet(domain.RolePetSitter)
	l.jobs[job] = owner
	pending := domain.StatusPending

	if err := ApplicationCreate(ctx, l, job, sitter, domain.JobApplicationPayload{Status: &pending}); err != nil {
		t.Fatalf("valid application: %v", err)
	}

	ie := invalidArgument(t, ApplicationCreate(ctx, l, job, owner, domain.JobApplicationPayload{Status: &pending}))
	want := "Job applicant cannot be Job creator, Applicant " + owner.String() + " Job " + job.String()
	if !ie.Contains("jobApplication", "", want) {
		t.Fatalf("unexpected %v", ie)
	}

	l.applied[[2]uuid.UUID{job, sitter}] = true
	ie = invalidArgument(t, ApplicationCreate(ctx, l, job, sitter, domain.JobApplicationPayload{Status: &pending}))
	if !ie.Contains("jobApplication", "", DuplicateApplication(sitter, job)) {
		t.Fatalf("unexpected %v", ie)
	}

	other := uuid.New()
	ie = invalidArgument(t, ApplicationCreate(ctx, l, job, sitter, domain.JobApplicationPayload{Status: &pending, JobID: &other}))
	if ie.Errors[0].Field != "job_id" {
		t.Fatalf("expected job_id mismatch first, got %v", ie)
	}

	var nf NotFoundError
	if err := ApplicationCreate(ctx, l, uuid.New(), sitter, domain.JobApplicationPayload{Status: &pending}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for missing job, got %v", err)
	}
	if err := ApplicationCreate(ctx, l, job, owner, domain.JobApplicationPayload{Status: &pending, UserID: &owner}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for non sitter, got %v", err)
	}
}

func TestApplicationModifyReassignment(t *testing.T) {
	l := newFakeLookup()
	ctx := context.Background()
	owner, sitter, second := uuid.New(), uuid.New(), uuid.New()
	job, otherJob := uuid.New(), uuid.New()
	l.roles[owner] = domain.NewRoleSet(domain.RolePetOwner)
	l.roles[sitter] = domain.NewRoleSet(domain.RolePetSitter)
	l.roles[second] = domain.NewRoleSet(domain.RolePetSitter)
	l.jobs[job] = owner
	l.jobs[otherJob] = owner
	l.applied[[2]uuid.UUID{job, sitter}] = true
	l.applied[[2]uuid.UUID{job, second}] = true
	current := domain.JobApplication{ID: uuid.New(), JobID: job, ApplicantID: sitter, Status: domain.StatusPending}

	accepted := domain.StatusAccepted
	if err := ApplicationModify(ctx, l, current, domain.JobApplicationPayload{Status: &accepted}); err != nil {
		t.Fatalf("status change: %v", err)
	}
	if err := ApplicationModify(ctx, l, current, domain.JobApplicationPayload{JobID: &otherJob}); err != nil {
		t.Fatalf("move to other job: %v", err)
	}
	ie := invalidArgument(t, ApplicationModify(ctx, l, current, domain.JobApplicationPayload{UserID: &second}))
	if !ie.Contains("jobApplication", "", DuplicateApplication(second, job)) {
		t.Fatalf("unexpected %v", ie)
	}
	var nf NotFoundError
	missing := uuid.New()
	if err := ApplicationModify(ctx, l, current, domain.JobApplicationPayload{JobID: &missing}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err := ApplicationModify(ctx, l, current, domain.JobApplicationPayload{UserID: &owner}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for non sitter, got %v", err)
	}
}

func TestUserRegistration(t *testing.T) {
	l := newFakeLookup()
	ctx := context.Background()
	existing := uuid.New()
	l.emails["taken@example.com"] = existing

	ok := domain.UserPayload{
		Email:    ptr("new@example.com"),
		Password: ptr("Secret123"),
		FullName: ptr("Pat Owner"),
		Roles:    []domain.Role{domain.RolePetOwner},
	}
	if err := UserRegistration(ctx, l, ok); err != nil {
		t.Fatalf("valid registration: %v", err)
	}

	bad := domain.UserPayload{
		Email:    ptr("taken@example.com"),
		Password: ptr("short"),
		FullName: ptr(""),
		Roles:    []domain.Role{},
	}
	ie := invalidArgument(t, UserRegistration(ctx, l, bad))
	for _, w := range []FieldError{
		{"user", "email", "username taken@example.com already exists"},
		{"user", "password", "size must be between 8 and 20"},
		{"user", "full_name", BlankValue},
		{"user", "roles", "size must be between 1 and 3"},
	} {
		if !ie.Contains(w.Object, w.Field, w.Detail) {
			t.Errorf("missing %s: %s in %v", w.Path(), w.Detail, ie)
		}
	}

	ie = invalidArgument(t, UserRegistration(ctx, l, domain.UserPayload{Email: ptr("not an email")}))
	if !ie.Contains("user", "email", "must be a well-formed email address") || !ie.Contains("user", "roles", NullValue) {
		t.Fatalf("unexpected %v", ie)
	}
}

func TestUserModifyKeepsOwnEmail(t *testing.T) {
	l := newFakeLookup()
	me := uuid.New()
	l.emails["me@example.com"] = me
	if err := UserModify(context.Background(), l, me, domain.UserPayload{Email: ptr("me@example.com")}); err != nil {
		t.Fatalf("own email: %v", err)
	}
	ie := invalidArgument(t, UserModify(context.Background(), l, uuid.New(), domain.UserPayload{Email: ptr("me@example.com")}))
	if !ie.Contains("user", "email", "username me@example.com already exists") {
		t.Fatalf("unexpected %v", ie)
	}
}

func TestInvalidArgumentMessage(t *testing.T) {
	err := InvalidArgumentError{Errors: []FieldError{
		{Object: "job", Field: "activity", Detail: BlankValue},
		{Object: "job", Detail: "start time must be before end time"},
	}}
	want := "Invalid argument(s) - job.activity: cannot be blank; job: start time must be before end time"
	if err.Error() != want {
		t.Fatalf("got %q", err.Error())
	}
}
