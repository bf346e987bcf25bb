package permission_test

import (
	"testing"

	"github.com/google/uuid"

	"petsitter/internal/domain"
	"petsitter/internal/permission"
	"petsitter/internal/session"
)

var (
	ownerID  = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	sitterID = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	adminID  = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	otherID  = uuid.MustParse("00000000-0000-0000-0000-00000000000d")
	jobID    = uuid.MustParse("00000000-0000-0000-0000-0000000000f1")
	appID    = uuid.MustParse("00000000-0000-0000-0000-0000000000f2")

	owner  = session.New(ownerID, domain.RolePetOwner)
	sitter = session.New(sitterID, domain.RolePetSitter)
	admin  = session.New(adminID, domain.RoleAdmin)
	both   = session.New(otherID, domain.RolePetOwner, domain.RolePetSitter)
)

func status(s domain.ApplicationStatus) *domain.ApplicationStatus { return &s }

func id(u uuid.UUID) *uuid.UUID { return &u }

type decision struct {
	name    string
	session session.Session
	req     permission.Request
	granted bool
	reason  string
}

func runDecisions(t *testing.T, cases []decision) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := permission.Decide(tc.session, tc.req)
			if p.IsGranted() != tc.granted {
				t.Fatalf("granted = %v, want %v (reason %q)", p.IsGranted(), tc.granted, p.Reason())
			}
			if p.Reason() != tc.reason {
				t.Fatalf("reason = %q, want %q", p.Reason(), tc.reason)
			}
		})
	}
}

func TestUserDecisions(t *testing.T) {
	adminRole := []domain.Role{domain.RoleAdmin}
	runDecisions(t, []decision{
		{name: "create with session", session: admin, req: permission.UserCreate{}},
		{name: "view self", session: owner, req: permission.UserView{UserID: ownerID}, granted: true},
		{name: "view other", session: owner, req: permission.UserView{UserID: sitterID}},
		{name: "admin views other", session: admin, req: permission.UserView{UserID: sitterID}, granted: true},
		{name: "delete self", session: sitter, req: permission.UserDelete{UserID: sitterID}, granted: true},
		{name: "delete other", session: sitter, req: permission.UserDelete{UserID: ownerID}},
		{name: "modify self", session: owner, req: permission.UserModify{UserID: ownerID}, granted: true},
		{name: "modify other", session: owner, req: permission.UserModify{UserID: sitterID}},
		{
			name:    "escalate to admin",
			session: owner,
			req:     permission.UserModify{UserID: ownerID, Payload: domain.UserPayload{Roles: adminRole}},
			reason:  "User " + ownerID.String() + " with ADMIN role",
		},
		{
			name:    "admin grants admin",
			session: admin,
			req:     permission.UserModify{UserID: sitterID, Payload: domain.UserPayload{Roles: adminRole}},
			granted: true,
		},
		{
			name:    "id mismatch even for admin",
			session: admin,
			req:     permission.UserModify{UserID: sitterID, Payload: domain.UserPayload{ID: id(ownerID)}},
			reason:  "User ID " + sitterID.String(),
		},
		{
			name:    "matching id",
			session: sitter,
			req:     permission.UserModify{UserID: sitterID, Payload: domain.UserPayload{ID: id(sitterID)}},
			granted: true,
		},
	})
}

func TestDecideUnauthenticated(t *testing.T) {
	cases := []struct {
		name    string
		req     permission.Request
		granted bool
		reason  string
	}{
		{name: "plain registration", req: permission.UserCreate{Payload: domain.UserPayload{Roles: []domain.Role{domain.RolePetOwner}}}, granted: true},
		{name: "client chosen id", req: permission.UserCreate{Payload: domain.UserPayload{ID: id(otherID)}}, reason: "User with ID " + otherID.String()},
		{name: "admin role", req: permission.UserCreate{Payload: domain.UserPayload{Roles: []domain.Role{domain.RolePetSitter, domain.RoleAdmin}}}, reason: "User with ADMIN role"},
		{name: "anything else", req: permission.JobView{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := permission.DecideUnauthenticated(tc.req)
			if p.IsGranted() != tc.granted || p.Reason() != tc.reason {
				t.Fatalf("got (%v, %q), want (%v, %q)", p.IsGranted(), p.Reason(), tc.granted, tc.reason)
			}
		})
	}
}

func TestJobDecisions(t *testing.T) {
	runDecisions(t, []decision{
		{name: "owner creates own", session: owner, req: permission.JobCreate{OwnerID: ownerID}, granted: true},
		{name: "sitter creates", session: sitter, req: permission.JobCreate{OwnerID: sitterID}},
		{name: "owner creates for other", session: owner, req: permission.JobCreate{OwnerID: otherID, Payload: domain.JobPayload{CreatorUserID: id(otherID)}}},
		{
			name:    "client chosen id",
			session: owner,
			req:     permission.JobCreate{OwnerID: ownerID, Payload: domain.JobPayload{ID: id(jobID)}},
			reason:  "Job with ID " + jobID.String(),
		},
		{
			name:    "admin without creator",
			session: admin,
			req:     permission.JobCreate{OwnerID: adminID},
			reason:  "creating Job as administrator, creator user ID (Pet Owner) must be specified",
		},
		{name: "admin with creator", session: admin, req: permission.JobCreate{OwnerID: ownerID, Payload: domain.JobPayload{CreatorUserID: id(ownerID)}}, granted: true},

		{name: "sitter lists all", session: sitter, req: permission.JobView{}, granted: true},
		{name: "owner lists all", session: owner, req: permission.JobView{}},
		{name: "owner views own", session: owner, req: permission.JobView{OwnerID: id(ownerID)}, granted: true},
		{name: "owner views other", session: owner, req: permission.JobView{OwnerID: id(otherID)}},

		{name: "owner modifies own", session: owner, req: permission.JobModify{JobID: jobID, OwnerID: ownerID}, granted: true},
		{name: "sitter modifies", session: sitter, req: permission.JobModify{JobID: jobID, OwnerID: ownerID}},
		{name: "admin modifies", session: admin, req: permission.JobModify{JobID: jobID, OwnerID: ownerID}, granted: true},
		{
			name:    "owner hands job over",
			session: owner,
			req:     permission.JobModify{JobID: jobID, OwnerID: ownerID, Payload: domain.JobPayload{CreatorUserID: id(otherID)}},
			reason:  "Job creator user ID, Job " + jobID.String(),
		},
		{name: "admin hands job over", session: admin, req: permission.JobModify{JobID: jobID, OwnerID: ownerID, Payload: domain.JobPayload{CreatorUserID: id(otherID)}}, granted: true},
		{
			name:    "id mismatch",
			session: admin,
			req:     permission.JobModify{JobID: jobID, OwnerID: ownerID, Payload: domain.JobPayload{ID: id(appID)}},
			reason:  "Job ID " + jobID.String(),
		},

		{name: "owner deletes own", session: owner, req: permission.JobDelete{JobID: jobID, OwnerID: ownerID}, granted: true},
		{name: "owner deletes other", session: owner, req: permission.JobDelete{JobID: jobID, OwnerID: otherID}},
		{name: "admin deletes", session: admin, req: permission.JobDelete{JobID: jobID, OwnerID: ownerID}, granted: true},
	})
}

func TestApplicationCreateDecisions(t *testing.T) {
	runDecisions(t, []decision{
		{
			name:    "sitter applies pending",
			session: sitter,
			req:     permission.ApplicationCreate{JobID: jobID, ApplicantID: sitterID, Payload: domain.JobApplicationPayload{Status: status(domain.StatusPending)}},
			granted: true,
		},
		{
			name:    "sitter applies accepted",
			session: sitter,
			req:     permission.ApplicationCreate{JobID: jobID, ApplicantID: sitterID, Payload: domain.JobApplicationPayload{Status: status(domain.StatusAccepted)}},
			reason:  "Job Application status must equal PENDING",
		},
		{
			name:    "missing status",
			session: sitter,
			req:     permission.ApplicationCreate{JobID: jobID, ApplicantID: sitterID},
			reason:  "Job Application status must be specified",
		},
		{
			name:    "client chosen id",
			session: sitter,
			req:     permission.ApplicationCreate{JobID: jobID, ApplicantID: sitterID, Payload: domain.JobApplicationPayload{ID: id(appID), Status: status(domain.StatusPending)}},
			reason:  "Job Application with ID " + appID.String(),
		},
		{
			name:    "owner applies",
			session: owner,
			req:     permission.ApplicationCreate{JobID: jobID, ApplicantID: ownerID, Payload: domain.JobApplicationPayload{Status: status(domain.StatusPending)}},
		},
		{
			name:    "sitter applies for other",
			session: sitter,
			req:     permission.ApplicationCreate{JobID: jobID, ApplicantID: otherID, Payload: domain.JobApplicationPayload{UserID: id(otherID), Status: status(domain.StatusPending)}},
		},
		{
			name:    "admin without user",
			session: admin,
			req:     permission.ApplicationCreate{JobID: jobID, ApplicantID: adminID, Payload: domain.JobApplicationPayload{Status: status(domain.StatusPending)}},
			reason:  "creating Job Application as administrator, user ID (Pet Sitter) must be specified",
		},
		{
			name:    "admin for sitter with any status",
			session: admin,
			req:     permission.ApplicationCreate{JobID: jobID, ApplicantID: sitterID, Payload: domain.JobApplicationPayload{UserID: id(sitterID), Status: status(domain.StatusAccepted)}},
			granted: true,
		},
	})
}

func TestApplicationViewDecisions(t *testing.T) {
	runDecisions(t, []decision{
		{name: "applicant", session: sitter, req: permission.ApplicationView{ApplicantID: id(sitterID), JobOwnerID: id(ownerID)}, granted: true},
		{name: "job owner", session: owner, req: permission.ApplicationView{ApplicantID: id(sitterID), JobOwnerID: id(ownerID)}, granted: true},
		{name: "stranger", session: both, req: permission.ApplicationView{ApplicantID: id(sitterID), JobOwnerID: id(ownerID)}},
		{name: "owner id without owner role", session: session.New(ownerID, domain.RolePetSitter), req: permission.ApplicationView{JobOwnerID: id(ownerID)}},
		{name: "admin", session: admin, req: permission.ApplicationView{}, granted: true},
		{name: "delete is never allowed", session: admin, req: permission.ApplicationDelete{ApplicationID: appID}},
	})
}

func TestApplicationModifyDecisions(t *testing.T) {
	current := domain.JobApplication{ID: appID, JobID: jobID, ApplicantID: sitterID, Status: domain.StatusPending}
	modify := func(p domain.JobApplicationPayload) permission.ApplicationModify {
		return permission.ApplicationModify{Current: current, JobOwnerID: ownerID, Payload: p}
	}
	runDecisions(t, []decision{
		{name: "sitter withdraws", session: sitter, req: modify(domain.JobApplicationPayload{Status: status(domain.StatusWithdrawn)}), granted: true},
		{
			name:    "sitter accepts",
			session: sitter,
			req:     modify(domain.JobApplicationPayload{Status: status(domain.StatusAccepted)}),
			reason:  "modifying Job Application as Pet Sitter, status must be in [PENDING, WITHDRAWN]",
		},
		{name: "owner accepts", session: owner, req: modify(domain.JobApplicationPayload{Status: status(domain.StatusAccepted)}), granted: true},
		{name: "owner rejects", session: owner, req: modify(domain.JobApplicationPayload{Status: status(domain.StatusRejected)}), granted: true},
		{
			name:    "owner withdraws",
			session: owner,
			req:     modify(domain.JobApplicationPayload{Status: status(domain.StatusWithdrawn)}),
			reason:  "modifying Job Application as Pet Owner, status must be in [ACCEPTED, PENDING, REJECTED]",
		},
		{
			name:    "sitter without status",
			session: sitter,
			req:     modify(domain.JobApplicationPayload{}),
			reason:  "modifying Job Application as Pet Sitter, status must be in [PENDING, WITHDRAWN]",
		},
		{
			name:    "owner without status",
			session: owner,
			req:     modify(domain.JobApplicationPayload{}),
			reason:  "modifying Job Application as Pet Owner, status must be in [ACCEPTED, PENDING, REJECTED]",
		},
		{name: "admin without status", session: admin, req: modify(domain.JobApplicationPayload{}), granted: true},
		{name: "stranger", session: both, req: modify(domain.JobApplicationPayload{Status: status(domain.StatusWithdrawn)})},
		{
			name:    "sitter moves to other job",
			session: sitter,
			req:     modify(domain.JobApplicationPayload{JobID: id(otherID)}),
			reason:  "Job Application Job ID. Job Application " + appID.String(),
		},
		{
			name:    "owner reassigns applicant",
			session: owner,
			req:     modify(domain.JobApplicationPayload{UserID: id(otherID)}),
			reason:  "Job Application user ID. Job Application " + appID.String(),
		},
		{name: "admin reassigns applicant", session: admin, req: modify(domain.JobApplicationPayload{UserID: id(otherID), Status: status(domain.StatusAccepted)}), granted: true},
		{
			name:    "id mismatch",
			session: admin,
			req:     modify(domain.JobApplicationPayload{ID: id(jobID)}),
			reason:  "Job Application ID " + appID.String(),
		},
	})
}

func TestApplicationModifyOwnerAndSitterRoles(t *testing.T) {
	// one user who owns the job and is also the applicant gets the union
	// of both status sets
	current := domain.JobApplication{ID: appID, JobID: jobID, ApplicantID: otherID, Status: domain.StatusPending}
	for _, st := range []domain.ApplicationStatus{domain.StatusAccepted, domain.StatusRejected, domain.StatusWithdrawn, domain.StatusPending} {
		req := permission.ApplicationModify{Current: current, JobOwnerID: otherID, Payload: domain.JobApplicationPayload{Status: status(st)}}
		if p := permission.Decide(both, req); !p.IsGranted() {
			t.Fatalf("status %s denied: %q", st, p.Reason())
		}
	}
}

type unknownRequest struct{ permission.UserView }

func TestDecidePanicsOnUnknownRequest(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	permission.Decide(admin, unknownRequest{})
}
