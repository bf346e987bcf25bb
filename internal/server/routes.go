package server

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"petsitter/internal/engine"
)

type idPath struct {
	ID string `path:"id" format:"uuid"`
}

type userBody struct {
	Body UserResponse `json:"body"`
}

type createdUser struct {
	Location string       `header:"Location"`
	Body     UserResponse `json:"body"`
}

type jobBody struct {
	Body JobResponse `json:"body"`
}

type createdJob struct {
	Location string      `header:"Location"`
	Body     JobResponse `json:"body"`
}

type jobsBody struct {
	Body []JobResponse `json:"body"`
}

type applicationBody struct {
	Body JobApplicationResponse `json:"body"`
}

type createdApplication struct {
	Location string                 `header:"Location"`
	Body     JobApplicationResponse `json:"body"`
}

type applicationsBody struct {
	Body []JobApplicationResponse `json:"body"`
}

func registerSessions(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Log in and obtain a bearer token",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body SessionRequest `json:"body"`
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		u, err := e.Authenticate(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		token, expires, err := issueToken(authCfg, u)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: SessionResponse{
			UserID:     u.ID.String(),
			AuthHeader: "Bearer " + token,
			ExpiresAt:  expires.Format(time.RFC3339),
		}}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine, basePath string) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Register user",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body UserRequest `json:"body"`
	}) (*createdUser, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, err := input.Body.payload()
		if err != nil {
			return nil, handleError(err)
		}
		u, err := e.RegisterUser(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &createdUser{
			Location: path.Join(basePath, "users", u.ID.String()),
			Body:     userResponse(u),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		items, err := e.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*userBody, error) {
		id, err := parseID("user", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		u, err := e.GetUser(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &userBody{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "modify-user",
		Method:      http.MethodPatch,
		Path:        "/users/{id}",
		Summary:     "Modify user",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string      `path:"id" format:"uuid"`
		Body UserRequest `json:"body"`
	}) (*userBody, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		id, err := parseID("user", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := input.Body.payload()
		if err != nil {
			return nil, handleError(err)
		}
		u, err := e.ModifyUser(ctx, id, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &userBody{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-user",
		Method:        http.MethodDelete,
		Path:          "/users/{id}",
		Summary:       "Delete user with their jobs and applications",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		id, err := parseID("user", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteUser(ctx, id); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-user-jobs",
		Method:      http.MethodGet,
		Path:        "/users/{id}/jobs",
		Summary:     "List jobs created by a user",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *idPath) (*jobsBody, error) {
		id, err := parseID("user", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListJobsForUser(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobsBody{Body: mapJobs(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-user-job-applications",
		Method:      http.MethodGet,
		Path:        "/users/{id}/job-applications",
		Summary:     "List job applications filed by a user",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *idPath) (*applicationsBody, error) {
		id, err := parseID("user", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListApplicationsForUser(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &applicationsBody{Body: mapApplications(items)}, nil
	})
}

func registerJobs(api huma.API, e engine.Engine, basePath string) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*jobsBody, error) {
		items, err := e.ListJobs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobsBody{Body: mapJobs(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Create job",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body JobRequest `json:"body"`
	}) (*createdJob, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, err := input.Body.payload()
		if err != nil {
			return nil, handleError(err)
		}
		j, err := e.CreateJob(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &createdJob{
			Location: path.Join(basePath, "jobs", j.ID.String()),
			Body:     jobResponse(j),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*jobBody, error) {
		id, err := parseID("job", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		j, err := e.GetJob(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobBody{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "modify-job",
		Method:      http.MethodPatch,
		Path:        "/jobs/{id}",
		Summary:     "Modify job",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string     `path:"id" format:"uuid"`
		Body JobRequest `json:"body"`
	}) (*jobBody, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		id, err := parseID("job", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := input.Body.payload()
		if err != nil {
			return nil, handleError(err)
		}
		j, err := e.ModifyJob(ctx, id, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobBody{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-job",
		Method:        http.MethodDelete,
		Path:          "/jobs/{id}",
		Summary:       "Delete job with its applications",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		id, err := parseID("job", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteJob(ctx, id); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerApplications(api huma.API, e engine.Engine, basePath string) {
	huma.Register(api, huma.Operation{
		OperationID: "list-job-applications",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}/job-applications",
		Summary:     "List applications to a job",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*applicationsBody, error) {
		id, err := parseID("job", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListApplicationsForJob(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &applicationsBody{Body: mapApplications(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-job-application",
		Method:        http.MethodPost,
		Path:          "/jobs/{id}/job-applications",
		Summary:       "Apply to a job",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id" format:"uuid"`
		Body JobApplicationRequest `json:"body" required:"false"`
	}) (*createdApplication, error) {
		jobID, err := parseID("job", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := input.Body.payload(true)
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.CreateApplication(ctx, jobID, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &createdApplication{
			Location: path.Join(basePath, "job-applications", a.ID.String()),
			Body:     applicationResponse(a),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-application",
		Method:      http.MethodGet,
		Path:        "/job-applications/{id}",
		Summary:     "Get job application",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*applicationBody, error) {
		id, err := parseID("jobApplication", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.GetApplication(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &applicationBody{Body: applicationResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "modify-job-application",
		Method:      http.MethodPatch,
		Path:        "/job-applications/{id}",
		Summary:     "Modify job application",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id" format:"uuid"`
		Body JobApplicationRequest `json:"body"`
	}) (*applicationBody, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		id, err := parseID("jobApplication", input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := input.Body.payload(false)
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.ModifyApplication(ctx, id, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &applicationBody{Body: applicationResponse(a)}, nil
	})
}
