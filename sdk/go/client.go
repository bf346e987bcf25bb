package petsittersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal pet sitting HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
}

// NewUser is a registration request.
type NewUser struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
}

type Dog struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Breed string `json:"breed"`
	Size  string `json:"size"`
}

// Job times use the yyyy-MM-dd HH:mm layout in UTC.
type Job struct {
	ID            string `json:"id,omitempty"`
	CreatorUserID string `json:"creator_user_id,omitempty"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	Activity      string `json:"activity,omitempty"`
	Dog           *Dog   `json:"dog,omitempty"`
}

type JobApplication struct {
	ID     string `json:"id,omitempty"`
	JobID  string `json:"job_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// Session is the result of a login. AuthHeader is ready to send as-is.
type Session struct {
	UserID     string `json:"user_id"`
	AuthHeader string `json:"auth_header"`
	ExpiresAt  string `json:"expires_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates a Pet Owner or Pet Sitter account.
func (c *Client) Register(ctx context.Context, u NewUser) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "users", u, &resp)
	return resp, err
}

// Login opens a session and keeps its token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "sessions", body, &resp); err != nil {
		return resp, err
	}
	c.BearerToken = strings.TrimPrefix(resp.AuthHeader, "Bearer ")
	return resp, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "users/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ModifyUser sends a merge patch; only the keys present in patch change.
func (c *Client) ModifyUser(ctx context.Context, id string, patch map[string]any) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPatch, "users/"+url.PathEscape(id), patch, &resp)
	return resp, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "users/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListUserJobs(ctx context.Context, userID string) ([]Job, error) {
	var resp []Job
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/%s/jobs", url.PathEscape(userID)), nil, &resp)
	return resp, err
}

func (c *Client) ListUserApplications(ctx context.Context, userID string) ([]JobApplication, error) {
	var resp []JobApplication
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/%s/job-applications", url.PathEscape(userID)), nil, &resp)
	return resp, err
}

func (c *Client) CreateJob(ctx context.Context, j Job) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPost, "jobs", j, &resp)
	return resp, err
}

func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var resp []Job
	err := c.do(ctx, http.MethodGet, "jobs", nil, &resp)
	return resp, err
}

func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodGet, "jobs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ModifyJob sends a merge patch; only the keys present in patch change.
func (c *Client) ModifyJob(ctx context.Context, id string, patch map[string]any) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPatch, "jobs/"+url.PathEscape(id), patch, &resp)
	return resp, err
}

func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "jobs/"+url.PathEscape(id), nil, nil)
}

// Apply files an application to a job. An empty application applies as the
// logged in user with status PENDING.
func (c *Client) Apply(ctx context.Context, jobID string, a JobApplication) (JobApplication, error) {
	var resp JobApplication
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("jobs/%s/job-applications", url.PathEscape(jobID)), a, &resp)
	return resp, err
}

func (c *Client) ListJobApplications(ctx context.Context, jobID string) ([]JobApplication, error) {
	var resp []JobApplication
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("jobs/%s/job-applications", url.PathEscape(jobID)), nil, &resp)
	return resp, err
}

func (c *Client) GetApplication(ctx context.Context, id string) (JobApplication, error) {
	var resp JobApplication
	err := c.do(ctx, http.MethodGet, "job-applications/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetApplicationStatus moves an application to status.
func (c *Client) SetApplicationStatus(ctx context.Context, id, status string) (JobApplication, error) {
	var resp JobApplication
	err := c.do(ctx, http.MethodPatch, "job-applications/"+url.PathEscape(id), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	if method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/merge-patch+json")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
