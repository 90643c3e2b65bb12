package jenkins

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when the named job does not exist on the server.
var ErrNotFound = errors.New("job not found")

// Client is a Jenkins JSON API client. Every call is a single synchronous
// request; failures surface with the underlying status and body attached.
type Client struct {
	baseURL string
	client  *resty.Client
}

// Options configures a Client.
type Options struct {
	URL                string
	Username           string
	APIToken           string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// NewClient creates a new Jenkins client authenticated via username + API
// token.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	client.SetBasicAuth(opts.Username, opts.APIToken)

	if opts.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		baseURL: strings.TrimSuffix(opts.URL, "/"),
		client:  client,
	}
}

// urlJoin joins the base URL with path, preserving any base path.
func (c *Client) urlJoin(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Job represents a Jenkins job record.
type Job struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Color       string `json:"color"`
	Buildable   bool   `json:"buildable"`
	Description string `json:"description"`
	LastBuild   *Build `json:"lastBuild,omitempty"`
}

// Build identifies a single build of a job.
type Build struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// View represents a Jenkins view.
type View struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// statusNames maps Jenkins ball colors to human-readable build statuses.
var statusNames = map[string]string{
	"blue":          "Success",
	"red":           "Failed",
	"yellow":        "Unstable",
	"aborted":       "Aborted",
	"notbuilt":      "Not Built",
	"disabled":      "Disabled",
	"grey":          "Not Run",
	"blue_anime":    "Building (Success)",
	"red_anime":     "Building (Failed)",
	"yellow_anime":  "Building (Unstable)",
	"aborted_anime": "Building (Aborted)",
	"grey_anime":    "Building (Not Run)",
}

// Status returns the human-readable build status for the job's color.
func (j Job) Status() string {
	if s, ok := statusNames[j.Color]; ok {
		return s
	}
	if j.Color == "" {
		return "Unknown"
	}
	return j.Color
}

// ListJobs retrieves all jobs, optionally filtered by a case-insensitive
// substring match on the job name.
func (c *Client) ListJobs(ctx context.Context, keyword string) ([]Job, error) {
	var result struct {
		Jobs []Job `json:"jobs"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("tree", "jobs[name,url,color]").
		SetResult(&result).
		Get(c.urlJoin("/api/json"))

	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	if keyword == "" {
		return result.Jobs, nil
	}

	kw := strings.ToLower(keyword)
	filtered := make([]Job, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		if strings.Contains(strings.ToLower(job.Name), kw) {
			filtered = append(filtered, job)
		}
	}
	return filtered, nil
}

// ListViews retrieves all views on the server.
func (c *Client) ListViews(ctx context.Context) ([]View, error) {
	var result struct {
		Views []View `json:"views"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("tree", "views[name,url]").
		SetResult(&result).
		Get(c.urlJoin("/api/json"))

	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return result.Views, nil
}

// ViewJobCount retrieves the number of jobs in the named view.
func (c *Client) ViewJobCount(ctx context.Context, viewName string) (int, error) {
	var result struct {
		Jobs []struct {
			Name string `json:"name"`
		} `json:"jobs"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("tree", "jobs[name]").
		SetResult(&result).
		Get(c.urlJoin("/view/" + url.PathEscape(viewName) + "/api/json"))

	if err != nil {
		return 0, fmt.Errorf("failed to get view %q: %w", viewName, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return 0, fmt.Errorf("view %q: %w", viewName, ErrNotFound)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return len(result.Jobs), nil
}

// JobStatus retrieves the full record for the named job.
func (c *Client) JobStatus(ctx context.Context, jobName string) (*Job, error) {
	var job Job

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&job).
		Get(c.urlJoin("/job/" + url.PathEscape(jobName) + "/api/json"))

	if err != nil {
		return nil, fmt.Errorf("failed to get job %q: %w", jobName, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("job %q: %w", jobName, ErrNotFound)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return &job, nil
}

// TriggerJob queues a build for the named job. Parameters, when present, are
// forwarded as-is to buildWithParameters; no validation against the job's
// parameter schema is attempted.
func (c *Client) TriggerJob(ctx context.Context, jobName string, params map[string]string) error {
	path := "/job/" + url.PathEscape(jobName) + "/build"
	if len(params) > 0 {
		path = "/job/" + url.PathEscape(jobName) + "/buildWithParameters"
	}

	req := c.client.R().SetContext(ctx)
	for k, v := range params {
		req.SetQueryParam(k, v)
	}

	resp, err := req.Post(c.urlJoin(path))
	if err != nil {
		return fmt.Errorf("failed to trigger job %q: %w", jobName, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job %q: %w", jobName, ErrNotFound)
	default:
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}
}

// BuildParameters retrieves the parameters used by a specific build. The
// build's actions array is polymorphic, so the ParametersAction entry is
// picked out by its _class.
func (c *Client) BuildParameters(ctx context.Context, jobName string, buildNumber int) (map[string]string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.urlJoin(fmt.Sprintf("/job/%s/%d/api/json", url.PathEscape(jobName), buildNumber)))

	if err != nil {
		return nil, fmt.Errorf("failed to get build %d of job %q: %w", buildNumber, jobName, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("build %d of job %q: %w", buildNumber, jobName, ErrNotFound)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	params := make(map[string]string)
	actions := gjson.GetBytes(resp.Body(), "actions")
	actions.ForEach(func(_, action gjson.Result) bool {
		if !strings.Contains(action.Get("_class").String(), "ParametersAction") {
			return true
		}
		action.Get("parameters").ForEach(func(_, p gjson.Result) bool {
			if name := p.Get("name"); name.Exists() {
				params[name.String()] = p.Get("value").String()
			}
			return true
		})
		return false
	})

	return params, nil
}

// Ping checks connectivity to the Jenkins server.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("tree", "jobs[name]").
		Get(c.urlJoin("/api/json"))

	if err != nil {
		return fmt.Errorf("failed to reach Jenkins: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return nil
}
