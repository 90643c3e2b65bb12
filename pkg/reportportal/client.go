package reportportal

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is a ReportPortal API client scoped to a single project and
// authenticated via the project API UUID. Every call is a single
// synchronous request; results are fetched fresh per query, never cached.
type Client struct {
	endpoint string
	project  string
	client   *resty.Client
}

// Options configures a Client.
type Options struct {
	Endpoint           string
	UUID               string
	Project            string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// NewClient creates a new ReportPortal client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	client.SetAuthToken(opts.UUID)

	if opts.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		project:  opts.Project,
		client:   client,
	}
}

func (c *Client) apiURL(path string) string {
	return c.endpoint + "/api/v1/" + c.project + "/" + strings.TrimPrefix(path, "/")
}

// Attribute is one key/value attribute attached to a launch.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Executions holds the per-launch test counters.
type Executions struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Statistics nests the execution counters the way the launch payload does.
type Statistics struct {
	Executions Executions `json:"executions"`
}

// Launch is one recorded execution of a test suite.
type Launch struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Number     int         `json:"number"`
	Status     string      `json:"status"`
	StartTime  int64       `json:"startTime"` // epoch millis
	EndTime    int64       `json:"endTime"`
	Attributes []Attribute `json:"attributes"`
	Statistics Statistics  `json:"statistics"`
}

// Attribute returns the value of the named launch attribute, or "" when
// absent.
func (l Launch) Attribute(key string) string {
	for _, attr := range l.Attributes {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}

// PassRate returns passed/(passed+failed) as a percentage, 0 when the
// launch ran nothing that passed or failed.
func (l Launch) PassRate() float64 {
	exec := l.Statistics.Executions
	finished := exec.Passed + exec.Failed
	if finished == 0 {
		return 0
	}
	return float64(exec.Passed) / float64(finished) * 100
}

// Started returns the launch start time.
func (l Launch) Started() time.Time {
	return time.UnixMilli(l.StartTime)
}

// LaunchURL returns the UI page for a launch.
func (c *Client) LaunchURL(id int64) string {
	return fmt.Sprintf("%s/ui/#%s/launches/all/%d", c.endpoint, c.project, id)
}

// ListLaunches retrieves launches matching all given attribute filters
// (logical AND across keys), newest first. Filter values are forwarded to
// the backend verbatim. An empty filter map imposes no constraint.
func (c *Client) ListLaunches(ctx context.Context, filters map[string]string) ([]Launch, error) {
	var result struct {
		Content []Launch `json:"content"`
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("page.size", "50").
		SetQueryParam("page.sort", "startTime,desc").
		SetResult(&result)

	if composite := compositeAttribute(filters); composite != "" {
		req.SetQueryParam("filter.has.compositeAttribute", composite)
	}

	resp, err := req.Get(c.apiURL("/launch"))
	if err != nil {
		return nil, fmt.Errorf("failed to list launches: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return result.Content, nil
}

// compositeAttribute renders filters as the key:value,key:value form the
// launch endpoint expects. Keys are sorted so the query is deterministic.
func compositeAttribute(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+filters[k])
	}
	return strings.Join(pairs, ",")
}

// TestItem is one leaf test step inside a launch.
type TestItem struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Duration float64 `json:"duration"` // seconds
}

// TestItems retrieves leaf STEP items for a launch, optionally restricted
// to one status (e.g. "FAILED", "SKIPPED").
func (c *Client) TestItems(ctx context.Context, launchID int64, status string) ([]TestItem, error) {
	var result struct {
		Content []TestItem `json:"content"`
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("filter.eq.launchId", fmt.Sprintf("%d", launchID)).
		SetQueryParam("filter.eq.hasStats", "true").
		SetQueryParam("filter.eq.hasChildren", "false").
		SetQueryParam("filter.in.type", "STEP").
		SetQueryParam("page.size", "300").
		SetResult(&result)

	if status != "" {
		req.SetQueryParam("filter.in.status", status)
	}

	resp, err := req.Get(c.apiURL("/item"))
	if err != nil {
		return nil, fmt.Errorf("failed to list test items for launch %d: %w", launchID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return result.Content, nil
}

// Ping checks connectivity to the ReportPortal project.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("page.size", "1").
		Get(c.apiURL("/launch"))

	if err != nil {
		return fmt.Errorf("failed to reach ReportPortal: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return nil
}
