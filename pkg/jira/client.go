package jira

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is a Jira REST API client authenticated with a personal access
// token, scoped to one project. Every call is a single synchronous request.
type Client struct {
	baseURL    string
	projectKey string
	client     *resty.Client
}

// Options configures a Client.
type Options struct {
	URL                string
	APIToken           string
	ProjectKey         string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// NewClient creates a new Jira client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	client.SetAuthToken(opts.APIToken)

	if opts.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.URL, "/"),
		projectKey: opts.ProjectKey,
		client:     client,
	}
}

// ProjectKey returns the project this client is scoped to.
func (c *Client) ProjectKey() string {
	return c.projectKey
}

// User holds the identity of the authenticated Jira user.
type User struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	TimeZone     string `json:"timeZone"`
}

// Myself retrieves the currently authenticated user.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var user User

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&user).
		Get(c.baseURL + "/rest/api/2/myself")

	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return &user, nil
}

// Issue is one Jira issue, flattened from the API's nested field objects.
type Issue struct {
	Key      string
	Summary  string
	Status   string
	Priority string
	Type     string
	Assignee string
	Reporter string
	Created  string
	Updated  string
	URL      string
}

type namedField struct {
	Name string `json:"name"`
}

type userField struct {
	DisplayName string `json:"displayName"`
}

type issueFields struct {
	Summary   string      `json:"summary"`
	Status    *namedField `json:"status"`
	Priority  *namedField `json:"priority"`
	IssueType *namedField `json:"issuetype"`
	Assignee  *userField  `json:"assignee"`
	Reporter  *userField  `json:"reporter"`
	Created   string      `json:"created"`
	Updated   string      `json:"updated"`
}

// SearchIssues runs a JQL query and returns up to maxResults issues.
// Absent optional fields get display placeholders.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) ([]Issue, error) {
	if maxResults <= 0 {
		maxResults = 50
	}

	var result struct {
		Issues []struct {
			Key    string      `json:"key"`
			Fields issueFields `json:"fields"`
		} `json:"issues"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("jql", jql).
		SetQueryParam("maxResults", strconv.Itoa(maxResults)).
		SetQueryParam("fields", "summary,status,assignee,reporter,created,updated,priority,issuetype").
		SetResult(&result).
		Get(c.baseURL + "/rest/api/2/search")

	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	issues := make([]Issue, 0, len(result.Issues))
	for _, raw := range result.Issues {
		issue := Issue{
			Key:      raw.Key,
			Summary:  raw.Fields.Summary,
			Status:   named(raw.Fields.Status, ""),
			Priority: named(raw.Fields.Priority, "N/A"),
			Type:     named(raw.Fields.IssueType, ""),
			Assignee: display(raw.Fields.Assignee, "Unassigned"),
			Reporter: display(raw.Fields.Reporter, "Unknown"),
			Created:  raw.Fields.Created,
			Updated:  raw.Fields.Updated,
			URL:      c.IssueURL(raw.Key),
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// IssueURL returns the browse page for an issue key.
func (c *Client) IssueURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// Ping checks connectivity and credentials against the Jira server.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Myself(ctx)
	return err
}

func named(f *namedField, fallback string) string {
	if f == nil || f.Name == "" {
		return fallback
	}
	return f.Name
}

func display(f *userField, fallback string) string {
	if f == nil || f.DisplayName == "" {
		return fallback
	}
	return f.DisplayName
}
