package jira

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultJQL is used when the model produces no usable query text.
const DefaultJQL = "ORDER BY created DESC"

var (
	fenceRe     = regexp.MustCompile("(?s)```(?:jql)?\\n(.*?)```")
	lastMonthRe = regexp.MustCompile(`(?i)last month`)
	thisMonthRe = regexp.MustCompile(`(?i)this month`)
	componentRe = regexp.MustCompile(`([a-zA-Z\s]+) bugs`)
)

// ExtractJQL pulls a JQL query out of a model response: the first fenced
// code block when present, otherwise the whole response trimmed. An empty
// result falls back to DefaultJQL.
func ExtractJQL(response string) string {
	if m := fenceRe.FindStringSubmatch(response); m != nil {
		response = m[1]
	}
	jql := strings.TrimSpace(response)
	if jql == "" {
		return DefaultJQL
	}
	return jql
}

// DateClause maps a relative month reference in the natural-language query
// to a JQL date range, returning the clause and the query with the
// reference removed. Date ranges are handled here rather than by the model
// because relative dates are what it gets wrong most often.
func DateClause(query string) (clause, cleaned string) {
	switch {
	case lastMonthRe.MatchString(query):
		return "updated >= startOfMonth(-1) AND updated <= endOfMonth(-1)",
			strings.TrimSpace(lastMonthRe.ReplaceAllString(query, ""))
	case thisMonthRe.MatchString(query):
		return "updated >= startOfMonth() AND updated <= endOfMonth()",
			strings.TrimSpace(thisMonthRe.ReplaceAllString(query, ""))
	}
	return "", query
}

// Components extracts a component reference from phrasing like
// "payment service bugs".
func Components(query string) []string {
	m := componentRe.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	component := strings.TrimSpace(m[1])
	if component == "" {
		return nil
	}
	return []string{component}
}

// Hints are query phrasings that translate to fixed JQL refinements.
type Hints struct {
	OnlyOpen     bool // "to be fixed"
	AssignedToMe bool // "assigned to me"
}

// QueryHints scans the natural-language query for known refinements.
func QueryHints(query string) Hints {
	lower := strings.ToLower(query)
	return Hints{
		OnlyOpen:     strings.Contains(lower, "to be fixed"),
		AssignedToMe: strings.Contains(lower, "assigned to me"),
	}
}

// Clauses are the deterministic refinements applied around a model-written
// base query.
type Clauses struct {
	Date       string
	Components []string
	OnlyOpen   bool
	Assignee   string
}

var orderByRe = regexp.MustCompile(`(?i)\bORDER BY\b.*$`)

// ComposeJQL builds the final query: the configured project always leads
// (any project clause the model wrote is discarded), then the base query,
// then the refinement clauses, with any ORDER BY kept trailing.
func ComposeJQL(projectKey, base string, c Clauses) string {
	orderBy := strings.TrimSpace(orderByRe.FindString(base))
	base = orderByRe.ReplaceAllString(base, "")

	parts := make([]string, 0, 4)
	for _, part := range strings.Split(base, " AND ") {
		part = strings.TrimSpace(part)
		if part == "" || strings.HasPrefix(strings.ToLower(part), "project =") {
			continue
		}
		parts = append(parts, part)
	}
	base = strings.Join(parts, " AND ")

	jql := fmt.Sprintf("project = %q", projectKey)
	if base != "" {
		jql += " AND " + base
	}
	if len(c.Components) > 0 {
		quoted := make([]string, 0, len(c.Components))
		for _, comp := range c.Components {
			quoted = append(quoted, fmt.Sprintf("component = %q", comp))
		}
		jql += " AND (" + strings.Join(quoted, " OR ") + ")"
	}
	if c.Date != "" {
		jql += " AND " + c.Date
	}
	if c.OnlyOpen && !strings.Contains(strings.ToLower(jql), "status") {
		jql += ` AND status != "Closed"`
	}
	if c.Assignee != "" && !strings.Contains(strings.ToLower(jql), "assignee") {
		jql += " AND assignee = " + c.Assignee
	}
	if orderBy != "" {
		jql += " " + orderBy
	}
	return jql
}
