package router

import (
	"regexp"
	"strings"
)

// The command grammar is an ordered list of (matcher, extractor) rules;
// the first rule that matches wins. Matching is case-insensitive but the
// extractors run against the raw input so job names, keywords, and filter
// values keep the user's casing.
var (
	helpRe = regexp.MustCompile(`(?i)^\s*/(?:help)?\s*$`)

	triggerJobRe = regexp.MustCompile(`(?i)^\s*(?:/jenkins\s+)?(?:trigger|run|start)\s+(?:jenkins\s+)?job\b\s*(.*?)(?:\s+with\s+params\s+(.+))?\s*$`)
	jobStatusRe  = regexp.MustCompile(`(?i)^\s*(?:/jenkins\s+)?(?:check|get\s+info\s+for|status\s+of)\s+(?:jenkins\s+)?job\b\s*(.*?)\s*$`)
	listJobsRe   = regexp.MustCompile(`(?i)^\s*(?:/jenkins\s+)?(?:list|show\s+me|get)\s+(?:all\s+)?(?:jenkins\s+)?jobs(?:\s+(?:related\s+to|containing)\s+(.+?))?\s*$`)
	listViewsRe  = regexp.MustCompile(`(?i)^\s*(?:/jenkins\s+)?(?:list|show\s+me|get)\s+(?:all\s+)?(?:jenkins\s+)?views\s*$`)

	listLaunchesRe = regexp.MustCompile(`(?i)^\s*(?:/rp\s+)?list\s+launches(?:\s+(.+?))?\s*$`)

	// Report requests name a component ("test report for payments",
	// "analysis for component=payments in release 1.2") and must also
	// mention report/reportportal somewhere in the input.
	reportExtractRe = regexp.MustCompile(`(?i)(?:test\s+report\s+(?:for|of)|analysis\s+for|data\s+for)\s+(?:component\s*[=:]\s*)?([a-zA-Z0-9_.-]+)(?:\s+in\s+release\s*[=:]?\s*([a-zA-Z0-9_.-]+))?`)
	reportKeywordRe = regexp.MustCompile(`(?i)\breport(?:portal)?\b`)

	jiraWhoamiRe = regexp.MustCompile(`(?i)^\s*/jira\s+whoami\s*$`)
	jiraQueryRe  = regexp.MustCompile(`(?i)^\s*/jira\s+query\b\s*(.*?)\s*$`)

	jenkinsCmdRe = regexp.MustCompile(`(?i)^\s*/jenkins\b`)
	rpCmdRe      = regexp.MustCompile(`(?i)^\s*/rp\b`)
	jiraCmdRe    = regexp.MustCompile(`(?i)^\s*/jira\b`)
)

// Classify maps free-text input to an Intent. Evaluation order is fixed:
// help, trigger, status, list jobs, list views, list launches, report,
// jira commands, explicit-command usage hints, then the chat fallback.
// Anything that is neither a recognized command nor an explicit /jenkins,
// /rp, or /jira invocation goes to the model.
func Classify(input string) Intent {
	if helpRe.MatchString(input) {
		return Intent{Kind: KindHelp}
	}

	if m := triggerJobRe.FindStringSubmatch(input); m != nil {
		name := strings.TrimSpace(m[1])
		if name == "" {
			return Intent{Kind: KindCIUsage}
		}
		intent := Intent{Kind: KindTriggerJob, JobName: name}
		if m[2] != "" {
			intent.Params = ParseParams(m[2])
		}
		return intent
	}

	if m := jobStatusRe.FindStringSubmatch(input); m != nil {
		name := strings.TrimSpace(m[1])
		if name == "" {
			return Intent{Kind: KindCIUsage}
		}
		return Intent{Kind: KindJobStatus, JobName: name}
	}

	if m := listJobsRe.FindStringSubmatch(input); m != nil {
		return Intent{Kind: KindListJobs, Keyword: strings.TrimSpace(m[1])}
	}

	if listViewsRe.MatchString(input) {
		return Intent{Kind: KindListViews}
	}

	if m := listLaunchesRe.FindStringSubmatch(input); m != nil {
		intent := Intent{Kind: KindListLaunches}
		if raw := strings.TrimSpace(m[1]); raw != "" {
			filters, err := ParseFilters(raw)
			if err != nil {
				intent.FilterErr = err
			} else {
				intent.Filters = filters
			}
		}
		return intent
	}

	if m := reportExtractRe.FindStringSubmatch(input); m != nil && reportKeywordRe.MatchString(input) {
		return Intent{Kind: KindGenerateReport, Component: m[1], Release: m[2]}
	}

	if jiraWhoamiRe.MatchString(input) {
		return Intent{Kind: KindJiraWhoami}
	}
	if m := jiraQueryRe.FindStringSubmatch(input); m != nil {
		query := strings.TrimSpace(m[1])
		if query == "" {
			return Intent{Kind: KindJiraUsage}
		}
		return Intent{Kind: KindJiraQuery, Query: query}
	}

	if jenkinsCmdRe.MatchString(input) {
		return Intent{Kind: KindCIUsage}
	}
	if rpCmdRe.MatchString(input) {
		return Intent{Kind: KindDashboardUsage}
	}
	if jiraCmdRe.MatchString(input) {
		return Intent{Kind: KindJiraUsage}
	}

	return Intent{Kind: KindChat}
}
