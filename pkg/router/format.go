package router

import (
	"fmt"
	"sort"
	"strings"

	"echobot/pkg/jenkins"
	"echobot/pkg/jira"
	"echobot/pkg/reportportal"
)

const helpText = `### Echo Chatbot

**Jenkins**
- ` + "`list jobs`" + ` or ` + "`list jobs related to <keyword>`" + `
- ` + "`list views`" + `
- ` + "`check job <name>`" + `
- ` + "`trigger job <name> with params key=value,key=value`" + `

**ReportPortal**
- ` + "`list launches`" + ` or ` + "`list launches component=payments,release=1.2.3`" + `
- ` + "`test report for <component> in release <version>`" + `

**Jira**
- ` + "`/jira query <what you are looking for>`" + `
- ` + "`/jira whoami`" + `

Anything else is answered by the chat model. Prefix with ` + "`/jenkins`" + `, ` + "`/rp`" + `, or ` + "`/jira`" + ` to force a backend.`

const ciUsageText = `I didn't understand that Jenkins command. Try:
- ` + "`list jobs [related to <keyword>]`" + `
- ` + "`list views`" + `
- ` + "`check job <name>`" + `
- ` + "`trigger job <name> [with params key=value,...]`"

const dashboardUsageText = `I didn't understand that ReportPortal command. Try:
- ` + "`list launches [key=value,key=value]`" + `
- ` + "`test report for <component> [in release <version>]`"

const jiraUsageText = `I didn't understand that Jira command. Try:
- ` + "`/jira query <what you are looking for>`" + ` (e.g. ` + "`/jira query open payment bugs assigned to me`" + `)
- ` + "`/jira whoami`"

func formatJobs(jobs []jenkins.Job, keyword string) string {
	if len(jobs) == 0 {
		if keyword != "" {
			return fmt.Sprintf("No jobs found matching **%s**.", keyword)
		}
		return "No jobs found."
	}

	var b strings.Builder
	if keyword != "" {
		fmt.Fprintf(&b, "### Jenkins Jobs matching %q\n\n", keyword)
	} else {
		b.WriteString("### Jenkins Jobs\n\n")
	}
	b.WriteString("| Job | Status | URL |\n|---|---|---|\n")
	for _, job := range jobs {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", job.Name, job.Status(), job.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatViews(views []jenkins.View, jobCounts map[string]int) string {
	if len(views) == 0 {
		return "No views found."
	}

	var b strings.Builder
	b.WriteString("### Jenkins Views\n\n| View | Jobs | URL |\n|---|---|---|\n")
	for _, view := range views {
		count := "?"
		if n, ok := jobCounts[view.Name]; ok && n >= 0 {
			count = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", view.Name, count, view.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatJobStatus(job *jenkins.Job, params map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Job: %s\n\n", job.Name)
	fmt.Fprintf(&b, "- **Status**: %s\n", job.Status())
	fmt.Fprintf(&b, "- **Buildable**: %t\n", job.Buildable)
	if job.Description != "" {
		fmt.Fprintf(&b, "- **Description**: %s\n", job.Description)
	}
	if job.LastBuild != nil {
		fmt.Fprintf(&b, "- **Last build**: #%d (%s)\n", job.LastBuild.Number, job.LastBuild.URL)
	}
	fmt.Fprintf(&b, "- **URL**: %s\n", job.URL)

	if len(params) > 0 {
		b.WriteString("\n**Last build parameters**\n\n| Name | Value |\n|---|---|\n")
		for _, name := range sortedKeys(params) {
			fmt.Fprintf(&b, "| %s | %s |\n", name, params[name])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatLaunches(launches []reportportal.Launch, launchURL func(int64) string) string {
	if len(launches) == 0 {
		return "No launches found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Launches (%d)\n\n", len(launches))
	b.WriteString(launchTable(launches, launchURL))
	return strings.TrimRight(b.String(), "\n")
}

func launchTable(launches []reportportal.Launch, launchURL func(int64) string) string {
	var b strings.Builder
	b.WriteString("| Launch | Status | Passed | Failed | Skipped | Pass Rate | Link |\n|---|---|---|---|---|---|---|\n")
	for _, l := range launches {
		exec := l.Statistics.Executions
		fmt.Fprintf(&b, "| %s #%d | %s | %d | %d | %d | %.1f%% | %s |\n",
			l.Name, l.Number, l.Status, exec.Passed, exec.Failed, exec.Skipped, l.PassRate(), launchURL(l.ID))
	}
	return b.String()
}

func formatReport(intent Intent, analytics *reportportal.Analytics, launchURL func(int64) string) string {
	metrics := analytics.ExecutionMetrics()

	var b strings.Builder
	fmt.Fprintf(&b, "## Test Report: %s", intent.Component)
	if intent.Release != "" {
		fmt.Fprintf(&b, " (release %s)", intent.Release)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "**%d** launches, **%d** tests: %d passed, %d failed, %d skipped — overall pass rate **%.1f%%**.\n\n",
		metrics.TotalLaunches, metrics.TotalTests, metrics.TotalPassed,
		metrics.TotalFailed, metrics.TotalSkipped, metrics.OverallPassRate)

	b.WriteString("### Launches\n\n")
	b.WriteString(launchTable(analytics.Launches, launchURL))

	if failing := analytics.TopFailingTests(10); len(failing) > 0 {
		b.WriteString("\n### Top Failing Tests\n\n| Test | Failures |\n|---|---|\n")
		for _, tc := range failing {
			fmt.Fprintf(&b, "| %s | %d |\n", tc.Name, tc.Count)
		}
	}
	if skipped := analytics.TopSkippedTests(10); len(skipped) > 0 {
		b.WriteString("\n### Top Skipped Tests\n\n| Test | Skips |\n|---|---|\n")
		for _, tc := range skipped {
			fmt.Fprintf(&b, "| %s | %d |\n", tc.Name, tc.Count)
		}
	}
	if flaky := analytics.FlakyTests(2); len(flaky) > 0 {
		b.WriteString("\n### Flaky Tests\n\n| Test | Runs | Passed | Failed | Flakiness |\n|---|---|---|---|---|\n")
		for _, ft := range flaky {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %.0f%% |\n", ft.Name, ft.Runs, ft.Passed, ft.Failed, ft.Score)
		}
	}
	if slowest := analytics.SlowestTests(10); len(slowest) > 0 {
		b.WriteString("\n### Slowest Tests\n\n| Test | Avg Duration |\n|---|---|\n")
		for _, st := range slowest {
			fmt.Fprintf(&b, "| %s | %.1fs |\n", st.Name, st.AvgSeconds)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// launchTableArtifact mirrors the report's launch table as structured data
// so the front end can render it natively.
func launchTableArtifact(launches []reportportal.Launch, launchURL func(int64) string) Artifact {
	artifact := Artifact{
		Type:    "table",
		Title:   "Launches",
		Columns: []string{"Launch", "Status", "Passed", "Failed", "Skipped", "Pass Rate", "Link"},
	}
	for _, l := range launches {
		exec := l.Statistics.Executions
		artifact.Rows = append(artifact.Rows, []string{
			fmt.Sprintf("%s #%d", l.Name, l.Number),
			l.Status,
			fmt.Sprintf("%d", exec.Passed),
			fmt.Sprintf("%d", exec.Failed),
			fmt.Sprintf("%d", exec.Skipped),
			fmt.Sprintf("%.1f%%", l.PassRate()),
			launchURL(l.ID),
		})
	}
	return artifact
}

// reportArtifacts builds the chart payloads accompanying a report: the
// pass-rate trend as a line chart and platform coverage as a pie chart.
func reportArtifacts(analytics *reportportal.Analytics) []Artifact {
	var artifacts []Artifact
	if trend := analytics.PassRateTrend(); len(trend) > 0 {
		artifacts = append(artifacts, Artifact{
			Type:   "line",
			Title:  "Pass Rate Trend",
			Points: trend,
		})
	}
	if coverage := analytics.PlatformCoverage(); len(coverage) > 0 {
		artifacts = append(artifacts, Artifact{
			Type:   "pie",
			Title:  "Platform Coverage",
			Slices: coverage,
		})
	}
	return artifacts
}

func formatJiraUser(user *jira.User) string {
	var b strings.Builder
	b.WriteString("### Current Jira User\n\n")
	fmt.Fprintf(&b, "- **Name**: %s\n", user.DisplayName)
	fmt.Fprintf(&b, "- **Username**: %s\n", user.Name)
	if user.EmailAddress != "" {
		fmt.Fprintf(&b, "- **Email**: %s\n", user.EmailAddress)
	}
	if user.TimeZone != "" {
		fmt.Fprintf(&b, "- **Time zone**: %s\n", user.TimeZone)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatIssues(issues []jira.Issue) string {
	if len(issues) == 0 {
		return "No Jira issues found for that query."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Jira Issues (%d)\n\n", len(issues))
	b.WriteString("| Key | Summary | Status | Priority | Assignee |\n|---|---|---|---|---|\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "| [%s](%s) | %s | %s | %s | %s |\n",
			issue.Key, issue.URL, issue.Summary, issue.Status, issue.Priority, issue.Assignee)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTopCountsInline(counts []reportportal.TestCount) string {
	if len(counts) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(counts))
	for _, tc := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", tc.Name, tc.Count))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
