package router

// Kind is the classified purpose of a user's input. It determines which
// backend, if any, is invoked.
type Kind string

const (
	KindHelp           Kind = "help"
	KindTriggerJob     Kind = "trigger_job"
	KindJobStatus      Kind = "job_status"
	KindListJobs       Kind = "list_jobs"
	KindListViews      Kind = "list_views"
	KindListLaunches   Kind = "list_launches"
	KindGenerateReport Kind = "generate_report"
	KindJiraWhoami     Kind = "jira_whoami"
	KindJiraQuery      Kind = "jira_query"
	KindChat           Kind = "chat"

	// Explicit /jenkins, /rp, or /jira commands that matched no rule, or
	// matched one without its required parameters. These never reach a
	// backend.
	KindCIUsage        Kind = "ci_usage"
	KindDashboardUsage Kind = "dashboard_usage"
	KindJiraUsage      Kind = "jira_usage"
)

// Intent is one classified input with its extracted parameters. Only the
// fields relevant to the Kind are populated.
type Intent struct {
	Kind Kind

	JobName string            // JobStatus, TriggerJob
	Params  map[string]string // TriggerJob
	Keyword string            // ListJobs substring filter

	Filters map[string]string // ListLaunches

	Component string // GenerateReport
	Release   string // GenerateReport

	Query string // JiraQuery, natural language

	// FilterErr holds a filter-grammar parse failure for ListLaunches; the
	// dispatcher turns it into a usage hint without calling the backend.
	FilterErr error
}
