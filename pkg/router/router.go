package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"echobot/pkg/jenkins"
	"echobot/pkg/jira"
	"echobot/pkg/llm"
	"echobot/pkg/reportportal"
)

// CIClient is the surface of the CI backend the router dispatches to.
// *jenkins.Client satisfies it.
type CIClient interface {
	ListJobs(ctx context.Context, keyword string) ([]jenkins.Job, error)
	ListViews(ctx context.Context) ([]jenkins.View, error)
	ViewJobCount(ctx context.Context, name string) (int, error)
	JobStatus(ctx context.Context, name string) (*jenkins.Job, error)
	BuildParameters(ctx context.Context, name string, buildNumber int) (map[string]string, error)
	TriggerJob(ctx context.Context, name string, params map[string]string) error
}

// DashboardClient is the surface of the test-dashboard backend.
// *reportportal.Client satisfies it.
type DashboardClient interface {
	ListLaunches(ctx context.Context, filters map[string]string) ([]reportportal.Launch, error)
	FetchAnalytics(ctx context.Context, filters map[string]string) (*reportportal.Analytics, error)
	LaunchURL(id int64) string
}

// TrackerClient is the surface of the issue-tracker backend.
// *jira.Client satisfies it.
type TrackerClient interface {
	Myself(ctx context.Context) (*jira.User, error)
	SearchIssues(ctx context.Context, jql string, maxResults int) ([]jira.Issue, error)
	ProjectKey() string
}

// Artifact is a structured rendering hint returned alongside reply text,
// for front-ends that can draw charts instead of markdown.
type Artifact struct {
	Type    string                    `json:"type"` // table, line, or pie
	Title   string                    `json:"title"`
	Columns []string                  `json:"columns,omitempty"`
	Rows    [][]string                `json:"rows,omitempty"`
	Points  []reportportal.TrendPoint `json:"points,omitempty"`
	Slices  map[string]int            `json:"slices,omitempty"`
}

// Reply is the router's answer to one input: the classified intent, a
// markdown text body, and optional chart artifacts. Errors never escape
// Handle; they are rendered into Text.
type Reply struct {
	Intent    Kind       `json:"intent"`
	Text      string     `json:"text"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Router classifies input and dispatches to at most one backend call.
// A nil client means that backend is unconfigured; its commands answer
// with a configuration error instead of calling anywhere.
type Router struct {
	ci        CIClient
	dashboard DashboardClient
	tracker   TrackerClient
	model     llm.Completer
	logger    *zap.Logger
}

// New creates a Router. Any of the clients may be nil.
func New(ci CIClient, dashboard DashboardClient, tracker TrackerClient, model llm.Completer, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{ci: ci, dashboard: dashboard, tracker: tracker, model: model, logger: logger}
}

// Handle classifies input and produces a reply. For the chat fallback the
// transcript (ending with the current user turn) is forwarded to the model;
// every other intent uses only the input itself.
func (r *Router) Handle(ctx context.Context, input string, transcript []llm.Message) Reply {
	intent := Classify(input)
	r.logger.Debug("classified input", zap.String("intent", string(intent.Kind)))

	switch intent.Kind {
	case KindHelp:
		return Reply{Intent: intent.Kind, Text: helpText}

	case KindCIUsage:
		return Reply{Intent: intent.Kind, Text: ciUsageText}
	case KindDashboardUsage:
		return Reply{Intent: intent.Kind, Text: dashboardUsageText}
	case KindJiraUsage:
		return Reply{Intent: intent.Kind, Text: jiraUsageText}

	case KindTriggerJob, KindJobStatus, KindListJobs, KindListViews:
		if r.ci == nil {
			return Reply{Intent: intent.Kind, Text: configMissingText("Jenkins")}
		}
		return r.handleCI(ctx, intent)

	case KindListLaunches, KindGenerateReport:
		if r.dashboard == nil {
			return Reply{Intent: intent.Kind, Text: configMissingText("ReportPortal")}
		}
		return r.handleDashboard(ctx, intent)

	case KindJiraWhoami, KindJiraQuery:
		if r.tracker == nil {
			return Reply{Intent: intent.Kind, Text: configMissingText("Jira")}
		}
		return r.handleJira(ctx, intent)

	default:
		return r.handleChat(ctx, intent, transcript)
	}
}

func (r *Router) handleCI(ctx context.Context, intent Intent) Reply {
	switch intent.Kind {
	case KindTriggerJob:
		if err := r.ci.TriggerJob(ctx, intent.JobName, intent.Params); err != nil {
			return r.errorReply(intent, "Jenkins", err)
		}
		text := fmt.Sprintf("Triggered job **%s**.", intent.JobName)
		if len(intent.Params) > 0 {
			text = fmt.Sprintf("Triggered job **%s** with %d parameter(s).", intent.JobName, len(intent.Params))
		}
		return Reply{Intent: intent.Kind, Text: text}

	case KindJobStatus:
		job, err := r.ci.JobStatus(ctx, intent.JobName)
		if err != nil {
			return r.errorReply(intent, "Jenkins", err)
		}
		var params map[string]string
		if job.LastBuild != nil {
			params, err = r.ci.BuildParameters(ctx, intent.JobName, job.LastBuild.Number)
			if err != nil {
				// Parameters are decorative; status alone is still useful.
				r.logger.Warn("fetching build parameters failed", zap.String("job", intent.JobName), zap.Error(err))
				params = nil
			}
		}
		return Reply{Intent: intent.Kind, Text: formatJobStatus(job, params)}

	case KindListJobs:
		jobs, err := r.ci.ListJobs(ctx, intent.Keyword)
		if err != nil {
			return r.errorReply(intent, "Jenkins", err)
		}
		return Reply{Intent: intent.Kind, Text: formatJobs(jobs, intent.Keyword)}

	case KindListViews:
		views, err := r.ci.ListViews(ctx)
		if err != nil {
			return r.errorReply(intent, "Jenkins", err)
		}
		counts := make(map[string]int, len(views))
		for _, v := range views {
			n, err := r.ci.ViewJobCount(ctx, v.Name)
			if err != nil {
				r.logger.Warn("counting view jobs failed", zap.String("view", v.Name), zap.Error(err))
				n = -1
			}
			counts[v.Name] = n
		}
		return Reply{Intent: intent.Kind, Text: formatViews(views, counts)}
	}

	return Reply{Intent: intent.Kind, Text: ciUsageText}
}

func (r *Router) handleDashboard(ctx context.Context, intent Intent) Reply {
	switch intent.Kind {
	case KindListLaunches:
		if intent.FilterErr != nil {
			text := fmt.Sprintf("%s\n\n%s", intent.FilterErr.Error(), dashboardUsageText)
			return Reply{Intent: intent.Kind, Text: text}
		}
		launches, err := r.dashboard.ListLaunches(ctx, intent.Filters)
		if err != nil {
			return r.errorReply(intent, "ReportPortal", err)
		}
		return Reply{Intent: intent.Kind, Text: formatLaunches(launches, r.dashboard.LaunchURL)}

	case KindGenerateReport:
		filters := map[string]string{"component": intent.Component}
		if intent.Release != "" {
			filters["release"] = intent.Release
		}
		analytics, err := r.dashboard.FetchAnalytics(ctx, filters)
		if err != nil {
			return r.errorReply(intent, "ReportPortal", err)
		}
		if len(analytics.Launches) == 0 {
			return Reply{Intent: intent.Kind, Text: fmt.Sprintf("No launches found for component **%s**.", intent.Component)}
		}

		text := formatReport(intent, analytics, r.dashboard.LaunchURL)
		if r.model != nil {
			if analysis, err := r.analyzeReport(ctx, intent, analytics); err != nil {
				r.logger.Warn("model analysis failed", zap.Error(err))
			} else {
				text += "\n\n### Analysis\n\n" + analysis
			}
		}
		artifacts := append(
			[]Artifact{launchTableArtifact(analytics.Launches, r.dashboard.LaunchURL)},
			reportArtifacts(analytics)...)
		return Reply{Intent: intent.Kind, Text: text, Artifacts: artifacts}
	}

	return Reply{Intent: intent.Kind, Text: dashboardUsageText}
}

const maxIssueResults = 50

func (r *Router) handleJira(ctx context.Context, intent Intent) Reply {
	switch intent.Kind {
	case KindJiraWhoami:
		user, err := r.tracker.Myself(ctx)
		if err != nil {
			return r.errorReply(intent, "Jira", err)
		}
		return Reply{Intent: intent.Kind, Text: formatJiraUser(user)}

	case KindJiraQuery:
		// The model writes the base JQL; dates, components, and the other
		// refinements are applied deterministically around it.
		if r.model == nil {
			return Reply{Intent: intent.Kind, Text: "The chat model is not configured; natural-language Jira queries need it to write JQL."}
		}

		dateClause, cleaned := jira.DateClause(intent.Query)
		response, err := r.model.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: jqlPrompt(cleaned)}})
		if err != nil {
			return r.errorReply(intent, "chat model", err)
		}

		clauses := jira.Clauses{
			Date:       dateClause,
			Components: jira.Components(intent.Query),
		}
		hints := jira.QueryHints(intent.Query)
		clauses.OnlyOpen = hints.OnlyOpen
		if hints.AssignedToMe {
			me, err := r.tracker.Myself(ctx)
			if err != nil {
				return r.errorReply(intent, "Jira", err)
			}
			clauses.Assignee = me.Name
		}

		jql := jira.ComposeJQL(r.tracker.ProjectKey(), jira.ExtractJQL(response), clauses)
		r.logger.Debug("composed jql", zap.String("jql", jql))

		issues, err := r.tracker.SearchIssues(ctx, jql, maxIssueResults)
		if err != nil {
			return r.errorReply(intent, "Jira", err)
		}
		return Reply{Intent: intent.Kind, Text: formatIssues(issues)}
	}

	return Reply{Intent: intent.Kind, Text: jiraUsageText}
}

func jqlPrompt(query string) string {
	return "Translate this request into a single JQL query. " +
		"Reply with only the JQL, optionally in a ```jql code block, no explanation: " + query
}

func (r *Router) handleChat(ctx context.Context, intent Intent, transcript []llm.Message) Reply {
	if r.model == nil {
		return Reply{Intent: intent.Kind, Text: configMissingText("chat model")}
	}
	answer, err := r.model.Complete(ctx, transcript)
	if err != nil {
		return r.errorReply(intent, "chat model", err)
	}
	return Reply{Intent: intent.Kind, Text: answer}
}

// analyzeReport asks the model for a short interpretation of the computed
// report metrics. The prompt carries numbers only, never raw test output.
func (r *Router) analyzeReport(ctx context.Context, intent Intent, analytics *reportportal.Analytics) (string, error) {
	metrics := analytics.ExecutionMetrics()
	prompt := fmt.Sprintf(
		"You are a QA analyst. Summarize the test results for component %q in 3-4 sentences: "+
			"%d launches, %d tests total, %d passed, %d failed, %d skipped (pass rate %.1f%%). "+
			"Top failing tests: %s. Call out any risk succinctly.",
		intent.Component, metrics.TotalLaunches, metrics.TotalTests, metrics.TotalPassed,
		metrics.TotalFailed, metrics.TotalSkipped, metrics.OverallPassRate,
		formatTopCountsInline(analytics.TopFailingTests(5)),
	)
	return r.model.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
}

func (r *Router) errorReply(intent Intent, backend string, err error) Reply {
	r.logger.Warn("backend call failed",
		zap.String("intent", string(intent.Kind)),
		zap.String("backend", backend),
		zap.Error(err))

	switch {
	case errors.Is(err, jenkins.ErrNotFound):
		return Reply{Intent: intent.Kind, Text: fmt.Sprintf("Job **%s** was not found on Jenkins.", intent.JobName)}
	case errors.Is(err, llm.ErrUnavailable):
		return Reply{Intent: intent.Kind, Text: "The chat model is currently unavailable. Please try again later."}
	}
	return Reply{Intent: intent.Kind, Text: fmt.Sprintf("%s request failed: %v", backend, err)}
}

func configMissingText(backend string) string {
	return fmt.Sprintf("The %s backend is not configured. Set its endpoint and credentials to enable these commands.", backend)
}
