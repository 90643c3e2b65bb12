package router

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"echobot/pkg/jenkins"
	"echobot/pkg/jira"
	"echobot/pkg/llm"
	"echobot/pkg/reportportal"
)

type fakeCI struct {
	calls []string

	jobs   []jenkins.Job
	views  []jenkins.View
	job    *jenkins.Job
	params map[string]string
	err    error
}

func (f *fakeCI) ListJobs(_ context.Context, keyword string) ([]jenkins.Job, error) {
	f.calls = append(f.calls, "ListJobs:"+keyword)
	return f.jobs, f.err
}

func (f *fakeCI) ListViews(context.Context) ([]jenkins.View, error) {
	f.calls = append(f.calls, "ListViews")
	return f.views, f.err
}

func (f *fakeCI) ViewJobCount(_ context.Context, name string) (int, error) {
	f.calls = append(f.calls, "ViewJobCount:"+name)
	return 2, nil
}

func (f *fakeCI) JobStatus(_ context.Context, name string) (*jenkins.Job, error) {
	f.calls = append(f.calls, "JobStatus:"+name)
	return f.job, f.err
}

func (f *fakeCI) BuildParameters(_ context.Context, name string, buildNumber int) (map[string]string, error) {
	f.calls = append(f.calls, fmt.Sprintf("BuildParameters:%s:%d", name, buildNumber))
	return f.params, nil
}

func (f *fakeCI) TriggerJob(_ context.Context, name string, params map[string]string) error {
	f.calls = append(f.calls, fmt.Sprintf("TriggerJob:%s:%d", name, len(params)))
	return f.err
}

type fakeDashboard struct {
	calls     []string
	launches  []reportportal.Launch
	analytics *reportportal.Analytics
	err       error

	gotFilters map[string]string
}

func (f *fakeDashboard) ListLaunches(_ context.Context, filters map[string]string) ([]reportportal.Launch, error) {
	f.calls = append(f.calls, "ListLaunches")
	f.gotFilters = filters
	return f.launches, f.err
}

func (f *fakeDashboard) FetchAnalytics(_ context.Context, filters map[string]string) (*reportportal.Analytics, error) {
	f.calls = append(f.calls, "FetchAnalytics")
	f.gotFilters = filters
	return f.analytics, f.err
}

func (f *fakeDashboard) LaunchURL(id int64) string {
	return fmt.Sprintf("https://rp.example.com/ui/#proj/launches/all/%d", id)
}

type fakeModel struct {
	prompts [][]llm.Message
	answer  string
	err     error
}

func (f *fakeModel) Complete(_ context.Context, transcript []llm.Message) (string, error) {
	f.prompts = append(f.prompts, transcript)
	return f.answer, f.err
}

func (f *fakeModel) Name() string { return "fake" }

type fakeTracker struct {
	calls  []string
	user   *jira.User
	issues []jira.Issue
	err    error

	gotJQL string
}

func (f *fakeTracker) Myself(context.Context) (*jira.User, error) {
	f.calls = append(f.calls, "Myself")
	return f.user, f.err
}

func (f *fakeTracker) SearchIssues(_ context.Context, jql string, maxResults int) ([]jira.Issue, error) {
	f.calls = append(f.calls, fmt.Sprintf("SearchIssues:%d", maxResults))
	f.gotJQL = jql
	return f.issues, f.err
}

func (f *fakeTracker) ProjectKey() string { return "ECHO" }

func reportLaunch(id int64, name string, passed, failed, skipped int) reportportal.Launch {
	return reportportal.Launch{
		ID:        id,
		Name:      name,
		Number:    int(id),
		Status:    "PASSED",
		StartTime: 1700000000000 + id*3600000,
		Statistics: reportportal.Statistics{
			Executions: reportportal.Executions{
				Total:   passed + failed + skipped,
				Passed:  passed,
				Failed:  failed,
				Skipped: skipped,
			},
		},
		Attributes: []reportportal.Attribute{{Key: "platform", Value: "linux"}},
	}
}

func TestHandleUnconfiguredCIMakesNoCalls(t *testing.T) {
	dashboard := &fakeDashboard{}
	router := New(nil, dashboard, nil, &fakeModel{answer: "hi"}, nil)

	inputs := []string{
		"list jobs",
		"list views",
		"check job deploy",
		"trigger job deploy with params a=1",
	}
	for _, input := range inputs {
		reply := router.Handle(context.Background(), input, nil)
		if !strings.Contains(reply.Text, "not configured") {
			t.Errorf("Handle(%q) = %q, want configuration error", input, reply.Text)
		}
	}
	if len(dashboard.calls) != 0 {
		t.Errorf("dashboard received %d calls, want 0", len(dashboard.calls))
	}
}

func TestHandleUnconfiguredDashboard(t *testing.T) {
	router := New(&fakeCI{}, nil, nil, nil, nil)

	reply := router.Handle(context.Background(), "list launches", nil)
	if reply.Intent != KindListLaunches {
		t.Errorf("Intent = %v, want %v", reply.Intent, KindListLaunches)
	}
	if !strings.Contains(reply.Text, "ReportPortal") || !strings.Contains(reply.Text, "not configured") {
		t.Errorf("Text = %q, want ReportPortal configuration error", reply.Text)
	}
}

func TestHandleTriggerJob(t *testing.T) {
	ci := &fakeCI{}
	router := New(ci, nil, nil, nil, nil)

	reply := router.Handle(context.Background(), "trigger job deploy with params ENV=staging,VERSION=1.2", nil)
	if reply.Intent != KindTriggerJob {
		t.Fatalf("Intent = %v, want %v", reply.Intent, KindTriggerJob)
	}
	if len(ci.calls) != 1 || ci.calls[0] != "TriggerJob:deploy:2" {
		t.Errorf("calls = %v, want single TriggerJob:deploy:2", ci.calls)
	}
	if !strings.Contains(reply.Text, "deploy") {
		t.Errorf("Text = %q, want trigger acknowledgment", reply.Text)
	}
}

func TestHandleJobNotFound(t *testing.T) {
	ci := &fakeCI{err: fmt.Errorf("job %q: %w", "ghost", jenkins.ErrNotFound)}
	router := New(ci, nil, nil, nil, nil)

	reply := router.Handle(context.Background(), "check job ghost", nil)
	if !strings.Contains(reply.Text, "not found") {
		t.Errorf("Text = %q, want not-found message", reply.Text)
	}
}

func TestHandleJobStatusFetchesLastBuildParams(t *testing.T) {
	ci := &fakeCI{
		job: &jenkins.Job{
			Name:      "deploy",
			Color:     "blue",
			Buildable: true,
			LastBuild: &jenkins.Build{Number: 42, URL: "https://ci/job/deploy/42/"},
		},
		params: map[string]string{"ENV": "prod"},
	}
	router := New(ci, nil, nil, nil, nil)

	reply := router.Handle(context.Background(), "check jenkins job deploy", nil)
	if len(ci.calls) != 2 || ci.calls[1] != "BuildParameters:deploy:42" {
		t.Errorf("calls = %v, want JobStatus then BuildParameters for build 42", ci.calls)
	}
	if !strings.Contains(reply.Text, "Success") {
		t.Errorf("Text = %q, want Success status", reply.Text)
	}
	if !strings.Contains(reply.Text, "ENV") {
		t.Errorf("Text = %q, want parameter table", reply.Text)
	}
}

func TestHandleListJobsForwardsKeyword(t *testing.T) {
	ci := &fakeCI{jobs: []jenkins.Job{{Name: "nightly-build", Color: "blue", URL: "https://ci/job/nightly-build/"}}}
	router := New(ci, nil, nil, nil, nil)

	reply := router.Handle(context.Background(), "list jobs related to nightly", nil)
	if len(ci.calls) != 1 || ci.calls[0] != "ListJobs:nightly" {
		t.Errorf("calls = %v, want ListJobs:nightly", ci.calls)
	}
	if !strings.Contains(reply.Text, "nightly-build") {
		t.Errorf("Text = %q, want job table", reply.Text)
	}
}

func TestHandleListLaunchesForwardsFilters(t *testing.T) {
	dashboard := &fakeDashboard{launches: []reportportal.Launch{reportLaunch(1, "smoke", 9, 1, 0)}}
	router := New(nil, dashboard, nil, nil, nil)

	reply := router.Handle(context.Background(), "list launches component=my_component,release=1.2.3", nil)
	if dashboard.gotFilters["component"] != "my_component" || dashboard.gotFilters["release"] != "1.2.3" {
		t.Errorf("filters = %v, want component and release forwarded", dashboard.gotFilters)
	}
	if !strings.Contains(reply.Text, "smoke") || !strings.Contains(reply.Text, "90.0%") {
		t.Errorf("Text = %q, want launch table with pass rate", reply.Text)
	}
}

func TestHandleLaunchFilterParseFailure(t *testing.T) {
	dashboard := &fakeDashboard{}
	router := New(nil, dashboard, nil, nil, nil)

	reply := router.Handle(context.Background(), "list launches bogus", nil)
	if len(dashboard.calls) != 0 {
		t.Errorf("dashboard received %d calls, want 0", len(dashboard.calls))
	}
	if !strings.Contains(reply.Text, "invalid filter") {
		t.Errorf("Text = %q, want filter usage hint", reply.Text)
	}
}

func TestHandleGenerateReport(t *testing.T) {
	analytics := reportportal.NewAnalytics([]reportportal.Launch{
		reportLaunch(1, "regression", 8, 2, 0),
		reportLaunch(2, "regression", 9, 1, 1),
	})
	dashboard := &fakeDashboard{analytics: analytics}
	model := &fakeModel{answer: "Looks stable."}
	router := New(nil, dashboard, nil, model, nil)

	reply := router.Handle(context.Background(), "generate a test report for payments in release 2.1 from reportportal", nil)
	if reply.Intent != KindGenerateReport {
		t.Fatalf("Intent = %v, want %v", reply.Intent, KindGenerateReport)
	}
	if dashboard.gotFilters["component"] != "payments" || dashboard.gotFilters["release"] != "2.1" {
		t.Errorf("filters = %v, want component=payments release=2.1", dashboard.gotFilters)
	}
	if !strings.Contains(reply.Text, "Test Report: payments") {
		t.Errorf("Text = %q, want report heading", reply.Text)
	}
	if !strings.Contains(reply.Text, "Looks stable.") {
		t.Errorf("Text = %q, want model analysis section", reply.Text)
	}

	var types []string
	for _, a := range reply.Artifacts {
		types = append(types, a.Type)
	}
	if len(types) != 3 || types[0] != "table" || types[1] != "line" || types[2] != "pie" {
		t.Errorf("artifact types = %v, want [table line pie]", types)
	}
	launchTable := reply.Artifacts[0]
	if len(launchTable.Columns) != 7 || len(launchTable.Rows) != 2 {
		t.Errorf("launch table = %dx%d, want 2 rows of 7 columns", len(launchTable.Rows), len(launchTable.Columns))
	}
}

func TestHandleGenerateReportWithoutModel(t *testing.T) {
	analytics := reportportal.NewAnalytics([]reportportal.Launch{reportLaunch(1, "smoke", 10, 0, 0)})
	dashboard := &fakeDashboard{analytics: analytics}
	router := New(nil, dashboard, nil, nil, nil)

	reply := router.Handle(context.Background(), "test report for smoke from reportportal", nil)
	if strings.Contains(reply.Text, "### Analysis") {
		t.Errorf("Text includes analysis section without a model configured")
	}
}

func TestHandleChatForwardsTranscript(t *testing.T) {
	model := &fakeModel{answer: "Sunny."}
	router := New(nil, nil, nil, model, nil)

	transcript := []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi"},
		{Role: llm.RoleUser, Content: "what is the weather"},
	}
	reply := router.Handle(context.Background(), "what is the weather", transcript)
	if reply.Intent != KindChat {
		t.Fatalf("Intent = %v, want %v", reply.Intent, KindChat)
	}
	if reply.Text != "Sunny." {
		t.Errorf("Text = %q, want Sunny.", reply.Text)
	}
	if len(model.prompts) != 1 || len(model.prompts[0]) != 3 {
		t.Errorf("model received %v, want the full 3-turn transcript", model.prompts)
	}
}

func TestHandleChatModelUnavailable(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("connect: %w", llm.ErrUnavailable)}
	router := New(nil, nil, nil, model, nil)

	reply := router.Handle(context.Background(), "hello there", []llm.Message{{Role: llm.RoleUser, Content: "hello there"}})
	if !strings.Contains(reply.Text, "unavailable") {
		t.Errorf("Text = %q, want unavailable message", reply.Text)
	}
}

func TestHandleHelpAndUsageHints(t *testing.T) {
	router := New(nil, nil, nil, nil, nil)

	reply := router.Handle(context.Background(), "/help", nil)
	if reply.Intent != KindHelp || !strings.Contains(reply.Text, "trigger job") {
		t.Errorf("help reply = %+v, want command listing", reply)
	}

	reply = router.Handle(context.Background(), "/jenkins frobnicate", nil)
	if reply.Intent != KindCIUsage || !strings.Contains(reply.Text, "check job") {
		t.Errorf("jenkins usage reply = %+v, want usage hint", reply)
	}

	reply = router.Handle(context.Background(), "/rp frobnicate", nil)
	if reply.Intent != KindDashboardUsage || !strings.Contains(reply.Text, "list launches") {
		t.Errorf("rp usage reply = %+v, want usage hint", reply)
	}

	reply = router.Handle(context.Background(), "/jira frobnicate", nil)
	if reply.Intent != KindJiraUsage || !strings.Contains(reply.Text, "/jira query") {
		t.Errorf("jira usage reply = %+v, want usage hint", reply)
	}
}

func TestHandleUnconfiguredTracker(t *testing.T) {
	router := New(nil, nil, nil, &fakeModel{answer: "hi"}, nil)

	for _, input := range []string{"/jira whoami", "/jira query open bugs"} {
		reply := router.Handle(context.Background(), input, nil)
		if !strings.Contains(reply.Text, "Jira") || !strings.Contains(reply.Text, "not configured") {
			t.Errorf("Handle(%q) = %q, want Jira configuration error", input, reply.Text)
		}
	}
}

func TestHandleJiraWhoami(t *testing.T) {
	tracker := &fakeTracker{user: &jira.User{
		Name:         "jdoe",
		DisplayName:  "Jane Doe",
		EmailAddress: "jdoe@example.com",
		TimeZone:     "Europe/London",
	}}
	router := New(nil, nil, tracker, nil, nil)

	reply := router.Handle(context.Background(), "/jira whoami", nil)
	if reply.Intent != KindJiraWhoami {
		t.Fatalf("Intent = %v, want %v", reply.Intent, KindJiraWhoami)
	}
	if len(tracker.calls) != 1 || tracker.calls[0] != "Myself" {
		t.Errorf("calls = %v, want single Myself", tracker.calls)
	}
	for _, want := range []string{"Jane Doe", "jdoe", "jdoe@example.com"} {
		if !strings.Contains(reply.Text, want) {
			t.Errorf("Text = %q, missing %q", reply.Text, want)
		}
	}
}

func TestHandleJiraQueryComposesJQL(t *testing.T) {
	tracker := &fakeTracker{
		user: &jira.User{Name: "jdoe", DisplayName: "Jane Doe"},
		issues: []jira.Issue{{
			Key:      "ECHO-42",
			Summary:  "Payment retries fail",
			Status:   "Open",
			Priority: "High",
			Assignee: "Jane Doe",
			URL:      "https://jira.example.com/browse/ECHO-42",
		}},
	}
	model := &fakeModel{answer: "```jql\ntype = Bug ORDER BY created DESC\n```"}
	router := New(nil, nil, tracker, model, nil)

	reply := router.Handle(context.Background(), "/jira query payment bugs assigned to me", nil)
	if reply.Intent != KindJiraQuery {
		t.Fatalf("Intent = %v, want %v", reply.Intent, KindJiraQuery)
	}

	wantJQL := `project = "ECHO" AND type = Bug AND (component = "payment") AND assignee = jdoe ORDER BY created DESC`
	if tracker.gotJQL != wantJQL {
		t.Errorf("jql = %q, want %q", tracker.gotJQL, wantJQL)
	}
	if len(tracker.calls) != 2 || tracker.calls[0] != "Myself" || tracker.calls[1] != "SearchIssues:50" {
		t.Errorf("calls = %v, want Myself then SearchIssues:50", tracker.calls)
	}
	if len(model.prompts) != 1 {
		t.Fatalf("model received %d prompts, want 1", len(model.prompts))
	}
	if !strings.Contains(model.prompts[0][0].Content, "payment bugs assigned to me") {
		t.Errorf("prompt = %q, want the user's query forwarded", model.prompts[0][0].Content)
	}
	if !strings.Contains(reply.Text, "ECHO-42") || !strings.Contains(reply.Text, "Payment retries fail") {
		t.Errorf("Text = %q, want issue table", reply.Text)
	}
}

func TestHandleJiraQueryStripsDateReference(t *testing.T) {
	tracker := &fakeTracker{}
	model := &fakeModel{answer: "type = Bug"}
	router := New(nil, nil, tracker, model, nil)

	router.Handle(context.Background(), "/jira query bugs updated last month", nil)
	if strings.Contains(model.prompts[0][0].Content, "last month") {
		t.Errorf("prompt = %q, date reference must be stripped before the model sees it", model.prompts[0][0].Content)
	}
	if !strings.Contains(tracker.gotJQL, "startOfMonth(-1)") {
		t.Errorf("jql = %q, want last-month date range", tracker.gotJQL)
	}
}

func TestHandleJiraQueryWithoutModel(t *testing.T) {
	tracker := &fakeTracker{}
	router := New(nil, nil, tracker, nil, nil)

	reply := router.Handle(context.Background(), "/jira query open bugs", nil)
	if !strings.Contains(reply.Text, "chat model is not configured") {
		t.Errorf("Text = %q, want model-missing message", reply.Text)
	}
	if len(tracker.calls) != 0 {
		t.Errorf("tracker received %d calls, want 0", len(tracker.calls))
	}
}

func TestHandleJiraQueryNoResults(t *testing.T) {
	tracker := &fakeTracker{}
	model := &fakeModel{answer: "type = Bug"}
	router := New(nil, nil, tracker, model, nil)

	reply := router.Handle(context.Background(), "/jira query ghost bugs", nil)
	if !strings.Contains(reply.Text, "No Jira issues found") {
		t.Errorf("Text = %q, want empty-result message", reply.Text)
	}
}
