package reportportal

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// PlatformAttribute is the launch attribute used for platform coverage
// breakdowns.
const PlatformAttribute = "platform"

// Analytics derives report metrics from a set of launches and their test
// items. All computations run on data already fetched; nothing here calls
// the backend.
type Analytics struct {
	Launches []Launch

	itemsByLaunch   map[int64][]TestItem
	failedByLaunch  map[int64][]TestItem
	skippedByLaunch map[int64][]TestItem
}

// NewAnalytics creates an Analytics over the given launches.
func NewAnalytics(launches []Launch) *Analytics {
	return &Analytics{
		Launches:        launches,
		itemsByLaunch:   make(map[int64][]TestItem),
		failedByLaunch:  make(map[int64][]TestItem),
		skippedByLaunch: make(map[int64][]TestItem),
	}
}

// AddTestItems records fetched test items for one launch.
func (a *Analytics) AddTestItems(launchID int64, items []TestItem) {
	a.itemsByLaunch[launchID] = append(a.itemsByLaunch[launchID], items...)
	for _, item := range items {
		switch item.Status {
		case "FAILED":
			a.failedByLaunch[launchID] = append(a.failedByLaunch[launchID], item)
		case "SKIPPED":
			a.skippedByLaunch[launchID] = append(a.skippedByLaunch[launchID], item)
		}
	}
}

// FetchAnalytics lists launches matching the filters and gathers each
// launch's test items, returning the assembled Analytics. All statuses are
// fetched, not just failures: flakiness and duration metrics need the
// passing runs too. Launches that executed nothing are skipped.
func (c *Client) FetchAnalytics(ctx context.Context, filters map[string]string) (*Analytics, error) {
	launches, err := c.ListLaunches(ctx, filters)
	if err != nil {
		return nil, err
	}

	analytics := NewAnalytics(launches)
	for _, launch := range launches {
		if launch.Statistics.Executions.Total == 0 {
			continue
		}
		items, err := c.TestItems(ctx, launch.ID, "")
		if err != nil {
			return nil, fmt.Errorf("launch %d: %w", launch.ID, err)
		}
		analytics.AddTestItems(launch.ID, items)
	}

	return analytics, nil
}

// TrendPoint is one (time bucket, pass rate) sample for charting.
type TrendPoint struct {
	Time     time.Time `json:"time"`
	PassRate float64   `json:"pass_rate"`
}

// PassRateTrend returns one point per launch, ordered by start time.
func (a *Analytics) PassRateTrend() []TrendPoint {
	points := make([]TrendPoint, 0, len(a.Launches))
	for _, launch := range a.Launches {
		points = append(points, TrendPoint{
			Time:     launch.Started(),
			PassRate: launch.PassRate(),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	return points
}

// PlatformCoverage returns total test counts per platform attribute value.
// Launches without the attribute are grouped under "unknown".
func (a *Analytics) PlatformCoverage() map[string]int {
	coverage := make(map[string]int)
	for _, launch := range a.Launches {
		platform := launch.Attribute(PlatformAttribute)
		if platform == "" {
			platform = "unknown"
		}
		coverage[platform] += launch.Statistics.Executions.Total
	}
	return coverage
}

// TestCount pairs a test name with an occurrence count.
type TestCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopFailingTests returns up to n tests with the most failures across all
// launches, descending by count, ties broken by name.
func (a *Analytics) TopFailingTests(n int) []TestCount {
	return topCounts(a.failedByLaunch, n)
}

// TopSkippedTests returns up to n tests skipped most often, with the same
// ordering as TopFailingTests.
func (a *Analytics) TopSkippedTests(n int) []TestCount {
	return topCounts(a.skippedByLaunch, n)
}

func topCounts(byLaunch map[int64][]TestItem, n int) []TestCount {
	counts := make(map[string]int)
	for _, items := range byLaunch {
		for _, item := range items {
			counts[item.Name]++
		}
	}

	ranked := make([]TestCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, TestCount{Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// FlakyTest is a test with inconsistent outcomes across launches. Score is
// 0-100: the share of consecutive runs whose outcome differed from the
// previous one.
type FlakyTest struct {
	Name    string  `json:"name"`
	Runs    int     `json:"runs"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Skipped int     `json:"skipped"`
	Score   float64 `json:"score"`
}

// FlakyTests finds tests that both passed and failed across the launch set,
// ranked by flakiness score descending, ties broken by name. Tests with
// fewer than minRuns recorded runs are ignored.
func (a *Analytics) FlakyTests(minRuns int) []FlakyTest {
	if minRuns < 2 {
		minRuns = 2
	}

	// Outcome sequences must follow launch chronology for the switch count
	// to mean anything.
	launches := make([]Launch, len(a.Launches))
	copy(launches, a.Launches)
	sort.Slice(launches, func(i, j int) bool {
		return launches[i].Started().Before(launches[j].Started())
	})

	statuses := make(map[string][]string)
	for _, launch := range launches {
		for _, item := range a.itemsByLaunch[launch.ID] {
			if item.Name == "" || item.Status == "" {
				continue
			}
			statuses[item.Name] = append(statuses[item.Name], item.Status)
		}
	}

	var flaky []FlakyTest
	for name, seq := range statuses {
		if len(seq) < minRuns {
			continue
		}

		ft := FlakyTest{Name: name, Runs: len(seq)}
		for _, status := range seq {
			switch status {
			case "PASSED":
				ft.Passed++
			case "FAILED":
				ft.Failed++
			case "SKIPPED":
				ft.Skipped++
			}
		}
		if ft.Passed == 0 || ft.Failed == 0 {
			continue
		}

		switches := 0
		for i := 1; i < len(seq); i++ {
			if seq[i] != seq[i-1] {
				switches++
			}
		}
		ft.Score = float64(switches) / float64(len(seq)-1) * 100
		flaky = append(flaky, ft)
	}

	sort.Slice(flaky, func(i, j int) bool {
		if flaky[i].Score != flaky[j].Score {
			return flaky[i].Score > flaky[j].Score
		}
		return flaky[i].Name < flaky[j].Name
	})
	return flaky
}

// SlowTest pairs a test name with its average duration in seconds.
type SlowTest struct {
	Name       string  `json:"name"`
	AvgSeconds float64 `json:"avg_seconds"`
}

// SlowestTests returns up to n tests with the highest average duration,
// descending, ties broken by name. Items without duration data are ignored.
func (a *Analytics) SlowestTests(n int) []SlowTest {
	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, items := range a.itemsByLaunch {
		for _, item := range items {
			if item.Name == "" || item.Duration <= 0 {
				continue
			}
			totals[item.Name] += item.Duration
			counts[item.Name]++
		}
	}

	ranked := make([]SlowTest, 0, len(totals))
	for name, total := range totals {
		ranked = append(ranked, SlowTest{Name: name, AvgSeconds: total / float64(counts[name])})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AvgSeconds != ranked[j].AvgSeconds {
			return ranked[i].AvgSeconds > ranked[j].AvgSeconds
		}
		return ranked[i].Name < ranked[j].Name
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Metrics summarizes test execution across the launch set.
type Metrics struct {
	TotalLaunches   int     `json:"total_launches"`
	TotalTests      int     `json:"total_tests"`
	TotalPassed     int     `json:"total_passed"`
	TotalFailed     int     `json:"total_failed"`
	TotalSkipped    int     `json:"total_skipped"`
	OverallPassRate float64 `json:"overall_pass_rate"`
}

// ExecutionMetrics computes aggregate execution counters and the overall
// pass rate over the launch set.
func (a *Analytics) ExecutionMetrics() Metrics {
	m := Metrics{TotalLaunches: len(a.Launches)}
	for _, launch := range a.Launches {
		exec := launch.Statistics.Executions
		m.TotalTests += exec.Total
		m.TotalPassed += exec.Passed
		m.TotalFailed += exec.Failed
		m.TotalSkipped += exec.Skipped
	}
	if finished := m.TotalPassed + m.TotalFailed; finished > 0 {
		m.OverallPassRate = float64(m.TotalPassed) / float64(finished) * 100
	}
	return m
}
