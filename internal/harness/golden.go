package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RenderTrace renders a result as the stable text snapshot stored in golden
// files: one line per transition, then the final state.
//
//	# check_in_streak
//	seq=1 id=t-0001 action=check_in date=2024-01-01 day=1 state=completed way=30 units=[1 2 3]
//	--
//	label="My Brain Journey" way=30 started=true ...
func RenderTrace(name string, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "# %s\n", name)
	for _, event := range result.Trace {
		buf.WriteString(formatEvent(event))
		buf.WriteByte('\n')
	}
	buf.WriteString("--\n")
	buf.WriteString(formatFinal(result.Final))
	buf.WriteByte('\n')
	return []byte(buf.String())
}

func formatEvent(e TraceEvent) string {
	line := fmt.Sprintf("seq=%d id=%s action=%s date=%s day=%d state=%s way=%d",
		e.Seq, e.ID, e.Action, e.Date, e.Day, e.State, e.Way)
	if e.Unit != 0 {
		line += fmt.Sprintf(" unit=%d", e.Unit)
	}
	if len(e.Units) > 0 {
		line += fmt.Sprintf(" units=%v", e.Units)
	}
	if e.MissedDays != 0 {
		line += fmt.Sprintf(" missed_days=%d", e.MissedDays)
	}
	return line
}

func formatFinal(f FinalState) string {
	days := make([]int, 0, len(f.CheckedRegions))
	for day := range f.CheckedRegions {
		days = append(days, day)
	}
	sort.Ints(days)
	checked := make([]string, 0, len(days))
	for _, day := range days {
		checked = append(checked, fmt.Sprintf("%d:%v", day, f.CheckedRegions[day]))
	}

	failDate := "-"
	if !f.LastFailDate.IsZero() {
		failDate = f.LastFailDate.String()
	}
	completed := f.CompletedDays
	if completed == nil {
		completed = []int{}
	}

	return fmt.Sprintf("label=%q way=%d started=%t completed=%v checked={%s} unlocked_through=%d max_day_reached=%d streak=%d last_fail_date=%s",
		f.Label, f.Way, f.Started, completed, strings.Join(checked, " "),
		f.UnlockedThrough, f.MaxDayReached, f.Streak, failDate)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, RenderTrace(scenarioName, result))
}
