package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", formatEvent(event))
		}
	}
	return buf.String()
}

// assertTraceContains checks whether the trace holds an event with the
// assertion's action. Day, State and Unit narrow the match when set.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchEvent(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeMatch(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func matchEvent(event TraceEvent, a Assertion) bool {
	if string(event.Action) != a.Action {
		return false
	}
	if a.Day != 0 && event.Day != a.Day {
		return false
	}
	if a.State != "" && event.State.String() != a.State {
		return false
	}
	if a.Unit != 0 && event.Unit != a.Unit {
		return false
	}
	return true
}

func describeMatch(a Assertion) string {
	parts := []string{"action " + a.Action}
	if a.Day != 0 {
		parts = append(parts, fmt.Sprintf("day %d", a.Day))
	}
	if a.State != "" {
		parts = append(parts, "state "+a.State)
	}
	if a.Unit != 0 {
		parts = append(parts, fmt.Sprintf("unit %d", a.Unit))
	}
	return strings.Join(parts, ", ")
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed), and
// the same action may be listed more than once.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Actions {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if string(event.Action) == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("%s (#%d) not found after the preceding actions", want, i+1),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if string(event.Action) == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares the final state against the set fields of
// assertion.Final (subset semantics).
func assertFinalState(final FinalState, assertion Assertion) error {
	exp := assertion.Final
	var mismatches []string

	check := func(field string, want, got any) {
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			mismatches = append(mismatches, fmt.Sprintf("%s (-want +got):\n%s", field, diff))
		}
	}

	if exp.Way != nil {
		check("way", *exp.Way, final.Way)
	}
	if exp.Started != nil {
		check("started", *exp.Started, final.Started)
	}
	if exp.CompletedDays != nil {
		check("completed_days", exp.CompletedDays, final.CompletedDays)
	}
	if exp.CheckedRegions != nil {
		check("checked_regions", exp.CheckedRegions, final.CheckedRegions)
	}
	if exp.UnlockedThrough != nil {
		check("unlocked_through", *exp.UnlockedThrough, final.UnlockedThrough)
	}
	if exp.MaxDayReached != nil {
		check("max_day_reached", *exp.MaxDayReached, final.MaxDayReached)
	}
	if exp.Streak != nil {
		check("streak", *exp.Streak, final.Streak)
	}
	if exp.LastFailDate != nil {
		check("last_fail_date", *exp.LastFailDate, final.LastFailDate.String())
	}
	if exp.Label != nil {
		check("label", *exp.Label, final.Label)
	}

	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "final state to match",
		Actual:   strings.Join(mismatches, "\n"),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.Final, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// sameUnits compares unit lists, treating nil and empty as equal.
func sameUnits(a, b []int) bool {
	return slices.Equal(a, b)
}
