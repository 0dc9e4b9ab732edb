package harness

import (
	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/engine"
)

// TraceEvent is one transition read back from the scenario's history.
type TraceEvent struct {
	Seq        int64              `json:"seq"`
	ID         string             `json:"id"`
	Action     engine.Action      `json:"action"`
	Date       calendar.LocalDate `json:"date"`
	Day        int                `json:"day"`
	State      engine.State       `json:"state"`
	Way        int                `json:"way"`
	Unit       int                `json:"unit,omitempty"`
	Units      []int              `json:"units,omitempty"`
	MissedDays int                `json:"missed_days,omitempty"`
}

// FinalState is the persisted record and label after the last step.
type FinalState struct {
	Way             int                `json:"way"`
	Started         bool               `json:"started"`
	CompletedDays   []int              `json:"completed_days"`
	CheckedRegions  map[int][]int      `json:"checked_regions"`
	UnlockedThrough int                `json:"unlocked_through"`
	MaxDayReached   int                `json:"max_day_reached"`
	Streak          int                `json:"streak"`
	LastFailDate    calendar.LocalDate `json:"last_fail_date,omitempty"`
	Label           string             `json:"label"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every appended transition in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the state reloaded from the store after the last step.
	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
