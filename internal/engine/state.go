package engine

import (
	"fmt"

	"github.com/roach88/brainway/internal/calendar"
)

// State is the derived state of the current calendar day. It is never stored.
type State int

const (
	// NotStarted is reported before the first refresh.
	NotStarted State = iota

	// FailLocked means the user failed today; nothing is allowed until the
	// local date changes.
	FailLocked

	// AwaitingCheckIn means today's day can be checked in.
	AwaitingCheckIn

	// Completed means today's day is already completed.
	Completed

	// JourneyFinished means every unit has been handed out; no further
	// check-ins are possible.
	JourneyFinished
)

var stateNames = map[State]string{
	NotStarted:      "not_started",
	FailLocked:      "fail_locked",
	AwaitingCheckIn: "awaiting_check_in",
	Completed:       "completed",
	JourneyFinished: "journey_finished",
}

// String returns the snake_case name used in logs, traces and JSON output.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the result of evaluating a record against the current date.
type Status struct {
	// Day is the current day number. 1 when the journey has not started or
	// today is fail-locked.
	Day int

	State State

	// Today is the local date the status was computed for.
	Today calendar.LocalDate
}

// Label returns the action button text for the status.
func (s Status) Label() string {
	switch s.State {
	case FailLocked:
		return "Come back tomorrow"
	case Completed:
		return fmt.Sprintf("Day %d Achieved", s.Day)
	case JourneyFinished:
		return "Journey Complete"
	}
	day := s.Day
	if day < 1 {
		day = 1
	}
	return fmt.Sprintf("Day %d Check-in", day)
}

// CanCheckIn reports whether the check-in action is enabled.
func (s Status) CanCheckIn() bool {
	return s.State == AwaitingCheckIn || s.State == NotStarted
}

// MissedDayNotice reports an elapsed-time reset.
type MissedDayNotice struct {
	// MissedDays is the number of calendar days skipped between the last
	// completed day and today.
	MissedDays int

	// LastCompleted is the highest completed day before the reset.
	LastCompleted int

	// ExpectedDay is the day today would have been without the gap.
	ExpectedDay int
}

// CheckInResult describes a check-in attempt.
type CheckInResult struct {
	// Day is the day that was completed (0 if none).
	Day int

	// Units are the units newly selected by this check-in, ascending. Empty
	// when a way change left nothing new to unlock.
	Units []int

	// Finished is the terminal signal: the journey has no units left and the
	// record was not changed.
	Finished bool

	// Status is today's status after the attempt.
	Status Status

	// Missed is set when the attempt first triggered a missed-day reset.
	Missed *MissedDayNotice
}

// ToggleResult describes a unit toggle.
type ToggleResult struct {
	Unit int

	// Day is the day whose CheckedRegions entry changed.
	Day int

	// Selected is the unit's selection after the toggle.
	Selected bool

	// AutoCompleted is set when selecting the unit completed today's day.
	AutoCompleted bool

	Status Status
	Missed *MissedDayNotice
}
