// Package record defines the persisted progression aggregate.
//
// A Record is a plain value. Every mutator here keeps the structural
// invariants (sorted unique days, sorted unique non-empty unit sets, the
// MaxDayReached and UnlockedThrough watermarks, a fresh streak); the
// decisions about WHEN to mutate belong to the engine.
package record

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/policy"
)

// Record is the single persisted progression aggregate.
type Record struct {
	// StartDate is the instant of the first check-in of the current journey.
	// Nil means the journey has not started.
	StartDate *time.Time

	// CurrentWay is the journey length; units per day = 90 / CurrentWay.
	CurrentWay policy.Way

	// CompletedDays holds completed day numbers, ascending and unique.
	CompletedDays []int

	// CheckedRegions maps a day to the units currently shown selected for it.
	// Cosmetic: independent of completion.
	CheckedRegions map[int][]int

	// MaxDayReached is the highest day ever completed, across resets.
	MaxDayReached int

	// CurrentStreakDays is derived from CompletedDays by Streak.
	CurrentStreakDays int

	// LastFailDate is the local date of the last explicit fail, if any.
	LastFailDate calendar.LocalDate

	// UnlockedThrough is the highest unit selected in the current journey.
	// Deselecting never lowers it; units 1..UnlockedThrough stay unlocked
	// until the next reset.
	UnlockedThrough int
}

// New returns an empty, not-yet-started record.
func New(way policy.Way) Record {
	if !way.Valid() {
		way = policy.DefaultWay
	}
	return Record{
		CurrentWay:     way,
		CompletedDays:  []int{},
		CheckedRegions: map[int][]int{},
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	if r.StartDate != nil {
		t := *r.StartDate
		out.StartDate = &t
	}
	out.CompletedDays = slices.Clone(r.CompletedDays)
	if out.CompletedDays == nil {
		out.CompletedDays = []int{}
	}
	out.CheckedRegions = make(map[int][]int, len(r.CheckedRegions))
	for day, units := range r.CheckedRegions {
		out.CheckedRegions[day] = slices.Clone(units)
	}
	return out
}

// Started reports whether the journey has a start date.
func (r Record) Started() bool {
	return r.StartDate != nil
}

// LastCompleted returns max(CompletedDays), or 0 when none.
func (r Record) LastCompleted() int {
	if len(r.CompletedDays) == 0 {
		return 0
	}
	return slices.Max(r.CompletedDays)
}

// IsCompleted reports whether day is in CompletedDays.
func (r Record) IsCompleted(day int) bool {
	return slices.Contains(r.CompletedDays, day)
}

// MarkCompleted adds day to CompletedDays (idempotent), raises MaxDayReached
// and recomputes the streak.
func (r *Record) MarkCompleted(day int) {
	if day < 1 {
		return
	}
	if !slices.Contains(r.CompletedDays, day) {
		r.CompletedDays = append(r.CompletedDays, day)
		slices.Sort(r.CompletedDays)
	}
	if day > r.MaxDayReached {
		r.MaxDayReached = day
	}
	r.CurrentStreakDays = Streak(r.CompletedDays)
}

// Select merges units into CheckedRegions[day] and raises UnlockedThrough to
// cover them. Units outside the progress space are ignored.
func (r *Record) Select(day int, units ...int) {
	if r.CheckedRegions == nil {
		r.CheckedRegions = map[int][]int{}
	}
	merged := slices.Clone(r.CheckedRegions[day])
	for _, u := range units {
		if !policy.ValidUnit(u) || slices.Contains(merged, u) {
			continue
		}
		merged = append(merged, u)
		if u > r.UnlockedThrough {
			r.UnlockedThrough = u
		}
	}
	if len(merged) == 0 {
		return
	}
	slices.Sort(merged)
	r.CheckedRegions[day] = merged
}

// Unlock raises UnlockedThrough to unit without selecting anything.
func (r *Record) Unlock(unit int) {
	if unit > policy.TotalUnits {
		unit = policy.TotalUnits
	}
	if unit > r.UnlockedThrough {
		r.UnlockedThrough = unit
	}
}

// SelectedDay returns the day whose CheckedRegions entry holds unit.
func (r Record) SelectedDay(unit int) (int, bool) {
	for _, day := range r.checkedDays() {
		if slices.Contains(r.CheckedRegions[day], unit) {
			return day, true
		}
	}
	return 0, false
}

// Deselect removes unit from whichever day holds it, deleting the entry when
// it becomes empty. Completion and streak are untouched.
func (r *Record) Deselect(unit int) bool {
	day, ok := r.SelectedDay(unit)
	if !ok {
		return false
	}
	remaining := slices.DeleteFunc(slices.Clone(r.CheckedRegions[day]), func(u int) bool { return u == unit })
	if len(remaining) == 0 {
		delete(r.CheckedRegions, day)
	} else {
		r.CheckedRegions[day] = remaining
	}
	return true
}

// SelectedUnits returns every selected unit, ascending.
func (r Record) SelectedUnits() []int {
	var units []int
	for _, day := range r.checkedDays() {
		units = append(units, r.CheckedRegions[day]...)
	}
	slices.Sort(units)
	return slices.Compact(units)
}

// MaxSelectedUnit returns the highest selected unit, or 0.
func (r Record) MaxSelectedUnit() int {
	units := r.SelectedUnits()
	if len(units) == 0 {
		return 0
	}
	return units[len(units)-1]
}

// ClearProgress empties the current journey while preserving CurrentWay and
// the MaxDayReached watermark, which is first raised to the last completed day.
// LastFailDate is left for the caller to decide.
func (r *Record) ClearProgress() {
	if last := r.LastCompleted(); last > r.MaxDayReached {
		r.MaxDayReached = last
	}
	r.StartDate = nil
	r.CompletedDays = []int{}
	r.CheckedRegions = map[int][]int{}
	r.CurrentStreakDays = 0
	r.UnlockedThrough = 0
}

func (r Record) checkedDays() []int {
	days := make([]int, 0, len(r.CheckedRegions))
	for day := range r.CheckedRegions {
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

// Streak returns the length of the unbroken run of consecutive days ending at
// the highest completed day. Earlier runs never count.
func Streak(completed []int) int {
	if len(completed) == 0 {
		return 0
	}
	days := slices.Clone(completed)
	slices.Sort(days)
	days = slices.Compact(days)
	slices.Reverse(days)

	expected := days[0]
	streak := 0
	for _, d := range days {
		if d != expected {
			break
		}
		streak++
		expected--
	}
	return streak
}

// Validate checks the structural invariants.
func (r Record) Validate() error {
	if !r.CurrentWay.Valid() {
		return fmt.Errorf("currentWay %d: must be one of %v", r.CurrentWay, policy.Ways)
	}
	for i, d := range r.CompletedDays {
		if d < 1 {
			return fmt.Errorf("completedDays[%d] = %d: must be >= 1", i, d)
		}
		if i > 0 && r.CompletedDays[i-1] >= d {
			return fmt.Errorf("completedDays must be ascending and unique")
		}
	}
	for day, units := range r.CheckedRegions {
		if len(units) == 0 {
			return fmt.Errorf("checkedRegions[%d] is empty", day)
		}
		for i, u := range units {
			if !policy.ValidUnit(u) {
				return fmt.Errorf("checkedRegions[%d] unit %d out of range", day, u)
			}
			if i > 0 && units[i-1] >= u {
				return fmt.Errorf("checkedRegions[%d] must be ascending and unique", day)
			}
			if u > r.UnlockedThrough {
				return fmt.Errorf("checkedRegions[%d] unit %d above unlockedThrough %d", day, u, r.UnlockedThrough)
			}
		}
	}
	if r.MaxDayReached < r.LastCompleted() {
		return fmt.Errorf("maxDayReached %d below last completed day %d", r.MaxDayReached, r.LastCompleted())
	}
	if want := Streak(r.CompletedDays); r.CurrentStreakDays != want {
		return fmt.Errorf("currentStreakDays %d, expected %d", r.CurrentStreakDays, want)
	}
	if r.UnlockedThrough < 0 || r.UnlockedThrough > policy.TotalUnits {
		return fmt.Errorf("unlockedThrough %d out of range", r.UnlockedThrough)
	}
	return nil
}

// canonicalMap renders r in its current persisted shape.
func (r Record) canonicalMap() map[string]any {
	regions := make(map[string]any, len(r.CheckedRegions))
	for day, units := range r.CheckedRegions {
		regions[strconv.Itoa(day)] = slices.Clone(units)
	}
	completed := r.CompletedDays
	if completed == nil {
		completed = []int{}
	}

	m := map[string]any{
		"currentWay":        int(r.CurrentWay),
		"completedDays":     completed,
		"checkedRegions":    regions,
		"maxDayReached":     r.MaxDayReached,
		"currentStreakDays": r.CurrentStreakDays,
		"unlockedThrough":   r.UnlockedThrough,
	}
	if r.StartDate != nil {
		m["startDate"] = r.StartDate.UTC().Format(time.RFC3339Nano)
	}
	if !r.LastFailDate.IsZero() {
		m["lastFailDate"] = r.LastFailDate.String()
	}
	return m
}

// Marshal encodes r as canonical JSON in the current persisted shape.
func Marshal(r Record) ([]byte, error) {
	data, err := MarshalCanonical(r.canonicalMap())
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}
