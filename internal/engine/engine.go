package engine

import (
	"time"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/policy"
	"github.com/roach88/brainway/internal/record"
)

// Engine evaluates progression transitions against a calendar.
//
// Every method takes the record by value and returns a new one; the input
// is never mutated. A rejected transition returns the refreshed record
// together with the error, so a missed-day reset discovered on the way is
// not lost.
//
// Thread-safety: Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	cal calendar.Calendar
}

// New creates an Engine that computes local dates with cal.
func New(cal calendar.Calendar) *Engine {
	return &Engine{cal: cal}
}

// Calendar returns the engine's calendar.
func (e *Engine) Calendar() calendar.Calendar {
	return e.cal
}

// Refresh computes today's status, applying a missed-day reset first when
// one or more calendar days were skipped since the last completed day.
func (e *Engine) Refresh(rec record.Record, now time.Time) (record.Record, Status, *MissedDayNotice) {
	rec = rec.Clone()
	today := e.cal.LocalDate(now)

	if !rec.LastFailDate.IsZero() && rec.LastFailDate == today {
		return rec, Status{Day: 1, State: FailLocked, Today: today}, nil
	}
	if !rec.Started() {
		return rec, e.dayStatus(rec, 1, today), nil
	}

	elapsed, err := calendar.DaysBetween(e.cal.LocalDate(*rec.StartDate), today)
	if err != nil {
		elapsed = 0
	}
	expected := elapsed + 1
	last := rec.LastCompleted()
	if last > 0 && expected > last+1 {
		notice := &MissedDayNotice{
			MissedDays:    expected - last - 1,
			LastCompleted: last,
			ExpectedDay:   expected,
		}
		missedDayReset(&rec)
		rec, status, _ := e.Refresh(rec, now)
		return rec, status, notice
	}
	return rec, e.dayStatus(rec, expected, today), nil
}

// CheckIn completes today's day and selects its gap-filled units.
//
// Rejections: FailLocked and AlreadyCompleted. A finished journey is not an
// error; it is reported through CheckInResult.Finished with the record
// unchanged.
func (e *Engine) CheckIn(rec record.Record, now time.Time) (record.Record, CheckInResult, error) {
	rec, status, missed := e.Refresh(rec, now)
	res := CheckInResult{Status: status, Missed: missed}

	switch status.State {
	case FailLocked:
		return rec, res, NewFailLockedError("check-in")
	case Completed:
		return rec, res, NewAlreadyCompletedError(status.Day)
	case JourneyFinished:
		res.Finished = true
		return rec, res, nil
	}

	day := status.Day
	if !rec.Started() {
		start := now
		rec.StartDate = &start
		day = 1
	}

	units := policy.GapFillUnlock(rec.MaxSelectedUnit(), day, rec.CurrentWay)
	rec.MarkCompleted(day)
	rec.Select(day, units...)

	res.Day = day
	res.Units = units
	res.Status = e.dayStatus(rec, day, status.Today)
	return rec, res, nil
}

// Toggle flips the cosmetic selection of unit.
//
// Deselecting never touches completion or streak. Selecting a unit owned by
// today's pending day first auto-completes that day, but only the clicked
// unit is marked selected. Units from earlier unlocked days may be selected
// retroactively.
func (e *Engine) Toggle(rec record.Record, unit int, now time.Time) (record.Record, ToggleResult, error) {
	rec, status, missed := e.Refresh(rec, now)
	res := ToggleResult{Unit: unit, Status: status, Missed: missed}

	if !policy.ValidUnit(unit) {
		return rec, res, NewInvalidUnitError(unit)
	}
	if status.State == FailLocked {
		return rec, res, NewFailLockedError("toggle")
	}

	if day, ok := rec.SelectedDay(unit); ok {
		rec.Deselect(unit)
		res.Day = day
		res.Status = e.dayStatus(rec, status.Day, status.Today)
		return rec, res, nil
	}

	owner := policy.DayOwningUnit(unit, rec.CurrentWay)
	switch {
	case owner == status.Day && status.State == AwaitingCheckIn:
		if !rec.Started() {
			start := now
			rec.StartDate = &start
		}
		rec.MarkCompleted(owner)
		res.AutoCompleted = true
	case !unlocked(rec, unit):
		return rec, res, NewUnitLockedError(status.Day, unit)
	}

	rec.Select(owner, unit)
	res.Day = owner
	res.Selected = true
	res.Status = e.dayStatus(rec, status.Day, status.Today)
	return rec, res, nil
}

// FailReset clears the current journey and locks today. CurrentWay and the
// MaxDayReached watermark survive.
func (e *Engine) FailReset(rec record.Record, now time.Time) record.Record {
	rec = rec.Clone()
	clearProgress(&rec)
	rec.LastFailDate = e.cal.LocalDate(now)
	return rec
}

// SetWay changes the journey length. Progress is kept; the next check-in
// gap-fills from the highest selected unit.
func (e *Engine) SetWay(rec record.Record, way int) (record.Record, error) {
	w, err := policy.ParseWay(way)
	if err != nil {
		return rec, NewInvalidWayError(way)
	}
	rec = rec.Clone()
	rec.CurrentWay = w
	return rec, nil
}

// Unlocked returns the units unlocked in the current journey, ascending.
func (e *Engine) Unlocked(rec record.Record) []int {
	units := []int{}
	for u := 1; u <= policy.TotalUnits; u++ {
		if unlocked(rec, u) {
			units = append(units, u)
		}
	}
	return units
}

// Pending returns the units owned by today's day that are still locked but
// may be clicked to auto-complete it. Empty unless today awaits check-in.
func (e *Engine) Pending(rec record.Record, status Status) []int {
	if status.State != AwaitingCheckIn {
		return []int{}
	}
	pending := []int{}
	for _, u := range policy.UnitsForDay(status.Day, rec.CurrentWay) {
		if !unlocked(rec, u) {
			pending = append(pending, u)
		}
	}
	return pending
}

func (e *Engine) dayStatus(rec record.Record, day int, today calendar.LocalDate) Status {
	switch {
	case rec.IsCompleted(day):
		return Status{Day: day, State: Completed, Today: today}
	case policy.Exhausted(day, rec.CurrentWay):
		return Status{Day: day, State: JourneyFinished, Today: today}
	}
	return Status{Day: day, State: AwaitingCheckIn, Today: today}
}

// unlocked reports whether unit may be selected: it was handed out earlier
// in the journey, or the day that owns it under the current way is completed.
func unlocked(rec record.Record, unit int) bool {
	return unit <= rec.UnlockedThrough || rec.IsCompleted(policy.DayOwningUnit(unit, rec.CurrentWay))
}

// clearProgress empties the journey and preserves the watermark. Shared by
// both resets; they differ only in what they do with LastFailDate.
func clearProgress(rec *record.Record) {
	rec.ClearProgress()
}

// missedDayReset is the silent time-based reset. It does not lock today.
func missedDayReset(rec *record.Record) {
	clearProgress(rec)
	rec.LastFailDate = ""
}
