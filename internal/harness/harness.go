package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/engine"
	"github.com/roach88/brainway/internal/migrate"
	"github.com/roach88/brainway/internal/policy"
	"github.com/roach88/brainway/internal/store"
	"github.com/roach88/brainway/internal/testutil"
)

// Harness executes one scenario against a real session backed by a fresh
// in-memory store, with a settable clock and sequential transition IDs.
type Harness struct {
	store   *store.Store
	session *engine.Session
	clock   *testutil.Clock
	logger  *slog.Logger
}

// outcome is the observable result of one step.
type outcome struct {
	err           error
	status        engine.Status
	units         []int
	missed        *engine.MissedDayNotice
	autoCompleted bool
	selected      bool
	finished      bool
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Create fresh in-memory database and seed it from Setup
//  2. Open a session at Start
//  3. Execute steps, validating expect clauses
//  4. Read back the history and the persisted record
//  5. Evaluate assertions
//
// A returned error means the scenario could not run at all; expectation and
// assertion failures are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with the session logging to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	ctx := context.Background()

	cal, err := scenarioCalendar(scenario.Timezone)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(time.RFC3339, scenario.Start)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := seed(ctx, st, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewClock(start.In(cal.Location())),
		logger: logger,
	}
	opts := []engine.Option{
		engine.WithCalendar(cal),
		engine.WithClock(h.clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("t")),
		engine.WithLogger(logger),
	}
	if scenario.Way != 0 {
		opts = append(opts, engine.WithDefaultWay(policy.Way(scenario.Way)))
	}
	h.session = engine.Open(ctx, st, opts...)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// RunFile loads and runs the scenario at path.
func RunFile(path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(scenario)
	if err != nil {
		return scenario, nil, err
	}
	return scenario, result, nil
}

func scenarioCalendar(name string) (calendar.Calendar, error) {
	if name == "" {
		return calendar.New(time.UTC), nil
	}
	return calendar.Load(name)
}

func seed(ctx context.Context, st *store.Store, setup *Setup) error {
	if setup == nil {
		return nil
	}
	values := []struct{ key, value string }{
		{engine.KeyRecord, setup.Record},
		{engine.KeyLabel, setup.Label},
		{engine.KeyWay, setup.LegacyWay},
	}
	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := st.Set(ctx, v.key, []byte(v.value)); err != nil {
			return err
		}
	}
	return nil
}

// executeStep moves the clock, runs the step's action and checks its
// expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	if step.At != "" {
		at, err := time.Parse(time.RFC3339, step.At)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		h.clock.Set(at.In(h.clock.Now().Location()))
	}
	if step.AdvanceDays != 0 {
		h.clock.AdvanceDays(step.AdvanceDays)
	}
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		h.clock.Advance(d)
	}
	if step.Action == "" {
		return nil
	}

	out := h.apply(ctx, step)
	h.logger.Info("step completed",
		"step", i,
		"action", step.Action,
		"day", out.status.Day,
		"state", out.status.State.String(),
		"error", out.err,
	)

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Expect, out) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Action, msg))
		}
	} else if out.err != nil {
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, step.Action, out.err))
	}
	return nil
}

func (h *Harness) apply(ctx context.Context, step Step) outcome {
	s := h.session
	switch step.Action {
	case ActionCheckIn:
		res, err := s.CheckIn(ctx)
		return outcome{err: err, status: res.Status, units: res.Units, missed: res.Missed, finished: res.Finished}
	case ActionFail:
		return outcome{status: s.Fail(ctx)}
	case ActionToggle:
		res, err := s.Toggle(ctx, step.Unit)
		return outcome{
			err:           err,
			status:        res.Status,
			missed:        res.Missed,
			autoCompleted: res.AutoCompleted,
			selected:      res.Selected,
		}
	case ActionSetWay:
		err := s.SetWay(ctx, step.Way)
		return outcome{err: err, status: s.Status()}
	case ActionSetLabel:
		err := s.SetLabel(ctx, step.Label)
		return outcome{err: err, status: s.Status()}
	default:
		return outcome{status: s.Refresh(ctx)}
	}
}

func checkExpect(exp *ExpectClause, out outcome) []string {
	var errs []string

	var engErr *engine.Error
	switch {
	case exp.Error == "" && out.err != nil:
		errs = append(errs, fmt.Sprintf("unexpected error: %v", out.err))
	case exp.Error != "" && out.err == nil:
		errs = append(errs, fmt.Sprintf("expected error %s, got success", exp.Error))
	case exp.Error != "" && errors.As(out.err, &engErr) && string(engErr.Code) != exp.Error:
		errs = append(errs, fmt.Sprintf("expected error %s, got %s", exp.Error, engErr.Code))
	case exp.Error != "" && !errors.As(out.err, &engErr):
		errs = append(errs, fmt.Sprintf("expected error %s, got %v", exp.Error, out.err))
	}

	if exp.State != "" && out.status.State.String() != exp.State {
		errs = append(errs, fmt.Sprintf("state: expected %s, got %s", exp.State, out.status.State))
	}
	if exp.Day != 0 && out.status.Day != exp.Day {
		errs = append(errs, fmt.Sprintf("day: expected %d, got %d", exp.Day, out.status.Day))
	}
	if exp.Button != "" && out.status.Label() != exp.Button {
		errs = append(errs, fmt.Sprintf("button: expected %q, got %q", exp.Button, out.status.Label()))
	}
	if exp.Units != nil && !sameUnits(exp.Units, out.units) {
		errs = append(errs, fmt.Sprintf("units: expected %v, got %v", exp.Units, out.units))
	}
	if exp.MissedDays != 0 {
		got := 0
		if out.missed != nil {
			got = out.missed.MissedDays
		}
		if got != exp.MissedDays {
			errs = append(errs, fmt.Sprintf("missed_days: expected %d, got %d", exp.MissedDays, got))
		}
	}
	if exp.AutoCompleted != nil && out.autoCompleted != *exp.AutoCompleted {
		errs = append(errs, fmt.Sprintf("auto_completed: expected %t, got %t", *exp.AutoCompleted, out.autoCompleted))
	}
	if exp.Selected != nil && out.selected != *exp.Selected {
		errs = append(errs, fmt.Sprintf("selected: expected %t, got %t", *exp.Selected, out.selected))
	}
	if exp.Finished != nil && out.finished != *exp.Finished {
		errs = append(errs, fmt.Sprintf("finished: expected %t, got %t", *exp.Finished, out.finished))
	}
	return errs
}

// collect reads the history and the persisted record back from the store,
// so the result reflects what a later session would load.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	transitions, err := h.store.ReadTransitions(ctx, 0)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	for _, t := range transitions {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:        t.Seq,
			ID:         t.ID,
			Action:     t.Action,
			Date:       t.Date,
			Day:        t.Day,
			State:      t.State,
			Way:        int(t.Way),
			Unit:       t.Unit,
			Units:      t.Units,
			MissedDays: t.MissedDays,
		})
	}

	raw, found, err := h.store.Get(ctx, engine.KeyRecord)
	if err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	// Nothing is written until the first transition.
	rec := h.session.Record()
	if found {
		if rec, _, err = migrate.Migrate(raw); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
	}

	result.Final = FinalState{
		Way:             int(rec.CurrentWay),
		Started:         rec.Started(),
		CompletedDays:   rec.CompletedDays,
		CheckedRegions:  rec.CheckedRegions,
		UnlockedThrough: rec.UnlockedThrough,
		MaxDayReached:   rec.MaxDayReached,
		Streak:          rec.CurrentStreakDays,
		LastFailDate:    rec.LastFailDate,
		Label:           h.session.Label(),
	}
	return nil
}
