package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brainway/internal/engine"
	"github.com/roach88/brainway/internal/testutil"
)

// cliEnv is one database, clock and ID sequence shared by several
// invocations of the root command.
type cliEnv struct {
	db    string
	clock *testutil.Clock
	ids   *testutil.SequentialIDs
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		db:    filepath.Join(t.TempDir(), "brain.db"),
		clock: testutil.NewClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		ids:   testutil.NewSequentialIDs("t"),
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{Clock: e.clock, IDGenerator: e.ids}
	cmd := NewRootCommandWithOptions(opts)

	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", e.db, "--tz", "UTC"}, args...))

	err := cmd.Execute()
	return stdout.String(), err
}

// commandResponse mirrors CLIResponse with a session command payload.
type commandResponse struct {
	Status  string    `json:"status"`
	TraceID string    `json:"trace_id"`
	Error   *CLIError `json:"error"`
	Data    struct {
		Action string          `json:"action"`
		Result json.RawMessage `json:"result"`
		View   struct {
			Title         string `json:"title"`
			Date          string `json:"date"`
			Day           int    `json:"day"`
			State         string `json:"state"`
			Button        string `json:"button"`
			Enabled       bool   `json:"enabled"`
			Way           int    `json:"way"`
			Unlocked      []int  `json:"unlocked"`
			Selected      []int  `json:"selected"`
			Pending       []int  `json:"pending"`
			Streak        int    `json:"streak"`
			MaxDayReached int    `json:"maxDayReached"`
		} `json:"view"`
		Notices []engine.Notice `json:"notices"`
	} `json:"data"`
}

func decodeResponse(t *testing.T, out string) commandResponse {
	t.Helper()
	var resp commandResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestCheckInCommand_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "--format", "json", "checkin")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "t-0001", resp.TraceID)
	assert.Equal(t, "check_in", resp.Data.Action)

	var result CheckInOutput
	require.NoError(t, json.Unmarshal(resp.Data.Result, &result))
	assert.Equal(t, CheckInOutput{Day: 1, Units: []int{1, 2, 3}}, result)

	view := resp.Data.View
	assert.Equal(t, "My Brain Journey", view.Title)
	assert.Equal(t, "2024-01-01", view.Date)
	assert.Equal(t, "completed", view.State)
	assert.Equal(t, "Day 1 Achieved", view.Button)
	assert.False(t, view.Enabled)
	assert.Equal(t, 30, view.Way)
	assert.Equal(t, []int{1, 2, 3}, view.Unlocked)
	assert.Equal(t, []int{1, 2, 3}, view.Selected)
	assert.Equal(t, 1, view.Streak)
	assert.Empty(t, resp.Data.Notices)
}

func TestCheckInCommand_Text(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "checkin")
	require.NoError(t, err)
	assert.Contains(t, out, "Day 1 checked in: units 1-3")
	assert.Contains(t, out, "My Brain Journey (2024-01-01)")
	assert.Contains(t, out, "Day 1 Achieved [disabled]")
	assert.Contains(t, out, "unlocked: 1-3 (3/90)")
}

func TestCheckInCommand_AlreadyCompleted(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "checkin")
	require.NoError(t, err)

	out, err := env.run(t, "--format", "json", "checkin")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsAlreadyCompleted(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRejected, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ALREADY_COMPLETED", details["reason"])
}

func TestCheckInCommand_ConsecutiveDays(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "checkin")
	require.NoError(t, err)
	env.clock.AdvanceDays(1)

	out, err := env.run(t, "--format", "json", "checkin")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "t-0002", resp.TraceID)
	assert.Equal(t, 2, resp.Data.View.Day)
	assert.Equal(t, 2, resp.Data.View.Streak)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, resp.Data.View.Unlocked)
}

func TestStatusCommand_ReportsMissedDays(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "checkin")
	require.NoError(t, err)
	env.clock.AdvanceDays(3)

	out, err := env.run(t, "--format", "json", "status")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "status", resp.Data.Action)
	assert.Equal(t, "t-0002", resp.TraceID, "the reset is recorded as a transition")
	require.Len(t, resp.Data.Notices, 1)
	assert.Equal(t, engine.NoticeMissedDays, resp.Data.Notices[0].Kind)
	assert.Equal(t, 2, resp.Data.Notices[0].MissedDays)
	assert.Equal(t, "awaiting_check_in", resp.Data.View.State)
	assert.Equal(t, "Day 1 Check-in", resp.Data.View.Button)
	assert.Empty(t, resp.Data.View.Unlocked)

	// The reset is applied once.
	out, err = env.run(t, "--format", "json", "status")
	require.NoError(t, err)
	resp = decodeResponse(t, out)
	assert.Empty(t, resp.Data.Notices)
	assert.Empty(t, resp.TraceID)
}

func TestFailCommand_LocksToday(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "checkin")
	require.NoError(t, err)

	out, err := env.run(t, "fail")
	require.NoError(t, err)
	assert.Contains(t, out, "! All check-ins have been reset.")
	assert.Contains(t, out, "Come back tomorrow [disabled]")

	_, err = env.run(t, "checkin")
	require.Error(t, err)
	assert.True(t, engine.IsFailLocked(err))

	env.clock.AdvanceDays(1)
	out, err = env.run(t, "checkin")
	require.NoError(t, err)
	assert.Contains(t, out, "Day 1 checked in")
}

func TestToggleCommand(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "checkin")
	require.NoError(t, err)

	out, err := env.run(t, "--format", "json", "toggle", "2")
	require.NoError(t, err)
	resp := decodeResponse(t, out)

	var result ToggleOutput
	require.NoError(t, json.Unmarshal(resp.Data.Result, &result))
	assert.Equal(t, ToggleOutput{Unit: 2, Day: 1, Selected: false}, result)
	assert.Equal(t, []int{1, 3}, resp.Data.View.Selected)
	assert.Equal(t, []int{1, 2, 3}, resp.Data.View.Unlocked)

	out, err = env.run(t, "toggle", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Unit 2 selected (day 1)")
}

func TestToggleCommand_AutoCompletes(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "toggle", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Unit 2 selected (day 1); day 1 completed")
	assert.Contains(t, out, "Day 1 Achieved")
}

func TestToggleCommand_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"locked_unit", []string{"toggle", "50"}, ExitFailure, "UNIT_LOCKED"},
		{"out_of_range", []string{"toggle", "91"}, ExitFailure, "INVALID_UNIT"},
		{"not_a_number", []string{"toggle", "five"}, ExitCommandError, "unit must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			_, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWayCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "way")
	require.NoError(t, err)
	assert.Contains(t, out, "Way: 30 days")

	out, err = env.run(t, "--format", "json", "way", "90")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "set_way", resp.Data.Action)
	assert.Equal(t, 90, resp.Data.View.Way)
	assert.Equal(t, "t-0001", resp.TraceID)

	out, err = env.run(t, "checkin")
	require.NoError(t, err)
	assert.Contains(t, out, "units 1\n")

	_, err = env.run(t, "way", "45")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "INVALID_WAY")
}

func TestLabelCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "label")
	require.NoError(t, err)
	assert.Contains(t, out, "My Brain Journey")

	out, err = env.run(t, "label", "  Morning", "Focus  ")
	require.NoError(t, err)
	assert.Contains(t, out, `Label set to "Morning Focus"`)

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Morning Focus (2024-01-01)")

	_, err = env.run(t, "label", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMPTY_LABEL")
}

func TestHistoryCommand(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "checkin")
	require.NoError(t, err)
	env.clock.AdvanceDays(1)
	_, err = env.run(t, "checkin")
	require.NoError(t, err)
	_, err = env.run(t, "toggle", "4")
	require.NoError(t, err)

	out, err := env.run(t, "--format", "json", "history")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Entries, 3)

	first := resp.Data.Entries[0]
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "t-0001", first.ID)
	assert.Equal(t, "check_in", first.Action)
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, []int{1, 2, 3}, first.Units)
	assert.NotEmpty(t, first.RecordHash)
	assert.Equal(t, 4, resp.Data.Entries[2].Unit)

	out, err = env.run(t, "--format", "json", "history", "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, "toggle", resp.Data.Entries[0].Action)

	out, err = env.run(t, "history", "--date", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "check_in"))
}

func TestHistoryCommand_BadDate(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "history", "--date", "01/02/2024")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMigrateCommand(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "v1.json")
	v1 := `{"startDate":"2024-01-01T08:00:00.000Z","checkIns":[{"region":1,"timestamp":"2024-01-01T08:00:00.000Z"}]}`
	require.NoError(t, os.WriteFile(path, []byte(v1), 0644))

	out, err := env.run(t, "--format", "json", "migrate", path)
	require.NoError(t, err)

	var resp struct {
		Data MigrateOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Version)
	assert.False(t, resp.Data.Written)
	assert.NotEmpty(t, resp.Data.Hash)
	assert.Contains(t, string(resp.Data.Record), `"currentWay":90`)

	out, err = env.run(t, "migrate", path, "--write")
	require.NoError(t, err)
	assert.Contains(t, out, "Detected schema v1")
	assert.Contains(t, out, "Imported into database")
	assert.NotContains(t, out, "replaced record")

	out, err = env.run(t, "--format", "json", "status")
	require.NoError(t, err)
	status := decodeResponse(t, out)
	assert.Equal(t, []int{1}, status.Data.View.Selected)

	// A second import reports when the record it overwrites was saved.
	out, err = env.run(t, "--format", "json", "migrate", path, "--write")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Written)
	_, err = time.Parse(time.RFC3339, resp.Data.Replaced)
	assert.NoError(t, err, "replaced: %q", resp.Data.Replaced)
}

func TestMigrateCommand_BadInput(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "junk.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0644))

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing_file", []string{"migrate", filepath.Join(t.TempDir(), "nope.json")}, ErrCodeNotFound},
		{"not_json", []string{"migrate", path}, ErrCodeBadInput},
		{"bad_legacy_way", []string{"migrate", path, "--legacy-way", "45"}, ErrCodeBadInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.run(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCommandErrors_JSONCodes(t *testing.T) {
	dir := t.TempDir()
	badConfig := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(badConfig, []byte(`way: 45`), 0644))

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing_config", []string{"--config", filepath.Join(dir, "nope.cue"), "status"}, ErrCodeConfig},
		{"invalid_config", []string{"--config", badConfig, "status"}, ErrCodeConfig},
		{"unknown_timezone", []string{"--tz", "Mars/Olympus_Mons", "status"}, ErrCodeConfig},
		{"unopenable_database", []string{"--db", filepath.Join(dir, "missing", "dir", "brain.db"), "history"}, ErrCodeStore},
		{"missing_scenarios", []string{"test", filepath.Join(dir, "scenarios")}, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			out, err := env.run(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestTestCommand_RunsHarnessScenarios(t *testing.T) {
	env := newCLIEnv(t)
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")

	out, err := env.run(t, "test", scenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ check_in_streak")
	assert.Contains(t, out, "Test Summary: 7 passed, 0 failed, 7 total")
}

func TestTestCommand_FilterAndJSON(t *testing.T) {
	env := newCLIEnv(t)
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")

	out, err := env.run(t, "--format", "json", "test", scenarios, "--filter", "*fail*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "fail_retry", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_UpdateAndMismatch(t *testing.T) {
	env := newCLIEnv(t)
	dir := t.TempDir()
	scenarioDir := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarioDir, 0755))
	scenario := `name: single
description: one check-in
start: 2024-01-01T09:00:00Z
steps:
  - action: check_in
    expect: { day: 1, units: [1, 2, 3] }
`
	require.NoError(t, os.WriteFile(filepath.Join(scenarioDir, "single.yaml"), []byte(scenario), 0644))

	out, err := env.run(t, "test", scenarioDir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ single (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "single.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), "seq=1 id=t-0001 action=check_in date=2024-01-01 day=1")

	_, err = env.run(t, "test", scenarioDir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("# single\n"), 0644))
	out, err = env.run(t, "test", scenarioDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_MissingDir(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		units []int
		want  string
	}{
		{nil, "-"},
		{[]int{7}, "7"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{1, 2, 3, 5, 8, 9}, "1-3,5,8-9"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUnits(tt.units))
		})
	}
}
