package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Full(t *testing.T) {
	yaml := `
name: parse_all
description: "every field"
timezone: UTC
way: 60
start: 2024-01-01T09:00:00Z
setup:
  record: '{"completedDays": []}'
  label: Focus
  legacy_way: "90"
steps:
  - at: 2024-01-02T09:00:00Z
    advance_days: 1
    advance: 2h
    action: toggle
    unit: 4
    expect:
      error: UNIT_LOCKED
      state: awaiting_check_in
      day: 1
      button: "Day 1 Check-in"
      units: [1]
      missed_days: 2
      auto_completed: false
      selected: false
      finished: false
assertions:
  - type: final_state
    final:
      way: 60
      checked_regions: { 1: [1, 2] }
      last_fail_date: "2024-01-01"
`
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "parse_all", s.Name)
	assert.Equal(t, 60, s.Way)
	assert.Equal(t, "2024-01-01T09:00:00Z", s.Start)
	require.NotNil(t, s.Setup)
	assert.Equal(t, "90", s.Setup.LegacyWay)

	require.Len(t, s.Steps, 1)
	step := s.Steps[0]
	assert.Equal(t, 1, step.AdvanceDays)
	assert.Equal(t, "2h", step.Advance)
	assert.Equal(t, 4, step.Unit)
	require.NotNil(t, step.Expect)
	assert.Equal(t, "UNIT_LOCKED", step.Expect.Error)
	require.NotNil(t, step.Expect.AutoCompleted)
	assert.False(t, *step.Expect.AutoCompleted)

	require.Len(t, s.Assertions, 1)
	final := s.Assertions[0].Final
	require.NotNil(t, final)
	assert.Equal(t, map[int][]int{1: {1, 2}}, final.CheckedRegions)
	require.NotNil(t, final.LastFailDate)
	assert.Equal(t, "2024-01-01", *final.LastFailDate)
	assert.Nil(t, final.Streak)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown_field",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nstpes: []\n",
			wantErr: "field stpes not found",
		},
		{
			name:    "missing_name",
			yaml:    "description: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: check_in}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing_description",
			yaml:    "name: x\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: check_in}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing_start",
			yaml:    "name: x\ndescription: d\nsteps: [{action: check_in}]\n",
			wantErr: "start is required",
		},
		{
			name:    "bad_start",
			yaml:    "name: x\ndescription: d\nstart: tomorrow\nsteps: [{action: check_in}]\n",
			wantErr: "start:",
		},
		{
			name:    "bad_way",
			yaml:    "name: x\ndescription: d\nway: 45\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: check_in}]\n",
			wantErr: "way 45",
		},
		{
			name:    "no_steps",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown_action",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: jump}]\n",
			wantErr: `unknown action "jump"`,
		},
		{
			name:    "toggle_without_unit",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: toggle}]\n",
			wantErr: "unit is required",
		},
		{
			name:    "set_way_without_way",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: set_way}]\n",
			wantErr: "way is required",
		},
		{
			name:    "expect_without_action",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{advance_days: 1, expect: {day: 2}}]\n",
			wantErr: "expect requires an action",
		},
		{
			name:    "bad_expected_state",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: refresh, expect: {state: sleeping}}]\n",
			wantErr: `unknown state "sleeping"`,
		},
		{
			name:    "bad_advance",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{advance: soon}]\n",
			wantErr: "steps[0].advance",
		},
		{
			name:    "unknown_assertion",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: check_in}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "final_state_without_final",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: check_in}]\nassertions: [{type: final_state}]\n",
			wantErr: "final is required",
		},
		{
			name:    "trace_order_without_actions",
			yaml:    "name: x\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: check_in}]\nassertions: [{type: trace_order}]\n",
			wantErr: "actions list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_SortedByFileName(t *testing.T) {
	dir := t.TempDir()
	body := "name: %s\ndescription: d\nstart: 2024-01-01T00:00:00Z\nsteps: [{action: check_in}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(fmt.Sprintf(body, "second")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(fmt.Sprintf(body, "first")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}

func TestLoadScenarios_ReportsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
