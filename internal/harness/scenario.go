package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/brainway/internal/engine"
	"github.com/roach88/brainway/internal/policy"
)

// Scenario defines a conformance test case: a starting instant, a sequence
// of timed user actions with optional expectations, and assertions over the
// resulting history and final record.
type Scenario struct {
	// Name is the unique identifier for this scenario. Also names the golden
	// file.
	Name string `yaml:"name"`

	// Description explains what this scenario tests.
	Description string `yaml:"description"`

	// Timezone is an IANA zone name. Empty means UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Way is the way of a brand-new record. Zero means the default way.
	Way int `yaml:"way,omitempty"`

	// Start is the RFC 3339 instant the clock starts at.
	Start string `yaml:"start"`

	// Setup seeds the store before the session opens.
	Setup *Setup `yaml:"setup,omitempty"`

	// Steps run in order against one session.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Setup seeds raw store values, e.g. a legacy payload to migrate.
type Setup struct {
	Record    string `yaml:"record,omitempty"`
	Label     string `yaml:"label,omitempty"`
	LegacyWay string `yaml:"legacy_way,omitempty"`
}

// Step moves the clock and then runs one action.
//
// Clock movement is applied in the order at, advance_days, advance. An
// action of "" only moves the clock.
type Step struct {
	At          string `yaml:"at,omitempty"`
	AdvanceDays int    `yaml:"advance_days,omitempty"`
	Advance     string `yaml:"advance,omitempty"`

	// Action is one of the Action* constants.
	Action string `yaml:"action,omitempty"`

	Unit  int    `yaml:"unit,omitempty"`
	Way   int    `yaml:"way,omitempty"`
	Label string `yaml:"label,omitempty"`

	// Expect validates the outcome of the action (optional).
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause validates a step outcome. Unset fields are not checked.
type ExpectClause struct {
	// Error is the expected engine error code; "" expects success.
	Error string `yaml:"error,omitempty"`

	State  string `yaml:"state,omitempty"`
	Day    int    `yaml:"day,omitempty"`
	Button string `yaml:"button,omitempty"`

	// Units are the units a check-in selected.
	Units []int `yaml:"units,omitempty"`

	MissedDays    int   `yaml:"missed_days,omitempty"`
	AutoCompleted *bool `yaml:"auto_completed,omitempty"`
	Selected      *bool `yaml:"selected,omitempty"`
	Finished      *bool `yaml:"finished,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event with Action (and Day/State/Unit if set) exists
	// - "trace_order": Actions appear in order
	// - "trace_count": Action appears exactly Count times
	// - "final_state": the final record matches Final
	Type string `yaml:"type"`

	Action string `yaml:"action,omitempty"`
	Day    int    `yaml:"day,omitempty"`
	State  string `yaml:"state,omitempty"`
	Unit   int    `yaml:"unit,omitempty"`

	Count   int      `yaml:"count,omitempty"`
	Actions []string `yaml:"actions,omitempty"`

	Final *FinalExpect `yaml:"final,omitempty"`
}

// FinalExpect is a subset match against FinalState. Nil fields are skipped.
type FinalExpect struct {
	Way             *int          `yaml:"way,omitempty"`
	Started         *bool         `yaml:"started,omitempty"`
	CompletedDays   []int         `yaml:"completed_days,omitempty"`
	CheckedRegions  map[int][]int `yaml:"checked_regions,omitempty"`
	UnlockedThrough *int          `yaml:"unlocked_through,omitempty"`
	MaxDayReached   *int          `yaml:"max_day_reached,omitempty"`
	Streak          *int          `yaml:"streak,omitempty"`
	LastFailDate    *string       `yaml:"last_fail_date,omitempty"`
	Label           *string       `yaml:"label,omitempty"`
}

// Step actions.
const (
	ActionCheckIn  = "check_in"
	ActionFail     = "fail"
	ActionToggle   = "toggle"
	ActionSetWay   = "set_way"
	ActionSetLabel = "set_label"
	ActionRefresh  = "refresh"
)

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "asertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, ordered by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Start == "" {
		return fmt.Errorf("start is required")
	}
	if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if s.Way != 0 && !policy.Way(s.Way).Valid() {
		return fmt.Errorf("way %d: must be one of %v", s.Way, policy.Ways)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	if step.At != "" {
		if _, err := time.Parse(time.RFC3339, step.At); err != nil {
			return fmt.Errorf("steps[%d].at: %w", index, err)
		}
	}
	if step.Advance != "" {
		if _, err := time.ParseDuration(step.Advance); err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
	}

	switch step.Action {
	case "":
		if step.Expect != nil {
			return fmt.Errorf("steps[%d]: expect requires an action", index)
		}
	case ActionCheckIn, ActionFail, ActionRefresh:
	case ActionToggle:
		if step.Unit == 0 {
			return fmt.Errorf("steps[%d]: unit is required for toggle", index)
		}
	case ActionSetWay:
		if step.Way == 0 {
			return fmt.Errorf("steps[%d]: way is required for set_way", index)
		}
	case ActionSetLabel:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}

	if step.Expect != nil && step.Expect.State != "" {
		if _, err := engine.ParseState(step.Expect.State); err != nil {
			return fmt.Errorf("steps[%d].expect: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Final == nil {
			return fmt.Errorf("assertions[%d]: final is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
