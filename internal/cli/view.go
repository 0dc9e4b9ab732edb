package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/brainway/internal/engine"
)

// collectSurface keeps the last rendered view and every notice raised while
// a command runs. Implements engine.Surface.
type collectSurface struct {
	view    engine.View
	notices []engine.Notice
}

func (s *collectSurface) Render(v engine.View) {
	s.view = v
}

func (s *collectSurface) Notify(n engine.Notice) {
	s.notices = append(s.notices, n)
}

// Notices returns the notices raised so far, never nil.
func (s *collectSurface) Notices() []engine.Notice {
	if s.notices == nil {
		return []engine.Notice{}
	}
	return s.notices
}

// CommandResult is the payload of every session command.
type CommandResult struct {
	Action  string          `json:"action"`
	Result  any             `json:"result,omitempty"`
	View    engine.View     `json:"view"`
	Notices []engine.Notice `json:"notices"`
}

// String renders the text form: notices, the action's own line, then the view.
func (r CommandResult) String() string {
	var b strings.Builder
	for _, n := range r.Notices {
		fmt.Fprintf(&b, "! %s\n", n.Message)
	}
	if s, ok := r.Result.(fmt.Stringer); ok && s != nil {
		if line := s.String(); line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	b.WriteString(renderView(r.View))
	return strings.TrimRight(b.String(), "\n")
}

func renderView(v engine.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", v.Title, v.Date)
	button := v.Button
	if !v.Enabled {
		button += " [disabled]"
	}
	fmt.Fprintf(&b, "  %s\n", button)
	fmt.Fprintf(&b, "  way: %d days  streak: %d  best day: %d\n", int(v.Way), v.Streak, v.MaxDayReached)
	fmt.Fprintf(&b, "  unlocked: %s (%d/90)\n", formatUnits(v.Unlocked), len(v.Unlocked))
	fmt.Fprintf(&b, "  selected: %s\n", formatUnits(v.Selected))
	if len(v.Pending) > 0 {
		fmt.Fprintf(&b, "  today:    %s\n", formatUnits(v.Pending))
	}
	return b.String()
}

// formatUnits compresses an ascending unit list into ranges: "1-6,9,12-13".
func formatUnits(units []int) string {
	if len(units) == 0 {
		return "-"
	}
	var parts []string
	start, prev := units[0], units[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, u := range units[1:] {
		if u == prev+1 {
			prev = u
			continue
		}
		flush()
		start, prev = u, u
	}
	flush()
	return strings.Join(parts, ",")
}

// CheckInOutput is the result of the checkin command.
type CheckInOutput struct {
	Day      int   `json:"day"`
	Units    []int `json:"units"`
	Finished bool  `json:"finished"`
}

func (o CheckInOutput) String() string {
	if o.Finished {
		return ""
	}
	if len(o.Units) == 0 {
		return fmt.Sprintf("Day %d checked in (no new units)", o.Day)
	}
	return fmt.Sprintf("Day %d checked in: units %s", o.Day, formatUnits(o.Units))
}

// ToggleOutput is the result of the toggle command.
type ToggleOutput struct {
	Unit          int  `json:"unit"`
	Day           int  `json:"day"`
	Selected      bool `json:"selected"`
	AutoCompleted bool `json:"autoCompleted"`
}

func (o ToggleOutput) String() string {
	verb := "deselected"
	if o.Selected {
		verb = "selected"
	}
	line := fmt.Sprintf("Unit %d %s (day %d)", o.Unit, verb, o.Day)
	if o.AutoCompleted {
		line += fmt.Sprintf("; day %d completed", o.Day)
	}
	return line
}

// MessageOutput is a one-line result.
type MessageOutput struct {
	Message string `json:"message"`
}

func (o MessageOutput) String() string {
	return o.Message
}
