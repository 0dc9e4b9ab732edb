package engine

import (
	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/policy"
)

// View is everything a rendering surface needs after a transition.
type View struct {
	// Title is the user's journey label.
	Title string `json:"title"`

	Date  calendar.LocalDate `json:"date"`
	Day   int                `json:"day"`
	State State              `json:"state"`

	// Button is the action button text; Enabled reports whether it can be
	// pressed.
	Button  string `json:"button"`
	Enabled bool   `json:"enabled"`

	Way policy.Way `json:"way"`

	// Unlocked are the units unlocked in the current journey.
	Unlocked []int `json:"unlocked"`

	// Selected are the units currently shown selected.
	Selected []int `json:"selected"`

	// Pending are today's still-locked units that auto-complete the day
	// when clicked.
	Pending []int `json:"pending"`

	Completed     []int `json:"completed"`
	Streak        int   `json:"streak"`
	MaxDayReached int   `json:"maxDayReached"`
}

// NoticeKind categorizes one-off user-facing messages.
type NoticeKind string

const (
	NoticeMissedDays      NoticeKind = "missed_days"
	NoticeJourneyFinished NoticeKind = "journey_finished"
	NoticeFailed          NoticeKind = "failed"
)

// Notice is a one-off message for the user.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`

	// MissedDays is set for NoticeMissedDays.
	MissedDays int `json:"missedDays,omitempty"`
}

// Surface receives the view after every transition and any notices raised
// along the way. Calls are synchronous.
type Surface interface {
	Render(View)
	Notify(Notice)
}

// NopSurface discards everything.
type NopSurface struct{}

func (NopSurface) Render(View)   {}
func (NopSurface) Notify(Notice) {}
