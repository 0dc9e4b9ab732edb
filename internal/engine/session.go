package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/migrate"
	"github.com/roach88/brainway/internal/policy"
	"github.com/roach88/brainway/internal/record"
)

// Store keys.
const (
	KeyRecord = "brain-checkin-data"
	KeyLabel  = "brain-label"

	// KeyWay is the historical standalone way key. It is only read, and only
	// to seed records that carry no way of their own.
	KeyWay = "brain-way"
)

// DefaultLabel is the journey label until the user sets one.
const DefaultLabel = "My Brain Journey"

// Store is the persistence capability a Session needs.
// Get returns found=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// HistoryStore is optionally implemented by a Store that keeps an
// append-only transition log.
type HistoryStore interface {
	AppendTransition(ctx context.Context, t Transition) error
	LastSeq(ctx context.Context) (int64, error)
}

// Action names a transition in the history.
type Action string

const (
	ActionCheckIn     Action = "check_in"
	ActionFail        Action = "fail"
	ActionToggle      Action = "toggle"
	ActionSetWay      Action = "set_way"
	ActionSetLabel    Action = "set_label"
	ActionMissedReset Action = "missed_day_reset"
)

// Transition is one applied state change.
type Transition struct {
	ID  string
	Seq int64

	Action Action

	// At is the wall-clock instant the transition was evaluated at.
	At   time.Time
	Date calendar.LocalDate

	// Day is the current day after the transition.
	Day   int
	State State
	Way   policy.Way

	// Unit is set for toggles; Units lists units selected by a check-in.
	Unit  int
	Units []int

	// MissedDays is set for missed-day resets.
	MissedDays int

	// RecordHash is the content hash of the record after the transition.
	RecordHash string
}

// Session owns one progression record exclusively.
//
// Each operation samples the clock exactly once, applies any pending
// missed-day reset, runs the pure Engine transition, persists the record if
// its content changed and renders. Store failures never fail an operation:
// reads fall back to a fresh record and writes are logged, leaving the
// in-memory record authoritative.
//
// Thread-safety: Session is NOT safe for concurrent use.
type Session struct {
	store   Store
	history HistoryStore
	engine  *Engine
	clock   calendar.Clock
	surface Surface
	logger  *slog.Logger
	ids     IDGenerator
	seq     *Clock

	defaultWay   policy.Way
	defaultLabel string

	rec    record.Record
	hash   string // hash of the last successfully persisted payload
	label  string
	status Status
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the wall clock. Default: calendar.SystemClock.
func WithClock(c calendar.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithCalendar sets the calendar used for local dates. Default: time.Local.
func WithCalendar(cal calendar.Calendar) Option {
	return func(s *Session) {
		s.engine = New(cal)
	}
}

// WithSurface sets the rendering surface. Default: NopSurface.
func WithSurface(sf Surface) Option {
	return func(s *Session) {
		s.surface = sf
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithIDGenerator sets the transition ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// WithDefaultWay sets the way of a brand-new record.
func WithDefaultWay(w policy.Way) Option {
	return func(s *Session) {
		if w.Valid() {
			s.defaultWay = w
		}
	}
}

// WithDefaultLabel sets the label used until the user sets one.
func WithDefaultLabel(label string) Option {
	return func(s *Session) {
		if l := normalizeLabel(label); l != "" {
			s.defaultLabel = l
		}
	}
}

// Open loads, migrates and refreshes the record held by store.
//
// A missing, unreadable or unparseable record is replaced by a fresh one,
// which is not written until the first transition.
// If store also implements HistoryStore, transitions are appended to it and
// the seq clock resumes after the last stored transition.
func Open(ctx context.Context, store Store, opts ...Option) *Session {
	s := &Session{
		store:        store,
		engine:       New(calendar.New(nil)),
		clock:        calendar.SystemClock{},
		surface:      NopSurface{},
		logger:       slog.Default(),
		ids:          UUIDv7Generator{},
		seq:          NewClock(),
		defaultWay:   policy.DefaultWay,
		defaultLabel: DefaultLabel,
	}
	for _, opt := range opts {
		opt(s)
	}

	if hs, ok := store.(HistoryStore); ok {
		s.history = hs
		last, err := hs.LastSeq(ctx)
		if err != nil {
			s.logger.Error("read history position failed", "error", err)
		}
		s.seq = NewClockAt(last)
	}

	s.load(ctx)
	s.label = s.loadLabel(ctx)

	s.begin(ctx)
	s.render()
	return s
}

// Refresh re-evaluates today's status, e.g. after the local date changed.
func (s *Session) Refresh(ctx context.Context) Status {
	s.begin(ctx)
	s.render()
	return s.status
}

// CheckIn checks in for today.
func (s *Session) CheckIn(ctx context.Context) (CheckInResult, error) {
	now, missed := s.begin(ctx)

	rec, res, err := s.engine.CheckIn(s.rec, now)
	if res.Missed == nil {
		res.Missed = missed
	}
	if err != nil {
		s.logger.Info("check-in rejected", "error", err)
		s.render()
		return res, err
	}
	if res.Finished {
		s.status = res.Status
		s.logger.Info("journey finished", "day", res.Status.Day, "way", int(s.rec.CurrentWay))
		s.surface.Notify(Notice{
			Kind:    NoticeJourneyFinished,
			Message: "Congratulations! You have completed all 90 units!",
		})
		s.render()
		return res, nil
	}

	s.rec = rec
	s.status = res.Status
	s.persist(ctx)
	s.logger.Info("checked in",
		"day", res.Day,
		"units", res.Units,
		"date", res.Status.Today.String(),
		"utc", now.UTC().Format(time.RFC3339),
	)
	s.appendTransition(ctx, Transition{
		Action: ActionCheckIn,
		At:     now,
		Units:  res.Units,
	})
	s.render()
	return res, nil
}

// Fail resets the journey and locks the rest of today.
func (s *Session) Fail(ctx context.Context) Status {
	now, _ := s.begin(ctx)

	s.rec = s.engine.FailReset(s.rec, now)
	_, s.status, _ = s.engine.Refresh(s.rec, now)
	s.persist(ctx)
	s.logger.Info("journey failed", "date", s.status.Today.String(), "max_day_reached", s.rec.MaxDayReached)
	s.surface.Notify(Notice{
		Kind:    NoticeFailed,
		Message: "All check-ins have been reset.",
	})
	s.appendTransition(ctx, Transition{Action: ActionFail, At: now})
	s.render()
	return s.status
}

// Toggle flips the selection of unit.
func (s *Session) Toggle(ctx context.Context, unit int) (ToggleResult, error) {
	now, missed := s.begin(ctx)

	rec, res, err := s.engine.Toggle(s.rec, unit, now)
	if res.Missed == nil {
		res.Missed = missed
	}
	if err != nil {
		s.logger.Info("toggle rejected", "unit", unit, "error", err)
		s.render()
		return res, err
	}

	s.rec = rec
	s.status = res.Status
	s.persist(ctx)
	s.logger.Debug("unit toggled",
		"unit", unit,
		"day", res.Day,
		"selected", res.Selected,
		"auto_completed", res.AutoCompleted,
	)
	s.appendTransition(ctx, Transition{Action: ActionToggle, At: now, Unit: unit})
	s.render()
	return res, nil
}

// SetWay changes the journey length. An invalid way leaves everything
// untouched.
func (s *Session) SetWay(ctx context.Context, way int) error {
	now, _ := s.begin(ctx)

	rec, err := s.engine.SetWay(s.rec, way)
	if err != nil {
		s.logger.Warn("way rejected", "way", way, "error", err)
		s.render()
		return err
	}

	s.rec = rec
	_, s.status, _ = s.engine.Refresh(s.rec, now)
	s.persist(ctx)
	s.logger.Info("way updated", "way", way)
	s.appendTransition(ctx, Transition{Action: ActionSetWay, At: now})
	s.render()
	return nil
}

// SetLabel sets the journey label. The label is trimmed and NFC-normalized;
// a blank label is rejected.
func (s *Session) SetLabel(ctx context.Context, text string) error {
	label := normalizeLabel(text)
	if label == "" {
		return NewEmptyLabelError()
	}
	now := s.clock.Now()

	s.label = label
	if err := s.store.Set(ctx, KeyLabel, []byte(label)); err != nil {
		s.logger.Error("save label failed", "error", err)
	}
	s.logger.Info("label updated", "label", label)
	s.appendTransition(ctx, Transition{Action: ActionSetLabel, At: now})
	s.render()
	return nil
}

// Record returns a copy of the current record.
func (s *Session) Record() record.Record {
	return s.rec.Clone()
}

// Status returns today's status as of the last operation.
func (s *Session) Status() Status {
	return s.status
}

// Label returns the journey label.
func (s *Session) Label() string {
	return s.label
}

// View returns the current view.
func (s *Session) View() View {
	selected := s.rec.SelectedUnits()
	if selected == nil {
		selected = []int{}
	}
	completed := append([]int{}, s.rec.CompletedDays...)

	return View{
		Title:         s.label,
		Date:          s.status.Today,
		Day:           s.status.Day,
		State:         s.status.State,
		Button:        s.status.Label(),
		Enabled:       s.status.CanCheckIn(),
		Way:           s.rec.CurrentWay,
		Unlocked:      s.engine.Unlocked(s.rec),
		Selected:      selected,
		Pending:       s.engine.Pending(s.rec, s.status),
		Completed:     completed,
		Streak:        s.rec.CurrentStreakDays,
		MaxDayReached: s.rec.MaxDayReached,
	}
}

// begin samples the clock and applies a pending missed-day reset, so the
// transition that follows starts from a record that is current for now.
func (s *Session) begin(ctx context.Context) (time.Time, *MissedDayNotice) {
	now := s.clock.Now()

	rec, status, missed := s.engine.Refresh(s.rec, now)
	s.rec = rec
	s.status = status
	if missed != nil {
		s.logger.Warn("missed days, journey reset",
			"missed_days", missed.MissedDays,
			"last_completed", missed.LastCompleted,
		)
		s.surface.Notify(Notice{
			Kind:       NoticeMissedDays,
			Message:    fmt.Sprintf("You missed %d day(s). Your journey starts again at day 1.", missed.MissedDays),
			MissedDays: missed.MissedDays,
		})
	}
	// A fallback record is never written over the stored bytes it replaced;
	// only a record read from the store (or a reset) is written back here.
	if missed != nil || s.hash != "" {
		s.persist(ctx)
	}
	if missed != nil {
		s.appendTransition(ctx, Transition{
			Action:     ActionMissedReset,
			At:         now,
			MissedDays: missed.MissedDays,
		})
	}
	return now, missed
}

func (s *Session) load(ctx context.Context) {
	var opts []migrate.Option
	legacy, hasLegacy := s.legacyWay(ctx)
	if hasLegacy {
		opts = append(opts, migrate.WithLegacyWay(legacy))
	}

	fresh := func() record.Record {
		if hasLegacy {
			return record.New(legacy)
		}
		return record.New(s.defaultWay)
	}

	raw, found, err := s.store.Get(ctx, KeyRecord)
	if err != nil {
		s.logger.Error("load record failed, starting fresh", "error", err)
		s.rec = fresh()
		return
	}
	if !found {
		s.rec = fresh()
		return
	}

	rec, version, err := migrate.Migrate(raw, opts...)
	if err != nil {
		s.logger.Error("parse record failed, starting fresh", "error", err)
		s.rec = fresh()
		return
	}
	if version != migrate.CurrentVersion {
		s.logger.Info("record migrated", "from", int(version), "to", int(migrate.CurrentVersion))
	}
	s.rec = rec
	s.hash = record.HashBytes(raw)
}

func (s *Session) legacyWay(ctx context.Context) (policy.Way, bool) {
	raw, found, err := s.store.Get(ctx, KeyWay)
	if err != nil {
		s.logger.Warn("load legacy way failed", "error", err)
		return 0, false
	}
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	if err != nil {
		return 0, false
	}
	w, err := policy.ParseWay(n)
	if err != nil {
		return 0, false
	}
	return w, true
}

func (s *Session) loadLabel(ctx context.Context) string {
	raw, found, err := s.store.Get(ctx, KeyLabel)
	if err != nil {
		s.logger.Error("load label failed", "error", err)
		return s.defaultLabel
	}
	if !found {
		return s.defaultLabel
	}
	if label := normalizeLabel(string(raw)); label != "" {
		return label
	}
	return s.defaultLabel
}

// persist writes the record when its canonical encoding changed since the
// last successful write.
func (s *Session) persist(ctx context.Context) {
	data, err := record.Marshal(s.rec)
	if err != nil {
		s.logger.Error("encode record failed", "error", err)
		return
	}
	hash := record.HashBytes(data)
	if hash == s.hash {
		return
	}
	if err := s.store.Set(ctx, KeyRecord, data); err != nil {
		s.logger.Error("save record failed", "error", err)
		return
	}
	s.hash = hash
}

// appendTransition stamps t and appends it to the history, if any.
func (s *Session) appendTransition(ctx context.Context, t Transition) {
	if s.history == nil {
		return
	}
	hash, err := record.Hash(s.rec)
	if err != nil {
		s.logger.Error("hash record failed", "error", err)
		return
	}

	t.ID = s.ids.Generate()
	t.Seq = s.seq.Next()
	t.Date = s.engine.Calendar().LocalDate(t.At)
	t.Day = s.status.Day
	t.State = s.status.State
	t.Way = s.rec.CurrentWay
	t.RecordHash = hash
	if t.Units == nil {
		t.Units = []int{}
	}

	if err := s.history.AppendTransition(ctx, t); err != nil {
		s.logger.Error("append transition failed", "action", string(t.Action), "error", err)
	}
}

func (s *Session) render() {
	s.surface.Render(s.View())
}

func normalizeLabel(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}
