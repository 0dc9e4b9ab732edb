// Package migrate upgrades persisted progression data of any historical
// shape into the current record.Record.
//
// Three shapes exist:
//
//	v1: {startDate, checkIns: [{region, timestamp}]}
//	v2: {startDate, currentWay, checkIns: [{dayNumber, regions, timestamp, way}]}
//	v3: {startDate, currentWay, completedDays, checkedRegions, maxDayReached,
//	     currentStreakDays, lastFailDate, unlockedThrough}
//
// Detect classifies raw JSON into one of the tagged variants V1, V2, V3.
// Each older variant knows how to upgrade itself one step; Normalize walks
// the chain and backfills whatever the data lacks. This package is the only
// place that knows schema versions exist.
package migrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/policy"
	"github.com/roach88/brainway/internal/record"
)

// Version identifies a persisted schema shape.
type Version int

const (
	VersionV1 Version = 1
	VersionV2 Version = 2
	VersionV3 Version = 3

	// CurrentVersion is the shape record.Marshal produces.
	CurrentVersion = VersionV3
)

// Source is one of the tagged schema variants: V1, V2 or V3.
type Source interface {
	Version() Version
}

// V1CheckIn is a single-unit check-in from the first schema.
type V1CheckIn struct {
	Region    int    `json:"region"`
	Timestamp string `json:"timestamp"`
}

// V1 is the first, one-unit-per-check-in shape.
type V1 struct {
	StartDate *string     `json:"startDate"`
	CheckIns  []V1CheckIn `json:"checkIns"`
}

// V2CheckIn is a multi-unit check-in carrying its own day number and way.
type V2CheckIn struct {
	DayNumber int    `json:"dayNumber"`
	Regions   []int  `json:"regions"`
	Timestamp string `json:"timestamp"`
	Way       int    `json:"way"`
}

// V2 is the check-in log shape that introduced ways.
type V2 struct {
	StartDate  *string     `json:"startDate"`
	CurrentWay *int        `json:"currentWay"`
	CheckIns   []V2CheckIn `json:"checkIns"`
}

// V3 is the current shape. Pointer fields distinguish "absent" from zero.
type V3 struct {
	StartDate         *string          `json:"startDate"`
	CurrentWay        *int             `json:"currentWay"`
	CompletedDays     []int            `json:"completedDays"`
	CheckedRegions    map[string][]int `json:"checkedRegions"`
	MaxDayReached     *int             `json:"maxDayReached"`
	CurrentStreakDays *int             `json:"currentStreakDays"`
	LastFailDate      *string          `json:"lastFailDate"`
	UnlockedThrough   *int             `json:"unlockedThrough"`
}

func (V1) Version() Version { return VersionV1 }
func (V2) Version() Version { return VersionV2 }
func (V3) Version() Version { return VersionV3 }

// Upgrade converts v1 check-ins into v2 entries: the i-th check-in becomes
// day i+1 with its single region, under a 90-day way.
func (v V1) Upgrade() V2 {
	way := int(policy.Way90)
	out := V2{StartDate: v.StartDate, CurrentWay: &way}
	for i, ci := range v.CheckIns {
		out.CheckIns = append(out.CheckIns, V2CheckIn{
			DayNumber: i + 1,
			Regions:   []int{ci.Region},
			Timestamp: ci.Timestamp,
			Way:       int(policy.Way90),
		})
	}
	return out
}

// Upgrade folds the v2 check-in log into completed days and per-day regions.
// Derived fields are left absent for Normalize to backfill.
func (v V2) Upgrade() V3 {
	out := V3{
		StartDate:      v.StartDate,
		CurrentWay:     v.CurrentWay,
		CompletedDays:  []int{},
		CheckedRegions: map[string][]int{},
	}
	for _, ci := range v.CheckIns {
		if ci.DayNumber < 1 {
			continue
		}
		if !slices.Contains(out.CompletedDays, ci.DayNumber) {
			out.CompletedDays = append(out.CompletedDays, ci.DayNumber)
		}
		key := strconv.Itoa(ci.DayNumber)
		out.CheckedRegions[key] = append(out.CheckedRegions[key], ci.Regions...)
	}
	slices.Sort(out.CompletedDays)
	return out
}

// Option adjusts normalization.
type Option func(*options)

type options struct {
	legacyWay policy.Way
}

// WithLegacyWay supplies the way persisted under the historical standalone
// way key. It only applies to data that carries no valid currentWay.
func WithLegacyWay(w policy.Way) Option {
	return func(o *options) {
		o.legacyWay = w
	}
}

// probe is the minimal view Detect needs to classify a payload.
type probe struct {
	CheckIns       []json.RawMessage `json:"checkIns"`
	CompletedDays  json.RawMessage   `json:"completedDays"`
	CheckedRegions json.RawMessage   `json:"checkedRegions"`
	MaxDayReached  json.RawMessage   `json:"maxDayReached"`
}

// Detect classifies raw JSON as V1, V2 or V3.
//
// A payload with any current-shape field, or without a check-in log, is V3.
// A check-in log whose first entry has "region" but no "regions" is V1.
// Any other check-in log is V2.
func Detect(raw []byte) (Source, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("detect schema: empty payload")
	}

	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("detect schema: %w", err)
	}

	current := p.CompletedDays != nil || p.CheckedRegions != nil || p.MaxDayReached != nil
	if current || p.CheckIns == nil {
		var v V3
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode v3: %w", err)
		}
		return v, nil
	}

	if len(p.CheckIns) > 0 && isV1CheckIn(p.CheckIns[0]) {
		var v V1
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode v1: %w", err)
		}
		return v, nil
	}

	var v V2
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode v2: %w", err)
	}
	return v, nil
}

func isV1CheckIn(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, hasRegion := fields["region"]
	_, hasRegions := fields["regions"]
	return hasRegion && !hasRegions
}

// Normalize upgrades src step by step until it is V3, then backfills it into
// a record that satisfies every record invariant.
func Normalize(src Source, opts ...Option) (record.Record, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	for {
		switch v := src.(type) {
		case V1:
			src = v.Upgrade()
		case V2:
			src = v.Upgrade()
		case V3:
			return v.normalize(o)
		default:
			return record.Record{}, fmt.Errorf("normalize: unknown schema variant %T", src)
		}
	}
}

// Migrate detects and normalizes raw JSON in one step. The returned Version
// is the shape the payload was found in.
func Migrate(raw []byte, opts ...Option) (record.Record, Version, error) {
	src, err := Detect(raw)
	if err != nil {
		return record.Record{}, 0, err
	}
	rec, err := Normalize(src, opts...)
	if err != nil {
		return record.Record{}, src.Version(), err
	}
	return rec, src.Version(), nil
}

func (v V3) normalize(o *options) (record.Record, error) {
	way := policy.DefaultWay
	switch {
	case v.CurrentWay != nil && policy.Way(*v.CurrentWay).Valid():
		way = policy.Way(*v.CurrentWay)
	case o.legacyWay.Valid():
		way = o.legacyWay
	}
	rec := record.New(way)

	if v.StartDate != nil && *v.StartDate != "" {
		t, err := time.Parse(time.RFC3339, *v.StartDate)
		if err != nil {
			return record.Record{}, fmt.Errorf("normalize startDate: %w", err)
		}
		rec.StartDate = &t
	}

	for _, d := range v.CompletedDays {
		if d >= 1 && !slices.Contains(rec.CompletedDays, d) {
			rec.CompletedDays = append(rec.CompletedDays, d)
		}
	}
	slices.Sort(rec.CompletedDays)

	for key, units := range v.CheckedRegions {
		day, err := strconv.Atoi(key)
		if err != nil || day < 1 {
			continue
		}
		rec.Select(day, units...)
	}

	rec.MaxDayReached = rec.LastCompleted()
	if v.MaxDayReached != nil && *v.MaxDayReached > rec.MaxDayReached {
		rec.MaxDayReached = *v.MaxDayReached
	}

	// Always derived; a stored value is never trusted.
	rec.CurrentStreakDays = record.Streak(rec.CompletedDays)

	if v.LastFailDate != nil {
		if d, err := calendar.ParseLocalDate(*v.LastFailDate); err == nil {
			rec.LastFailDate = d
		}
	}

	if v.UnlockedThrough != nil {
		rec.Unlock(*v.UnlockedThrough)
	}

	if err := rec.Validate(); err != nil {
		return record.Record{}, fmt.Errorf("normalize: %w", err)
	}
	return rec, nil
}
