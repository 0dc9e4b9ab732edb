package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brainway/internal/policy"
)

func TestStreak(t *testing.T) {
	tests := []struct {
		name      string
		completed []int
		want      int
	}{
		{"empty", nil, 0},
		{"single", []int{7}, 1},
		{"unbroken", []int{1, 2, 3, 4}, 4},
		{"gap_before_top", []int{1, 2, 4}, 1},
		{"unsorted_input", []int{5, 4, 3, 1}, 3},
		{"duplicates", []int{2, 3, 3, 2}, 2},
		{"earlier_longer_run_ignored", []int{1, 2, 3, 4, 5, 9, 10}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(tt.completed))
		})
	}
}

func TestNew_DefaultsInvalidWay(t *testing.T) {
	r := New(policy.Way(45))
	assert.Equal(t, policy.Way30, r.CurrentWay)
	assert.False(t, r.Started())
	require.NoError(t, r.Validate())
}

func TestMarkCompleted(t *testing.T) {
	r := New(policy.Way30)
	r.MarkCompleted(2)
	r.MarkCompleted(1)
	r.MarkCompleted(2)

	assert.Equal(t, []int{1, 2}, r.CompletedDays)
	assert.Equal(t, 2, r.MaxDayReached)
	assert.Equal(t, 2, r.CurrentStreakDays)
	assert.True(t, r.IsCompleted(1))
	assert.False(t, r.IsCompleted(3))
}

func TestMarkCompleted_NeverLowersWatermark(t *testing.T) {
	r := New(policy.Way30)
	r.MaxDayReached = 12
	r.MarkCompleted(1)
	assert.Equal(t, 12, r.MaxDayReached)
}

func TestSelect_MergesSortedUnique(t *testing.T) {
	r := New(policy.Way30)
	r.Select(1, 3, 1)
	r.Select(1, 2, 3, 0, 91)

	assert.Equal(t, []int{1, 2, 3}, r.CheckedRegions[1])
	assert.Equal(t, 3, r.UnlockedThrough)
	require.NoError(t, r.Validate())
}

func TestSelect_NoUnitsLeavesNoEntry(t *testing.T) {
	r := New(policy.Way30)
	r.Select(4)
	_, ok := r.CheckedRegions[4]
	assert.False(t, ok)
}

func TestDeselect(t *testing.T) {
	r := New(policy.Way30)
	r.Select(1, 1, 2)
	r.Select(3, 7, 8, 9)

	require.True(t, r.Deselect(8))
	assert.Equal(t, []int{7, 9}, r.CheckedRegions[3])

	require.True(t, r.Deselect(1))
	require.True(t, r.Deselect(2))
	_, ok := r.CheckedRegions[1]
	assert.False(t, ok, "empty entries are deleted")

	assert.False(t, r.Deselect(50))
	assert.Equal(t, 9, r.UnlockedThrough, "deselecting never relocks")
}

func TestSelectedUnits(t *testing.T) {
	r := New(policy.Way30)
	r.Select(2, 6, 4)
	r.Select(1, 2)
	assert.Equal(t, []int{2, 4, 6}, r.SelectedUnits())
	assert.Equal(t, 6, r.MaxSelectedUnit())

	day, ok := r.SelectedDay(4)
	require.True(t, ok)
	assert.Equal(t, 2, day)
}

func TestClearProgress_PreservesWayAndWatermark(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	r := New(policy.Way60)
	r.StartDate = &start
	r.MarkCompleted(1)
	r.MarkCompleted(2)
	r.MarkCompleted(3)
	r.MaxDayReached = 2 // simulate a stale watermark
	r.Select(3, 5, 6)
	r.LastFailDate = "2023-12-31"

	r.ClearProgress()

	assert.Nil(t, r.StartDate)
	assert.Empty(t, r.CompletedDays)
	assert.Empty(t, r.CheckedRegions)
	assert.Equal(t, 0, r.CurrentStreakDays)
	assert.Equal(t, 0, r.UnlockedThrough)
	assert.Equal(t, 3, r.MaxDayReached)
	assert.Equal(t, policy.Way60, r.CurrentWay)
	assert.Equal(t, "2023-12-31", r.LastFailDate.String(), "caller owns the fail date")
}

func TestClone_IsDeep(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	r := New(policy.Way30)
	r.StartDate = &start
	r.MarkCompleted(1)
	r.Select(1, 1, 2, 3)

	c := r.Clone()
	c.MarkCompleted(2)
	c.Select(1, 4)
	*c.StartDate = start.Add(time.Hour)

	assert.Equal(t, []int{1}, r.CompletedDays)
	assert.Equal(t, []int{1, 2, 3}, r.CheckedRegions[1])
	assert.Equal(t, start, *r.StartDate)
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
	}{
		{"bad_way", func(r *Record) { r.CurrentWay = 45 }},
		{"zero_day", func(r *Record) { r.CompletedDays = []int{0} }},
		{"unsorted_days", func(r *Record) { r.CompletedDays = []int{2, 1}; r.MaxDayReached = 2; r.CurrentStreakDays = 2 }},
		{"empty_region", func(r *Record) { r.CheckedRegions[1] = []int{} }},
		{"unit_out_of_range", func(r *Record) { r.CheckedRegions[1] = []int{91}; r.UnlockedThrough = 90 }},
		{"unit_above_unlocked", func(r *Record) { r.CheckedRegions[1] = []int{5} }},
		{"stale_watermark", func(r *Record) { r.CompletedDays = []int{4}; r.CurrentStreakDays = 1 }},
		{"stale_streak", func(r *Record) { r.CompletedDays = []int{1, 2}; r.MaxDayReached = 2; r.CurrentStreakDays = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(policy.Way30)
			tt.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestMarshal_CanonicalShape(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 30, 0, 0, time.FixedZone("JST", 9*60*60))
	r := New(policy.Way30)
	r.StartDate = &start
	r.MarkCompleted(1)
	r.Select(1, 1, 2, 3)
	r.Select(10, 28)
	r.LastFailDate = "2024-02-20"

	data, err := Marshal(r)
	require.NoError(t, err)

	want := `{"checkedRegions":{"1":[1,2,3],"10":[28]},"completedDays":[1],"currentStreakDays":1,` +
		`"currentWay":30,"lastFailDate":"2024-02-20","maxDayReached":1,"startDate":"2024-02-29T23:30:00Z",` +
		`"unlockedThrough":28}`
	assert.Equal(t, want, string(data))
}

func TestMarshal_OmitsAbsentOptionals(t *testing.T) {
	data, err := Marshal(New(policy.Way90))
	require.NoError(t, err)
	assert.Equal(t,
		`{"checkedRegions":{},"completedDays":[],"currentStreakDays":0,"currentWay":90,"maxDayReached":0,"unlockedThrough":0}`,
		string(data))
}

func TestHash_StableAcrossEqualRecords(t *testing.T) {
	a := New(policy.Way30)
	a.MarkCompleted(1)
	a.Select(1, 3, 2, 1)

	b := New(policy.Way30)
	b.Select(1, 1, 2, 3)
	b.MarkCompleted(1)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	b.MarkCompleted(2)
	hc, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}
