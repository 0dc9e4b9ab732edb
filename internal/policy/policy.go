// Package policy maps journey days onto the fixed 90-unit progress space.
//
// Every function here is pure. A unit's owning day is always derived from the
// current way; nothing about ownership is ever stored.
package policy

import "fmt"

// TotalUnits is the size of the progress space. Units are numbered 1..TotalUnits.
const TotalUnits = 90

// Way is the journey length in days.
type Way int

const (
	Way30 Way = 30
	Way60 Way = 60
	Way90 Way = 90
)

// DefaultWay is used when no way has ever been chosen.
const DefaultWay = Way30

// Ways lists the accepted journey lengths in ascending order.
var Ways = []Way{Way30, Way60, Way90}

// Valid reports whether w is one of the accepted journey lengths.
func (w Way) Valid() bool {
	switch w {
	case Way30, Way60, Way90:
		return true
	}
	return false
}

// ParseWay validates n as a Way.
func ParseWay(n int) (Way, error) {
	w := Way(n)
	if !w.Valid() {
		return 0, fmt.Errorf("invalid way %d: must be one of %v", n, Ways)
	}
	return w, nil
}

// ceilDiv returns ceil(a/b) for a >= 0, b > 0.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// rangeBounds returns the unclipped [start, end] of day's units.
func rangeBounds(day int, way Way) (start, end int) {
	start = ceilDiv((day-1)*TotalUnits, int(way)) + 1
	end = ceilDiv(day*TotalUnits, int(way))
	return start, end
}

// UnitsForDay returns the ascending units owned by day under way.
// Returns nil when day < 1, way is invalid, or the range starts past TotalUnits.
func UnitsForDay(day int, way Way) []int {
	if day < 1 || !way.Valid() {
		return nil
	}
	start, end := rangeBounds(day, way)
	if start > TotalUnits {
		return nil
	}
	if end > TotalUnits {
		end = TotalUnits
	}
	return unitRange(start, end)
}

// GapFillUnlock returns every unit from lastUnlockedMax+1 through the top of
// day's range, clipped to TotalUnits. After any sequence of way changes the
// unlocked units therefore stay a contiguous prefix 1..k.
func GapFillUnlock(lastUnlockedMax, day int, way Way) []int {
	units := UnitsForDay(day, way)
	if len(units) == 0 {
		return nil
	}
	if lastUnlockedMax < 0 {
		lastUnlockedMax = 0
	}
	return unitRange(lastUnlockedMax+1, units[len(units)-1])
}

// DayOwningUnit returns the day that owns unit under way: the first day whose
// range end reaches unit. For ways 30 and 90 this is ceil(unit / (90/way));
// a 60-day way hands out 1.5 units per day, and this form stays the exact
// inverse of UnitsForDay there too.
func DayOwningUnit(unit int, way Way) int {
	if unit < 1 || !way.Valid() {
		return 0
	}
	return (unit-1)*int(way)/TotalUnits + 1
}

// Exhausted reports whether day lies beyond the end of the journey: its
// unclipped range runs past TotalUnits.
func Exhausted(day int, way Way) bool {
	if !way.Valid() {
		return true
	}
	_, end := rangeBounds(day, way)
	return end > TotalUnits
}

// ValidUnit reports whether unit addresses the progress space.
func ValidUnit(unit int) bool {
	return unit >= 1 && unit <= TotalUnits
}

func unitRange(start, end int) []int {
	if end > TotalUnits {
		end = TotalUnits
	}
	if start < 1 {
		start = 1
	}
	if start > end {
		return nil
	}
	units := make([]int, 0, end-start+1)
	for u := start; u <= end; u++ {
		units = append(units, u)
	}
	return units
}
