// Package engine implements the day-progression state machine.
//
// The engine turns elapsed calendar time, explicit check-in/fail actions and
// direct unit toggles into a consistent progression record.
//
// ARCHITECTURE:
//
// Pure transitions:
// Engine methods take a record.Record by value and return a new one. They
// never read the clock or touch storage, so every rule can be tested with a
// literal record and a literal instant.
//
// Session:
// A Session exclusively owns one record. Per operation it:
// 1. Samples the wall clock once
// 2. Applies a pending missed-day reset
// 3. Runs the pure transition
// 4. Persists the record if its canonical hash changed
// 5. Appends a Transition to the history (if the store keeps one)
// 6. Renders the View
//
// DAY STATES:
//
//	FailLocked       the user failed today; check-in and toggles rejected
//	AwaitingCheckIn  today's day can be checked in
//	Completed        today's day is done
//	JourneyFinished  no units left for today's day
//
// RESETS:
//
// Missed-day reset is triggered only by elapsed time and does not lock today.
// Fail reset is triggered only by the user and locks today. Both clear the
// journey through clearProgress and keep CurrentWay and MaxDayReached.
//
// Check-in gap-fills from the highest selected unit, so the units it hands
// out stay a contiguous prefix 1..k however often the way changes.
package engine
