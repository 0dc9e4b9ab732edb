// Package harness runs scripted check-in scenarios against a real session.
//
// Each scenario gets a fresh in-memory store, a settable wall clock and
// sequential transition IDs, so the same scenario always produces the same
// history. The history and the final record are read back from the store,
// checked against the scenario's assertions and compared with a golden
// snapshot.
//
// # Scenario Format
//
//	name: missed_days
//	description: "Skipping days resets the journey"
//	timezone: UTC          # optional, IANA name
//	way: 30                # optional, way of a brand-new record
//	start: 2024-01-01T09:00:00Z
//	setup:                 # optional raw store values
//	  record: '{"startDate": null, "checkIns": []}'
//	  label: My Journey
//	  legacy_way: "60"
//	steps:
//	  - action: check_in
//	    expect: { day: 1, state: completed, units: [1, 2, 3] }
//	  - advance_days: 9
//	    action: check_in
//	    expect: { missed_days: 8, units: [1, 2, 3] }
//	  - action: toggle
//	    unit: 5
//	    expect: { error: UNIT_LOCKED }
//	assertions:
//	  - type: trace_order
//	    actions: [check_in, missed_day_reset, check_in]
//	  - type: final_state
//	    final: { completed_days: [1], streak: 1 }
//
// Steps move the clock with at, advance_days and advance (a Go duration)
// before running their action: check_in, fail, toggle, set_way, set_label or
// refresh. A step without an expect clause must succeed.
//
// # Assertion Types
//
//   - trace_contains: an event with the action (and day, state, unit if set) exists
//   - trace_order: actions appear in the specified order
//   - trace_count: an action appears exactly N times
//   - final_state: subset match against the persisted record and label
package harness
