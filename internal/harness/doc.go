// Package harness runs conformance scenarios against the pattern compiler
// and the preset table.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: three_hundred_trains
//	description: "300 single-bunch trains, 3000 ticks apart"
//	pattern:
//	  train_spacing: 3000
//	  trains_per_second: 300
//	  bunch_spacing: 1
//	  bunches_per_train: 1
//	  charge: 12
//	assertions:
//	  - type: train_count
//	    count: 300
//	  - type: train_spacing
//	    ticks: 3000
//
// A scenario names either a pattern or a preset. The built program is run
// on the simulator for one second (or horizon ticks) and the assertions are
// checked against its events.
//
// # Assertion Types
//
//   - event_count, train_count: number of events or trains
//   - train_spacing, bunch_spacing: fixed interval between trains or bunches
//   - first_event: tick of the first event
//   - payload: payload carried by every event
//   - instruction_count, loop_count: program shape
//   - error_code: the build must fail with this code
//
// # Golden Files
//
// RunWithGolden compares the program listing with
// testdata/golden/{name}.golden using goldie.
package harness
