// Package ir provides the instruction model for the timing-pattern
// sequencer.
//
// This package contains the program representation only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Every immediate is range-checked at construction (wait occurrences
//     1..4095, branch thresholds 0..4095, counters 0..3)
//   - Branch targets are absolute indices and must lie inside the program
//   - A Program is immutable once built; text and JSON forms are pure
//     renderings of it
//   - All JSON tags use snake_case
package ir
