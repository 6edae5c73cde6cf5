// Package engine simulates the timing-pattern sequencer.
//
// A Machine executes an ir.Program instruction by instruction against a
// model of the hardware: a tick clock advanced only by Wait instructions,
// four pass counters consumed by conditional branches, and a program
// counter. Every emitted event is recorded with its tick, producing a Trace
// that tests and the simulate command compare against the pattern that was
// requested.
//
// Execution is single-threaded and deterministic. A run ends when the clock
// reaches the horizon (one second by default), when the program branches to
// itself, or when the step quota is exhausted.
package engine
