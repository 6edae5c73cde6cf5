// Package compiler turns timing-pattern parameters into sequencer programs.
//
// The sequencer's immediates are narrow (4095 wait occurrences, 4095 branch
// passes) and it has four hardware counters. The compiler decomposes
// arbitrarily large waits, bunch counts and train counts into loops over
// those immediates:
//
//   - encodeWait splits long delays into a loop of full-width waits on
//     counter 3 plus a remainder
//   - encodeTrain emits a train as a leading event and a fine loop, with a
//     coarse loop for more than 4095 trailing bunches
//   - CompilePattern splits the train count into three base-256 digits, one
//     loop level per non-zero digit, using the static counter table in
//     counters.go
//
// Every compile is single pass over an append-only builder. All branches
// point backwards, so targets are known when emitted. The finished program
// is checked by ValidateProgram before it is returned.
package compiler
