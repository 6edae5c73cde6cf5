package compiler

import (
	"fmt"
	"slices"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// waitCounter closes the long-wait loops emitted by encodeWait.
const waitCounter ir.CounterID = 3

// level is one base-256 digit of the trains-per-second count.
type level struct {
	name string

	// span is the number of trains one unit of the digit stands for.
	span int64

	// repeat closes the level loop, innermost first. All but the last run
	// 256 passes; the last runs digit passes.
	repeat []ir.CounterID

	// train holds the counters handed to encodeTrain: fine loop first,
	// then the optional coarse loop.
	train []ir.CounterID
}

// levels is the static counter allocation, innermost level first. Level B
// and C trains only get one counter because a pattern with 256 or more
// trains cannot fit more than 4095 bunches per train into the second.
// Level C may hand counter 3 to its trains because its train spacing is at
// most 13 ticks, so no wait inside one of its trains needs a loop.
var levels = [...]level{
	{name: "A", span: 1, repeat: []ir.CounterID{0}, train: []ir.CounterID{1, 2}},
	{name: "B", span: 256, repeat: []ir.CounterID{0, 2}, train: []ir.CounterID{1}},
	{name: "C", span: 256 * 256, repeat: []ir.CounterID{0, 1, 2}, train: []ir.CounterID{3}},
}

// checkAllocation verifies that no level hands the same counter to its
// repeat chain and its trains, and that the long-wait counter never closes
// a repeat loop.
func checkAllocation() error {
	for _, lvl := range levels {
		if len(lvl.repeat) == 0 || len(lvl.train) == 0 {
			return fmt.Errorf("level %s: empty counter set", lvl.name)
		}
		for _, c := range lvl.repeat {
			if slices.Contains(lvl.train, c) {
				return fmt.Errorf("level %s: counter %d used by both repeat and train loops", lvl.name, c)
			}
			if c == waitCounter {
				return fmt.Errorf("level %s: counter %d reserved for waits", lvl.name, c)
			}
		}
	}
	return nil
}

// ValidateProgram checks the counter discipline of a finished program: no
// two loops whose spans overlap may share a counter, since the inner loop
// would clobber the outer loop's pass count.
func ValidateProgram(p *ir.Program) error {
	if err := p.Validate(); err != nil {
		return &CompileError{Code: ErrBranchTargetOutOfRange, Message: err.Error(), Err: err}
	}
	// Loops arrive in order of their closing branch, so on each counter the
	// latest loop seen is the only one that can still be open.
	var last [ir.NumCounters]*ir.Loop
	for _, l := range p.Loops() {
		l := l
		if prev := last[l.Counter]; prev != nil && l.Start <= prev.End {
			relation := "overlaps"
			if l.Contains(*prev) {
				relation = "encloses"
			}
			return &CompileError{
				Code:  ErrCounterConflict,
				Field: fmt.Sprintf("instructions[%d]", l.End),
				Message: fmt.Sprintf("counter %d closes loop [%d,%d] which %s loop [%d,%d] on the same counter",
					l.Counter, l.Start, l.End, relation, prev.Start, prev.End),
			}
		}
		last[l.Counter] = &l
	}
	return nil
}
