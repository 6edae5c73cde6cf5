package compiler

import (
	"fmt"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// digitBase is the radix of the trains-per-second decomposition. Each digit
// fits one 8-bit repeat counter.
const digitBase = ir.MaxRepeatThreshold + 1

// Digits decomposes n into three base-256 digits, least significant first.
// Digits beyond the third are dropped; the one-second budget keeps n well
// below 256^3.
func Digits(n int64) [3]int64 {
	var d [3]int64
	for i := range d {
		d[i] = n % digitBase
		n /= digitBase
	}
	return d
}

// CompilePattern compiles p into a sequencer program. On error no program is
// returned.
//
// The program is laid out as:
//  1. an optional start wait
//  2. one loop level per non-zero base-256 digit of the train count, each
//     body a train followed by the gap to the next train
//  3. a terminator: a jump to 0 when repeating, otherwise a self-branch
func CompilePattern(p ir.PatternParams) (*ir.Program, error) {
	trains, err := ValidateParams(p)
	if err != nil {
		return nil, err
	}

	b := &builder{}
	if p.StartBucket > 0 {
		if err := encodeWait(b, p.StartBucket); err != nil {
			return nil, err
		}
	}

	for i, d := range Digits(trains) {
		if d == 0 {
			continue
		}
		if err := encodeLevel(b, levels[i], d, p); err != nil {
			return nil, fmt.Errorf("level %s: %w", levels[i].name, err)
		}
	}

	target := 0
	if !p.Repeat {
		target = b.pos()
	}
	if err := b.branch(target); err != nil {
		return nil, err
	}

	prog, err := b.program()
	if err != nil {
		return nil, err
	}
	if err := ValidateProgram(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// encodeLevel appends one loop level producing digit*lvl.span trains.
func encodeLevel(b *builder, lvl level, digit int64, p ir.PatternParams) error {
	start := b.pos()
	width, err := encodeTrain(b, p.BunchesPerTrain, p.BunchSpacing, p.Charge, lvl.train)
	if err != nil {
		return err
	}
	gap := p.TrainSpacing - width
	if gap <= 0 {
		return invalidWait("train_spacing", gap)
	}
	if err := encodeWait(b, gap); err != nil {
		return err
	}

	last := len(lvl.repeat) - 1
	for _, c := range lvl.repeat[:last] {
		if err := b.repeatBranch(start, c, ir.MaxRepeatThreshold); err != nil {
			return err
		}
	}
	if digit > 1 {
		if err := b.repeatBranch(start, lvl.repeat[last], digit-1); err != nil {
			return err
		}
	}
	return nil
}
