package compiler

import (
	"fmt"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// fineSpan is the number of passes one full-width fine loop runs.
const fineSpan = ir.MaxThreshold + 1

// encodeTrain appends one train: a leading event, then bunches-1 further
// events each preceded by a wait of spacing ticks. counters[0] closes the
// fine loop; counters[1], when present, closes the coarse loop needed for
// more than 4095 trailing bunches. It returns the ticks the train occupies
// from its first event to its last.
func encodeTrain(b *builder, bunches, spacing, charge int64, counters []ir.CounterID) (int64, error) {
	b.emitEvent(charge)
	if bunches <= 1 {
		return 0, nil
	}

	rb := bunches - 1
	if rb > ir.MaxOccurrences {
		if len(counters) < 2 {
			return 0, &CompileError{
				Code:    ErrCounterExhausted,
				Field:   "bunches_per_train",
				Message: fmt.Sprintf("%d bunches need a coarse loop but only %d counter is available", bunches, len(counters)),
			}
		}
		// Coarse loop: fineSpan bunches per pass, rb/fineSpan passes.
		start := b.pos()
		if err := encodeBunch(b, spacing, charge); err != nil {
			return 0, err
		}
		if err := b.branchIf(start, counters[0], fineSpan-1); err != nil {
			return 0, err
		}
		if err := b.branchIf(start, counters[1], rb/fineSpan-1); err != nil {
			return 0, err
		}
		rb %= fineSpan
	}

	if rb > 0 {
		start := b.pos()
		if err := encodeBunch(b, spacing, charge); err != nil {
			return 0, err
		}
		if rb > 1 {
			if err := b.branchIf(start, counters[0], rb-1); err != nil {
				return 0, err
			}
		}
	}
	return spacing * (bunches - 1), nil
}

func encodeBunch(b *builder, spacing, charge int64) error {
	if spacing <= 0 {
		return invalidWait("bunch_spacing", spacing)
	}
	if err := encodeWait(b, spacing); err != nil {
		return err
	}
	b.emitEvent(charge)
	return nil
}
