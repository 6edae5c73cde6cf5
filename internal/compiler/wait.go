package compiler

import "github.com/thatweaver/lcls2-timing-patterns/internal/ir"

// encodeWait appends instructions that delay by exactly ticks base-rate
// ticks. Delays wider than one Wait become a loop of full-width waits on
// the wait counter, followed by a trailing remainder.
func encodeWait(b *builder, ticks int64) error {
	if ticks <= 0 {
		return invalidWait("wait", ticks)
	}
	for ticks > ir.MaxOccurrences {
		passes := min(ticks/ir.MaxOccurrences, ir.MaxThreshold+1)
		start := b.pos()
		if err := b.wait(ir.Marker929kHz, ir.MaxOccurrences); err != nil {
			return err
		}
		if err := b.branchIf(start, waitCounter, passes-1); err != nil {
			return err
		}
		ticks -= passes * ir.MaxOccurrences
	}
	if ticks > 0 {
		return b.wait(ir.Marker929kHz, ticks)
	}
	return nil
}
