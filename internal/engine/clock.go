package engine

import "github.com/thatweaver/lcls2-timing-patterns/internal/ir"

// Clock is the sequencer's tick clock. It only moves forward, and only
// through Wait instructions.
type Clock struct {
	tick int64
}

// NewClock creates a clock at tick 0.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current tick.
func (c *Clock) Now() int64 {
	return c.tick
}

// Wait advances to the occ-th marker boundary strictly after now. For the
// base-rate marker this is a plain delay of occ ticks.
func (c *Clock) Wait(marker ir.Marker, occ ir.Occurrences) {
	period := marker.Period()
	c.tick = (c.tick/period + int64(occ)) * period
}
