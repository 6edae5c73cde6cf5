package compiler

import (
	"fmt"
	"math"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// MaxStartBucket is the longest start delay: one full wait loop of
// full-width waits.
const MaxStartBucket = (ir.MaxThreshold + 1) * ir.MaxOccurrences

// ValidateParams checks p and returns the resolved trains-per-second count.
// Checks run in a fixed order and the first failure is returned.
func ValidateParams(p ir.PatternParams) (int64, error) {
	if p.TrainSpacing <= 0 {
		return 0, invalidWait("train_spacing", p.TrainSpacing)
	}
	if p.StartBucket < 0 {
		return 0, &CompileError{
			Code:    ErrInvalidParameter,
			Field:   "start_bucket",
			Message: fmt.Sprintf("start bucket %d must not be negative", p.StartBucket),
		}
	}
	if p.StartBucket > MaxStartBucket {
		return 0, &CompileError{
			Code:    ErrInvalidParameter,
			Field:   "start_bucket",
			Message: fmt.Sprintf("start bucket %d exceeds the longest start delay %d", p.StartBucket, MaxStartBucket),
		}
	}
	if p.TrainsPerSecond < 0 {
		return 0, &CompileError{
			Code:    ErrInvalidParameter,
			Field:   "trains_per_second",
			Message: fmt.Sprintf("trains per second %d must not be negative", p.TrainsPerSecond),
		}
	}
	if p.BunchesPerTrain < 1 {
		return 0, &CompileError{
			Code:    ErrInvalidParameter,
			Field:   "bunches_per_train",
			Message: fmt.Sprintf("bunches per train %d must be at least 1", p.BunchesPerTrain),
		}
	}
	if p.BunchesPerTrain > 1 && p.BunchSpacing <= 0 {
		return 0, invalidWait("bunch_spacing", p.BunchSpacing)
	}

	trains := p.ResolvedTrains()
	used := satAdd(satMul(trains-1, p.TrainSpacing), satMul(p.BunchesPerTrain-1, p.BunchSpacing))
	if used >= ir.TicksPerSecond {
		return 0, &CompileError{
			Code:  ErrPatternExceedsSecondBudget,
			Field: "trains_per_second",
			Message: fmt.Sprintf("%d trains spaced %d with %d bunches spaced %d span %d ticks, limit is %d",
				trains, p.TrainSpacing, p.BunchesPerTrain, p.BunchSpacing, used, ir.TicksPerSecond),
		}
	}

	if trains > 0 {
		if gap := p.TrainSpacing - p.Width(); gap <= 0 {
			return 0, &CompileError{
				Code:    ErrInvalidWaitInterval,
				Field:   "train_spacing",
				Message: fmt.Sprintf("train of width %d does not fit in train spacing %d", p.Width(), p.TrainSpacing),
			}
		}
	}
	return trains, nil
}

// satMul multiplies without overflowing, saturating at the int64 limits.
// Only the budget comparison consumes the result.
func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		if (a < 0) != (b < 0) {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return r
}

func satAdd(a, b int64) int64 {
	r := a + b
	switch {
	case a > 0 && b > 0 && r < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && r >= 0:
		return math.MinInt64
	}
	return r
}
