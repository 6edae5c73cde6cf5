package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatweaver/lcls2-timing-patterns/internal/engine"
	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

func programLines(p *ir.Program) []string {
	out := make([]string, p.Len())
	for i := range out {
		out[i] = p.At(i).String()
	}
	return out
}

// =============================================================================
// Digit decomposition
// =============================================================================

func TestDigits(t *testing.T) {
	assert.Equal(t, [3]int64{44, 1, 0}, Digits(300))
	assert.Equal(t, [3]int64{0, 0, 0}, Digits(0))
	assert.Equal(t, [3]int64{255, 255, 255}, Digits(1<<24-1))
	assert.Equal(t, [3]int64{176, 226, 13}, Digits(ir.TicksPerSecond))
}

func TestDigitsRoundTrip(t *testing.T) {
	for n := int64(0); n < 1<<24; n = n*3 + 1 {
		d := Digits(n)
		for _, digit := range d {
			assert.GreaterOrEqual(t, digit, int64(0))
			assert.Less(t, digit, int64(256))
		}
		assert.Equal(t, n, d[2]*65536+d[1]*256+d[0], "n=%d", n)
	}
}

// =============================================================================
// Program shape
// =============================================================================

func TestCompileOneHzOneShot(t *testing.T) {
	prog, err := CompilePattern(ir.PatternParams{
		TrainSpacing:    ir.TicksPerSecond,
		TrainsPerSecond: 1,
		BunchesPerTrain: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"EmitEvent(0)",
		"Wait(marker=0, occ=4095)",
		"BranchIf(target=1, counter=3, threshold=221)",
		"Wait(marker=0, occ=910)",
		"Branch(target=4)",
	}, programLines(prog))

	// The only loop is the long wait; digit 1 needs no repeat loop.
	for _, loop := range prog.Loops() {
		assert.Equal(t, waitCounter, loop.Counter)
	}
}

func TestCompileThreeHundredTrains(t *testing.T) {
	prog, err := CompilePattern(ir.PatternParams{
		TrainSpacing:    3000,
		TrainsPerSecond: 300,
		BunchesPerTrain: 1,
		Charge:          12,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"EmitEvent(12)",
		"Wait(marker=0, occ=3000)",
		"BranchIf(target=0, counter=0, threshold=43)",
		"EmitEvent(12)",
		"Wait(marker=0, occ=3000)",
		"BranchIf(target=3, counter=0, threshold=255)",
		"Branch(target=6)",
	}, programLines(prog))
}

func TestCompileRepeatJumpsToStart(t *testing.T) {
	prog, err := CompilePattern(ir.PatternParams{
		StartBucket:     5,
		TrainSpacing:    9100,
		BunchesPerTrain: 1,
		Repeat:          true,
	})
	require.NoError(t, err)

	lines := programLines(prog)
	assert.Equal(t, "Wait(marker=0, occ=5)", lines[0])
	assert.Equal(t, "Branch(target=0)", lines[len(lines)-1])
	assert.Contains(t, lines, "BranchIf(target=1, counter=0, threshold=99)")
}

func TestCompileAllThreeLevels(t *testing.T) {
	prog, err := CompilePattern(ir.PatternParams{
		TrainSpacing:    13,
		TrainsPerSecond: 70000, // digits 112, 17, 1
		BunchSpacing:    5,
		BunchesPerTrain: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		// level A
		"EmitEvent(0)",
		"Wait(marker=0, occ=5)",
		"EmitEvent(0)",
		"Wait(marker=0, occ=8)",
		"BranchIf(target=0, counter=0, threshold=111)",
		// level B
		"EmitEvent(0)",
		"Wait(marker=0, occ=5)",
		"EmitEvent(0)",
		"Wait(marker=0, occ=8)",
		"BranchIf(target=5, counter=0, threshold=255)",
		"BranchIf(target=5, counter=2, threshold=16)",
		// level C
		"EmitEvent(0)",
		"Wait(marker=0, occ=5)",
		"EmitEvent(0)",
		"Wait(marker=0, occ=8)",
		"BranchIf(target=11, counter=0, threshold=255)",
		"BranchIf(target=11, counter=1, threshold=255)",
		"Branch(target=17)",
	}, programLines(prog))
}

func TestCompileNoTrains(t *testing.T) {
	prog, err := CompilePattern(ir.PatternParams{
		TrainSpacing:    ir.TicksPerSecond + 1,
		BunchesPerTrain: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Branch(target=0)"}, programLines(prog))
}

// =============================================================================
// Validation failures
// =============================================================================

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		params ir.PatternParams
		code   string
	}{
		{
			name:   "two trains a second apart",
			params: ir.PatternParams{TrainsPerSecond: 2, TrainSpacing: ir.TicksPerSecond, BunchesPerTrain: 1},
			code:   ErrPatternExceedsSecondBudget,
		},
		{
			name:   "bunches overflow the second",
			params: ir.PatternParams{TrainsPerSecond: 1, TrainSpacing: ir.TicksPerSecond, BunchesPerTrain: 11, BunchSpacing: 91000},
			code:   ErrPatternExceedsSecondBudget,
		},
		{
			name:   "overflowing product",
			params: ir.PatternParams{TrainsPerSecond: 1 << 40, TrainSpacing: 1 << 40, BunchesPerTrain: 1},
			code:   ErrPatternExceedsSecondBudget,
		},
		{
			name:   "zero train spacing",
			params: ir.PatternParams{TrainSpacing: 0, BunchesPerTrain: 1},
			code:   ErrInvalidWaitInterval,
		},
		{
			name:   "negative train spacing",
			params: ir.PatternParams{TrainSpacing: -10, BunchesPerTrain: 1},
			code:   ErrInvalidWaitInterval,
		},
		{
			name:   "missing bunch spacing",
			params: ir.PatternParams{TrainSpacing: 910, BunchesPerTrain: 2},
			code:   ErrInvalidWaitInterval,
		},
		{
			name:   "train wider than its spacing",
			params: ir.PatternParams{TrainsPerSecond: 5, TrainSpacing: 100, BunchesPerTrain: 11, BunchSpacing: 10},
			code:   ErrInvalidWaitInterval,
		},
		{
			name:   "negative start",
			params: ir.PatternParams{StartBucket: -1, TrainSpacing: 910, BunchesPerTrain: 1},
			code:   ErrInvalidParameter,
		},
		{
			name:   "start past the longest delay",
			params: ir.PatternParams{StartBucket: MaxStartBucket + 1, TrainSpacing: ir.TicksPerSecond, TrainsPerSecond: 1, BunchesPerTrain: 1},
			code:   ErrInvalidParameter,
		},
		{
			name:   "huge start",
			params: ir.PatternParams{StartBucket: 1 << 46, TrainSpacing: ir.TicksPerSecond, TrainsPerSecond: 1, BunchesPerTrain: 1},
			code:   ErrInvalidParameter,
		},
		{
			name:   "negative train count",
			params: ir.PatternParams{TrainsPerSecond: -3, TrainSpacing: 910, BunchesPerTrain: 1},
			code:   ErrInvalidParameter,
		},
		{
			name:   "no bunches",
			params: ir.PatternParams{TrainSpacing: 910, BunchesPerTrain: 0},
			code:   ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := CompilePattern(tt.params)
			require.Error(t, err)
			assert.Nil(t, prog, "no partial program on error")
			assert.Equal(t, tt.code, Code(err), "error: %v", err)
		})
	}
}

func TestCompileLongestStartDelay(t *testing.T) {
	prog, err := CompilePattern(ir.PatternParams{
		StartBucket:     MaxStartBucket,
		TrainSpacing:    ir.TicksPerSecond,
		TrainsPerSecond: 1,
		BunchesPerTrain: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Wait(marker=0, occ=4095)",
		"BranchIf(target=0, counter=3, threshold=4095)",
		"EmitEvent(0)",
		"Wait(marker=0, occ=4095)",
		"BranchIf(target=3, counter=3, threshold=221)",
		"Wait(marker=0, occ=910)",
		"Branch(target=6)",
	}, programLines(prog))

	trace, err := engine.Run(context.Background(), prog, engine.WithHorizon(MaxStartBucket+1))
	require.NoError(t, err)
	require.Len(t, trace.Events, 1)
	assert.Equal(t, int64(MaxStartBucket), trace.Events[0].Tick)
}

func TestCompileIsDeterministic(t *testing.T) {
	params := ir.PatternParams{TrainSpacing: 910, BunchSpacing: 7, BunchesPerTrain: 9, Charge: 3}
	a, err := CompilePattern(params)
	require.NoError(t, err)
	b, err := CompilePattern(params)
	require.NoError(t, err)
	assert.Equal(t, ir.MustProgramID(a), ir.MustProgramID(b))

	_, err1 := CompilePattern(ir.PatternParams{TrainsPerSecond: 2, TrainSpacing: ir.TicksPerSecond, BunchesPerTrain: 1})
	_, err2 := CompilePattern(ir.PatternParams{TrainsPerSecond: 2, TrainSpacing: ir.TicksPerSecond, BunchesPerTrain: 1})
	assert.Equal(t, err1.Error(), err2.Error())
}

// =============================================================================
// Counter discipline
// =============================================================================

func TestCounterAllocationTable(t *testing.T) {
	require.NoError(t, checkAllocation())
	assert.Equal(t, int64(1), levels[0].span)
	assert.Equal(t, int64(256), levels[1].span)
	assert.Equal(t, int64(65536), levels[2].span)
}

func TestValidateProgramDetectsCounterConflict(t *testing.T) {
	inner, err := ir.NewBranchConditional(1, 2, 3)
	require.NoError(t, err)
	outer, err := ir.NewBranchConditional(0, 2, 3)
	require.NoError(t, err)
	halt, err := ir.BranchUnconditional(3)
	require.NoError(t, err)

	prog := ir.MustProgram(ir.EmitEvent(0), inner, outer, halt)
	err = ValidateProgram(prog)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCounterConflict))
	assert.Contains(t, err.Error(), "encloses")

	// Crossing loops conflict too.
	opening, err := ir.NewBranchConditional(0, 2, 3)
	require.NoError(t, err)
	crossing, err := ir.NewBranchConditional(1, 2, 3)
	require.NoError(t, err)
	halt, err = ir.BranchUnconditional(4)
	require.NoError(t, err)
	prog = ir.MustProgram(ir.EmitEvent(0), ir.EmitEvent(0), opening, crossing, halt)
	err = ValidateProgram(prog)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCounterConflict))
	assert.Contains(t, err.Error(), "overlaps")

	// Sequential loops may share a counter.
	second, err := ir.NewBranchConditional(2, 2, 3)
	require.NoError(t, err)
	first, err := ir.NewBranchConditional(0, 2, 3)
	require.NoError(t, err)
	halt, err = ir.BranchUnconditional(4)
	require.NoError(t, err)
	prog = ir.MustProgram(ir.EmitEvent(0), first, ir.EmitEvent(0), second, halt)
	require.NoError(t, ValidateProgram(prog))
}

func TestValidateProgramManySequentialLoops(t *testing.T) {
	const loops = 200000
	instrs := make([]ir.Instruction, 0, 2*loops+1)
	for i := 0; i < loops; i++ {
		wait, err := ir.NewWait(ir.Marker929kHz, ir.MaxOccurrences)
		require.NoError(t, err)
		back, err := ir.NewBranchConditional(2*i, waitCounter, ir.MaxThreshold)
		require.NoError(t, err)
		instrs = append(instrs, wait, back)
	}
	halt, err := ir.BranchUnconditional(len(instrs))
	require.NoError(t, err)
	prog, err := ir.NewProgram(append(instrs, halt))
	require.NoError(t, err)

	require.NoError(t, ValidateProgram(prog))
}

func TestRepeatBranchRange(t *testing.T) {
	b := &builder{}
	require.NoError(t, b.repeatBranch(0, 0, ir.MaxRepeatThreshold))

	err := b.repeatBranch(0, 0, ir.MaxRepeatThreshold+1)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrImmediateOutOfRange))
	assert.Len(t, b.instrs, 1, "rejected branch is not appended")
}

// =============================================================================
// Simulated behaviour
// =============================================================================

func TestCompiledPatternsSimulate(t *testing.T) {
	tests := []struct {
		name   string
		params ir.PatternParams
	}{
		{"one hz", ir.PatternParams{TrainSpacing: ir.TicksPerSecond, TrainsPerSecond: 1, BunchesPerTrain: 1}},
		{"three hundred trains", ir.PatternParams{TrainSpacing: 3000, TrainsPerSecond: 300, BunchesPerTrain: 1}},
		{"derived 1 kHz with bunches", ir.PatternParams{TrainSpacing: 910, BunchSpacing: 100, BunchesPerTrain: 3}},
		{"three levels", ir.PatternParams{TrainSpacing: 13, TrainsPerSecond: 70000, BunchSpacing: 5, BunchesPerTrain: 2}},
		{"every bucket", ir.PatternParams{TrainSpacing: 1, BunchesPerTrain: 1}},
		{"coarse train loop", ir.PatternParams{TrainSpacing: ir.TicksPerSecond, TrainsPerSecond: 1, BunchSpacing: 1, BunchesPerTrain: 5000}},
		{"long bunch spacing with start", ir.PatternParams{StartBucket: 1000, TrainSpacing: 200000, TrainsPerSecond: 4, BunchSpacing: 5000, BunchesPerTrain: 3, Charge: 50}},
		{"start beyond one wait", ir.PatternParams{StartBucket: 9000, TrainSpacing: 10000, TrainsPerSecond: 90, BunchSpacing: 3, BunchesPerTrain: 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := CompilePattern(tt.params)
			require.NoError(t, err)

			for i, in := range prog.Instructions() {
				if in.IsBranch() {
					assert.Less(t, in.Target, prog.Len(), "instruction %d", i)
				}
			}

			trace, err := engine.Run(context.Background(), prog)
			require.NoError(t, err)

			n := tt.params.ResolvedTrains()
			trains, err := trace.Trains(int(tt.params.BunchesPerTrain))
			require.NoError(t, err)
			require.Len(t, trains, int(n))

			for k, tr := range trains {
				wantStart := tt.params.StartBucket + int64(k)*tt.params.TrainSpacing
				require.Equal(t, wantStart, tr.Start, "train %d", k)
				for j, tick := range tr.Bunches {
					require.Equal(t, wantStart+int64(j)*tt.params.BunchSpacing, tick, "train %d bunch %d", k, j)
				}
			}
			for _, ev := range trace.Events {
				require.Equal(t, tt.params.Charge, ev.Payload)
			}
		})
	}
}

func TestRepeatingPatternRestartsEachCycle(t *testing.T) {
	params := ir.PatternParams{TrainSpacing: 9100, BunchesPerTrain: 1, Repeat: true}
	prog, err := CompilePattern(params)
	require.NoError(t, err)

	trace, err := engine.Run(context.Background(), prog, engine.WithHorizon(2*ir.TicksPerSecond))
	require.NoError(t, err)
	require.Len(t, trace.Events, 200)
	for k, ev := range trace.Events {
		assert.Equal(t, int64(k)*9100, ev.Tick)
	}
	assert.False(t, trace.Halted)
}

func TestOneShotPatternHalts(t *testing.T) {
	params := ir.PatternParams{TrainSpacing: 1000, TrainsPerSecond: 10, BunchesPerTrain: 1}
	prog, err := CompilePattern(params)
	require.NoError(t, err)

	trace, err := engine.Run(context.Background(), prog)
	require.NoError(t, err)
	assert.True(t, trace.Halted)
	assert.Equal(t, int64(10000), trace.EndTick)
	assert.Len(t, trace.Events, 10)
}
