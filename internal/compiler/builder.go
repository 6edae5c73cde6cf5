package compiler

import (
	"errors"
	"fmt"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// builder is the append-only instruction arena shared by the encoders of one
// compile. Branch targets are indices already emitted, so no fix-ups are
// ever needed.
type builder struct {
	instrs []ir.Instruction
}

// pos returns the index the next instruction will occupy.
func (b *builder) pos() int {
	return len(b.instrs)
}

func (b *builder) emitEvent(payload int64) {
	b.instrs = append(b.instrs, ir.EmitEvent(payload))
}

func (b *builder) wait(marker ir.Marker, occ int64) error {
	in, err := ir.NewWait(marker, occ)
	return b.append(in, err)
}

func (b *builder) branchIf(target int, counter ir.CounterID, threshold int64) error {
	in, err := ir.NewBranchConditional(target, counter, threshold)
	return b.append(in, err)
}

func (b *builder) repeatBranch(target int, counter ir.CounterID, threshold int64) error {
	in, err := ir.NewRepeatBranch(target, counter, threshold)
	return b.append(in, err)
}

func (b *builder) branch(target int) error {
	in, err := ir.BranchUnconditional(target)
	return b.append(in, err)
}

func (b *builder) append(in ir.Instruction, err error) error {
	if err != nil {
		return rangeError(b.pos(), err)
	}
	b.instrs = append(b.instrs, in)
	return nil
}

// program freezes the arena into a Program.
func (b *builder) program() (*ir.Program, error) {
	p, err := ir.NewProgram(b.instrs)
	if err != nil {
		var targetErr *ir.TargetError
		if errors.As(err, &targetErr) {
			return nil, &CompileError{
				Code:    ErrBranchTargetOutOfRange,
				Field:   fmt.Sprintf("instructions[%d]", targetErr.Index),
				Message: targetErr.Error(),
				Err:     err,
			}
		}
		return nil, rangeError(-1, err)
	}
	return p, nil
}

func rangeError(index int, err error) *CompileError {
	field := ""
	if index >= 0 {
		field = fmt.Sprintf("instructions[%d]", index)
	}
	return &CompileError{
		Code:    ErrImmediateOutOfRange,
		Field:   field,
		Message: err.Error(),
		Err:     err,
	}
}
