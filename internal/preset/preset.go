// Package preset holds the canonical fixed-rate programs: one event per
// period of a hardware marker, repeated forever.
package preset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// ErrCodeUnknownPreset is the error code for a name outside the table.
const ErrCodeUnknownPreset = "E301"

// ErrUnknownPreset is matched by every NotFoundError.
var ErrUnknownPreset = errors.New("unknown preset")

// NotFoundError reports a lookup of a name that is not a preset.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("[%s] unknown preset %q (known: %s)", ErrCodeUnknownPreset, e.Name, strings.Join(Names(), ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrUnknownPreset
}

// entry is one fixed rate. A zero occ means the rate has no events.
type entry struct {
	name   string
	marker ir.Marker
	occ    int64
}

// table is ordered slowest first.
var table = []entry{
	{name: "0 Hz"},
	{"1 Hz", ir.Marker1Hz, 1},
	{"10 Hz", ir.Marker10Hz, 1},
	{"50 Hz", ir.Marker100Hz, 2},
	{"100 Hz", ir.Marker100Hz, 1},
	{"500 Hz", ir.Marker1kHz, 2},
	{"1 kHz", ir.Marker1kHz, 1},
	{"5 kHz", ir.Marker10kHz, 2},
	{"10 kHz", ir.Marker10kHz, 1},
	{"31 kHz", ir.Marker929kHz, 30},
	{"93 kHz", ir.Marker929kHz, 10},
	{"186 kHz", ir.Marker929kHz, 5},
	{"929 kHz", ir.Marker929kHz, 1},
}

// Names returns the preset names, slowest rate first.
func Names() []string {
	names := make([]string, len(table))
	for i, e := range table {
		names[i] = e.name
	}
	return names
}

// Lookup returns the program for the named preset.
func Lookup(name string) (*ir.Program, error) {
	for _, e := range table {
		if e.name == name {
			return e.program()
		}
	}
	return nil, &NotFoundError{Name: name}
}

func (e entry) program() (*ir.Program, error) {
	loop, err := ir.BranchUnconditional(0)
	if err != nil {
		return nil, err
	}
	if e.occ == 0 {
		return ir.NewProgram([]ir.Instruction{loop})
	}
	w, err := ir.NewWait(e.marker, e.occ)
	if err != nil {
		return nil, fmt.Errorf("preset %q: %w", e.name, err)
	}
	return ir.NewProgram([]ir.Instruction{ir.EmitEvent(0), w, loop})
}
