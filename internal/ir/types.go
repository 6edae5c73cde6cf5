package ir

import (
	"fmt"
	"math"
)

// Sequencer geometry. All immediates are range-checked against these.
const (
	// TicksPerSecond is the number of base-rate ticks (buckets) in one
	// sequencer second.
	TicksPerSecond = 910000

	// MaxOccurrences is the widest immediate a single Wait can carry.
	MaxOccurrences = 4095

	// MaxThreshold is the widest branch threshold. A conditional branch with
	// threshold t closes a loop whose body executes t+1 times.
	MaxThreshold = 4095

	// MaxRepeatThreshold bounds thresholds on train repeat loops, which use
	// the counters in their 8-bit role.
	MaxRepeatThreshold = 255

	// NumCounters is the number of hardware decrement counters.
	NumCounters = 4
)

// Marker selects the fixed-rate marker a Wait synchronises to.
type Marker int

// Fixed-rate markers, fastest first.
const (
	Marker929kHz Marker = iota
	Marker71kHz
	Marker10kHz
	Marker1kHz
	Marker100Hz
	Marker10Hz
	Marker1Hz
	numMarkers
)

// markerPeriods holds each marker's period in base-rate ticks.
var markerPeriods = [numMarkers]int64{1, 13, 91, 910, 9100, 91000, 910000}

// Period returns the marker period in ticks.
func (m Marker) Period() int64 {
	if !m.Valid() {
		return 0
	}
	return markerPeriods[m]
}

// Valid reports whether m names a hardware marker.
func (m Marker) Valid() bool {
	return m >= 0 && m < numMarkers
}

// Occurrences is a Wait immediate, 1..MaxOccurrences.
type Occurrences int

// Threshold is a conditional-branch immediate, 0..MaxThreshold.
type Threshold int

// CounterID names one of the hardware decrement counters, 0..NumCounters-1.
type CounterID int

// Valid reports whether c names a hardware counter.
func (c CounterID) Valid() bool {
	return c >= 0 && c < NumCounters
}

// Kind discriminates the Instruction variants.
type Kind int

const (
	KindEmitEvent Kind = iota + 1
	KindWait
	KindBranchUnconditional
	KindBranchConditional
)

var kindNames = map[Kind]string{
	KindEmitEvent:           "EmitEvent",
	KindWait:                "Wait",
	KindBranchUnconditional: "Branch",
	KindBranchConditional:   "BranchIf",
}

// String returns the listing mnemonic for the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Instruction is a single sequencer instruction. Only the fields that belong
// to Kind are meaningful; use the constructors, which enforce immediate
// ranges, rather than building values by hand.
type Instruction struct {
	Kind        Kind
	Payload     int64       // EmitEvent
	Marker      Marker      // Wait
	Occurrences Occurrences // Wait
	Target      int         // Branch, BranchIf
	Counter     CounterID   // BranchIf
	Threshold   Threshold   // BranchIf
}

// RangeError reports an immediate outside its hardware field width.
type RangeError struct {
	Field string
	Value int64
	Min   int64
	Max   int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

func checkRange(field string, v, lo, hi int64) error {
	if v < lo || v > hi {
		return &RangeError{Field: field, Value: v, Min: lo, Max: hi}
	}
	return nil
}

// EmitEvent requests one event (bunch) carrying payload.
func EmitEvent(payload int64) Instruction {
	return Instruction{Kind: KindEmitEvent, Payload: payload}
}

// NewWait builds a Wait for occ occurrences of marker.
func NewWait(marker Marker, occ int64) (Instruction, error) {
	if !marker.Valid() {
		return Instruction{}, checkRange("marker", int64(marker), 0, int64(numMarkers-1))
	}
	if err := checkRange("occurrences", occ, 1, MaxOccurrences); err != nil {
		return Instruction{}, err
	}
	return Instruction{Kind: KindWait, Marker: marker, Occurrences: Occurrences(occ)}, nil
}

// BranchUnconditional jumps to target.
func BranchUnconditional(target int) (Instruction, error) {
	if target < 0 {
		return Instruction{}, &RangeError{Field: "target", Value: int64(target), Min: 0, Max: math.MaxInt32}
	}
	return Instruction{Kind: KindBranchUnconditional, Target: target}, nil
}

// NewBranchConditional builds a counter-bounded back branch. Each pass
// through the branch counts against counter; the jump is taken while fewer
// than threshold passes have been counted, then the counter is retired and
// execution falls through.
func NewBranchConditional(target int, counter CounterID, threshold int64) (Instruction, error) {
	if target < 0 {
		return Instruction{}, &RangeError{Field: "target", Value: int64(target), Min: 0, Max: math.MaxInt32}
	}
	if !counter.Valid() {
		return Instruction{}, checkRange("counter", int64(counter), 0, NumCounters-1)
	}
	if err := checkRange("threshold", threshold, 0, MaxThreshold); err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Kind:      KindBranchConditional,
		Target:    target,
		Counter:   counter,
		Threshold: Threshold(threshold),
	}, nil
}

// NewRepeatBranch builds the conditional branch that closes a train repeat
// loop. Repeat loops count with the counters in their 8-bit role, so the
// threshold is limited to MaxRepeatThreshold.
func NewRepeatBranch(target int, counter CounterID, threshold int64) (Instruction, error) {
	if err := checkRange("repeat threshold", threshold, 0, MaxRepeatThreshold); err != nil {
		return Instruction{}, err
	}
	return NewBranchConditional(target, counter, threshold)
}

// IsBranch reports whether the instruction transfers control.
func (in Instruction) IsBranch() bool {
	return in.Kind == KindBranchUnconditional || in.Kind == KindBranchConditional
}

// String renders the instruction in listing form.
func (in Instruction) String() string {
	switch in.Kind {
	case KindEmitEvent:
		return fmt.Sprintf("EmitEvent(%d)", in.Payload)
	case KindWait:
		return fmt.Sprintf("Wait(marker=%d, occ=%d)", in.Marker, in.Occurrences)
	case KindBranchUnconditional:
		return fmt.Sprintf("Branch(target=%d)", in.Target)
	case KindBranchConditional:
		return fmt.Sprintf("BranchIf(target=%d, counter=%d, threshold=%d)", in.Target, in.Counter, in.Threshold)
	default:
		return in.Kind.String()
	}
}

// PatternParams describes one timing pattern: an optional start offset,
// then trains of bunches, optionally repeated every cycle.
type PatternParams struct {
	StartBucket     int64 `json:"start_bucket" yaml:"start_bucket"`
	TrainSpacing    int64 `json:"train_spacing" yaml:"train_spacing"`
	TrainsPerSecond int64 `json:"trains_per_second" yaml:"trains_per_second"` // 0 derives TicksPerSecond/TrainSpacing
	BunchSpacing    int64 `json:"bunch_spacing" yaml:"bunch_spacing"`
	BunchesPerTrain int64 `json:"bunches_per_train" yaml:"bunches_per_train"`
	Charge          int64 `json:"charge" yaml:"charge"`
	Repeat          bool  `json:"repeat" yaml:"repeat"`
}

// ResolvedTrains returns the trains-per-second count, deriving it from the
// train spacing when the explicit count is zero.
func (p PatternParams) ResolvedTrains() int64 {
	if p.TrainsPerSecond != 0 || p.TrainSpacing <= 0 {
		return p.TrainsPerSecond
	}
	return TicksPerSecond / p.TrainSpacing
}

// Width returns the ticks between the first and last bunch of one train.
func (p PatternParams) Width() int64 {
	if p.BunchesPerTrain <= 1 {
		return 0
	}
	return p.BunchSpacing * (p.BunchesPerTrain - 1)
}
