package ir

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Program is an ordered, immutable instruction sequence. Branch targets are
// absolute indices into the sequence.
type Program struct {
	instrs []Instruction
}

// NewProgram copies instrs into a Program after checking that every
// instruction is well formed and every branch target lies inside it.
func NewProgram(instrs []Instruction) (*Program, error) {
	p := &Program{instrs: append([]Instruction(nil), instrs...)}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustProgram is like NewProgram but panics on error.
// Use only in tests or for static tables.
func MustProgram(instrs ...Instruction) *Program {
	p, err := NewProgram(instrs)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.instrs)
}

// At returns the instruction at index i.
func (p *Program) At(i int) Instruction {
	return p.instrs[i]
}

// Instructions returns a copy of the instruction sequence.
func (p *Program) Instructions() []Instruction {
	return append([]Instruction(nil), p.instrs...)
}

// TargetError reports a branch whose target lies outside the program.
type TargetError struct {
	Index  int
	Target int
	Len    int
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("instruction %d: branch target %d outside program of length %d", e.Index, e.Target, e.Len)
}

// Validate re-checks every immediate and branch target.
func (p *Program) Validate() error {
	for i, in := range p.instrs {
		if err := in.validate(); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		if in.IsBranch() && (in.Target < 0 || in.Target >= len(p.instrs)) {
			return &TargetError{Index: i, Target: in.Target, Len: len(p.instrs)}
		}
	}
	return nil
}

func (in Instruction) validate() error {
	switch in.Kind {
	case KindEmitEvent:
		return nil
	case KindWait:
		_, err := NewWait(in.Marker, int64(in.Occurrences))
		return err
	case KindBranchUnconditional:
		_, err := BranchUnconditional(in.Target)
		return err
	case KindBranchConditional:
		_, err := NewBranchConditional(in.Target, in.Counter, int64(in.Threshold))
		return err
	default:
		return fmt.Errorf("unknown instruction kind %d", int(in.Kind))
	}
}

// Loop is the span closed by one conditional branch: the body runs from
// Start through End (the branch itself) Threshold+1 times.
type Loop struct {
	Start     int
	End       int
	Counter   CounterID
	Threshold Threshold
}

// Contains reports whether o lies within l's span.
func (l Loop) Contains(o Loop) bool {
	return l.Start <= o.Start && o.End <= l.End
}

// Loops returns the loop spans closed by conditional branches, in program order.
func (p *Program) Loops() []Loop {
	var loops []Loop
	for i, in := range p.instrs {
		if in.Kind != KindBranchConditional {
			continue
		}
		loops = append(loops, Loop{
			Start:     in.Target,
			End:       i,
			Counter:   in.Counter,
			Threshold: in.Threshold,
		})
	}
	return loops
}

// Listing renders the program one instruction per line, prefixed with its
// index.
func (p *Program) Listing() string {
	var sb strings.Builder
	for i, in := range p.instrs {
		fmt.Fprintf(&sb, "%04d  %s\n", i, in)
	}
	return sb.String()
}

// WriteListing writes the listing form to w.
func (p *Program) WriteListing(w io.Writer) error {
	_, err := io.WriteString(w, p.Listing())
	return err
}

// ParseListing reads a program in listing form. Blank lines and lines
// starting with '#' are ignored. Indices must be consecutive from zero.
func ParseListing(r io.Reader) (*Program, error) {
	var instrs []Instruction
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		idxText, body, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("line %d: missing instruction", line)
		}
		idx, err := strconv.Atoi(idxText)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad index %q", line, idxText)
		}
		if idx != len(instrs) {
			return nil, fmt.Errorf("line %d: index %d out of sequence, expected %d", line, idx, len(instrs))
		}
		in, err := parseInstruction(strings.TrimSpace(body))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		instrs = append(instrs, in)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewProgram(instrs)
}

func parseInstruction(s string) (Instruction, error) {
	var (
		a, b, c int64
		n       int
		err     error
	)
	switch {
	case strings.HasPrefix(s, "EmitEvent("):
		n, err = fmt.Sscanf(s, "EmitEvent(%d)", &a)
		if err == nil && n == 1 {
			return EmitEvent(a), nil
		}
	case strings.HasPrefix(s, "Wait("):
		n, err = fmt.Sscanf(s, "Wait(marker=%d, occ=%d)", &a, &b)
		if err == nil && n == 2 {
			return NewWait(Marker(a), b)
		}
	case strings.HasPrefix(s, "Branch("):
		n, err = fmt.Sscanf(s, "Branch(target=%d)", &a)
		if err == nil && n == 1 {
			return BranchUnconditional(int(a))
		}
	case strings.HasPrefix(s, "BranchIf("):
		n, err = fmt.Sscanf(s, "BranchIf(target=%d, counter=%d, threshold=%d)", &a, &b, &c)
		if err == nil && n == 3 {
			return NewBranchConditional(int(a), CounterID(b), c)
		}
	default:
		return Instruction{}, fmt.Errorf("unknown instruction %q", s)
	}
	return Instruction{}, fmt.Errorf("malformed instruction %q", s)
}

// Wire names used by the JSON form.
const (
	opEmit     = "emit"
	opWait     = "wait"
	opBranch   = "branch"
	opBranchIf = "branch_if"
)

type instructionJSON struct {
	Op        string `json:"op"`
	Payload   *int64 `json:"payload,omitempty"`
	Marker    *int   `json:"marker,omitempty"`
	Occ       *int   `json:"occ,omitempty"`
	Target    *int   `json:"target,omitempty"`
	Counter   *int   `json:"counter,omitempty"`
	Threshold *int   `json:"threshold,omitempty"`
}

type programJSON struct {
	Version      string            `json:"version"`
	Instructions []instructionJSON `json:"instructions"`
}

// MarshalJSON implements json.Marshaler.
func (p *Program) MarshalJSON() ([]byte, error) {
	out := programJSON{Version: IRVersion, Instructions: make([]instructionJSON, len(p.instrs))}
	for i, in := range p.instrs {
		out.Instructions[i] = in.toJSON()
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded program is
// validated like NewProgram.
func (p *Program) UnmarshalJSON(data []byte) error {
	var raw programJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Version != "" && raw.Version != IRVersion {
		return fmt.Errorf("unsupported program version %q", raw.Version)
	}
	instrs := make([]Instruction, len(raw.Instructions))
	for i, j := range raw.Instructions {
		in, err := j.toInstruction()
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		instrs[i] = in
	}
	decoded, err := NewProgram(instrs)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

func (in Instruction) toJSON() instructionJSON {
	ptr := func(v int) *int { return &v }
	switch in.Kind {
	case KindEmitEvent:
		payload := in.Payload
		return instructionJSON{Op: opEmit, Payload: &payload}
	case KindWait:
		return instructionJSON{Op: opWait, Marker: ptr(int(in.Marker)), Occ: ptr(int(in.Occurrences))}
	case KindBranchUnconditional:
		return instructionJSON{Op: opBranch, Target: ptr(in.Target)}
	default:
		return instructionJSON{
			Op:        opBranchIf,
			Target:    ptr(in.Target),
			Counter:   ptr(int(in.Counter)),
			Threshold: ptr(int(in.Threshold)),
		}
	}
}

func (j instructionJSON) toInstruction() (Instruction, error) {
	val := func(name string, v *int) (int, error) {
		if v == nil {
			return 0, fmt.Errorf("%s: missing %s", j.Op, name)
		}
		return *v, nil
	}
	switch j.Op {
	case opEmit:
		if j.Payload == nil {
			return Instruction{}, fmt.Errorf("emit: missing payload")
		}
		return EmitEvent(*j.Payload), nil
	case opWait:
		m, err := val("marker", j.Marker)
		if err != nil {
			return Instruction{}, err
		}
		occ, err := val("occ", j.Occ)
		if err != nil {
			return Instruction{}, err
		}
		return NewWait(Marker(m), int64(occ))
	case opBranch:
		t, err := val("target", j.Target)
		if err != nil {
			return Instruction{}, err
		}
		return BranchUnconditional(t)
	case opBranchIf:
		t, err := val("target", j.Target)
		if err != nil {
			return Instruction{}, err
		}
		c, err := val("counter", j.Counter)
		if err != nil {
			return Instruction{}, err
		}
		th, err := val("threshold", j.Threshold)
		if err != nil {
			return Instruction{}, err
		}
		return NewBranchConditional(t, CounterID(c), int64(th))
	default:
		return Instruction{}, fmt.Errorf("unknown op %q", j.Op)
	}
}

// ToIR converts the program to the canonical value form used for hashing.
func (p *Program) ToIR() IRObject {
	arr := make(IRArray, len(p.instrs))
	for i, in := range p.instrs {
		obj := IRObject{"op": IRString(in.toJSON().Op)}
		switch in.Kind {
		case KindEmitEvent:
			obj["payload"] = IRInt(in.Payload)
		case KindWait:
			obj["marker"] = IRInt(in.Marker)
			obj["occ"] = IRInt(in.Occurrences)
		case KindBranchUnconditional:
			obj["target"] = IRInt(in.Target)
		case KindBranchConditional:
			obj["target"] = IRInt(in.Target)
			obj["counter"] = IRInt(in.Counter)
			obj["threshold"] = IRInt(in.Threshold)
		}
		arr[i] = obj
	}
	return IRObject{
		"version":      IRString(IRVersion),
		"instructions": arr,
	}
}
