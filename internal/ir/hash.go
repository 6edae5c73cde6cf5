package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future change of algorithm.
const (
	DomainProgram = "lcls2/program/v1"
	DomainPattern = "lcls2/pattern/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramID computes the content-addressed id of a program. Two programs
// share an id exactly when their instruction sequences are identical.
func ProgramID(p *Program) (string, error) {
	canonical, err := MarshalCanonical(p.ToIR())
	if err != nil {
		return "", fmt.Errorf("ProgramID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// PatternID computes the content-addressed id of a parameter set.
func PatternID(params PatternParams) (string, error) {
	canonical, err := MarshalCanonical(params.ToIR())
	if err != nil {
		return "", fmt.Errorf("PatternID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPattern, canonical), nil
}

// MustProgramID is like ProgramID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustProgramID(p *Program) string {
	id, err := ProgramID(p)
	if err != nil {
		panic(err)
	}
	return id
}

// ToIR converts the parameters to canonical value form.
func (p PatternParams) ToIR() IRObject {
	return IRObject{
		"start_bucket":      IRInt(p.StartBucket),
		"train_spacing":     IRInt(p.TrainSpacing),
		"trains_per_second": IRInt(p.TrainsPerSecond),
		"bunch_spacing":     IRInt(p.BunchSpacing),
		"bunches_per_train": IRInt(p.BunchesPerTrain),
		"charge":            IRInt(p.Charge),
		"repeat":            IRBool(p.Repeat),
	}
}
