package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// Scenario defines one conformance check: a program, built either from
// pattern parameters or from a named preset, and assertions on its
// listing, its simulated events, or the error that building it raises.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pattern holds the parameters to compile. Exactly one of Pattern and
	// Preset is set.
	Pattern *ir.PatternParams `yaml:"pattern,omitempty"`

	// Preset names a canonical fixed-rate program.
	Preset string `yaml:"preset,omitempty"`

	// Horizon is the simulated run length in ticks. Default: one second.
	Horizon int64 `yaml:"horizon,omitempty"`

	// Assertions validate the build outcome and the simulated events.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one property of a scenario run.
type Assertion struct {
	// Type specifies the assertion type, one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected number (event_count, train_count,
	// instruction_count, loop_count).
	Count *int `yaml:"count,omitempty"`

	// Ticks is the expected interval or position (train_spacing,
	// bunch_spacing, first_event).
	Ticks *int64 `yaml:"ticks,omitempty"`

	// Payload is the expected payload of every event (payload).
	Payload *int64 `yaml:"payload,omitempty"`

	// Code is the expected build error code (error_code).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount       = "event_count"
	AssertTrainCount       = "train_count"
	AssertTrainSpacing     = "train_spacing"
	AssertBunchSpacing     = "bunch_spacing"
	AssertFirstEvent       = "first_event"
	AssertPayload          = "payload"
	AssertInstructionCount = "instruction_count"
	AssertLoopCount        = "loop_count"
	AssertErrorCode        = "error_code"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file in dir, in name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Pattern == nil) == (s.Preset == "") {
		return fmt.Errorf("exactly one of pattern and preset is required")
	}
	if s.Horizon < 0 {
		return fmt.Errorf("horizon must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventCount, AssertTrainCount, AssertInstructionCount, AssertLoopCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertTrainSpacing, AssertBunchSpacing, AssertFirstEvent:
		if a.Ticks == nil || *a.Ticks < 0 {
			return fmt.Errorf("assertions[%d]: non-negative ticks is required for %s", index, a.Type)
		}
	case AssertPayload:
		if a.Payload == nil {
			return fmt.Errorf("assertions[%d]: payload is required for %s", index, a.Type)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// expectsError reports whether the scenario asserts a build failure.
func (s *Scenario) expectsError() bool {
	for _, a := range s.Assertions {
		if a.Type == AssertErrorCode {
			return true
		}
	}
	return false
}

// bunchesPerTrain is the train size used to group simulated events.
// Presets emit single-event trains.
func (s *Scenario) bunchesPerTrain() int {
	if s.Pattern == nil || s.Pattern.BunchesPerTrain < 1 {
		return 1
	}
	return int(s.Pattern.BunchesPerTrain)
}
