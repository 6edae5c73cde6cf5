package harness

import (
	"fmt"
	"strings"

	"github.com/thatweaver/lcls2-timing-patterns/internal/engine"
)

// maxTraceContext bounds how many event ticks an AssertionError prints.
const maxTraceContext = 8

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Events   []engine.Event // Simulated events for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nFirst events (%d total):\n", len(e.Events))
		for i, ev := range e.Events {
			if i == maxTraceContext {
				fmt.Fprintf(&buf, "  ...\n")
				break
			}
			fmt.Fprintf(&buf, "  [%d] tick=%d payload=%d pc=%d\n", i, ev.Tick, ev.Payload, ev.PC)
		}
	}
	return buf.String()
}

// AssertionContext carries what assertions need beyond the result.
type AssertionContext struct {
	// BunchesPerTrain groups events into trains.
	BunchesPerTrain int
}

// EvaluateAssertions runs all assertions against a result with single-event
// trains and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	return evaluateWith(result, assertions, &AssertionContext{BunchesPerTrain: 1})
}

func evaluateWith(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	if a.Type == AssertErrorCode {
		return assertErrorCode(result, a)
	}
	if result.Program == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: "a built program",
			Actual:   fmt.Sprintf("build failed with %q", result.ErrorCode),
		}
	}

	switch a.Type {
	case AssertInstructionCount:
		return assertCount(a, "instructions", result.Program.Len(), nil)
	case AssertLoopCount:
		return assertCount(a, "loops", len(result.Program.Loops()), nil)
	case AssertEventCount:
		return assertCount(a, "events", len(result.Events()), result.Events())
	case AssertTrainCount:
		trains, err := trainsOf(result, actx)
		if err != nil {
			return err
		}
		return assertCount(a, "trains", len(trains), result.Events())
	case AssertTrainSpacing:
		return assertTrainSpacing(result, a, actx)
	case AssertBunchSpacing:
		return assertBunchSpacing(result, a, actx)
	case AssertFirstEvent:
		return assertFirstEvent(result, a)
	case AssertPayload:
		return assertPayload(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertErrorCode(result *Result, a Assertion) error {
	if result.ErrorCode == a.Code {
		return nil
	}
	actual := "build succeeded"
	if result.ErrorCode != "" {
		actual = fmt.Sprintf("error code %s", result.ErrorCode)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("error code %s", a.Code),
		Actual:   actual,
	}
}

func assertCount(a Assertion, what string, got int, events []engine.Event) error {
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d %s", *a.Count, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Events:   events,
	}
}

func trainsOf(result *Result, actx *AssertionContext) ([]engine.Train, error) {
	trains, err := result.Trace.Trains(actx.BunchesPerTrain)
	if err != nil {
		return nil, &AssertionError{
			Type:     "trains",
			Expected: fmt.Sprintf("events grouped in trains of %d", actx.BunchesPerTrain),
			Actual:   err.Error(),
			Events:   result.Events(),
		}
	}
	return trains, nil
}

// assertTrainSpacing checks that consecutive trains start a fixed interval
// apart. Fewer than two trains pass trivially.
func assertTrainSpacing(result *Result, a Assertion, actx *AssertionContext) error {
	trains, err := trainsOf(result, actx)
	if err != nil {
		return err
	}
	for i := 1; i < len(trains); i++ {
		if got := trains[i].Start - trains[i-1].Start; got != *a.Ticks {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("trains %d ticks apart", *a.Ticks),
				Actual:   fmt.Sprintf("train %d starts %d ticks after train %d", i, got, i-1),
				Events:   result.Events(),
			}
		}
	}
	return nil
}

// assertBunchSpacing checks the interval between consecutive bunches of
// every train.
func assertBunchSpacing(result *Result, a Assertion, actx *AssertionContext) error {
	trains, err := trainsOf(result, actx)
	if err != nil {
		return err
	}
	for i, tr := range trains {
		for j := 1; j < len(tr.Bunches); j++ {
			if got := tr.Bunches[j] - tr.Bunches[j-1]; got != *a.Ticks {
				return &AssertionError{
					Type:     a.Type,
					Expected: fmt.Sprintf("bunches %d ticks apart", *a.Ticks),
					Actual:   fmt.Sprintf("train %d bunch %d is %d ticks after bunch %d", i, j, got, j-1),
					Events:   result.Events(),
				}
			}
		}
	}
	return nil
}

func assertFirstEvent(result *Result, a Assertion) error {
	events := result.Events()
	if len(events) == 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("first event at tick %d", *a.Ticks),
			Actual:   "no events",
		}
	}
	if events[0].Tick != *a.Ticks {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("first event at tick %d", *a.Ticks),
			Actual:   fmt.Sprintf("first event at tick %d", events[0].Tick),
			Events:   events,
		}
	}
	return nil
}

func assertPayload(result *Result, a Assertion) error {
	for i, ev := range result.Events() {
		if ev.Payload != *a.Payload {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("every event carries payload %d", *a.Payload),
				Actual:   fmt.Sprintf("event %d carries payload %d", i, ev.Payload),
				Events:   result.Events(),
			}
		}
	}
	return nil
}
