package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"no html escaping", IRString("<a&b>"), `"<a&b>"`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"bool", IRBool(true), "true"},
		{"empty array", IRArray{}, "[]"},
		{"sorted keys", IRObject{"zebra": IRInt(1), "alpha": IRInt(2)}, `{"alpha":2,"zebra":1}`},
		{"nested", IRObject{"a": IRArray{IRObject{"y": IRBool(false), "x": IRInt(0)}}}, `{"a":[{"x":0,"y":false}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	decomposed, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(IRString("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	require.Error(t, err)
	_, err = MarshalCanonical(1.5)
	require.Error(t, err)
	_, err = MarshalCanonical(struct{}{})
	require.Error(t, err)
}

func TestProgramIDStable(t *testing.T) {
	a := MustProgram(EmitEvent(0), mustWait(t, Marker10Hz, 1), mustBranch(t, 0))
	b := MustProgram(EmitEvent(0), mustWait(t, Marker10Hz, 1), mustBranch(t, 0))
	c := MustProgram(EmitEvent(1), mustWait(t, Marker10Hz, 1), mustBranch(t, 0))

	assert.Equal(t, MustProgramID(a), MustProgramID(b))
	assert.NotEqual(t, MustProgramID(a), MustProgramID(c))
	assert.Len(t, MustProgramID(a), 64)
}

func TestPatternIDDistinguishesRepeat(t *testing.T) {
	p := PatternParams{TrainSpacing: 910, BunchesPerTrain: 1}
	id1, err := PatternID(p)
	require.NoError(t, err)

	p.Repeat = true
	id2, err := PatternID(p)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}
