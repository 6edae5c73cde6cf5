// Package config loads pattern parameters from files.
//
// Three formats are accepted, chosen by extension:
//
//	.yaml, .yml  strict YAML, unknown keys rejected
//	.cue         CUE, unified with the embedded #Pattern schema
//	.json        strict JSON
//
// Every field uses the snake_case names of ir.PatternParams.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Config error codes (E100-E199)
const (
	ErrCodeNotFound     = "E101" // file missing or unreadable
	ErrCodeUnsupported  = "E102" // unknown file extension
	ErrCodeDecodeFailed = "E103" // file does not parse or has unknown fields
	ErrCodeSchema       = "E104" // CUE value does not satisfy #Pattern
)

// Error reports a parameter file that could not be loaded.
type Error struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads pattern parameters from path.
func Load(path string) (ir.PatternParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.PatternParams{}, &Error{Code: ErrCodeNotFound, Path: path, Message: err.Error(), Err: err}
	}
	return Decode(path, data)
}

// Decode parses data in the format implied by name's extension.
func Decode(name string, data []byte) (ir.PatternParams, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return decodeYAML(name, data)
	case ".cue":
		return decodeCUE(name, data)
	case ".json":
		return decodeJSON(name, data)
	default:
		return ir.PatternParams{}, &Error{
			Code:    ErrCodeUnsupported,
			Path:    name,
			Message: fmt.Sprintf("unsupported extension %q (want .yaml, .yml, .cue or .json)", filepath.Ext(name)),
		}
	}
}

func decodeYAML(name string, data []byte) (ir.PatternParams, error) {
	p := defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return ir.PatternParams{}, decodeError(name, err)
	}
	return p, nil
}

func decodeJSON(name string, data []byte) (ir.PatternParams, error) {
	p := defaults()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return ir.PatternParams{}, decodeError(name, err)
	}
	return p, nil
}

func decodeCUE(name string, data []byte) (ir.PatternParams, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return ir.PatternParams{}, fmt.Errorf("compiling embedded schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return ir.PatternParams{}, cueError(ErrCodeDecodeFailed, name, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Pattern")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return ir.PatternParams{}, cueError(ErrCodeSchema, name, err)
	}

	var p ir.PatternParams
	if err := unified.Decode(&p); err != nil {
		return ir.PatternParams{}, cueError(ErrCodeDecodeFailed, name, err)
	}
	return p, nil
}

// defaults matches the #Pattern schema defaults.
func defaults() ir.PatternParams {
	return ir.PatternParams{BunchesPerTrain: 1}
}

func decodeError(name string, err error) *Error {
	return &Error{Code: ErrCodeDecodeFailed, Path: name, Message: err.Error(), Err: err}
}

func cueError(code, name string, err error) *Error {
	e := &Error{Code: code, Path: name, Message: err.Error(), Err: err}
	var cerr interface{ Position() token.Pos }
	if errors.As(err, &cerr) {
		e.Pos = cerr.Position()
	}
	return e
}
