package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// isJSONPath reports whether a program file uses the JSON form.
func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// writeProgram writes prog to path: indented JSON for .json paths, the
// text listing otherwise.
func writeProgram(path string, prog *ir.Program) error {
	var data []byte
	if isJSONPath(path) {
		var err error
		data, err = json.MarshalIndent(prog, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling program: %w", err)
		}
		data = append(data, '\n')
	} else {
		data = []byte(prog.Listing())
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return withCode(ErrCodeWriteFailed, fmt.Errorf("writing %s: %w", path, err))
	}
	return nil
}

// readProgram reads a program written by writeProgram.
func readProgram(path string) (*ir.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, withCode(ErrCodeNotFound, err)
	}
	if isJSONPath(path) {
		var prog ir.Program
		if err := json.Unmarshal(data, &prog); err != nil {
			return nil, withCode(ErrCodeBadProgram, fmt.Errorf("%s: %w", path, err))
		}
		return &prog, nil
	}
	prog, err := ir.ParseListing(bytes.NewReader(data))
	if err != nil {
		return nil, withCode(ErrCodeBadProgram, fmt.Errorf("%s: %w", path, err))
	}
	return prog, nil
}
