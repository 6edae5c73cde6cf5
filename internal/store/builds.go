package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// SourcePattern marks a build compiled from pattern parameters. Preset
// builds use "preset:" followed by the preset name.
const SourcePattern = "pattern"

// PresetSource returns the source tag for a preset build.
func PresetSource(name string) string {
	return "preset:" + name
}

// BuildRequest describes one generated program to record.
type BuildRequest struct {
	Source     string
	Params     *ir.PatternParams // nil for presets
	OutputPath string
}

// Build is one recorded generation.
type Build struct {
	ID               string `json:"id"`
	Seq              int64  `json:"seq"`
	ProgramID        string `json:"program_id"`
	PatternID        string `json:"pattern_id,omitempty"`
	Source           string `json:"source"`
	Params           string `json:"params"`
	OutputPath       string `json:"output_path"`
	GeneratorVersion string `json:"generator_version"`
	InstructionCount int    `json:"instruction_count"`
}

// ErrNotFound is returned when a program or build does not exist.
var ErrNotFound = errors.New("not found")

// RecordBuild stores prog (once per distinct content) and appends a build
// record referencing it. Sequence numbers start at 1 and increase by one
// per build.
func (s *Store) RecordBuild(ctx context.Context, req BuildRequest, prog *ir.Program) (*Build, error) {
	programID, err := ir.ProgramID(prog)
	if err != nil {
		return nil, fmt.Errorf("record build: %w", err)
	}

	b := &Build{
		ProgramID:        programID,
		Source:           req.Source,
		Params:           "{}",
		OutputPath:       req.OutputPath,
		GeneratorVersion: ir.GeneratorVersion,
		InstructionCount: prog.Len(),
	}
	if req.Params != nil {
		params, err := ir.MarshalCanonical(req.Params.ToIR())
		if err != nil {
			return nil, fmt.Errorf("record build: %w", err)
		}
		b.Params = string(params)
		if b.PatternID, err = ir.PatternID(*req.Params); err != nil {
			return nil, fmt.Errorf("record build: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("record build: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO programs (id, listing, instruction_count, ir_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, programID, prog.Listing(), prog.Len(), ir.IRVersion)
	if err != nil {
		return nil, fmt.Errorf("record build: insert program: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM builds`).Scan(&b.Seq); err != nil {
		return nil, fmt.Errorf("record build: next seq: %w", err)
	}
	b.ID = s.ids.Generate()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO builds
		(id, seq, program_id, pattern_id, source, params, output_path, generator_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Seq, b.ProgramID, b.PatternID, b.Source, b.Params, b.OutputPath, b.GeneratorVersion)
	if err != nil {
		return nil, fmt.Errorf("record build: insert build: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("record build: commit: %w", err)
	}
	return b, nil
}

// ListBuilds returns the most recent builds, newest first. A limit <= 0
// returns every build.
func (s *Store) ListBuilds(ctx context.Context, limit int) ([]Build, error) {
	query := `
		SELECT b.id, b.seq, b.program_id, b.pattern_id, b.source, b.params,
		       b.output_path, b.generator_version, p.instruction_count
		FROM builds b
		JOIN programs p ON b.program_id = p.id
		ORDER BY b.seq DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []Build{}
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Seq, &b.ProgramID, &b.PatternID, &b.Source, &b.Params,
			&b.OutputPath, &b.GeneratorVersion, &b.InstructionCount); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// ReadProgram loads a stored program by id. A unique id prefix is accepted.
func (s *Store) ReadProgram(ctx context.Context, id string) (*ir.Program, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing FROM programs
		WHERE id LIKE ? || '%'
		ORDER BY id
		LIMIT 2
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query program: %w", err)
	}
	defer rows.Close()

	var matches []string
	var listing string
	for rows.Next() {
		var gotID string
		if err := rows.Scan(&gotID, &listing); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		matches = append(matches, gotID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("program %s: %w", id, ErrNotFound)
	case 1:
		return ir.ParseListing(strings.NewReader(listing))
	default:
		return nil, fmt.Errorf("program id prefix %q is ambiguous", id)
	}
}

// CountPrograms returns the number of distinct stored programs.
func (s *Store) CountPrograms(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM programs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count programs: %w", err)
	}
	return n, nil
}
