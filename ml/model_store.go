package ml

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	legacyLines     = 2
	normalizedLines = 4
)

// Store persists a Model as four newline-terminated floats:
// theta0, theta1, normalization mean, normalization std.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Save atomically replaces the artifact with m.
func (s *Store) Save(m Model) error {
	if err := m.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(EncodeModel(m)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, s.Path)
}

// Load reads a normalized artifact. A legacy two-line artifact is rejected as corrupt.
func (s *Store) Load() (Model, error) {
	artifact, err := s.LoadArtifact()
	if err != nil {
		return Model{}, err
	}
	model, ok := artifact.(Model)
	if !ok {
		return Model{}, fmt.Errorf("%s: %s artifact has %d lines, expected %d; retrain the model: %w",
			s.Path, artifact.Format(), legacyLines, normalizedLines, ErrModelCorrupt)
	}
	return model, nil
}

// LoadArtifact reads the artifact as whichever generation its line count indicates.
func (s *Store) LoadArtifact() (Artifact, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", s.Path, ErrModelNotFound)
		}
		return nil, err
	}
	artifact, err := DecodeArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return artifact, nil
}

func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// EncodeModel renders m in the normalized format with round-trip precision.
func EncodeModel(m Model) []byte {
	values := []float64{m.Theta0, m.Theta1, m.Normalization.Mean, m.Normalization.Std}
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// DecodeArtifact parses either artifact generation. One trailing newline is allowed;
// any other blank line is a line that fails to parse.
func DecodeArtifact(data []byte) (Artifact, error) {
	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")
	if len(lines) != legacyLines && len(lines) != normalizedLines {
		return nil, fmt.Errorf("expected %d lines, got %d: %w", normalizedLines, len(lines), ErrModelCorrupt)
	}

	values := make([]float64, len(lines))
	for i, line := range lines {
		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil || !isFinite(v) {
			return nil, fmt.Errorf("line %d %q is not a number: %w", i+1, line, ErrModelCorrupt)
		}
		values[i] = v
	}

	if len(values) == legacyLines {
		return LegacyModel{Theta0: values[0], Theta1: values[1]}, nil
	}

	model, err := NewModel(values[0], values[1], NormalizationParams{Mean: values[2], Std: values[3]})
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrModelCorrupt)
	}
	return model, nil
}
