package ml

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.txt")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestStoreRoundTrip(t *testing.T) {
	model := Model{
		Theta0:        6331.833333333333,
		Theta1:        -1106.0474520202343,
		Normalization: NormalizationParams{Mean: 101066.25, Std: 51565.1899106445},
	}
	store := NewStore(filepath.Join(t.TempDir(), "models", "weights.txt"))

	if err := store.Save(model); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != model {
		t.Fatalf("expected %+v, got %+v", model, loaded)
	}

	// save(load(save(model)))
	if err := store.Save(loaded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, pair := range [][2]float64{
		{again.Theta0, model.Theta0},
		{again.Theta1, model.Theta1},
		{again.Normalization.Mean, model.Normalization.Mean},
		{again.Normalization.Std, model.Normalization.Std},
	} {
		if math.Abs(pair[0]-pair[1]) > 1e-9 {
			t.Fatalf("round trip drifted: %v != %v", pair[0], pair[1])
		}
	}
}

func TestStoreSaveLayout(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "weights.txt"))
	model := Model{Theta0: 5, Theta1: 0.5, Normalization: NormalizationParams{Mean: 0.25, Std: 2}}
	if err := store.Save(model); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(store.Path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "5\n0.5\n0.25\n2\n" {
		t.Fatalf("unexpected artifact layout: %q", string(data))
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact in the directory, got %d entries", len(entries))
	}
}

func TestStoreSaveRejectsInvalidModel(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "weights.txt"))
	if err := store.Save(Model{Theta0: 1, Theta1: 1}); !errors.Is(err, ErrDegenerateVariance) {
		t.Fatalf("expected ErrDegenerateVariance, got %v", err)
	}
	if store.Exists() {
		t.Fatal("invalid model must not be written")
	}
}

func TestStoreLoadNotFound(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "weights.txt"))
	if _, err := store.Load(); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing std line", body: "5.0\n2.0\n\n"},
		{name: "empty", body: ""},
		{name: "three lines", body: "1\n2\n3\n"},
		{name: "five lines", body: "1\n2\n3\n4\n5\n"},
		{name: "not a number", body: "1\n2\nthree\n4\n"},
		{name: "blank line inside", body: "1\n\n3\n4\n"},
		{name: "zero std", body: "1\n2\n3\n0\n"},
		{name: "nan theta", body: "NaN\n2\n3\n4\n"},
		{name: "legacy format", body: "8499.6\n-0.0214\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(writeArtifact(t, tt.body))
			if _, err := store.Load(); !errors.Is(err, ErrModelCorrupt) {
				t.Fatalf("expected ErrModelCorrupt, got %v", err)
			}
		})
	}
}

func TestStoreLoadTolerance(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no trailing newline", body: "1\n2\n3\n4"},
		{name: "crlf", body: "1\r\n2\r\n3\r\n4\r\n"},
		{name: "padded", body: " 1 \n2\n3\n 4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewStore(writeArtifact(t, tt.body)).Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := Model{Theta0: 1, Theta1: 2, Normalization: NormalizationParams{Mean: 3, Std: 4}}
			if model != want {
				t.Fatalf("expected %+v, got %+v", want, model)
			}
		})
	}
}

func TestLoadArtifactLegacy(t *testing.T) {
	path := writeArtifact(t, "8499.6\n-0.0214\n")

	artifact, err := NewStore(path).LoadArtifact()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	legacy, ok := artifact.(LegacyModel)
	if !ok {
		t.Fatalf("expected LegacyModel, got %T", artifact)
	}
	if legacy.Theta0 != 8499.6 || legacy.Theta1 != -0.0214 {
		t.Fatalf("unexpected legacy model: %+v", legacy)
	}

	if _, err := LoadModel(path, false); !errors.Is(err, ErrModelCorrupt) {
		t.Fatalf("expected ErrModelCorrupt without legacy support, got %v", err)
	}
	loaded, err := LoadModel(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Format() != FormatLegacy {
		t.Fatalf("expected legacy format, got %s", loaded.Format())
	}
}

func TestLoadModelNormalized(t *testing.T) {
	path := writeArtifact(t, "1\n2\n3\n4\n")
	for _, allowLegacy := range []bool{false, true} {
		artifact, err := LoadModel(path, allowLegacy)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if artifact.Format() != FormatNormalized {
			t.Fatalf("expected normalized format, got %s", artifact.Format())
		}
	}
	if _, err := LoadModel(filepath.Join(t.TempDir(), "none.txt"), true); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}
