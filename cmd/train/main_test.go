package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carprice/config"
	"carprice/dataset"
	"carprice/db"
	"carprice/ml"
)

func writeDataset(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("km,price\n")
	for km := 0; km <= 100000; km += 10000 {
		fmt.Fprintf(&b, "%d,%g\n", km, 10000-0.05*float64(km))
	}
	b.WriteString("-100,5000\n")
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunTrainsAndRecords(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Model.Path = filepath.Join(dir, "weights.txt")
	cfg.Database.Path = filepath.Join(dir, "history.db")

	var out bytes.Buffer
	opts := options{
		datasetPath: writeDataset(t, dir),
		epochs:      -1,
		fitOut:      filepath.Join(dir, "plots", "fit.json"),
	}
	if err := run(cfg, opts, nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "model saved to "+cfg.Model.Path) {
		t.Fatalf("unexpected output: %q", out.String())
	}

	model, err := ml.NewStore(cfg.Model.Path).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Normalization.Mean != 50000 {
		t.Fatalf("expected the negative row to be skipped, mean=%v", model.Normalization.Mean)
	}

	data, err := os.ReadFile(opts.fitOut)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fit struct {
		Points []ml.FitPoint `json:"points"`
	}
	if err := json.Unmarshal(data, &fit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fit.Points) != 11 {
		t.Fatalf("expected 11 fit points, got %d", len(fit.Points))
	}

	history, err := db.Open(cfg.Database.Path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer history.Close()
	runs, err := history.ListTrainings(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].Skipped != 1 || runs[0].Epochs != 2000 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestRunOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	modelPath := filepath.Join(dir, "override.txt")

	opts := options{datasetPath: writeDataset(t, dir), learningRate: 0.1, epochs: 0, modelPath: modelPath}
	if err := run(cfg, opts, nil, &bytes.Buffer{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	model, err := ml.NewStore(modelPath).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// zero epochs leaves the thetas at their initial values
	if model.Theta0 != 0 || model.Theta1 != 0 {
		t.Fatalf("expected zero thetas, got %+v", model)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Model.Path = filepath.Join(dir, "weights.txt")

	if err := run(cfg, options{epochs: -1}, nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without a dataset path")
	}

	err := run(cfg, options{datasetPath: filepath.Join(dir, "missing.csv"), epochs: -1}, nil, &bytes.Buffer{})
	if !errors.Is(err, dataset.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}

	flat := filepath.Join(dir, "flat.csv")
	if err := os.WriteFile(flat, []byte("km,price\n10,1\n10,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err = run(cfg, options{datasetPath: flat, epochs: -1}, nil, &bytes.Buffer{})
	if !errors.Is(err, ml.ErrDegenerateVariance) {
		t.Fatalf("expected ErrDegenerateVariance, got %v", err)
	}
	if _, statErr := os.Stat(cfg.Model.Path); !os.IsNotExist(statErr) {
		t.Fatalf("failed run must not write an artifact")
	}
}
