package ml

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestModelCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.txt")
	store := NewStore(path)
	first := Model{Theta0: 1, Theta1: 2, Normalization: NormalizationParams{Mean: 3, Std: 4}}
	if err := store.Save(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache, err := NewModelCache(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := cache.Get(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != first || cache.Len() != 1 {
		t.Fatalf("unexpected cached model %+v (len %d)", got, cache.Len())
	}

	second := Model{Theta0: 5, Theta1: 6, Normalization: NormalizationParams{Mean: 7, Std: 8}}
	if err := store.Save(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := cache.Get(path); got != first {
		t.Fatalf("expected stale cached model before invalidation, got %+v", got)
	}

	cache.Invalidate(path)
	if got, _ := cache.Get(path); got != second {
		t.Fatalf("expected reloaded model, got %+v", got)
	}

	third := Model{Theta0: 9, Theta1: 10, Normalization: NormalizationParams{Mean: 11, Std: 12}}
	cache.Put(path, third)
	if got, _ := cache.Get(path); got != third {
		t.Fatalf("expected put model, got %+v", got)
	}
}

func TestModelCacheMissingArtifact(t *testing.T) {
	cache, err := NewModelCache(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "weights.txt")
	if _, err := cache.Get(path); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if cache.Len() != 0 {
		t.Fatal("load errors must not be cached")
	}
}
