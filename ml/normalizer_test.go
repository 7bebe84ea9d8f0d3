package ml

import (
	"errors"
	"math"
	"testing"
)

func TestFitNormalization(t *testing.T) {
	params, err := FitNormalization([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Mean != 5 {
		t.Fatalf("expected mean 5, got %v", params.Mean)
	}
	// population std, not sample std
	if math.Abs(params.Std-2) > 1e-12 {
		t.Fatalf("expected std 2, got %v", params.Std)
	}
	if got := params.Apply(9); math.Abs(got-2) > 1e-12 {
		t.Fatalf("expected normalized 2, got %v", got)
	}
}

func TestFitNormalizationErrors(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want error
	}{
		{name: "empty", xs: nil, want: ErrEmptyInput},
		{name: "single value", xs: []float64{42}, want: ErrDegenerateVariance},
		{name: "identical values", xs: []float64{0.1, 0.1, 0.1}, want: ErrDegenerateVariance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitNormalization(tt.xs)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyAllHasZeroMeanUnitVariance(t *testing.T) {
	xs := []float64{240000, 139800, 150500, 185530, 176000, 114800}
	params, err := FitNormalization(xs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	normalized := params.ApplyAll(xs)

	var sum, sumSq float64
	for _, v := range normalized {
		sum += v
		sumSq += v * v
	}
	n := float64(len(normalized))
	if math.Abs(sum/n) > 1e-12 {
		t.Fatalf("expected zero mean, got %v", sum/n)
	}
	if math.Abs(sumSq/n-1) > 1e-12 {
		t.Fatalf("expected unit variance, got %v", sumSq/n)
	}
}

func TestNormalizationValidate(t *testing.T) {
	if err := (NormalizationParams{Mean: 1, Std: 0}).Validate(); !errors.Is(err, ErrDegenerateVariance) {
		t.Fatalf("expected ErrDegenerateVariance, got %v", err)
	}
	if err := (NormalizationParams{Mean: math.NaN(), Std: 1}).Validate(); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	if err := (NormalizationParams{Mean: 1, Std: 2}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
