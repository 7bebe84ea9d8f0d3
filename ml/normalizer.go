package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NormalizationParams holds the z-score transform fitted on the training mileage.
type NormalizationParams struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// FitNormalization computes the mean and population standard deviation of xs.
// All-identical values are rejected before the variance is computed.
func FitNormalization(xs []float64) (NormalizationParams, error) {
	if len(xs) == 0 {
		return NormalizationParams{}, ErrEmptyInput
	}
	if floats.Min(xs) == floats.Max(xs) {
		return NormalizationParams{}, fmt.Errorf("all %d values equal %v: %w", len(xs), xs[0], ErrDegenerateVariance)
	}

	mean, variance := stat.PopMeanVariance(xs, nil)
	std := math.Sqrt(variance)
	params := NormalizationParams{Mean: mean, Std: std}
	if err := params.Validate(); err != nil {
		return NormalizationParams{}, err
	}
	return params, nil
}

// Validate reports ErrDegenerateVariance for a zero or non-finite std.
func (p NormalizationParams) Validate() error {
	if p.Std == 0 || math.IsNaN(p.Std) || math.IsInf(p.Std, 0) {
		return fmt.Errorf("std=%v: %w", p.Std, ErrDegenerateVariance)
	}
	if math.IsNaN(p.Mean) || math.IsInf(p.Mean, 0) {
		return fmt.Errorf("mean=%v: %w", p.Mean, ErrNonFinite)
	}
	return nil
}

// Apply returns (x - Mean) / Std.
func (p NormalizationParams) Apply(x float64) float64 {
	return (x - p.Mean) / p.Std
}

func (p NormalizationParams) ApplyAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = p.Apply(x)
	}
	return out
}
