package ml

import (
	"errors"
	"math"
	"testing"
)

func TestModelPredict(t *testing.T) {
	model, err := NewModel(6000, -1000, NormalizationParams{Mean: 100000, Std: 50000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		km   float64
		want float64
	}{
		{km: 100000, want: 6000},
		{km: 150000, want: 5000},
		{km: 0, want: 8000},
		// extrapolation is allowed
		{km: -50000, want: 9000},
	}
	for _, tt := range tests {
		got, err := model.Predict(tt.km)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("Predict(%v) = %v, want %v", tt.km, got, tt.want)
		}
	}
}

func TestModelPredictIdempotent(t *testing.T) {
	model := Model{Theta0: 6331.83, Theta1: -1106.04, Normalization: NormalizationParams{Mean: 101066.25, Std: 51565.19}}
	first, err := model.Predict(123456.789)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := model.Predict(123456.789)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Float64bits(first) != math.Float64bits(second) {
		t.Fatalf("expected bit-identical predictions, got %v and %v", first, second)
	}
}

func TestModelPredictRejectsZeroStd(t *testing.T) {
	model := Model{Theta0: 1, Theta1: 2}
	if _, err := model.Predict(10); !errors.Is(err, ErrDegenerateVariance) {
		t.Fatalf("expected ErrDegenerateVariance, got %v", err)
	}
}

func TestNewModelValidation(t *testing.T) {
	if _, err := NewModel(math.NaN(), 1, NormalizationParams{Std: 1}); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	if _, err := NewModel(1, 1, NormalizationParams{Std: 0}); !errors.Is(err, ErrDegenerateVariance) {
		t.Fatalf("expected ErrDegenerateVariance, got %v", err)
	}
}

func TestPredictArtifactDispatch(t *testing.T) {
	normalized := Model{Theta0: 10, Theta1: 2, Normalization: NormalizationParams{Mean: 5, Std: 5}}
	legacy := LegacyModel{Theta0: 10, Theta1: 2}

	got, err := PredictArtifact(normalized, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 14 {
		t.Fatalf("normalized prediction = %v, want 14", got)
	}

	got, err = PredictArtifact(legacy, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 40 {
		t.Fatalf("legacy prediction = %v, want 40", got)
	}

	if normalized.Format() != FormatNormalized || legacy.Format() != FormatLegacy {
		t.Fatal("unexpected artifact formats")
	}
}

func TestParseMileage(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{input: "42000", want: 42000},
		{input: " 1.5e5 \n", want: 150000},
		{input: "-10", want: -10},
		{input: "", wantErr: true},
		{input: "forty", wantErr: true},
		{input: "NaN", wantErr: true},
		{input: "Inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMileage(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Fatalf("expected ErrInvalidQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseMileage(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
