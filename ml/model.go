package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format identifies an artifact generation.
type Format string

const (
	FormatLegacy     Format = "legacy"
	FormatNormalized Format = "normalized"
)

// Artifact is a decoded model file: either a Model or a LegacyModel.
type Artifact interface {
	Format() Format
	Predict(km float64) (float64, error)
}

// Model is a normalized linear model: price = Theta0 + Theta1 * (km - Mean) / Std.
type Model struct {
	Theta0        float64             `json:"theta0"`
	Theta1        float64             `json:"theta1"`
	Normalization NormalizationParams `json:"normalization"`
}

// NewModel validates the coefficients and the normalization before returning the model.
func NewModel(theta0, theta1 float64, norm NormalizationParams) (Model, error) {
	m := Model{Theta0: theta0, Theta1: theta1, Normalization: norm}
	if err := m.Validate(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func (m Model) Validate() error {
	if !isFinite(m.Theta0) || !isFinite(m.Theta1) {
		return fmt.Errorf("theta0=%v theta1=%v: %w", m.Theta0, m.Theta1, ErrNonFinite)
	}
	return m.Normalization.Validate()
}

func (Model) Format() Format {
	return FormatNormalized
}

// Predict applies the training normalization to km and evaluates the line.
// Mileage is not range checked; the model extrapolates linearly.
func (m Model) Predict(km float64) (float64, error) {
	if err := m.Normalization.Validate(); err != nil {
		return 0, err
	}
	price := m.Theta0 + m.Theta1*m.Normalization.Apply(km)
	if !isFinite(price) {
		return 0, fmt.Errorf("predict km=%v: %w", km, ErrNonFinite)
	}
	return price, nil
}

// LegacyModel is the two-line artifact written before normalization existed.
// Its slope applies to raw mileage.
type LegacyModel struct {
	Theta0 float64 `json:"theta0"`
	Theta1 float64 `json:"theta1"`
}

func (LegacyModel) Format() Format {
	return FormatLegacy
}

func (m LegacyModel) Predict(km float64) (float64, error) {
	price := m.Theta0 + m.Theta1*km
	if !isFinite(price) {
		return 0, fmt.Errorf("predict km=%v: %w", km, ErrNonFinite)
	}
	return price, nil
}

// PredictArtifact predicts with whichever generation a was decoded as.
func PredictArtifact(a Artifact, km float64) (float64, error) {
	switch model := a.(type) {
	case Model:
		return model.Predict(km)
	case LegacyModel:
		return model.Predict(km)
	default:
		return 0, fmt.Errorf("unsupported artifact %T: %w", a, ErrModelCorrupt)
	}
}

// ParseMileage parses a query value. Negative values are accepted.
func ParseMileage(s string) (float64, error) {
	km, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !isFinite(km) {
		return 0, fmt.Errorf("%q is not a number: %w", s, ErrInvalidQuery)
	}
	return km, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
