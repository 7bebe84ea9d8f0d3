package ml

import (
	"fmt"
	"math"

	"carprice/dataset"
	"gonum.org/v1/gonum/stat"
)

// TrainConfig is the explicit configuration of one training run.
type TrainConfig struct {
	LearningRate float64
	Epochs       int
	ReportEvery  int
	OnEpoch      func(EpochProgress)
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		LearningRate: DefaultLearningRate,
		Epochs:       DefaultEpochs,
		ReportEvery:  DefaultReportEvery,
	}
}

func (c TrainConfig) Validate() error {
	if !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0) {
		return fmt.Errorf("learning rate %v must be positive: %w", c.LearningRate, ErrInvalidConfig)
	}
	if c.Epochs < 0 {
		return fmt.Errorf("epochs %d must not be negative: %w", c.Epochs, ErrInvalidConfig)
	}
	return nil
}

// Metrics describes how well a model fits its training samples.
// R2 is reported as 0 when the prices have no variance.
type Metrics struct {
	Samples int     `json:"samples"`
	MSE     float64 `json:"mse"`
	RMSE    float64 `json:"rmse"`
	R2      float64 `json:"r2"`
}

// FitPoint pairs a training sample with the model's prediction for it.
type FitPoint struct {
	X          float64 `json:"km"`
	Y          float64 `json:"price"`
	Normalized float64 `json:"normalized_km"`
	Predicted  float64 `json:"predicted"`
}

type TrainResult struct {
	Model   Model              `json:"model"`
	Metrics Metrics            `json:"metrics"`
	Config  TrainConfig        `json:"-"`
	Samples []dataset.Sample   `json:"-"`
	Skipped []dataset.RowIssue `json:"skipped,omitempty"`
	Stats   dataset.Stats      `json:"stats"`
}

// Train normalizes the dataset mileage, fits the coefficients and evaluates the result.
func Train(ds *dataset.Dataset, cfg TrainConfig) (*TrainResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("train: %w", dataset.ErrEmptyDataset)
	}

	xs, ys := ds.Xs(), ds.Ys()
	norm, err := FitNormalization(xs)
	if err != nil {
		return nil, fmt.Errorf("fit normalization: %w", err)
	}

	gd := GradientDescent{
		LearningRate: cfg.LearningRate,
		Epochs:       cfg.Epochs,
		ReportEvery:  cfg.ReportEvery,
		OnEpoch:      cfg.OnEpoch,
	}
	theta0, theta1 := gd.Fit(norm.ApplyAll(xs), ys)
	if !isFinite(theta0) || !isFinite(theta1) {
		return nil, fmt.Errorf("learning rate %v after %d epochs gave theta0=%v theta1=%v: %w",
			cfg.LearningRate, cfg.Epochs, theta0, theta1, ErrDiverged)
	}

	model, err := NewModel(theta0, theta1, norm)
	if err != nil {
		return nil, err
	}

	samples := ds.Samples()
	metrics, err := Evaluate(model, samples)
	if err != nil {
		return nil, err
	}

	return &TrainResult{
		Model:   model,
		Metrics: metrics,
		Config:  cfg,
		Samples: samples,
		Skipped: ds.Skipped(),
		Stats:   ds.Stats(),
	}, nil
}

// FitLine returns the raw samples with the fitted price for each, for plotting.
func (r *TrainResult) FitLine() []FitPoint {
	points := make([]FitPoint, len(r.Samples))
	for i, s := range r.Samples {
		normalized := r.Model.Normalization.Apply(s.X)
		points[i] = FitPoint{
			X:          s.X,
			Y:          s.Y,
			Normalized: normalized,
			Predicted:  r.Model.Theta0 + r.Model.Theta1*normalized,
		}
	}
	return points
}

// Evaluate computes the fit metrics of m over samples.
func Evaluate(m Model, samples []dataset.Sample) (Metrics, error) {
	if len(samples) == 0 {
		return Metrics{}, ErrEmptyInput
	}

	estimates := make([]float64, len(samples))
	values := make([]float64, len(samples))
	var sse float64
	for i, s := range samples {
		predicted, err := m.Predict(s.X)
		if err != nil {
			return Metrics{}, err
		}
		estimates[i] = predicted
		values[i] = s.Y
		diff := predicted - s.Y
		sse += diff * diff
	}

	mse := sse / float64(len(samples))
	r2 := stat.RSquaredFrom(estimates, values, nil)
	if !isFinite(r2) {
		r2 = 0
	}
	return Metrics{
		Samples: len(samples),
		MSE:     mse,
		RMSE:    math.Sqrt(mse),
		R2:      r2,
	}, nil
}
