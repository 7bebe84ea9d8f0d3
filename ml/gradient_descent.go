package ml

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultLearningRate = 0.01
	DefaultEpochs       = 2000
	DefaultReportEvery  = 100
)

// EpochProgress is reported to GradientDescent.OnEpoch.
// MSE and the thetas are the values the epoch started from.
type EpochProgress struct {
	Epoch  int     `json:"epoch"`
	Epochs int     `json:"epochs"`
	MSE    float64 `json:"mse"`
	Theta0 float64 `json:"theta0"`
	Theta1 float64 `json:"theta1"`
}

// GradientDescent fits theta0 + theta1*x by batch gradient descent over a fixed number of epochs.
type GradientDescent struct {
	LearningRate float64
	Epochs       int

	// ReportEvery controls how often OnEpoch is called; the last epoch is always reported.
	ReportEvery int
	OnEpoch     func(EpochProgress)
}

// Fit starts from zero coefficients and runs exactly Epochs updates. xs and ys must have
// the same length. Inputs are not validated and divergence is not detected.
func (gd GradientDescent) Fit(xs, ys []float64) (theta0, theta1 float64) {
	n := float64(len(xs))
	residuals := make([]float64, len(xs))

	for epoch := 1; epoch <= gd.Epochs; epoch++ {
		for i, x := range xs {
			residuals[i] = theta0 + theta1*x - ys[i]
		}
		grad0 := stat.Mean(residuals, nil)
		grad1 := floats.Dot(residuals, xs) / n

		if gd.OnEpoch != nil && gd.reportDue(epoch) {
			gd.OnEpoch(EpochProgress{
				Epoch:  epoch,
				Epochs: gd.Epochs,
				MSE:    floats.Dot(residuals, residuals) / n,
				Theta0: theta0,
				Theta1: theta1,
			})
		}

		// both gradients come from the same residuals
		theta0 -= gd.LearningRate * grad0
		theta1 -= gd.LearningRate * grad1
	}
	return theta0, theta1
}

func (gd GradientDescent) reportDue(epoch int) bool {
	if epoch == gd.Epochs || epoch == 1 {
		return true
	}
	return gd.ReportEvery > 0 && epoch%gd.ReportEvery == 0
}
