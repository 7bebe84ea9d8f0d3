package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"carprice/dataset"
	"carprice/db"
	"carprice/ml"
	"carprice/monitoring"
	"go.uber.org/zap"
)

// TrainResponse 训练结果
type TrainResponse struct {
	Model     ml.Model           `json:"model"`
	Metrics   ml.Metrics         `json:"metrics"`
	Skipped   []dataset.RowIssue `json:"skipped"`
	Stats     dataset.Stats      `json:"stats"`
	ModelPath string             `json:"model_path"`
	RunID     int64              `json:"run_id,omitempty"`
	Duration  string             `json:"duration"`
	Fit       []ml.FitPoint      `json:"fit,omitempty"`
}

type trainingFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// handleTrain fits a model on the CSV request body and replaces the served artifact.
// Only one training runs at a time; a concurrent request gets 409.
func (a *API) handleTrain(w http.ResponseWriter, r *http.Request) {
	if !a.trainMu.TryLock() {
		respondError(w, http.StatusConflict, errTrainingInProgress)
		return
	}
	defer a.trainMu.Unlock()

	cfg, err := a.trainConfig(r)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}

	source := r.Header.Get("X-Dataset-Name")
	if source == "" {
		source = "upload"
	}

	start := time.Now()
	result, err := a.train(r, source, cfg)
	if err != nil {
		a.metrics.IncrCounter(monitoring.MetricTrainingErrors, 1)
		a.publish(monitoring.TrainingFailed, trainingFailure{Source: source, Error: err.Error()})
		a.logger.Warn("training failed", zap.String("source", source), zap.Error(err))
		respondError(w, statusFor(err), err)
		return
	}
	elapsed := time.Since(start)

	a.metrics.IncrCounter(monitoring.MetricTrainings, 1)
	a.metrics.SetGauge(monitoring.MetricTrainingMSE, result.Metrics.MSE)
	a.metrics.SetGauge(monitoring.MetricTrainingR2, result.Metrics.R2)
	a.metrics.SetGauge(monitoring.MetricTrainingSeconds, elapsed.Seconds())
	a.metrics.SetGauge(monitoring.MetricSkippedRows, float64(len(result.Skipped)))

	resp := TrainResponse{
		Model:     result.Model,
		Metrics:   result.Metrics,
		Skipped:   result.Skipped,
		Stats:     result.Stats,
		ModelPath: a.modelPath,
		Duration:  elapsed.String(),
	}
	if resp.Skipped == nil {
		resp.Skipped = []dataset.RowIssue{}
	}

	if a.history != nil {
		id, err := a.history.RecordTraining(r.Context(), trainingRun(source, a.modelPath, result))
		if err != nil {
			a.logger.Warn("record training", zap.Error(err))
		}
		resp.RunID = id
	}
	if r.URL.Query().Get("fit") == "1" {
		resp.Fit = result.FitLine()
	}

	a.publish(monitoring.TrainingFinished, resp)
	a.logger.Info("model trained",
		zap.String("source", source),
		zap.Int("samples", result.Metrics.Samples),
		zap.Int("rows", result.Stats.TotalRows),
		zap.Int("skipped", result.Stats.Skipped),
		zap.Float64("mse", result.Metrics.MSE),
		zap.Float64("r2", result.Metrics.R2),
		zap.Duration("duration", elapsed))

	respondJSON(w, http.StatusOK, resp)
}

func (a *API) train(r *http.Request, source string, cfg ml.TrainConfig) (*ml.TrainResult, error) {
	ds, err := dataset.Load(r.Body, source, a.loaderOptions...)
	if err != nil {
		return nil, err
	}
	a.publish(monitoring.TrainingStarted, map[string]interface{}{
		"source":        source,
		"samples":       ds.Len(),
		"learning_rate": cfg.LearningRate,
		"epochs":        cfg.Epochs,
	})

	result, err := ml.Train(ds, cfg)
	if err != nil {
		return nil, err
	}
	if err := ml.NewStore(a.modelPath).Save(result.Model); err != nil {
		return nil, err
	}
	a.cache.Put(a.modelPath, result.Model)
	return result, nil
}

// trainConfig applies the lr and epochs query overrides to the configured defaults.
func (a *API) trainConfig(r *http.Request) (ml.TrainConfig, error) {
	cfg := a.training
	query := r.URL.Query()
	if raw := query.Get("lr"); raw != "" {
		lr, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid lr %q: %w", raw, ml.ErrInvalidConfig)
		}
		cfg.LearningRate = lr
	}
	if raw := query.Get("epochs"); raw != "" {
		epochs, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid epochs %q: %w", raw, ml.ErrInvalidConfig)
		}
		cfg.Epochs = epochs
	}
	if a.hub != nil {
		cfg.OnEpoch = func(p ml.EpochProgress) {
			a.hub.Publish(monitoring.TrainingProgress, p)
		}
	}
	return cfg, cfg.Validate()
}

func (a *API) publish(msgType monitoring.MessageType, data interface{}) {
	if a.hub != nil {
		a.hub.Publish(msgType, data)
	}
}

func trainingRun(source, modelPath string, result *ml.TrainResult) db.TrainingRun {
	return db.TrainingRun{
		Source:       source,
		Samples:      result.Metrics.Samples,
		Skipped:      len(result.Skipped),
		LearningRate: result.Config.LearningRate,
		Epochs:       result.Config.Epochs,
		Theta0:       result.Model.Theta0,
		Theta1:       result.Model.Theta1,
		NormMean:     result.Model.Normalization.Mean,
		NormStd:      result.Model.Normalization.Std,
		MSE:          result.Metrics.MSE,
		R2:           result.Metrics.R2,
		ModelPath:    modelPath,
		TrainedAt:    time.Now(),
	}
}
