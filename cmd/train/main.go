// Command train fits the mileage/price model on a CSV dataset and writes the artifact.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"carprice/config"
	"carprice/dataset"
	"carprice/db"
	"carprice/logging"
	"carprice/ml"
	"go.uber.org/zap"
)

type options struct {
	datasetPath  string
	learningRate float64
	epochs       int
	modelPath    string
	fitOut       string
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	lr := flag.Float64("lr", 0, "learning rate, overrides training.learning_rate")
	epochs := flag.Int("epochs", -1, "number of epochs, overrides training.epochs")
	modelPath := flag.String("model", "", "artifact path, overrides model.path")
	fitOut := flag.String("fit-out", "", "write the fitted line as JSON to this file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: train [flags] <dataset.csv>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	opts := options{
		datasetPath:  flag.Arg(0),
		learningRate: *lr,
		epochs:       *epochs,
		modelPath:    *modelPath,
		fitOut:       *fitOut,
	}
	if err := run(cfg, opts, logger, os.Stdout); err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}
}

func run(cfg *config.Config, opts options, logger *zap.Logger, out io.Writer) error {
	logger = logging.OrNop(logger)
	if opts.datasetPath == "" {
		opts.datasetPath = cfg.Dataset.Path
	}
	if opts.datasetPath == "" {
		return errors.New("dataset path is required")
	}
	if opts.modelPath == "" {
		opts.modelPath = cfg.Model.Path
	}

	trainCfg := cfg.TrainConfig()
	if opts.learningRate != 0 {
		trainCfg.LearningRate = opts.learningRate
	}
	if opts.epochs >= 0 {
		trainCfg.Epochs = opts.epochs
	}
	trainCfg.OnEpoch = func(p ml.EpochProgress) {
		logger.Info("epoch",
			zap.Int("epoch", p.Epoch),
			zap.Int("epochs", p.Epochs),
			zap.Float64("mse", p.MSE),
			zap.Float64("theta0", p.Theta0),
			zap.Float64("theta1", p.Theta1))
	}

	ds, err := dataset.LoadFile(opts.datasetPath, cfg.LoaderOptions(logger)...)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := ml.Train(ds, trainCfg)
	if err != nil {
		return err
	}
	if err := ml.NewStore(opts.modelPath).Save(result.Model); err != nil {
		return err
	}
	logger.Info("model trained",
		zap.String("dataset", opts.datasetPath),
		zap.String("model", opts.modelPath),
		zap.Int("samples", result.Metrics.Samples),
		zap.Int("rows", result.Stats.TotalRows),
		zap.Int("skipped", result.Stats.Skipped),
		zap.Any("issues", result.Stats.Issues),
		zap.Float64("mse", result.Metrics.MSE),
		zap.Float64("r2", result.Metrics.R2),
		zap.Duration("duration", time.Since(start)))

	if opts.fitOut != "" {
		if err := writeFitLine(opts.fitOut, result); err != nil {
			return err
		}
	}
	if cfg.Database.Path != "" {
		recordRun(cfg.Database.Path, opts, result, logger)
	}

	m := result.Model
	fmt.Fprintf(out, "theta0=%g theta1=%g mean=%g std=%g\n", m.Theta0, m.Theta1, m.Normalization.Mean, m.Normalization.Std)
	fmt.Fprintf(out, "mse=%.4f rmse=%.4f r2=%.4f\n", result.Metrics.MSE, result.Metrics.RMSE, result.Metrics.R2)
	fmt.Fprintf(out, "model saved to %s\n", opts.modelPath)
	return nil
}

func writeFitLine(path string, result *ml.TrainResult) error {
	payload := map[string]interface{}{
		"model":   result.Model,
		"metrics": result.Metrics,
		"points":  result.FitLine(),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// recordRun is best effort; the artifact is already saved.
func recordRun(dbPath string, opts options, result *ml.TrainResult, logger *zap.Logger) {
	history, err := db.Open(dbPath)
	if err != nil {
		logger.Warn("open history", zap.Error(err))
		return
	}
	defer history.Close()

	id, err := history.RecordTraining(context.Background(), db.TrainingRun{
		Source:       opts.datasetPath,
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
		ModelPath:    opts.modelPath,
		TrainedAt:    time.Now(),
	})
	if err != nil {
		logger.Warn("record training", zap.Error(err))
		return
	}
	logger.Debug("training recorded", zap.Int64("id", id))
}
