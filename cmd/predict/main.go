// Command predict estimates a car price from its mileage with a trained artifact.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"carprice/config"
	"carprice/db"
	"carprice/logging"
	"carprice/ml"
	"go.uber.org/zap"
)

type options struct {
	modelPath   string
	km          string
	allowLegacy bool
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	modelPath := flag.String("model", "", "artifact path, overrides model.path")
	km := flag.String("km", "", "mileage to price; prompted for when empty")
	legacy := flag.Bool("legacy", false, "accept a two-line artifact trained on raw mileage")
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

	opts := options{modelPath: *modelPath, km: *km, allowLegacy: *legacy}
	if err := run(cfg, opts, logger, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("prediction failed", zap.Error(err))
	}
}

func run(cfg *config.Config, opts options, logger *zap.Logger, in io.Reader, out io.Writer) error {
	logger = logging.OrNop(logger)
	if opts.modelPath == "" {
		opts.modelPath = cfg.Model.Path
	}

	// the artifact is checked before asking for input
	artifact, err := ml.LoadModel(opts.modelPath, opts.allowLegacy)
	if err != nil {
		return err
	}
	if artifact.Format() == ml.FormatLegacy {
		logger.Warn("predicting with a legacy artifact on raw mileage", zap.String("model", opts.modelPath))
	}

	raw := opts.km
	if raw == "" {
		fmt.Fprint(out, "Enter car mileage: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read mileage: %w", err)
		}
		raw = strings.TrimSpace(line)
	}
	km, err := ml.ParseMileage(raw)
	if err != nil {
		return err
	}

	price, err := ml.PredictArtifact(artifact, km)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Predicted price: %.2f\n", price)

	if cfg.Database.Path != "" {
		recordPrediction(cfg.Database.Path, opts.modelPath, km, price, logger)
	}
	return nil
}

func recordPrediction(dbPath, modelPath string, km, price float64, logger *zap.Logger) {
	history, err := db.Open(dbPath)
	if err != nil {
		logger.Warn("open history", zap.Error(err))
		return
	}
	defer history.Close()

	record := db.PredictionRecord{KM: km, Price: price, ModelPath: modelPath, PredictedAt: time.Now()}
	if _, err := history.RecordPrediction(context.Background(), record); err != nil {
		logger.Warn("record prediction", zap.Error(err))
	}
}
