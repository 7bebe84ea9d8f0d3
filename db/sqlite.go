package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source TEXT NOT NULL,
        samples INTEGER NOT NULL,
        skipped INTEGER NOT NULL,
        learning_rate REAL NOT NULL,
        epochs INTEGER NOT NULL,
        theta0 REAL NOT NULL,
        theta1 REAL NOT NULL,
        norm_mean REAL NOT NULL,
        norm_std REAL NOT NULL,
        mse REAL NOT NULL,
        r2 REAL NOT NULL,
        model_path TEXT NOT NULL,
        trained_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        km REAL NOT NULL,
        price REAL NOT NULL,
        model_path TEXT NOT NULL,
        predicted_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_training_runs_trained_at ON training_runs(trained_at);
    CREATE INDEX IF NOT EXISTS idx_predictions_predicted_at ON predictions(predicted_at);
    `

var ErrNotInitialized = errors.New("database not initialized")

// History records training runs and predictions.
type History struct {
	db *sqlx.DB
}

type TrainingRun struct {
	ID           int64     `db:"id" json:"id"`
	Source       string    `db:"source" json:"source"`
	Samples      int       `db:"samples" json:"samples"`
	Skipped      int       `db:"skipped" json:"skipped"`
	LearningRate float64   `db:"learning_rate" json:"learning_rate"`
	Epochs       int       `db:"epochs" json:"epochs"`
	Theta0       float64   `db:"theta0" json:"theta0"`
	Theta1       float64   `db:"theta1" json:"theta1"`
	NormMean     float64   `db:"norm_mean" json:"norm_mean"`
	NormStd      float64   `db:"norm_std" json:"norm_std"`
	MSE          float64   `db:"mse" json:"mse"`
	R2           float64   `db:"r2" json:"r2"`
	ModelPath    string    `db:"model_path" json:"model_path"`
	TrainedAt    time.Time `db:"trained_at" json:"trained_at"`
}

type PredictionRecord struct {
	ID          int64     `db:"id" json:"id"`
	KM          float64   `db:"km" json:"km"`
	Price       float64   `db:"price" json:"price"`
	ModelPath   string    `db:"model_path" json:"model_path"`
	PredictedAt time.Time `db:"predicted_at" json:"predicted_at"`
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// one writer keeps SQLite from returning SQLITE_BUSY under concurrent requests
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, err
	}
	return &History{db: database}, nil
}

func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

func (h *History) RecordTraining(ctx context.Context, run TrainingRun) (int64, error) {
	if h == nil || h.db == nil {
		return 0, ErrNotInitialized
	}
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now().UTC()
	}
	result, err := h.db.NamedExecContext(ctx, `
        INSERT INTO training_runs (
            source, samples, skipped, learning_rate, epochs,
            theta0, theta1, norm_mean, norm_std, mse, r2, model_path, trained_at
        ) VALUES (
            :source, :samples, :skipped, :learning_rate, :epochs,
            :theta0, :theta1, :norm_mean, :norm_std, :mse, :r2, :model_path, :trained_at
        )`, run)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListTrainings returns the most recent runs first.
func (h *History) ListTrainings(ctx context.Context, limit int) ([]TrainingRun, error) {
	if h == nil || h.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 100
	}
	runs := make([]TrainingRun, 0)
	err := h.db.SelectContext(ctx, &runs, `
        SELECT id, source, samples, skipped, learning_rate, epochs,
               theta0, theta1, norm_mean, norm_std, mse, r2, model_path, trained_at
        FROM training_runs
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (h *History) RecordPrediction(ctx context.Context, record PredictionRecord) (int64, error) {
	if h == nil || h.db == nil {
		return 0, ErrNotInitialized
	}
	if record.PredictedAt.IsZero() {
		record.PredictedAt = time.Now().UTC()
	}
	result, err := h.db.NamedExecContext(ctx, `
        INSERT INTO predictions (km, price, model_path, predicted_at)
        VALUES (:km, :price, :model_path, :predicted_at)`, record)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListPredictions returns the most recent predictions first.
func (h *History) ListPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if h == nil || h.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 100
	}
	records := make([]PredictionRecord, 0)
	err := h.db.SelectContext(ctx, &records, `
        SELECT id, km, price, model_path, predicted_at
        FROM predictions
        ORDER BY predicted_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return records, nil
}
