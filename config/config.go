// Package config loads the YAML configuration shared by the service and the tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"carprice/dataset"
	"carprice/logging"
	"carprice/ml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Dataset struct {
		Path          string  `yaml:"path"`
		MileageColumn string  `yaml:"mileage_column"`
		PriceColumn   string  `yaml:"price_column"`
		Encoding      string  `yaml:"encoding"`
		Delimiter     string  `yaml:"delimiter"`
		MaxKM         float64 `yaml:"max_km"`
		MaxPrice      float64 `yaml:"max_price"`
	} `yaml:"dataset"`
	Training struct {
		LearningRate float64 `yaml:"learning_rate"`
		Epochs       int     `yaml:"epochs"`
		ReportEvery  int     `yaml:"report_every"`
	} `yaml:"training"`
	Model struct {
		Path      string `yaml:"path"`
		CacheSize int    `yaml:"cache_size"`
		Watch     bool   `yaml:"watch"`
	} `yaml:"model"`
	Database struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"database"`
	HTTP struct {
		Port    int           `yaml:"port"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"http"`
	Log logging.Config `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.Dataset.MileageColumn = "km"
	c.Dataset.PriceColumn = "price"
	c.Dataset.Encoding = "utf-8"
	c.Dataset.Delimiter = ","
	c.Training.LearningRate = 0.01
	c.Training.Epochs = 2000
	c.Training.ReportEvery = 100
	c.Model.Path = "weights.txt"
	c.Model.CacheSize = 8
	c.Model.Watch = true
	c.Database.Driver = "sqlite3"
	c.HTTP.Port = 8080
	c.HTTP.Timeout = 30 * time.Second
	c.Log = logging.DefaultConfig()
	return &c
}

// Load reads path on top of Default. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Training.LearningRate <= 0 {
		return errors.New("training.learning_rate must be positive")
	}
	if c.Training.Epochs < 0 {
		return errors.New("training.epochs must not be negative")
	}
	if c.Dataset.MileageColumn == "" || c.Dataset.PriceColumn == "" {
		return errors.New("dataset column names are required")
	}
	if c.Dataset.Delimiter != "" && utf8.RuneCountInString(c.Dataset.Delimiter) != 1 {
		return fmt.Errorf("dataset.delimiter must be a single character, got %q", c.Dataset.Delimiter)
	}
	if c.Dataset.MaxKM < 0 || c.Dataset.MaxPrice < 0 {
		return errors.New("dataset.max_km and dataset.max_price must not be negative")
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Database.Driver != "" && c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// Delimiter returns the dataset delimiter as a rune, defaulting to comma.
func (c *Config) Delimiter() rune {
	if c.Dataset.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(c.Dataset.Delimiter)
	return r
}

// TrainConfig returns the training section as an ml.TrainConfig.
func (c *Config) TrainConfig() ml.TrainConfig {
	return ml.TrainConfig{
		LearningRate: c.Training.LearningRate,
		Epochs:       c.Training.Epochs,
		ReportEvery:  c.Training.ReportEvery,
	}
}

// LoaderOptions returns the dataset section as loader options. A range rule is added
// when max_km or max_price is set.
func (c *Config) LoaderOptions(logger *zap.Logger) []dataset.Option {
	opts := []dataset.Option{
		dataset.WithLogger(logger),
		dataset.WithColumns(c.Dataset.MileageColumn, c.Dataset.PriceColumn),
		dataset.WithDelimiter(c.Delimiter()),
		dataset.WithEncoding(c.Dataset.Encoding),
	}
	if c.Dataset.MaxKM > 0 || c.Dataset.MaxPrice > 0 {
		opts = append(opts, dataset.WithRule(dataset.RangeRule{
			MaxMileage: c.Dataset.MaxKM,
			MaxPrice:   c.Dataset.MaxPrice,
		}))
	}
	return opts
}
