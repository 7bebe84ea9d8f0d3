package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"carprice/dataset"
	"carprice/db"
	"carprice/logging"
	"carprice/ml"
	"carprice/monitoring"
	"go.uber.org/zap"
)

var errTrainingInProgress = errors.New("training already in progress")

// APIConfig API依赖
type APIConfig struct {
	ModelPath     string
	Cache         *ml.ModelCache
	History       *db.History
	Hub           *monitoring.TrainingHub
	Metrics       *monitoring.MetricsCollector
	Logger        *zap.Logger
	Training      ml.TrainConfig
	LoaderOptions []dataset.Option
}

// API 价格预测接口
type API struct {
	modelPath     string
	cache         *ml.ModelCache
	history       *db.History
	hub           *monitoring.TrainingHub
	metrics       *monitoring.MetricsCollector
	logger        *zap.Logger
	training      ml.TrainConfig
	loaderOptions []dataset.Option

	trainMu sync.Mutex
}

// NewAPI 创建API. History and Hub may be nil.
func NewAPI(cfg APIConfig) (*API, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required: %w", ml.ErrInvalidConfig)
	}
	if err := cfg.Training.Validate(); err != nil {
		return nil, err
	}
	cache := cfg.Cache
	if cache == nil {
		var err error
		if cache, err = ml.NewModelCache(1); err != nil {
			return nil, err
		}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	logger := logging.OrNop(cfg.Logger)

	return &API{
		modelPath:     cfg.ModelPath,
		cache:         cache,
		history:       cfg.History,
		hub:           cfg.Hub,
		metrics:       metrics,
		logger:        logger,
		training:      cfg.Training,
		loaderOptions: append([]dataset.Option{dataset.WithLogger(logger)}, cfg.LoaderOptions...),
	}, nil
}

// Register 注册路由
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/predict", a.handlePredict)
	mux.HandleFunc("POST /api/predict", a.handlePredict)
	mux.HandleFunc("GET /api/model", a.handleModel)
	mux.HandleFunc("POST /api/train", a.handleTrain)
	mux.HandleFunc("GET /api/history/trainings", a.handleTrainingHistory)
	mux.HandleFunc("GET /api/history/predictions", a.handlePredictionHistory)
	mux.HandleFunc("GET /api/metrics", a.handleMetrics)
	if a.hub != nil {
		mux.HandleFunc("GET /api/ws/training", a.hub.HandleWebSocket)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	// a missing counter reads as zero
	predictions, _ := a.metrics.GetMetric(monitoring.MetricPredictions)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"model_path":  a.modelPath,
		"model_ready": ml.NewStore(a.modelPath).Exists(),
		"cached":      a.cache.Len(),
		"history":     a.history != nil,
		"uptime":      a.metrics.GetUptime().String(),
		"subscribers": a.subscribers(),
		"predictions": predictions.Value,
		"checked_at":  time.Now(),
	})
}

// PredictResponse 预测结果
type PredictResponse struct {
	KM           float64 `json:"km"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"price_display"`
	ModelPath    string  `json:"model_path"`
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	raw, err := mileageInput(r)
	if err != nil {
		a.predictionFailed(w, err)
		return
	}
	km, err := ml.ParseMileage(raw)
	if err != nil {
		a.predictionFailed(w, err)
		return
	}

	model, err := a.cache.Get(a.modelPath)
	if err != nil {
		a.predictionFailed(w, err)
		return
	}
	price, err := model.Predict(km)
	if err != nil {
		a.predictionFailed(w, err)
		return
	}
	a.metrics.IncrCounter(monitoring.MetricPredictions, 1)

	if a.history != nil {
		record := db.PredictionRecord{KM: km, Price: price, ModelPath: a.modelPath, PredictedAt: time.Now()}
		if _, err := a.history.RecordPrediction(r.Context(), record); err != nil {
			a.logger.Warn("record prediction", zap.Error(err))
		}
	}

	respondJSON(w, http.StatusOK, PredictResponse{
		KM:           km,
		Price:        price,
		PriceDisplay: strconv.FormatFloat(price, 'f', 2, 64),
		ModelPath:    a.modelPath,
	})
}

func (a *API) predictionFailed(w http.ResponseWriter, err error) {
	a.metrics.IncrCounter(monitoring.MetricPredictionErrors, 1)
	respondError(w, statusFor(err), err)
}

// mileageInput reads km from the query string or, for POST, from a JSON body.
// The body value may be a number or a string.
func mileageInput(r *http.Request) (string, error) {
	if r.Method != http.MethodPost {
		return r.URL.Query().Get("km"), nil
	}
	var body struct {
		KM json.RawMessage `json:"km"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode body: %v: %w", err, ml.ErrInvalidQuery)
	}
	return strings.Trim(string(body.KM), `"`), nil
}

func (a *API) handleModel(w http.ResponseWriter, r *http.Request) {
	artifact, err := ml.NewStore(a.modelPath).LoadArtifact()
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"path":   a.modelPath,
		"format": artifact.Format(),
		"model":  artifact,
	})
}

func (a *API) handleTrainingHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	runs, err := a.history.ListTrainings(r.Context(), limit)
	if err != nil {
		respondError(w, historyStatus(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"trainings": runs, "count": len(runs)})
}

func (a *API) handlePredictionHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	records, err := a.history.ListPredictions(r.Context(), limit)
	if err != nil {
		respondError(w, historyStatus(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"predictions": records, "count": len(records)})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"metrics": a.metrics.Snapshot(),
			"system":  a.metrics.GetSystemStats(),
		})
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, a.metrics.ExportPrometheus())
}

func (a *API) subscribers() int {
	if a.hub == nil {
		return 0
	}
	return a.hub.Clients()
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 50, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}

func historyStatus(err error) int {
	if errors.Is(err, db.ErrNotInitialized) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, ml.ErrInvalidQuery), errors.Is(err, ml.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, errTrainingInProgress):
		return http.StatusConflict
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, dataset.ErrSchema),
		errors.Is(err, dataset.ErrEmptyDataset),
		errors.Is(err, ml.ErrEmptyInput),
		errors.Is(err, ml.ErrDegenerateVariance),
		errors.Is(err, ml.ErrDiverged):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
