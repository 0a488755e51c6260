// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"vizlab-service/internal/analytics"
	"vizlab-service/internal/cache"
	"vizlab-service/internal/models"
	"vizlab-service/internal/registry"
	"vizlab-service/internal/signals"
)

// maxBodyBytes ограничение размера тела запроса
const maxBodyBytes = 1 << 20

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	registry *registry.Registry
	reloader *registry.Reloader
	signals  *signals.Service
	engine   *analytics.Engine
	sessions *analytics.SessionStore
	counters cache.Counters
	redis    *cache.RedisCache
	logger   *zap.Logger
	start    time.Time
}

// Deps зависимости обработчиков
type Deps struct {
	Registry *registry.Registry
	Reloader *registry.Reloader
	Signals  *signals.Service
	Engine   *analytics.Engine
	Sessions *analytics.SessionStore
	// Counters хранилище счетчиков; nil - счетчики в памяти
	Counters cache.Counters
	// Redis используется только для проверки здоровья, может быть nil
	Redis  *cache.RedisCache
	Logger *zap.Logger
}

// NewHandler создает новый обработчик
func NewHandler(d Deps) *Handler {
	counters := d.Counters
	if counters == nil {
		counters = cache.NewMemoryCounters()
	}
	return &Handler{
		registry: d.Registry,
		reloader: d.Reloader,
		signals:  d.Signals,
		engine:   d.Engine,
		sessions: d.Sessions,
		counters: counters,
		redis:    d.Redis,
		logger:   d.Logger,
		start:    time.Now(),
	}
}

// Routes регистрирует маршруты API
func (h *Handler) Routes(router *mux.Router) {
	router.HandleFunc("/", h.RootHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)

	router.HandleFunc("/devices", h.DevicesHandler).Methods(http.MethodGet)
	router.HandleFunc("/workloads", h.WorkloadsHandler).Methods(http.MethodGet)
	router.HandleFunc("/runs", h.RunsHandler).Methods(http.MethodGet)
	router.HandleFunc("/metrics", h.MetricsHandler).Methods(http.MethodGet)
	router.HandleFunc("/reload", h.ReloadHandler).Methods(http.MethodPost)

	router.HandleFunc("/signal", h.SignalHandler).Methods(http.MethodGet)
	router.HandleFunc("/signals", h.SignalsHandler).Methods(http.MethodPost)
	router.HandleFunc("/compare", h.CompareHandler).Methods(http.MethodGet)

	router.HandleFunc("/sessions", h.CreateSessionHandler).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}", h.DeleteSessionHandler).Methods(http.MethodDelete)
	router.HandleFunc("/sessions/{id}/ratio", h.RatioHandler).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/ratios", h.ComputeAllHandler).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/ratios", h.ListRatiosHandler).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/ratios", h.ClearRatiosHandler).Methods(http.MethodDelete)
	router.HandleFunc("/sessions/{id}/scatter", h.ScatterHandler).Methods(http.MethodPost)
}

// RootHandler обрабатывает GET / - признак жизни
func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, map[string]string{"status": "VizLab backend alive"}, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "disconnected"
		if h.redis.Ping() == nil {
			redisStatus = "connected"
		}
	}

	snap := h.registry.Snapshot()
	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Devices:   snap.Len(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.start).String(),
	}
	code := http.StatusOK
	if snap.Len() == 0 {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		status.RegistryAge = time.Since(snap.BuiltAt()).Round(time.Second).String()
	}

	h.respondJSON(w, status, code)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	served, _ := h.counters.GetCounter(cache.SignalsServedKey)
	computed, _ := h.counters.GetCounter(cache.RatiosComputedKey)
	reloads, _ := h.counters.GetCounter(cache.ReloadsKey)

	h.respondJSON(w, models.StatsResponse{
		SignalsServed:  served,
		RatiosComputed: computed,
		Reloads:        reloads,
		ActiveSessions: h.sessions.Len(),
		Devices:        h.registry.Snapshot().Len(),
	}, http.StatusOK)
}

// increment увеличивает счетчик, ошибка хранилища не влияет на ответ
func (h *Handler) increment(key string) {
	if _, err := h.counters.IncrementCounter(key); err != nil {
		h.logger.Warn("counter update failed", zap.String("key", key), zap.Error(err))
	}
}

// decodeJSON читает тело запроса
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// respondJSON отправляет JSON ответ.
// Тело кодируется до записи статуса, ошибка кодирования отдается как 500.
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		h.respondError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// respondErr сопоставляет класс ошибки с кодом ответа
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	h.respondError(w, err.Error(), status)
}

// StatusFor возвращает HTTP код для ошибки
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrEmptyRegistry):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
