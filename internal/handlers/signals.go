package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"vizlab-service/internal/cache"
	"vizlab-service/internal/models"
)

// SignalHandler обрабатывает GET /signal - один сигнал с метками
func (h *Handler) SignalHandler(w http.ResponseWriter, r *http.Request) {
	req, err := signalRequestFromQuery(r.URL.Query(), "")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	sig, err := h.signals.Fetch(req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.increment(cache.SignalsServedKey)
	h.respondJSON(w, sig, http.StatusOK)
}

// SignalsHandler обрабатывает POST /signals - пакет сигналов.
// Первая ошибка прерывает пакет.
func (h *Handler) SignalsHandler(w http.ResponseWriter, r *http.Request) {
	var batch models.SignalsRequest
	if !h.decodeJSON(w, r, &batch) {
		return
	}

	resp := models.SignalsResponse{Signals: make([]*models.Signal, 0, len(batch.Requests))}
	for _, req := range batch.Requests {
		sig, err := h.signals.Fetch(req)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		resp.Signals = append(resp.Signals, sig)
	}
	for range resp.Signals {
		h.increment(cache.SignalsServedKey)
	}
	h.respondJSON(w, resp, http.StatusOK)
}

// CompareHandler обрабатывает GET /compare - два сигнала, обрезанные до общей длины.
// Параметры второго сигнала с суффиксом _b, первого - _a.
func (h *Handler) CompareHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, err := signalRequestFromQuery(q, "_a")
	if err != nil {
		h.respondErr(w, err)
		return
	}
	b, err := signalRequestFromQuery(q, "_b")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	resp, err := h.signals.Compare(a, b)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.increment(cache.SignalsServedKey)
	h.increment(cache.SignalsServedKey)
	h.respondJSON(w, resp, http.StatusOK)
}

// signalRequestFromQuery разбирает параметры сигнала с суффиксом имени
func signalRequestFromQuery(q url.Values, suffix string) (models.SignalRequest, error) {
	req := models.SignalRequest{
		Device:      q.Get("device" + suffix),
		Workload:    q.Get("workload" + suffix),
		Run:         q.Get("run" + suffix),
		Metric:      q.Get("metric" + suffix),
		Aggregation: q.Get("aggregation" + suffix),
	}
	required := []struct{ name, value string }{
		{"device", req.Device}, {"workload", req.Workload}, {"run", req.Run}, {"metric", req.Metric},
	}
	for _, p := range required {
		if p.value == "" {
			return req, fmt.Errorf("%w: missing query parameter %q", models.ErrInvalidRequest, p.name+suffix)
		}
	}

	if ws := q.Get("window_size" + suffix); ws != "" {
		n, err := strconv.Atoi(ws)
		if err != nil {
			return req, fmt.Errorf("%w: window_size must be an integer", models.ErrInvalidRequest)
		}
		req.WindowSize = &n
	}
	return req, nil
}
