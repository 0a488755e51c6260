package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"vizlab-service/internal/models"
	"vizlab-service/internal/registry"
)

// DevicesHandler обрабатывает GET /devices - список устройств
func (h *Handler) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.registry.ListDevices(), http.StatusOK)
}

// WorkloadsHandler обрабатывает GET /workloads?device= - workload устройства
func (h *Handler) WorkloadsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := requireQuery(r, "device")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	workloads, err := h.registry.ListWorkloads(q["device"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, workloads, http.StatusOK)
}

// RunsHandler обрабатывает GET /runs?device=&workload= - run workload'а
func (h *Handler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := requireQuery(r, "device", "workload")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	runs, err := h.registry.ListRuns(q["device"], q["workload"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, runs, http.StatusOK)
}

// MetricsHandler обрабатывает GET /metrics?device= - метрики в порядке батчей
func (h *Handler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := requireQuery(r, "device")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	metricNames, err := h.registry.ListMetrics(q["device"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, metricNames, http.StatusOK)
}

// ReloadHandler обрабатывает POST /reload - перестроение реестра
func (h *Handler) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reloader.Reload(r.Context())
	if err != nil {
		if errors.Is(err, registry.ErrRateLimited) {
			w.Header().Set("Retry-After", "1")
		}
		h.respondErr(w, err)
		return
	}

	resp := models.ReloadResponse{
		Status:  "reloaded",
		Devices: snap.Devices(),
		Count:   snap.Len(),
	}
	for _, warn := range snap.Warnings() {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	h.respondJSON(w, resp, http.StatusOK)
}

// requireQuery возвращает обязательные параметры запроса
func requireQuery(r *http.Request, names ...string) (map[string]string, error) {
	q := r.URL.Query()
	out := make(map[string]string, len(names))
	for _, name := range names {
		v := q.Get(name)
		if v == "" {
			return nil, fmt.Errorf("%w: missing query parameter %q", models.ErrInvalidRequest, name)
		}
		out[name] = v
	}
	return out, nil
}
