package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"vizlab-service/internal/analytics"
	"vizlab-service/internal/models"
)

// CreateSessionHandler обрабатывает POST /sessions - новая сессия отношений
func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	h.respondJSON(w, models.SessionResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
	}, http.StatusCreated)
}

// DeleteSessionHandler обрабатывает DELETE /sessions/{id} - закрытие сессии с кэшем
func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(mux.Vars(r)["id"]); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RatioHandler обрабатывает POST /sessions/{id}/ratio - одно отношение.
// С entry_id результат попадает в коллекцию сессии.
func (h *Handler) RatioHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.RatioRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ratio, _, err := h.engine.ComputeRatio(sess, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if req.EntryID != "" {
		sess.PutResult(req.EntryID, ratio)
	}
	h.respondJSON(w, ratio, http.StatusOK)
}

// ComputeAllHandler обрабатывает POST /sessions/{id}/ratios - пакетное вычисление,
// заменяющее коллекцию сессии
func (h *Handler) ComputeAllHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var batch models.RatiosRequest
	if !h.decodeJSON(w, r, &batch) {
		return
	}

	h.respondJSON(w, h.engine.ComputeAll(sess, batch.Requests), http.StatusOK)
}

// ListRatiosHandler обрабатывает GET /sessions/{id}/ratios - текущая коллекция
func (h *Handler) ListRatiosHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	entries := sess.Results()
	if entries == nil {
		entries = []models.RatioEntry{}
	}
	h.respondJSON(w, entries, http.StatusOK)
}

// ClearRatiosHandler обрабатывает DELETE /sessions/{id}/ratios - очистка коллекции
func (h *Handler) ClearRatiosHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.ClearResults()
	w.WriteHeader(http.StatusNoContent)
}

// ScatterHandler обрабатывает POST /sessions/{id}/scatter - точечная диаграмма двух отношений
func (h *Handler) ScatterHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.ScatterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	x, found := sess.Result(req.XEntry)
	if !found {
		h.respondErr(w, fmt.Errorf("%w: ratio entry %q", models.ErrNotFound, req.XEntry))
		return
	}
	y, found := sess.Result(req.YEntry)
	if !found {
		h.respondErr(w, fmt.Errorf("%w: ratio entry %q", models.ErrNotFound, req.YEntry))
		return
	}

	policy := analytics.ExcludeNonFinite
	if req.IncludeNonFinite {
		policy = analytics.IncludeNonFinite
	}
	h.respondJSON(w, analytics.Scatter(x, y, policy), http.StatusOK)
}

// session находит сессию из пути запроса
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*analytics.Session, bool) {
	sess, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		h.respondErr(w, err)
		return nil, false
	}
	return sess, true
}
