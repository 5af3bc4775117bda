package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lakeoracle/oracle/lake/pkg/chat"
)

// SubmitMessageRequest is the body of POST /api/sessions/{id}/messages.
type SubmitMessageRequest struct {
	Query string `json:"query"`
}

func (h *Handlers) CreateSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, h.cfg.Store.Create())
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.cfg.Store.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings chat.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := h.cfg.Store.UpdateSettings(chi.URLParam(r, "id"), settings)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) UpdateContext(w http.ResponseWriter, r *http.Request) {
	var dbctx chat.DBContext
	if err := json.NewDecoder(r.Body).Decode(&dbctx); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := h.cfg.Store.UpdateContext(chi.URLParam(r, "id"), dbctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req SubmitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := h.cfg.Store.Submit(r.Context(), chi.URLParam(r, "id"), req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) ClearMessages(w http.ResponseWriter, r *http.Request) {
	sess, err := h.cfg.Store.Clear(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
