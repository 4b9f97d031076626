package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/ingest"
	"live-chat-supervisor/pkg/models"
	"live-chat-supervisor/pkg/settings"
	"live-chat-supervisor/pkg/store"
	"live-chat-supervisor/pkg/supervisor"
)

type Handler struct {
	supervisor *supervisor.Supervisor
	observer   *ingest.Observer
	repo       settings.Repository
	logger     *logrus.Logger
	now        func() time.Time
}

func NewHandler(sup *supervisor.Supervisor, observer *ingest.Observer, repo settings.Repository, logger *logrus.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		supervisor: sup,
		observer:   observer,
		repo:       repo,
		logger:     logger,
		now:        now,
	}
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var request struct {
		DisplayName string `json:"display_name"`
	}

	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	conv := h.supervisor.CreateConversation(request.DisplayName)
	writeJSON(w, http.StatusCreated, conv)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.supervisor.Conversations())
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.supervisor.Conversation(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var request struct {
		Sender    models.Sender `json:"sender"`
		Text      string        `json:"text"`
		Timestamp time.Time     `json:"timestamp,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var (
		result supervisor.AppendResult
		err    error
	)
	if request.Timestamp.IsZero() {
		result, err = h.supervisor.AppendMessage(r.Context(), conversationID, request.Sender, request.Text)
	} else {
		result, err = h.supervisor.AppendMessageAt(r.Context(), conversationID, request.Sender, request.Text, request.Timestamp)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var request struct {
		Active *bool `json:"active"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Active == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.supervisor.SetActive(conversationID, *request.Active); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Observe(w http.ResponseWriter, r *http.Request) {
	var obs ingest.ObservedMessage
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, result, err := h.observer.Observe(r.Context(), obs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := map[string]interface{}{
		"outcome": outcome,
	}
	if result != nil {
		response["message_id"] = result.Message.ID
		response["alert"] = result.Alert
	}

	writeJSON(w, http.StatusAccepted, response)
}

// Status evaluates at the request time, or at ?at=<RFC3339> when given
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			http.Error(w, "Invalid at parameter", http.StatusBadRequest)
			return
		}
		now = parsed
	}

	writeJSON(w, http.StatusOK, h.supervisor.Evaluate(now))
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.supervisor.GetConfig())
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var s models.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	applied, err := h.supervisor.UpdateConfig(r.Context(), h.repo, func(models.Settings) models.Settings {
		return s
	})
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, applied)
}

func (h *Handler) ToggleMonitoring(w http.ResponseWriter, r *http.Request) {
	applied, err := h.supervisor.UpdateConfig(r.Context(), h.repo, supervisor.FlipMonitoring)
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, applied)
}

// writeSettingsError reports a rejected or unsaved settings change; in both
// cases the running settings are unchanged
func (h *Handler) writeSettingsError(w http.ResponseWriter, err error) {
	if errors.Is(err, settings.ErrInvalidConfig) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.WithError(err).Error("Failed to persist settings")
	http.Error(w, "Failed to persist settings", http.StatusInternalServerError)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":        "healthy",
		"conversations": len(h.supervisor.Conversations()),
		"timestamp":     h.now(),
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidSender), errors.Is(err, settings.ErrInvalidConfig):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.WithError(err).Error("Request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
