package viewapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/clients"
	"github.com/mcdev12/matchday/go/internal/livematch"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/notify"
)

// ViewProvider exposes the current live match view
type ViewProvider interface {
	State() livematch.ViewState
}

// NotificationProvider exposes the notification area
type NotificationProvider interface {
	State() notify.State
	ClearBanner()
	DismissToast(id string) bool
	MarkRead(ctx context.Context, id models.ID) error
	MarkAllRead(ctx context.Context) error
}

// Handler serves the local view API
type Handler struct {
	view          ViewProvider
	notifications NotificationProvider
	metrics       http.Handler
}

// NewHandler creates a handler. metrics may be nil.
func NewHandler(view ViewProvider, notifications NotificationProvider, metrics http.Handler) *Handler {
	return &Handler{
		view:          view,
		notifications: notifications,
		metrics:       metrics,
	}
}

// RegisterRoutes registers the API routes on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/view", h.HandleGetView)
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.HandleGetNotifications)
			r.Post("/banner/clear", h.HandleClearBanner)
			r.Post("/toasts/{id}/dismiss", h.HandleDismissToast)
			r.Post("/{id}/read", h.HandleMarkRead)
			r.Post("/mark-all-read", h.HandleMarkAllRead)
		})
	})
	r.Get("/health", h.HandleHealth)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
}

// HandleGetView handles GET /api/view
func (h *Handler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view.State())
}

// HandleGetNotifications handles GET /api/notifications
func (h *Handler) HandleGetNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.notifications.State())
}

// HandleClearBanner handles POST /api/notifications/banner/clear
func (h *Handler) HandleClearBanner(w http.ResponseWriter, r *http.Request) {
	h.notifications.ClearBanner()
	w.WriteHeader(http.StatusNoContent)
}

// HandleDismissToast handles POST /api/notifications/toasts/{id}/dismiss
func (h *Handler) HandleDismissToast(w http.ResponseWriter, r *http.Request) {
	if !h.notifications.DismissToast(chi.URLParam(r, "id")) {
		http.Error(w, "Toast not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMarkRead handles POST /api/notifications/{id}/read
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := models.ID(chi.URLParam(r, "id"))
	if err := h.notifications.MarkRead(r.Context(), id); err != nil {
		log.Error().Err(err).Str("notification_id", id.String()).Msg("failed to mark notification read")
		if errors.Is(err, clients.ErrNotFound) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to mark notification read", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMarkAllRead handles POST /api/notifications/mark-all-read
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAllRead(r.Context()); err != nil {
		log.Error().Err(err).Msg("failed to mark all notifications read")
		http.Error(w, "Failed to mark notifications read", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth reports liveness
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
