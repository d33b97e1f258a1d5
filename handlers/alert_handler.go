package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	repository "kpiengine/repositories"
	"kpiengine/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertHandler exposes stored alerts. Emission belongs to the alert
// trigger; consumers only list and acknowledge.
type AlertHandler struct {
	alerts repository.AlertRepository
}

func NewAlertHandler(alerts repository.AlertRepository) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := int64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	alerts, err := h.alerts.List(ctx, unreadOnly, limit)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Alerts retrieved", alerts, http.StatusOK)
}

func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid alert ID format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.alerts.Acknowledge(ctx, id); err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleMessageResponse(w, "Alert acknowledged", http.StatusOK)
}
