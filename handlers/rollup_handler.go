package handlers

import (
	"context"
	"net/http"
	"time"

	"kpiengine/models"
	service "kpiengine/services"
	"kpiengine/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RollupHandler serves derived progress to dashboards and report
// generators.
type RollupHandler struct {
	rollups service.RollupService
}

func NewRollupHandler(rollups service.RollupService) *RollupHandler {
	return &RollupHandler{rollups: rollups}
}

func (h *RollupHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	entityType := models.EntityType(r.PathValue("entityType"))
	switch entityType {
	case models.EntityKPI, models.EntityPillar, models.EntityDepartment, models.EntityInitiative:
	default:
		utils.HandleMessageResponse(w, "Unknown entity type", http.StatusBadRequest)
		return
	}

	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid entity ID format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	snapshot, err := h.rollups.Progress(ctx, entityType, id)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Progress retrieved", snapshot, http.StatusOK)
}
