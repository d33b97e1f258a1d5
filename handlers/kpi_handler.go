package handlers

import (
	"context"
	"net/http"
	"time"

	middleware "kpiengine/middlewares"
	"kpiengine/models"
	service "kpiengine/services"
	"kpiengine/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type KPIHandler struct {
	service service.KPIService
}

func NewKPIHandler(service service.KPIService) *KPIHandler {
	return &KPIHandler{service: service}
}

func (h *KPIHandler) CreateKPI(w http.ResponseWriter, r *http.Request) {
	var req models.CreateKPIRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	kpi, err := h.service.CreateKPI(ctx, &req, middleware.GetActorFromContext(r.Context()))
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "KPI created successfully", kpi, http.StatusCreated)
}

func (h *KPIHandler) GetKPIByID(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid KPI ID format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	kpi, err := h.service.GetKPIByID(ctx, id)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "KPI retrieved successfully", kpi, http.StatusOK)
}

func (h *KPIHandler) GetAllKPIs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	kpis, err := h.service.GetAllKPIs(ctx)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "KPIs retrieved successfully", kpis, http.StatusOK)
}

func (h *KPIHandler) DeleteKPI(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid KPI ID format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.service.DeleteKPI(ctx, id); err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleMessageResponse(w, "KPI deleted", http.StatusOK)
}

func (h *KPIHandler) CreatePillar(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePillarRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pillar, err := h.service.CreatePillar(ctx, &req, middleware.GetActorFromContext(r.Context()))
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Pillar created successfully", pillar, http.StatusCreated)
}

func (h *KPIHandler) DeletePillar(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid pillar ID format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.service.DeletePillar(ctx, id); err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleMessageResponse(w, "Pillar deleted", http.StatusOK)
}

func (h *KPIHandler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDepartmentRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	department, err := h.service.CreateDepartment(ctx, &req, middleware.GetActorFromContext(r.Context()))
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Department created successfully", department, http.StatusCreated)
}

func (h *KPIHandler) CreateInitiative(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInitiativeRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	initiative, err := h.service.CreateInitiative(ctx, &req, middleware.GetActorFromContext(r.Context()))
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Initiative created successfully", initiative, http.StatusCreated)
}

func (h *KPIHandler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	kpiID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid KPI ID format", http.StatusBadRequest)
		return
	}

	var req models.CreateMilestoneRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	milestone, err := h.service.CreateMilestone(ctx, kpiID, &req, middleware.GetActorFromContext(r.Context()))
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Milestone created successfully", milestone, http.StatusCreated)
}
