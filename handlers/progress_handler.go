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

// ProgressHandler exposes the ledger and the verification workflow.
type ProgressHandler struct {
	ledger       service.LedgerService
	verification service.VerificationService
}

func NewProgressHandler(ledger service.LedgerService, verification service.VerificationService) *ProgressHandler {
	return &ProgressHandler{ledger: ledger, verification: verification}
}

func (h *ProgressHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	kpiID, err := primitive.ObjectIDFromHex(req.KPIID)
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid KPI ID format", http.StatusBadRequest)
		return
	}
	var milestoneID *primitive.ObjectID
	if req.MilestoneID != "" {
		id, err := primitive.ObjectIDFromHex(req.MilestoneID)
		if err != nil {
			utils.HandleMessageResponse(w, "Invalid milestone ID format", http.StatusBadRequest)
			return
		}
		milestoneID = &id
	}
	reportingDate, err := time.Parse("2006-01-02", req.ReportingDate)
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid reporting date", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	entry, err := h.ledger.Submit(ctx, service.SubmitCommand{
		KPIID:         kpiID,
		MilestoneID:   milestoneID,
		Value:         *req.Value,
		ReportingDate: reportingDate,
		Source:        models.EntrySource(req.Source),
		ReporterID:    middleware.GetActorFromContext(r.Context()),
		Notes:         req.Notes,
	})
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Progress entry submitted", entry, http.StatusCreated)
}

func (h *ProgressHandler) Verify(w http.ResponseWriter, r *http.Request) {
	entryID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid entry ID format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	entry, err := h.verification.Verify(ctx, entryID, middleware.GetActorFromContext(r.Context()))
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Progress entry verified", entry, http.StatusOK)
}

func (h *ProgressHandler) Reject(w http.ResponseWriter, r *http.Request) {
	entryID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid entry ID format", http.StatusBadRequest)
		return
	}

	var req models.RejectRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	entry, err := h.verification.Reject(ctx, entryID, middleware.GetActorFromContext(r.Context()), req.Reason)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Progress entry rejected", entry, http.StatusOK)
}

func (h *ProgressHandler) ListByKPI(w http.ResponseWriter, r *http.Request) {
	kpiID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.HandleMessageResponse(w, "Invalid KPI ID format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	entries, err := h.ledger.ListEntries(ctx, kpiID)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	utils.HandleDataResponse(w, "Progress entries retrieved", entries, http.StatusOK)
}
