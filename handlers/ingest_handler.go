package handlers

import (
	"context"
	"net/http"
	"time"

	middleware "kpiengine/middlewares"
	service "kpiengine/services"
	"kpiengine/utils"
)

const maxUploadSize = 16 << 20 // 16 MiB

// IngestHandler accepts bulk progress files from the upload collaborator.
type IngestHandler struct {
	ingest service.IngestService
}

func NewIngestHandler(ingest service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

// Ingest expects a multipart form with a "file" part and an optional
// "overwrite_existing" field. The response is always a structured batch
// report unless the file itself is unreadable.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.HandleMessageResponse(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		utils.HandleMessageResponse(w, "Missing file in form data", http.StatusBadRequest)
		return
	}
	defer file.Close()

	opts := service.BatchOptions{
		OverwriteExisting: r.FormValue("overwrite_existing") == "true",
		ReporterID:        middleware.GetActorFromContext(r.Context()),
	}

	// Batches can be large; give them more room than request handlers get.
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	result, err := h.ingest.IngestFile(ctx, file, opts)
	if err != nil {
		utils.HandleMessageResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	utils.HandleDataResponse(w, "Batch ingestion completed", result, http.StatusOK)
}
