package routes

import (
	"net/http"

	"kpiengine/handlers"
	"kpiengine/middlewares"
)

type Handlers struct {
	KPI      *handlers.KPIHandler
	Progress *handlers.ProgressHandler
	Rollup   *handlers.RollupHandler
	Ingest   *handlers.IngestHandler
	Alert    *handlers.AlertHandler
}

func Setup(h Handlers, jwtSecret string) *http.ServeMux {
	mux := http.NewServeMux()

	// Every route requires an authenticated actor for attribution.
	jwt := middlewares.JWTMiddleware(jwtSecret)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, jwt(fn))
	}

	// Entity administration
	handle("POST /api/kpi", h.KPI.CreateKPI)
	handle("GET /api/kpi", h.KPI.GetAllKPIs)
	handle("GET /api/kpi/{id}", h.KPI.GetKPIByID)
	handle("DELETE /api/kpi/{id}", h.KPI.DeleteKPI)
	handle("POST /api/kpi/{id}/milestones", h.KPI.CreateMilestone)
	handle("POST /api/pillars", h.KPI.CreatePillar)
	handle("DELETE /api/pillars/{id}", h.KPI.DeletePillar)
	handle("POST /api/departments", h.KPI.CreateDepartment)
	handle("POST /api/initiatives", h.KPI.CreateInitiative)

	// Progress ledger and verification workflow
	handle("POST /api/progress", h.Progress.Submit)
	handle("GET /api/kpi/{id}/progress", h.Progress.ListByKPI)
	handle("POST /api/progress/{id}/verify", h.Progress.Verify)
	handle("POST /api/progress/{id}/reject", h.Progress.Reject)

	// Derived progress for dashboards and report generators
	handle("GET /api/rollup/{entityType}/{id}", h.Rollup.GetProgress)

	// Bulk ingestion
	handle("POST /api/ingest", h.Ingest.Ingest)

	// Alert surface
	handle("GET /api/alerts", h.Alert.List)
	handle("POST /api/alerts/{id}/ack", h.Alert.Acknowledge)

	return mux
}
