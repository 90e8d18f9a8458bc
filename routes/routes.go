package routes

import (
	"net/http"

	"kpitracker/handlers"
	"kpitracker/middlewares"
	"kpitracker/utils"

	"github.com/casbin/casbin/v2"
	"github.com/sirupsen/logrus"
)

func SetupRoutes(kpiHandler *handlers.KPIHandler, jwtSecret string, enforcer *casbin.Enforcer, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()

	jwtMiddleware := middlewares.JWTMiddleware(jwtSecret)
	authorize := middlewares.Authorize(enforcer, log)
	protect := func(h http.HandlerFunc) http.Handler {
		return jwtMiddleware(authorize(h))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.HandleMessageResponse(w, r, "ok", http.StatusOK)
	})

	// Manager routes
	mux.Handle("GET /api/manager/dashboard", protect(kpiHandler.ManagerDashboard))
	mux.Handle("GET /api/manager/analytics/performance", protect(kpiHandler.PerformanceStats))
	mux.Handle("POST /api/manager/kpis", protect(kpiHandler.CreateKPI))
	mux.Handle("GET /api/manager/kpis", protect(kpiHandler.ListManagedKPIs))
	mux.Handle("GET /api/manager/kpis/{id}", protect(kpiHandler.GetManagedKPI))
	mux.Handle("PUT /api/manager/kpis/{id}", protect(kpiHandler.EditKPI))
	mux.Handle("DELETE /api/manager/kpis/{id}", protect(kpiHandler.DeleteKPI))
	mux.Handle("POST /api/manager/kpis/{id}/validate", protect(kpiHandler.ValidateProgress))
	mux.Handle("GET /api/manager/kpis/{id}/evidence/{fileId}", protect(kpiHandler.DownloadManagedEvidence))

	// Staff routes
	mux.Handle("GET /api/staff/dashboard", protect(kpiHandler.StaffDashboard))
	mux.Handle("GET /api/staff/kpis/{id}", protect(kpiHandler.GetAssignedKPI))
	mux.Handle("POST /api/staff/kpis/{id}/update", protect(kpiHandler.SubmitUpdate))
	mux.Handle("POST /api/staff/kpis/{id}/comments", protect(kpiHandler.AddComment))
	mux.Handle("POST /api/staff/kpis/{id}/evidence", protect(kpiHandler.UploadEvidence))
	mux.Handle("GET /api/staff/kpis/{id}/evidence/{fileId}", protect(kpiHandler.DownloadAssignedEvidence))

	return middlewares.RequestLogger(log)(mux)
}
