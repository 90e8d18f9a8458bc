package handlers

import (
	"context"
	"net/http"

	"kpitracker/models"
	"kpitracker/utils"
)

func (h *KPIHandler) CreateKPI(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req models.CreateKPIRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpi, err := h.service.CreateKPI(ctx, p, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "KPI created successfully", kpi, http.StatusCreated)
}

func (h *KPIHandler) ListManagedKPIs(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpis, err := h.service.ListManagedKPIs(ctx, p)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "KPIs retrieved successfully", kpis, http.StatusOK)
}

func (h *KPIHandler) GetManagedKPI(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "KPI")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpi, err := h.service.GetManagedKPI(ctx, p, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "KPI retrieved successfully", kpi, http.StatusOK)
}

func (h *KPIHandler) EditKPI(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "KPI")
	if !ok {
		return
	}
	var req models.EditKPIRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpi, err := h.service.EditKPI(ctx, p, id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "KPI updated successfully", kpi, http.StatusOK)
}

func (h *KPIHandler) DeleteKPI(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "KPI")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fileTimeout)
	defer cancel()

	if err := h.service.DeleteKPI(ctx, p, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleMessageResponse(w, r, "KPI deleted successfully", http.StatusOK)
}

func (h *KPIHandler) ValidateProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "KPI")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpi, err := h.service.ValidateProgress(ctx, p, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "KPI progress validated", kpi, http.StatusOK)
}

func (h *KPIHandler) ManagerDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dash, err := h.service.ManagerDashboard(ctx, p)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "Dashboard retrieved successfully", dash, http.StatusOK)
}

func (h *KPIHandler) PerformanceStats(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.service.PerformanceStats(ctx, p)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "KPI performance statistics retrieved successfully", stats, http.StatusOK)
}

func (h *KPIHandler) DownloadManagedEvidence(w http.ResponseWriter, r *http.Request) {
	h.streamEvidence(w, r)
}
