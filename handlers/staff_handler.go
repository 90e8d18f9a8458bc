package handlers

import (
	"context"
	"net/http"
	"time"

	"kpitracker/models"
	"kpitracker/utils"
)

func (h *KPIHandler) StaffDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dash, err := h.service.StaffDashboard(ctx, p)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "Dashboard retrieved successfully", dash, http.StatusOK)
}

func (h *KPIHandler) GetAssignedKPI(w http.ResponseWriter, r *http.Request) {
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

	kpi, err := h.service.GetAssignedKPI(ctx, p, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "KPI retrieved successfully", kpi, http.StatusOK)
}

func (h *KPIHandler) SubmitUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "KPI")
	if !ok {
		return
	}
	var req models.UpdateRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpi, err := h.service.SubmitUpdate(ctx, p, id, req, time.Now())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "KPI progress updated", kpi, http.StatusOK)
}

func (h *KPIHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "KPI")
	if !ok {
		return
	}
	var req models.CommentRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpi, err := h.service.AddComment(ctx, p, id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "Comment added", kpi, http.StatusCreated)
}

func (h *KPIHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id", "KPI")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.HandleMessageResponse(w, r, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("kpiEvidence")
	if err != nil {
		utils.HandleMessageResponse(w, r, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		utils.HandleMessageResponse(w, r, "File size too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(r.Context(), fileTimeout)
	defer cancel()

	evidence, err := h.service.UploadEvidence(ctx, p, id, header.Filename, file, header.Size, contentType)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	utils.HandleDataResponse(w, r, "Evidence uploaded successfully", evidence, http.StatusCreated)
}

func (h *KPIHandler) DownloadAssignedEvidence(w http.ResponseWriter, r *http.Request) {
	h.streamEvidence(w, r)
}
