package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	middleware "kpitracker/middlewares"
	"kpitracker/models"
	service "kpitracker/services"
	"kpitracker/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	requestTimeout = 10 * time.Second
	fileTimeout    = 30 * time.Second
)

type KPIHandler struct {
	service        service.KPIService
	log            logrus.FieldLogger
	maxUploadBytes int64
	timeout        time.Duration
}

func NewKPIHandler(service service.KPIService, log logrus.FieldLogger, maxUploadBytes int64, timeout time.Duration) *KPIHandler {
	if timeout <= 0 {
		timeout = requestTimeout
	}
	return &KPIHandler{
		service:        service,
		log:            log,
		maxUploadBytes: maxUploadBytes,
		timeout:        timeout,
	}
}

// principal is always present behind JWTMiddleware; a missing one is a
// wiring error and answered with 401.
func (h *KPIHandler) principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		utils.HandleMessageResponse(w, r, "Authentication required", http.StatusUnauthorized)
	}
	return p, ok
}

func (h *KPIHandler) pathID(w http.ResponseWriter, r *http.Request, name, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(r.PathValue(name))
	if err != nil {
		utils.HandleMessageResponse(w, r, "Invalid "+label+" ID format", http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *KPIHandler) streamEvidence(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	kpiID, ok := h.pathID(w, r, "id", "KPI")
	if !ok {
		return
	}
	fileID, ok := h.pathID(w, r, "fileId", "file")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fileTimeout)
	defer cancel()

	evidence, rc, err := h.service.OpenEvidence(ctx, p, kpiID, fileID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := evidence.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", evidence.Filename))
	w.Header().Set("Content-Type", contentType)
	if evidence.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(evidence.Size, 10))
	}

	if _, err := io.Copy(w, rc); err != nil {
		// headers are already sent
		h.log.WithError(err).WithField("file_id", fileID.Hex()).Warn("evidence download interrupted")
	}
}
