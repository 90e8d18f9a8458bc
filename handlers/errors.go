package handlers

import (
	"net/http"

	"kpitracker/services"
	"kpitracker/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// handleServiceError maps service errors onto a single user visible response.
func (h *KPIHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		periodErr     *services.PeriodNotElapsedError
		validationErr *services.ValidationError
		persistErr    *services.PersistenceError
	)

	switch {
	case errors.Is(err, services.ErrNotFoundOrUnauthorized):
		utils.HandleMessageResponse(w, r, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrEvidenceNotFound):
		utils.HandleMessageResponse(w, r, "Evidence not found", http.StatusNotFound)
	case errors.As(err, &periodErr):
		utils.HandleMessageResponse(w, r, periodErr.Error(), http.StatusConflict)
	case errors.As(err, &validationErr):
		fields := make(map[string]string, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			fields[f.Field] = f.Error
		}
		utils.HandleValidationResponse(w, r, http.StatusBadRequest, fields)
	case errors.As(err, &persistErr):
		h.log.WithError(errors.Cause(persistErr)).WithFields(logrus.Fields{
			"op":         persistErr.Op,
			"request_id": utils.RequestIDFromContext(r.Context()),
		}).Error("store operation failed")
		utils.HandleMessageResponse(w, r, "Could not "+persistErr.Op, http.StatusInternalServerError)
	default:
		h.log.WithError(err).Error("unexpected service error")
		utils.HandleMessageResponse(w, r, "Internal server error", http.StatusInternalServerError)
	}
}
