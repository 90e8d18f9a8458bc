package utils

import (
	"context"
	"encoding/json"
	"net/http"

	"kpitracker/models"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func HandleMessageResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	writeJSON(w, statusCode, models.NewMessageResponse(statusCode, message, RequestIDFromContext(r.Context())))
}

func HandleValidationResponse(w http.ResponseWriter, r *http.Request, statusCode int, fields map[string]string) {
	writeJSON(w, statusCode, models.NewValidationResponse(statusCode, fields, RequestIDFromContext(r.Context())))
}

func HandleDataResponse(w http.ResponseWriter, r *http.Request, message string, data interface{}, statusCode int) {
	writeJSON(w, statusCode, models.NewDataResponse(statusCode, message, data, RequestIDFromContext(r.Context())))
}
