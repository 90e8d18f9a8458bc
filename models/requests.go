package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateKPIRequest is the manager's input for a new KPI. IDs are hex ObjectIDs.
type CreateKPIRequest struct {
	Title                string    `json:"title" validate:"required,max=200"`
	Description          string    `json:"description" validate:"required"`
	CategoryID           string    `json:"category_id" validate:"required,hexadecimal,len=24"`
	Target               float64   `json:"target" validate:"gt=0"`
	Unit                 string    `json:"unit" validate:"required"`
	StaffID              string    `json:"staff_id" validate:"required,hexadecimal,len=24"`
	StartDate            time.Time `json:"start_date" validate:"required"`
	EndDate              time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	MeasurementFrequency Frequency `json:"measurement_frequency" validate:"required,kpi_frequency"`
}

// EditKPIRequest replaces the descriptive fields of a KPI.
type EditKPIRequest CreateKPIRequest

// UpdateRequest is a staff progress report.
type UpdateRequest struct {
	Value   *float64 `json:"current_value" validate:"required"`
	Comment string   `json:"comment" validate:"max=2000"`
}

type CommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// StatusCounts summarises a set of KPIs by derived status.
type StatusCounts struct {
	Total      int64 `json:"total_kpis"`
	InProgress int64 `json:"in_progress_kpis"`
	Completed  int64 `json:"completed_kpis"`
	Overdue    int64 `json:"overdue_kpis"`
	Pending    int64 `json:"pending_kpis"`
}

type Dashboard struct {
	Stats            StatusCounts       `json:"stats"`
	KPIs             []KPI              `json:"kpis"`
	StaffPerformance []StaffPerformance `json:"staff_performance,omitempty"`
}

// StaffPerformance summarises the KPIs one staff member holds under a manager.
// AvgProgress is the mean progress rounded half away from zero.
type StaffPerformance struct {
	Staff         primitive.ObjectID `json:"staff"`
	TotalKPIs     int64              `json:"total_kpis"`
	CompletedKPIs int64              `json:"completed_kpis"`
	AvgProgress   int                `json:"avg_progress"`
}

// PerformanceStat is one group of the manager performance report.
type PerformanceStat struct {
	Status          Status  `json:"status" bson:"_id"`
	Count           int64   `json:"count" bson:"count"`
	AvgProgress     float64 `json:"avg_progress" bson:"avg_progress"`
	TotalEvidence   int64   `json:"total_evidence" bson:"total_evidence"`
	AvgDaysUntilDue float64 `json:"avg_days_until_due" bson:"avg_days_until_due"`
}
