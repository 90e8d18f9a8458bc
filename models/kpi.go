package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusOverdue:
		return true
	}
	return false
}

// KPI is one objective assigned by a manager to a staff member.
// Version is bumped by every successful save and guards concurrent writers.
type KPI struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title                string             `json:"title" bson:"title"`
	Description          string             `json:"description" bson:"description"`
	Category             primitive.ObjectID `json:"category" bson:"category"`
	Target               float64            `json:"target" bson:"target"`
	CurrentValue         float64            `json:"current_value" bson:"current_value"`
	Unit                 string             `json:"unit" bson:"unit"`
	Organization         string             `json:"organization" bson:"organization"`
	Staff                primitive.ObjectID `json:"staff" bson:"staff"`
	Manager              primitive.ObjectID `json:"manager" bson:"manager"`
	Status               Status             `json:"status" bson:"status"`
	StartDate            time.Time          `json:"start_date" bson:"start_date"`
	EndDate              time.Time          `json:"end_date" bson:"end_date"`
	MeasurementFrequency Frequency          `json:"measurement_frequency" bson:"measurement_frequency"`
	Progress             int                `json:"progress" bson:"progress"`
	Comments             []Comment          `json:"comments" bson:"comments"`
	Evidence             []Evidence         `json:"evidence" bson:"evidence"`
	HistoricalData       []Snapshot         `json:"historical_data" bson:"historical_data"`
	ProgressValidated    bool               `json:"progress_validated" bson:"progress_validated"`
	Version              int64              `json:"version" bson:"version"`
	CreatedAt            time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" bson:"updated_at"`
}

// Snapshot records the value a KPI moved to and the status it left.
type Snapshot struct {
	Date   time.Time `json:"date" bson:"date"`
	Value  float64   `json:"value" bson:"value"`
	Target float64   `json:"target" bson:"target"`
	Status Status    `json:"status" bson:"status"`
	Notes  string    `json:"notes" bson:"notes"`
}

type Comment struct {
	User      primitive.ObjectID `json:"user" bson:"user"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

type Evidence struct {
	FileID      primitive.ObjectID `json:"file_id" bson:"file_id"` // GridFS file ID
	Filename    string             `json:"filename" bson:"filename"`
	Filepath    string             `json:"filepath" bson:"filepath"` // GridFS stored name
	ContentType string             `json:"content_type" bson:"content_type"`
	Size        int64              `json:"size" bson:"size"`
	UploadedAt  time.Time          `json:"uploaded_at" bson:"uploaded_at"`
}

// NewKPI returns a KPI in its initial state: nothing reported yet.
func NewKPI(now time.Time) *KPI {
	return &KPI{
		Status:            StatusPending,
		Comments:          []Comment{},
		Evidence:          []Evidence{},
		HistoricalData:    []Snapshot{},
		ProgressValidated: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ClampValue caps v to the closed interval [0, target].
func ClampValue(v, target float64) float64 {
	if v < 0 || target <= 0 {
		return 0
	}
	if v > target {
		return target
	}
	return v
}

// SetCurrentValue stores v clamped to [0, Target] and returns the stored value.
func (k *KPI) SetCurrentValue(v float64) float64 {
	k.CurrentValue = ClampValue(v, k.Target)
	return k.CurrentValue
}

// CalculateProgress sets Progress to CurrentValue as a rounded percentage of
// Target. A KPI without a positive target has no progress.
func (k *KPI) CalculateProgress() int {
	if k.Target <= 0 {
		k.Progress = 0
		return k.Progress
	}
	k.Progress = int(math.Round(k.CurrentValue / k.Target * 100))
	return k.Progress
}

// UpdateStatus derives Status from Progress, EndDate and now.
// Completion wins over lateness.
func (k *KPI) UpdateStatus(now time.Time) Status {
	switch {
	case k.Progress >= 100:
		k.Status = StatusCompleted
	case now.After(k.EndDate):
		k.Status = StatusOverdue
	case k.Progress > 0:
		k.Status = StatusInProgress
	default:
		k.Status = StatusPending
	}
	return k.Status
}

// Recompute refreshes both derived fields.
func (k *KPI) Recompute(now time.Time) {
	k.CalculateProgress()
	k.UpdateStatus(now)
}

// EvidenceByID returns the evidence entry stored under fileID.
func (k *KPI) EvidenceByID(fileID primitive.ObjectID) (Evidence, bool) {
	for _, e := range k.Evidence {
		if e.FileID == fileID {
			return e, true
		}
	}
	return Evidence{}, false
}
