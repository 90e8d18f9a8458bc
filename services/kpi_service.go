package services

import (
	"context"
	"io"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"kpitracker/models"
	repository "kpitracker/repositories"
	"kpitracker/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// maxSaveAttempts bounds the re-read/re-apply loop on version conflicts.
const maxSaveAttempts = 3

const dashboardRecentKPIs = 10

type KPIService interface {
	// Manager operations
	CreateKPI(ctx context.Context, p models.Principal, req models.CreateKPIRequest) (*models.KPI, error)
	GetManagedKPI(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.KPI, error)
	ListManagedKPIs(ctx context.Context, p models.Principal) ([]models.KPI, error)
	EditKPI(ctx context.Context, p models.Principal, id primitive.ObjectID, req models.EditKPIRequest) (*models.KPI, error)
	DeleteKPI(ctx context.Context, p models.Principal, id primitive.ObjectID) error
	ValidateProgress(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.KPI, error)
	ManagerDashboard(ctx context.Context, p models.Principal) (*models.Dashboard, error)
	PerformanceStats(ctx context.Context, p models.Principal) ([]models.PerformanceStat, error)
	// Staff operations
	StaffDashboard(ctx context.Context, p models.Principal) (*models.Dashboard, error)
	GetAssignedKPI(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.KPI, error)
	SubmitUpdate(ctx context.Context, p models.Principal, id primitive.ObjectID, req models.UpdateRequest, now time.Time) (*models.KPI, error)
	AddComment(ctx context.Context, p models.Principal, id primitive.ObjectID, req models.CommentRequest) (*models.KPI, error)
	UploadEvidence(ctx context.Context, p models.Principal, id primitive.ObjectID, filename string, data io.Reader, size int64, contentType string) (*models.Evidence, error)
	// OpenEvidence streams a file from a KPI visible to the principal.
	OpenEvidence(ctx context.Context, p models.Principal, id, fileID primitive.ObjectID) (*models.Evidence, io.ReadCloser, error)
}

type kpiService struct {
	repo  repository.KPIRepository
	files repository.EvidenceStore
	log   logrus.FieldLogger
	now   func() time.Time
}

type Option func(*kpiService)

// WithClock replaces time.Now for operations that do not take an explicit time.
func WithClock(now func() time.Time) Option {
	return func(s *kpiService) { s.now = now }
}

func NewKPIService(repo repository.KPIRepository, files repository.EvidenceStore, log logrus.FieldLogger, opts ...Option) KPIService {
	s := &kpiService{
		repo:  repo,
		files: files,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validationFromStruct(v interface{}) error {
	fields := utils.ValidateStruct(v)
	if fields == nil {
		return nil
	}
	flds := make([]FieldError, 0, len(fields))
	for name, tag := range fields {
		flds = append(flds, FieldError{Field: name, Error: tag})
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return &ValidationError{Err: errors.New("invalid KPI input"), Fields: flds}
}

func parseObjectID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, NewValidationError("invalid "+field, FieldError{Field: field, Error: "objectid"})
	}
	return id, nil
}

// applyDescriptive copies validated descriptive fields onto kpi.
func applyDescriptive(kpi *models.KPI, req models.CreateKPIRequest) error {
	if err := validationFromStruct(req); err != nil {
		return err
	}
	categoryID, err := parseObjectID("category_id", req.CategoryID)
	if err != nil {
		return err
	}
	staffID, err := parseObjectID("staff_id", req.StaffID)
	if err != nil {
		return err
	}

	kpi.Title = strings.TrimSpace(req.Title)
	kpi.Description = req.Description
	kpi.Category = categoryID
	kpi.Target = req.Target
	kpi.Unit = req.Unit
	kpi.Staff = staffID
	kpi.StartDate = req.StartDate
	kpi.EndDate = req.EndDate
	kpi.MeasurementFrequency = req.MeasurementFrequency
	return nil
}

func (s *kpiService) CreateKPI(ctx context.Context, p models.Principal, req models.CreateKPIRequest) (*models.KPI, error) {
	now := s.now()
	kpi := models.NewKPI(now)
	if err := applyDescriptive(kpi, req); err != nil {
		return nil, err
	}
	kpi.Manager = p.ID
	kpi.Organization = p.Organization

	if err := s.repo.Create(ctx, kpi); err != nil {
		return nil, persistenceError("create KPI", err)
	}

	s.log.WithFields(logrus.Fields{
		"kpi_id":  kpi.ID.Hex(),
		"manager": p.ID.Hex(),
		"staff":   kpi.Staff.Hex(),
	}).Info("KPI created")
	return kpi, nil
}

func (s *kpiService) findManaged(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.KPI, error) {
	kpi, err := s.repo.FindManaged(ctx, id, p.ID, p.Organization)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return nil, persistenceError("load KPI", err)
	}
	return kpi, nil
}

func (s *kpiService) findAssigned(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.KPI, error) {
	kpi, err := s.repo.FindAssigned(ctx, id, p.ID, p.Organization)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return nil, persistenceError("load KPI", err)
	}
	return kpi, nil
}

// refreshStatus re-derives status at now. Stored status only changes on
// writes, so a KPI can pass its end date without being saved again.
func refreshStatus(kpis []models.KPI, now time.Time) {
	for i := range kpis {
		kpis[i].UpdateStatus(now)
	}
}

func (s *kpiService) GetManagedKPI(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.KPI, error) {
	kpi, err := s.findManaged(ctx, p, id)
	if err != nil {
		return nil, err
	}
	kpi.UpdateStatus(s.now())
	return kpi, nil
}

func (s *kpiService) ListManagedKPIs(ctx context.Context, p models.Principal) ([]models.KPI, error) {
	kpis, err := s.repo.ListManaged(ctx, p.ID, p.Organization, 0)
	if err != nil {
		return nil, persistenceError("list KPIs", err)
	}
	refreshStatus(kpis, s.now())
	return kpis, nil
}

// mutate loads a KPI with load, applies fn and saves it, starting over on a
// version conflict. fn must be safe to run again on a fresh copy.
func (s *kpiService) mutate(ctx context.Context, op string, load func() (*models.KPI, error), fn func(*models.KPI) error) (*models.KPI, error) {
	for attempt := 1; ; attempt++ {
		kpi, err := load()
		if err != nil {
			return nil, err
		}
		if err := fn(kpi); err != nil {
			return nil, err
		}

		err = s.repo.Save(ctx, kpi)
		if err == nil {
			return kpi, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return nil, persistenceError(op, err)
		}
		s.log.WithFields(logrus.Fields{
			"kpi_id":  kpi.ID.Hex(),
			"attempt": attempt,
		}).Warn("version conflict, retrying " + op)
	}
}

func (s *kpiService) EditKPI(ctx context.Context, p models.Principal, id primitive.ObjectID, req models.EditKPIRequest) (*models.KPI, error) {
	return s.mutate(ctx, "edit KPI",
		func() (*models.KPI, error) { return s.findManaged(ctx, p, id) },
		func(kpi *models.KPI) error {
			if err := applyDescriptive(kpi, models.CreateKPIRequest(req)); err != nil {
				return err
			}
			now := s.now()
			// a lowered target re-caps the stored value
			kpi.SetCurrentValue(kpi.CurrentValue)
			kpi.Recompute(now)
			kpi.UpdatedAt = now
			return nil
		})
}

func (s *kpiService) DeleteKPI(ctx context.Context, p models.Principal, id primitive.ObjectID) error {
	removed, err := s.repo.Delete(ctx, id, p.ID, p.Organization)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return persistenceError("delete KPI", err)
	}

	for _, e := range removed.Evidence {
		if err := s.files.Delete(ctx, e.FileID); err != nil && !errors.Is(err, repository.ErrFileNotFound) {
			s.log.WithError(err).WithField("file_id", e.FileID.Hex()).Warn("failed to remove evidence of deleted KPI")
		}
	}

	s.log.WithField("kpi_id", id.Hex()).Info("KPI deleted")
	return nil
}

func (s *kpiService) ValidateProgress(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.KPI, error) {
	return s.mutate(ctx, "validate KPI progress",
		func() (*models.KPI, error) { return s.findManaged(ctx, p, id) },
		func(kpi *models.KPI) error {
			kpi.ProgressValidated = true
			kpi.UpdatedAt = s.now()
			return nil
		})
}

func (s *kpiService) ManagerDashboard(ctx context.Context, p models.Principal) (*models.Dashboard, error) {
	now := s.now()
	var (
		dash   models.Dashboard
		counts = []struct {
			status models.Status
			dst    *int64
		}{
			{"", &dash.Stats.Total},
			{models.StatusInProgress, &dash.Stats.InProgress},
			{models.StatusCompleted, &dash.Stats.Completed},
			{models.StatusOverdue, &dash.Stats.Overdue},
			{models.StatusPending, &dash.Stats.Pending},
		}
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() error {
			n, err := s.repo.CountManaged(gctx, p.ID, p.Organization, c.status, now)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	g.Go(func() error {
		kpis, err := s.repo.ListManaged(gctx, p.ID, p.Organization, dashboardRecentKPIs)
		if err != nil {
			return err
		}
		refreshStatus(kpis, now)
		dash.KPIs = kpis
		return nil
	})
	g.Go(func() error {
		perf, err := s.repo.StaffPerformance(gctx, p.ID, p.Organization)
		if err != nil {
			return err
		}
		dash.StaffPerformance = perf
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, persistenceError("load manager dashboard", err)
	}

	return &dash, nil
}

func (s *kpiService) PerformanceStats(ctx context.Context, p models.Principal) ([]models.PerformanceStat, error) {
	stats, err := s.repo.PerformanceStats(ctx, p.ID, p.Organization, s.now())
	if err != nil {
		return nil, persistenceError("load performance stats", err)
	}
	return stats, nil
}

func (s *kpiService) StaffDashboard(ctx context.Context, p models.Principal) (*models.Dashboard, error) {
	kpis, err := s.repo.ListAssigned(ctx, p.ID, p.Organization)
	if err != nil {
		return nil, persistenceError("load staff dashboard", err)
	}
	refreshStatus(kpis, s.now())

	dash := &models.Dashboard{KPIs: kpis}
	dash.Stats.Total = int64(len(kpis))
	for _, kpi := range kpis {
		switch kpi.Status {
		case models.StatusCompleted:
			dash.Stats.Completed++
		case models.StatusInProgress:
			dash.Stats.InProgress++
		case models.StatusOverdue:
			dash.Stats.Overdue++
		case models.StatusPending:
			dash.Stats.Pending++
		}
	}
	return dash, nil
}

func (s *kpiService) GetAssignedKPI(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.KPI, error) {
	kpi, err := s.findAssigned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	kpi.UpdateStatus(s.now())
	return kpi, nil
}

// SubmitUpdate records a staff member's progress report. The KPI is left
// untouched unless every step succeeds.
func (s *kpiService) SubmitUpdate(ctx context.Context, p models.Principal, id primitive.ObjectID, req models.UpdateRequest, now time.Time) (*models.KPI, error) {
	logger := s.log.WithFields(logrus.Fields{
		"kpi_id": id.Hex(),
		"staff":  p.ID.Hex(),
	})
	comment := strings.TrimSpace(req.Comment)

	return s.mutate(ctx, "update KPI",
		func() (*models.KPI, error) { return s.findAssigned(ctx, p, id) },
		func(kpi *models.KPI) error {
			if !models.IsUpdateAllowed(kpi.HistoricalData, kpi.MeasurementFrequency, now) {
				err := &PeriodNotElapsedError{Frequency: kpi.MeasurementFrequency}
				logger.WithField("frequency", kpi.MeasurementFrequency).Info("update rejected: " + err.Error())
				return err
			}
			if req.Value == nil {
				return NewValidationError("current value is required", FieldError{Field: "current_value", Error: "required"})
			}
			if math.IsNaN(*req.Value) || math.IsInf(*req.Value, 0) {
				return NewValidationError("current value must be a finite number", FieldError{Field: "current_value", Error: "number"})
			}

			value := models.ClampValue(*req.Value, kpi.Target)
			if value != kpi.CurrentValue {
				kpi.HistoricalData = append(kpi.HistoricalData, models.Snapshot{
					Date:   now,
					Value:  value,
					Target: kpi.Target,
					Status: kpi.Status,
					Notes:  comment,
				})
				kpi.ProgressValidated = false
				logger.WithFields(logrus.Fields{"from": kpi.CurrentValue, "to": value}).Debug("recording historical data")
			}

			kpi.CurrentValue = value
			kpi.Recompute(now)

			if comment != "" {
				kpi.Comments = append(kpi.Comments, models.Comment{
					User:      p.ID,
					Text:      comment,
					CreatedAt: now,
				})
			}
			kpi.UpdatedAt = now
			return nil
		})
}

func (s *kpiService) AddComment(ctx context.Context, p models.Principal, id primitive.ObjectID, req models.CommentRequest) (*models.KPI, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := validationFromStruct(req); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "add comment",
		func() (*models.KPI, error) { return s.findAssigned(ctx, p, id) },
		func(kpi *models.KPI) error {
			now := s.now()
			kpi.Comments = append(kpi.Comments, models.Comment{
				User:      p.ID,
				Text:      req.Text,
				CreatedAt: now,
			})
			kpi.UpdatedAt = now
			return nil
		})
}

func (s *kpiService) UploadEvidence(ctx context.Context, p models.Principal, id primitive.ObjectID, filename string, data io.Reader, size int64, contentType string) (*models.Evidence, error) {
	logger := s.log.WithFields(logrus.Fields{
		"kpi_id": id.Hex(),
		"staff":  p.ID.Hex(),
	})

	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "" || filename == "." || filename == "/" {
		return nil, NewValidationError("no file uploaded", FieldError{Field: "file", Error: "required"})
	}

	// Nothing is stored for a KPI the caller cannot see
	if _, err := s.findAssigned(ctx, p, id); err != nil {
		return nil, err
	}

	storedName := "evidence/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	fileID, err := s.files.Upload(ctx, storedName, data, p.ID, contentType)
	if err != nil {
		return nil, persistenceError("store evidence", err)
	}
	logger.WithField("file_id", fileID.Hex()).Debug("evidence stored")

	evidence := models.Evidence{
		FileID:      fileID,
		Filename:    filename,
		Filepath:    storedName,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  s.now(),
	}

	_, err = s.mutate(ctx, "attach evidence",
		func() (*models.KPI, error) { return s.findAssigned(ctx, p, id) },
		func(kpi *models.KPI) error {
			kpi.Evidence = append(kpi.Evidence, evidence)
			kpi.UpdatedAt = evidence.UploadedAt
			return nil
		})
	if err != nil {
		// The request context may already be gone
		if cleanupErr := s.files.Delete(context.Background(), fileID); cleanupErr != nil {
			logger.WithError(cleanupErr).WithField("file_id", fileID.Hex()).Error("failed to clean up orphaned evidence")
		} else {
			logger.WithField("file_id", fileID.Hex()).Info("cleaned up orphaned evidence")
		}
		return nil, err
	}

	logger.WithField("file_id", fileID.Hex()).Info("evidence attached")
	return &evidence, nil
}

func (s *kpiService) OpenEvidence(ctx context.Context, p models.Principal, id, fileID primitive.ObjectID) (*models.Evidence, io.ReadCloser, error) {
	var (
		kpi *models.KPI
		err error
	)
	switch p.Role {
	case models.RoleManager:
		kpi, err = s.findManaged(ctx, p, id)
	case models.RoleStaff:
		kpi, err = s.findAssigned(ctx, p, id)
	default:
		err = ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return nil, nil, err
	}

	evidence, ok := kpi.EvidenceByID(fileID)
	if !ok {
		return nil, nil, ErrEvidenceNotFound
	}

	rc, err := s.files.Open(ctx, fileID)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil, nil, ErrEvidenceNotFound
	}
	if err != nil {
		return nil, nil, persistenceError("open evidence", err)
	}
	return &evidence, rc, nil
}
