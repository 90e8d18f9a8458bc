package services

import (
	"context"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"kpitracker/models"
	repository "kpitracker/repositories"
	memorydb "kpitracker/repositories/memory"

	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const org = "acme"

var (
	// Wednesday
	t0      = time.Date(2024, time.January, 10, 10, 0, 0, 0, time.UTC)
	farAway = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc     KPIService
	repo    *memorydb.KPIRepository
	files   *memorydb.EvidenceStore
	logs    *logtest.Hook
	manager models.Principal
	staff   models.Principal
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	repo := memorydb.NewKPIRepository()
	files := memorydb.NewEvidenceStore()
	return &fixture{
		svc:     NewKPIService(repo, files, log, WithClock(func() time.Time { return t0 })),
		repo:    repo,
		files:   files,
		logs:    hook,
		manager: models.Principal{ID: primitive.NewObjectID(), Role: models.RoleManager, Organization: org, Active: true},
		staff:   models.Principal{ID: primitive.NewObjectID(), Role: models.RoleStaff, Organization: org, Active: true},
	}
}

func (f *fixture) seedKPI(t *testing.T, frequency models.Frequency, target float64) *models.KPI {
	t.Helper()
	kpi := models.NewKPI(t0.AddDate(0, 0, -30))
	kpi.Title = "Closed deals"
	kpi.Description = "Deals closed this year"
	kpi.Unit = "deals"
	kpi.Target = target
	kpi.MeasurementFrequency = frequency
	kpi.StartDate = t0.AddDate(0, 0, -30)
	kpi.EndDate = farAway
	kpi.Manager = f.manager.ID
	kpi.Staff = f.staff.ID
	kpi.Organization = org
	kpi.Category = primitive.NewObjectID()
	return f.repo.Put(kpi)
}

func (f *fixture) stored(t *testing.T, id primitive.ObjectID) *models.KPI {
	t.Helper()
	kpi, ok := f.repo.Get(id)
	require.True(t, ok, "kpi %s not stored", id.Hex())
	return kpi
}

func value(v float64) *float64 { return &v }

func TestSubmitUpdate_WeeklyScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	kpi := f.seedKPI(t, models.FrequencyWeekly, 100)

	got, err := f.svc.SubmitUpdate(ctx, f.staff, kpi.ID, models.UpdateRequest{Value: value(40), Comment: "start"}, t0)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.CurrentValue)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.Len(t, got.HistoricalData, 1)
	assert.Equal(t, models.Snapshot{Date: t0, Value: 40, Target: 100, Status: models.StatusPending, Notes: "start"}, got.HistoricalData[0])
	require.Len(t, got.Comments, 1)
	assert.Equal(t, models.Comment{User: f.staff.ID, Text: "start", CreatedAt: t0}, got.Comments[0])

	before := f.stored(t, kpi.ID)
	_, err = f.svc.SubmitUpdate(ctx, f.staff, kpi.ID, models.UpdateRequest{Value: value(60)}, t0.AddDate(0, 0, 1))
	var periodErr *PeriodNotElapsedError
	require.True(t, errors.As(err, &periodErr), "got %v", err)
	assert.Equal(t, models.FrequencyWeekly, periodErr.Frequency)
	assert.Equal(t, "This KPI can only be updated weekly. Please wait until the next weekly period.", err.Error())
	assert.Equal(t, before, f.stored(t, kpi.ID))

	got, err = f.svc.SubmitUpdate(ctx, f.staff, kpi.ID, models.UpdateRequest{Value: value(60)}, t0.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Len(t, got.HistoricalData, 2)
	assert.Equal(t, 60.0, got.CurrentValue)
	assert.Equal(t, 60, got.Progress)
	assert.Equal(t, models.StatusInProgress, got.HistoricalData[1].Status)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, got, f.stored(t, kpi.ID))
}

func TestSubmitUpdate_ClampsToTarget(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 100)

	got, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{Value: value(250)}, t0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.CurrentValue)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.Len(t, got.HistoricalData, 1)
	assert.Equal(t, 100.0, got.HistoricalData[0].Value)
	assert.Equal(t, models.StatusPending, got.HistoricalData[0].Status)
	assert.Empty(t, got.Comments)
}

func TestSubmitUpdate_NegativeValueFloorsToZero(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 100)

	got, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{Value: value(-5), Comment: "oops"}, t0)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentValue)
	assert.Empty(t, got.HistoricalData, "unchanged value must not add history")
	assert.Len(t, got.Comments, 1)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestSubmitUpdate_SameValueAddsOnlyComment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)

	_, err := f.svc.SubmitUpdate(ctx, f.staff, kpi.ID, models.UpdateRequest{Value: value(5)}, t0)
	require.NoError(t, err)

	got, err := f.svc.SubmitUpdate(ctx, f.staff, kpi.ID, models.UpdateRequest{Value: value(5), Comment: "  still five  "}, t0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, got.HistoricalData, 1)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "still five", got.Comments[0].Text)
}

func TestSubmitUpdate_SameValueTwiceInPeriod(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	kpi := f.seedKPI(t, models.FrequencyMonthly, 10)

	_, err := f.svc.SubmitUpdate(ctx, f.staff, kpi.ID, models.UpdateRequest{Value: value(3)}, t0)
	require.NoError(t, err)
	_, err = f.svc.SubmitUpdate(ctx, f.staff, kpi.ID, models.UpdateRequest{Value: value(3)}, t0.Add(time.Hour))
	assert.Error(t, err)

	assert.Len(t, f.stored(t, kpi.ID).HistoricalData, 1)
}

func TestSubmitUpdate_NotFoundOrUnauthorized(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)
	req := models.UpdateRequest{Value: value(5)}

	other := f.staff
	other.ID = primitive.NewObjectID()
	otherOrg := f.staff
	otherOrg.Organization = "globex"

	tests := []struct {
		name string
		p    models.Principal
		id   primitive.ObjectID
	}{
		{"missing kpi", f.staff, primitive.NewObjectID()},
		{"not assigned", other, kpi.ID},
		{"other organization", otherOrg, kpi.ID},
		{"owning manager", f.manager, kpi.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitUpdate(ctx, tt.p, tt.id, req, t0)
			assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
		})
	}
	assert.Zero(t, f.repo.Saves)
}

func TestSubmitUpdate_RejectsNonFiniteValue(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{Value: value(v)}, t0)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "value %v: %v", v, err)
		assert.Equal(t, "current_value", validationErr.Fields[0].Field)
	}
	_, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{}, t0)
	assert.IsType(t, &ValidationError{}, err)
	assert.Zero(t, f.repo.Saves)
}

func TestSubmitUpdate_RetriesOnVersionConflict(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)
	concurrent := models.Comment{User: f.manager.ID, Text: "written meanwhile", CreatedAt: t0}

	conflicts := 0
	f.repo.BeforeSave = func(stored, incoming *models.KPI) error {
		if conflicts == 0 {
			conflicts++
			stored.Comments = append(stored.Comments, concurrent)
			stored.Version++
		}
		return nil
	}

	got, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{Value: value(4), Comment: "mine"}, t0)
	require.NoError(t, err)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, concurrent, got.Comments[0])
	assert.Equal(t, "mine", got.Comments[1].Text)
	assert.Len(t, got.HistoricalData, 1)
	assert.Equal(t, 1, f.repo.Saves)
	assert.Equal(t, "version conflict, retrying update KPI", f.logs.LastEntry().Message)
}

func TestSubmitUpdate_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)
	attempts := 0
	f.repo.BeforeSave = func(stored, incoming *models.KPI) error {
		attempts++
		return repository.ErrVersionConflict
	}

	_, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{Value: value(4)}, t0)
	var persistErr *PersistenceError
	require.True(t, errors.As(err, &persistErr))
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.Equal(t, maxSaveAttempts, attempts)
	assert.Zero(t, f.stored(t, kpi.ID).CurrentValue)
}

func TestSubmitUpdate_SaveFailureLeavesKPIUnchanged(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)
	before := f.stored(t, kpi.ID)
	f.repo.BeforeSave = func(stored, incoming *models.KPI) error {
		return errors.New("connection reset")
	}

	_, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{Value: value(4), Comment: "x"}, t0)
	assert.IsType(t, &PersistenceError{}, err)
	assert.Equal(t, before, f.stored(t, kpi.ID))
}

func TestCreateKPI(t *testing.T) {
	f := setup(t)
	req := models.CreateKPIRequest{
		Title:                "  Tickets resolved ",
		Description:          "Support tickets",
		CategoryID:           primitive.NewObjectID().Hex(),
		Target:               200,
		Unit:                 "tickets",
		StaffID:              f.staff.ID.Hex(),
		StartDate:            t0,
		EndDate:              farAway,
		MeasurementFrequency: models.FrequencyWeekly,
	}

	kpi, err := f.svc.CreateKPI(context.Background(), f.manager, req)
	require.NoError(t, err)
	assert.False(t, kpi.ID.IsZero())
	assert.Equal(t, "Tickets resolved", kpi.Title)
	assert.Equal(t, models.StatusPending, kpi.Status)
	assert.Zero(t, kpi.Progress)
	assert.Zero(t, kpi.CurrentValue)
	assert.Equal(t, f.manager.ID, kpi.Manager)
	assert.Equal(t, f.staff.ID, kpi.Staff)
	assert.Equal(t, org, kpi.Organization)
	assert.Equal(t, kpi, f.stored(t, kpi.ID))

	req.Target = 0
	req.MeasurementFrequency = "Hourly"
	_, err = f.svc.CreateKPI(context.Background(), f.manager, req)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []FieldError{
		{Field: "measurement_frequency", Error: "kpi_frequency"},
		{Field: "target", Error: "gt"},
	}, validationErr.Fields)

	req.Target = 10
	req.MeasurementFrequency = "weekly"
	_, err = f.svc.CreateKPI(context.Background(), f.manager, req)
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []FieldError{{Field: "measurement_frequency", Error: "kpi_frequency"}}, validationErr.Fields)
}

func TestEditKPI_LoweredTargetRecapsValue(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 100)
	_, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{Value: value(80)}, t0)
	require.NoError(t, err)

	got, err := f.svc.EditKPI(context.Background(), f.manager, kpi.ID, models.EditKPIRequest{
		Title:                kpi.Title,
		Description:          kpi.Description,
		CategoryID:           kpi.Category.Hex(),
		Target:               50,
		Unit:                 kpi.Unit,
		StaffID:              kpi.Staff.Hex(),
		StartDate:            kpi.StartDate,
		EndDate:              farAway,
		MeasurementFrequency: models.FrequencyMonthly,
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.CurrentValue)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, models.FrequencyMonthly, got.MeasurementFrequency)
	assert.Len(t, got.HistoricalData, 1, "manager edits do not add history")

	_, err = f.svc.EditKPI(context.Background(), f.staff, kpi.ID, models.EditKPIRequest{})
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
}

func TestValidateProgress(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)

	_, err := f.svc.SubmitUpdate(context.Background(), f.staff, kpi.ID, models.UpdateRequest{Value: value(2)}, t0)
	require.NoError(t, err)
	assert.False(t, f.stored(t, kpi.ID).ProgressValidated)

	got, err := f.svc.ValidateProgress(context.Background(), f.manager, kpi.ID)
	require.NoError(t, err)
	assert.True(t, got.ProgressValidated)
	assert.True(t, f.stored(t, kpi.ID).ProgressValidated)
}

func TestAddComment(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)

	got, err := f.svc.AddComment(context.Background(), f.staff, kpi.ID, models.CommentRequest{Text: "blocked on data"})
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, models.Comment{User: f.staff.ID, Text: "blocked on data", CreatedAt: t0}, got.Comments[0])
	assert.Empty(t, got.HistoricalData)

	_, err = f.svc.AddComment(context.Background(), f.staff, kpi.ID, models.CommentRequest{Text: "   "})
	assert.IsType(t, &ValidationError{}, err)
}

func TestUploadEvidence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)

	evidence, err := f.svc.UploadEvidence(ctx, f.staff, kpi.ID, `C:\reports\Q1 Report.PDF`, strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Q1 Report.PDF", evidence.Filename)
	assert.True(t, strings.HasPrefix(evidence.Filepath, "evidence/"))
	assert.True(t, strings.HasSuffix(evidence.Filepath, ".pdf"))
	assert.Equal(t, []models.Evidence{*evidence}, f.stored(t, kpi.ID).Evidence)

	for _, p := range []models.Principal{f.staff, f.manager} {
		meta, rc, err := f.svc.OpenEvidence(ctx, p, kpi.ID, evidence.FileID)
		require.NoError(t, err)
		body, _ := io.ReadAll(rc)
		rc.Close()
		assert.Equal(t, "%PDF", string(body))
		assert.Equal(t, "application/pdf", meta.ContentType)
	}

	stranger := f.staff
	stranger.ID = primitive.NewObjectID()
	_, _, err = f.svc.OpenEvidence(ctx, stranger, kpi.ID, evidence.FileID)
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
	_, _, err = f.svc.OpenEvidence(ctx, f.staff, kpi.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrEvidenceNotFound)
}

func TestUploadEvidence_NothingStoredForForeignKPI(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)
	stranger := f.staff
	stranger.ID = primitive.NewObjectID()

	_, err := f.svc.UploadEvidence(context.Background(), stranger, kpi.ID, "a.png", strings.NewReader("png"), 3, "image/png")
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
	assert.Zero(t, f.files.Len())
}

func TestUploadEvidence_RemovesFileWhenSaveFails(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)
	f.repo.BeforeSave = func(stored, incoming *models.KPI) error {
		return errors.New("write concern failed")
	}

	_, err := f.svc.UploadEvidence(context.Background(), f.staff, kpi.ID, "a.png", strings.NewReader("png"), 3, "image/png")
	assert.IsType(t, &PersistenceError{}, err)
	assert.Zero(t, f.files.Len(), "orphaned evidence must be removed")
	assert.Empty(t, f.stored(t, kpi.ID).Evidence)
	assert.Equal(t, "cleaned up orphaned evidence", f.logs.LastEntry().Message)
}

func TestUploadEvidence_StoreFailure(t *testing.T) {
	f := setup(t)
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)
	f.files.UploadErr = errors.New("gridfs unavailable")

	_, err := f.svc.UploadEvidence(context.Background(), f.staff, kpi.ID, "a.png", strings.NewReader("png"), 3, "image/png")
	assert.IsType(t, &PersistenceError{}, err)
	assert.Zero(t, f.repo.Saves)
}

func TestDeleteKPI(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	kpi := f.seedKPI(t, models.FrequencyDaily, 10)
	_, err := f.svc.UploadEvidence(ctx, f.staff, kpi.ID, "a.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)

	otherManager := f.manager
	otherManager.ID = primitive.NewObjectID()
	assert.ErrorIs(t, f.svc.DeleteKPI(ctx, otherManager, kpi.ID), ErrNotFoundOrUnauthorized)
	assert.ErrorIs(t, f.svc.DeleteKPI(ctx, f.staff, kpi.ID), ErrNotFoundOrUnauthorized)

	require.NoError(t, f.svc.DeleteKPI(ctx, f.manager, kpi.ID))
	_, ok := f.repo.Get(kpi.ID)
	assert.False(t, ok)
	assert.Zero(t, f.files.Len())
	assert.ErrorIs(t, f.svc.DeleteKPI(ctx, f.manager, kpi.ID), ErrNotFoundOrUnauthorized)
}

func TestDashboards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	done := f.seedKPI(t, models.FrequencyDaily, 10)
	late := f.seedKPI(t, models.FrequencyDaily, 10)
	late.EndDate = t0.AddDate(0, 0, -1)
	f.repo.Put(late)
	f.seedKPI(t, models.FrequencyDaily, 10)

	_, err := f.svc.SubmitUpdate(ctx, f.staff, done.ID, models.UpdateRequest{Value: value(10)}, t0)
	require.NoError(t, err)
	_, err = f.svc.SubmitUpdate(ctx, f.staff, late.ID, models.UpdateRequest{Value: value(3)}, t0)
	require.NoError(t, err)

	want := models.StatusCounts{Total: 3, Completed: 1, Overdue: 1, Pending: 1}

	dash, err := f.svc.ManagerDashboard(ctx, f.manager)
	require.NoError(t, err)
	assert.Equal(t, want, dash.Stats)
	assert.Len(t, dash.KPIs, 3)

	dash, err = f.svc.StaffDashboard(ctx, f.staff)
	require.NoError(t, err)
	assert.Equal(t, want, dash.Stats)

	stats, err := f.svc.PerformanceStats(ctx, f.manager)
	require.NoError(t, err)
	assert.Len(t, stats, 3)

	kpis, err := f.svc.ListManagedKPIs(ctx, f.staff)
	require.NoError(t, err)
	assert.Empty(t, kpis)
}

func TestManagerDashboard_StaffPerformance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := models.Principal{ID: primitive.NewObjectID(), Role: models.RoleStaff, Organization: org, Active: true}

	full := f.seedKPI(t, models.FrequencyDaily, 10)
	third := f.seedKPI(t, models.FrequencyDaily, 3)
	idle := f.seedKPI(t, models.FrequencyDaily, 10)
	idle.Staff = other.ID
	f.repo.Put(idle)

	// someone else's KPI for the same staff member is not counted
	foreign := f.seedKPI(t, models.FrequencyDaily, 10)
	foreign.Manager = primitive.NewObjectID()
	f.repo.Put(foreign)

	_, err := f.svc.SubmitUpdate(ctx, f.staff, full.ID, models.UpdateRequest{Value: value(10)}, t0)
	require.NoError(t, err)
	_, err = f.svc.SubmitUpdate(ctx, f.staff, third.ID, models.UpdateRequest{Value: value(1)}, t0)
	require.NoError(t, err)

	dash, err := f.svc.ManagerDashboard(ctx, f.manager)
	require.NoError(t, err)
	require.Len(t, dash.StaffPerformance, 2)

	byStaff := map[primitive.ObjectID]models.StaffPerformance{}
	for _, perf := range dash.StaffPerformance {
		byStaff[perf.Staff] = perf
	}
	// (100 + 33) / 2 = 66.5 rounds up
	assert.Equal(t, models.StaffPerformance{Staff: f.staff.ID, TotalKPIs: 2, CompletedKPIs: 1, AvgProgress: 67}, byStaff[f.staff.ID])
	assert.Equal(t, models.StaffPerformance{Staff: other.ID, TotalKPIs: 1, CompletedKPIs: 0, AvgProgress: 0}, byStaff[other.ID])
}

func TestReadsDeriveStatusAtCurrentTime(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	kpi := f.seedKPI(t, models.FrequencyDaily, 100)
	_, err := f.svc.SubmitUpdate(ctx, f.staff, kpi.ID, models.UpdateRequest{Value: value(3)}, t0)
	require.NoError(t, err)

	// the deadline passes without another write
	stored := f.stored(t, kpi.ID)
	stored.EndDate = t0.Add(-time.Hour)
	f.repo.Put(stored)
	require.Equal(t, models.StatusInProgress, f.stored(t, kpi.ID).Status)

	got, err := f.svc.GetAssignedKPI(ctx, f.staff, kpi.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOverdue, got.Status)

	got, err = f.svc.GetManagedKPI(ctx, f.manager, kpi.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOverdue, got.Status)

	dash, err := f.svc.ManagerDashboard(ctx, f.manager)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCounts{Total: 1, Overdue: 1}, dash.Stats)
	require.Len(t, dash.KPIs, 1)
	assert.Equal(t, models.StatusOverdue, dash.KPIs[0].Status)

	dash, err = f.svc.StaffDashboard(ctx, f.staff)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCounts{Total: 1, Overdue: 1}, dash.Stats)

	stats, err := f.svc.PerformanceStats(ctx, f.manager)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, models.StatusOverdue, stats[0].Status)

	kpis, err := f.svc.ListManagedKPIs(ctx, f.manager)
	require.NoError(t, err)
	require.Len(t, kpis, 1)
	assert.Equal(t, models.StatusOverdue, kpis[0].Status)
}
