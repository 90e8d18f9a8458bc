package repository

import (
	"context"
	"math"
	"time"

	"kpitracker/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const KPICollection = "kpis"

var (
	ErrNotFound        = errors.New("kpi not found")
	ErrVersionConflict = errors.New("kpi was modified concurrently")
)

type KPIRepository interface {
	Create(ctx context.Context, kpi *models.KPI) error
	// FindAssigned loads a KPI assigned to staffID inside organization.
	FindAssigned(ctx context.Context, id, staffID primitive.ObjectID, organization string) (*models.KPI, error)
	// FindManaged loads a KPI owned by managerID inside organization.
	FindManaged(ctx context.Context, id, managerID primitive.ObjectID, organization string) (*models.KPI, error)
	ListAssigned(ctx context.Context, staffID primitive.ObjectID, organization string) ([]models.KPI, error)
	ListManaged(ctx context.Context, managerID primitive.ObjectID, organization string, limit int64) ([]models.KPI, error)
	// CountManaged counts the manager's KPIs whose status derived at now is
	// status, all of them when status is empty.
	CountManaged(ctx context.Context, managerID primitive.ObjectID, organization string, status models.Status, now time.Time) (int64, error)
	// Save replaces the whole document if its stored version still equals
	// kpi.Version, then bumps kpi.Version. Otherwise ErrVersionConflict.
	Save(ctx context.Context, kpi *models.KPI) error
	// Delete removes a manager-owned KPI and returns what was removed.
	Delete(ctx context.Context, id, managerID primitive.ObjectID, organization string) (*models.KPI, error)
	PerformanceStats(ctx context.Context, managerID primitive.ObjectID, organization string, now time.Time) ([]models.PerformanceStat, error)
	// StaffPerformance summarises the manager's KPIs per assigned staff
	// member, ordered by staff id.
	StaffPerformance(ctx context.Context, managerID primitive.ObjectID, organization string) ([]models.StaffPerformance, error)
}

type kpiRepository struct {
	collection *mongo.Collection
}

func NewKPIRepository(db *mongo.Database) KPIRepository {
	return &kpiRepository{
		collection: db.Collection(KPICollection),
	}
}

func (r *kpiRepository) Create(ctx context.Context, kpi *models.KPI) error {
	kpi.ID = primitive.NewObjectID()

	_, err := r.collection.InsertOne(ctx, kpi)
	return errors.Wrap(err, "insert kpi")
}

func (r *kpiRepository) findOne(ctx context.Context, filter bson.M) (*models.KPI, error) {
	var kpi models.KPI
	err := r.collection.FindOne(ctx, filter).Decode(&kpi)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find kpi")
	}

	return &kpi, nil
}

func (r *kpiRepository) FindAssigned(ctx context.Context, id, staffID primitive.ObjectID, organization string) (*models.KPI, error) {
	return r.findOne(ctx, bson.M{"_id": id, "staff": staffID, "organization": organization})
}

func (r *kpiRepository) FindManaged(ctx context.Context, id, managerID primitive.ObjectID, organization string) (*models.KPI, error) {
	return r.findOne(ctx, bson.M{"_id": id, "manager": managerID, "organization": organization})
}

func (r *kpiRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.KPI, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find kpis")
	}
	defer cursor.Close(ctx)

	kpis := []models.KPI{}
	if err = cursor.All(ctx, &kpis); err != nil {
		return nil, errors.Wrap(err, "decode kpis")
	}

	return kpis, nil
}

func (r *kpiRepository) ListAssigned(ctx context.Context, staffID primitive.ObjectID, organization string) ([]models.KPI, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.list(ctx, bson.M{"staff": staffID, "organization": organization}, opts)
}

func (r *kpiRepository) ListManaged(ctx context.Context, managerID primitive.ObjectID, organization string, limit int64) ([]models.KPI, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.list(ctx, bson.M{"manager": managerID, "organization": organization}, opts)
}

// statusFilter matches KPIs whose status, derived at now the way
// models.KPI.UpdateStatus derives it, equals status.
func statusFilter(status models.Status, now time.Time) (bson.M, error) {
	if status == "" {
		return bson.M{}, nil
	}
	if !status.Valid() {
		return nil, errors.Errorf("unknown KPI status %q", status)
	}

	switch status {
	case models.StatusCompleted:
		return bson.M{"progress": bson.M{"$gte": 100}}, nil
	case models.StatusOverdue:
		return bson.M{"progress": bson.M{"$lt": 100}, "end_date": bson.M{"$lt": now}}, nil
	case models.StatusInProgress:
		return bson.M{"progress": bson.M{"$gt": 0, "$lt": 100}, "end_date": bson.M{"$gte": now}}, nil
	default:
		return bson.M{"progress": bson.M{"$lte": 0}, "end_date": bson.M{"$gte": now}}, nil
	}
}

func (r *kpiRepository) CountManaged(ctx context.Context, managerID primitive.ObjectID, organization string, status models.Status, now time.Time) (int64, error) {
	filter, err := statusFilter(status, now)
	if err != nil {
		return 0, err
	}
	filter["manager"] = managerID
	filter["organization"] = organization

	n, err := r.collection.CountDocuments(ctx, filter)
	return n, errors.Wrapf(err, "count kpis with status %q", status)
}

func (r *kpiRepository) Save(ctx context.Context, kpi *models.KPI) error {
	next := *kpi
	next.Version = kpi.Version + 1

	filter := bson.M{"_id": kpi.ID, "version": kpi.Version}
	result, err := r.collection.ReplaceOne(ctx, filter, &next)
	if err != nil {
		return errors.Wrapf(err, "replace kpi %s", kpi.ID.Hex())
	}

	// Either deleted or saved by someone else since it was read
	if result.MatchedCount == 0 {
		return ErrVersionConflict
	}

	kpi.Version = next.Version
	return nil
}

func (r *kpiRepository) Delete(ctx context.Context, id, managerID primitive.ObjectID, organization string) (*models.KPI, error) {
	var removed models.KPI
	filter := bson.M{"_id": id, "manager": managerID, "organization": organization}
	err := r.collection.FindOneAndDelete(ctx, filter).Decode(&removed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "delete kpi %s", id.Hex())
	}

	return &removed, nil
}

// derivedStatus is the aggregation form of models.KPI.UpdateStatus.
func derivedStatus(now time.Time) bson.M {
	return bson.M{"$switch": bson.M{
		"branches": bson.A{
			bson.M{"case": bson.M{"$gte": bson.A{"$progress", 100}}, "then": string(models.StatusCompleted)},
			bson.M{"case": bson.M{"$lt": bson.A{"$end_date", now}}, "then": string(models.StatusOverdue)},
			bson.M{"case": bson.M{"$gt": bson.A{"$progress", 0}}, "then": string(models.StatusInProgress)},
		},
		"default": string(models.StatusPending),
	}}
}

func performancePipeline(managerID primitive.ObjectID, organization string, now time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"manager": managerID, "organization": organization}}},

		bson.D{{Key: "$addFields", Value: bson.M{
			"days_until_due": bson.M{
				"$divide": bson.A{
					bson.M{"$subtract": bson.A{"$end_date", now}},
					int64(24 * time.Hour / time.Millisecond),
				},
			},
			"evidence_count": bson.M{
				"$cond": bson.M{
					"if":   bson.M{"$isArray": "$evidence"},
					"then": bson.M{"$size": "$evidence"},
					"else": 0,
				},
			},
		}}},

		bson.D{{Key: "$group", Value: bson.M{
			"_id":                derivedStatus(now),
			"count":              bson.M{"$sum": 1},
			"avg_progress":       bson.M{"$avg": "$progress"},
			"total_evidence":     bson.M{"$sum": "$evidence_count"},
			"avg_days_until_due": bson.M{"$avg": "$days_until_due"},
		}}},

		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
}

// PerformanceStats groups the manager's KPIs by their status at now.
func (r *kpiRepository) PerformanceStats(ctx context.Context, managerID primitive.ObjectID, organization string, now time.Time) ([]models.PerformanceStat, error) {
	cursor, err := r.collection.Aggregate(ctx, performancePipeline(managerID, organization, now))
	if err != nil {
		return nil, errors.Wrap(err, "aggregate performance stats")
	}
	defer cursor.Close(ctx)

	stats := []models.PerformanceStat{}
	if err = cursor.All(ctx, &stats); err != nil {
		return nil, errors.Wrap(err, "decode performance stats")
	}

	return stats, nil
}

func staffPerformancePipeline(managerID primitive.ObjectID, organization string) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"manager": managerID, "organization": organization}}},

		bson.D{{Key: "$group", Value: bson.M{
			"_id":        "$staff",
			"total_kpis": bson.M{"$sum": 1},
			"completed_kpis": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$gte": bson.A{"$progress", 100}}, 1, 0},
			}},
			"avg_progress": bson.M{"$avg": "$progress"},
		}}},

		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
}

type staffPerformanceRow struct {
	Staff         primitive.ObjectID `bson:"_id"`
	TotalKPIs     int64              `bson:"total_kpis"`
	CompletedKPIs int64              `bson:"completed_kpis"`
	AvgProgress   float64            `bson:"avg_progress"`
}

func (r *kpiRepository) StaffPerformance(ctx context.Context, managerID primitive.ObjectID, organization string) ([]models.StaffPerformance, error) {
	cursor, err := r.collection.Aggregate(ctx, staffPerformancePipeline(managerID, organization))
	if err != nil {
		return nil, errors.Wrap(err, "aggregate staff performance")
	}
	defer cursor.Close(ctx)

	var rows []staffPerformanceRow
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode staff performance")
	}

	// $round rounds half to even, so rounding happens here
	perf := make([]models.StaffPerformance, 0, len(rows))
	for _, row := range rows {
		perf = append(perf, models.StaffPerformance{
			Staff:         row.Staff,
			TotalKPIs:     row.TotalKPIs,
			CompletedKPIs: row.CompletedKPIs,
			AvgProgress:   int(math.Round(row.AvgProgress)),
		})
	}
	return perf, nil
}
