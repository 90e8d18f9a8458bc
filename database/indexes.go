package database

import (
	"context"
	"time"

	repository "kpitracker/repositories"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// KPIIndexes lists the indexes the repository queries rely on.
func KPIIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// STAFF: FindAssigned, ListAssigned (sorted newest first)
		{
			Keys: bson.D{
				{Key: "staff", Value: 1},
				{Key: "organization", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_staff_organization_created_at"),
		},

		// MANAGER: FindManaged, ListManaged, CountManaged (status is derived
		// from progress and end_date), PerformanceStats, StaffPerformance
		{
			Keys: bson.D{
				{Key: "manager", Value: 1},
				{Key: "organization", Value: 1},
				{Key: "end_date", Value: 1},
			},
			Options: options.Index().SetName("idx_manager_organization_end_date"),
		},

		// SAVE: optimistic concurrency filter
		{
			Keys: bson.D{
				{Key: "_id", Value: 1},
				{Key: "version", Value: 1},
			},
			Options: options.Index().SetName("idx_id_version"),
		},

		// EVIDENCE: file_id lookups
		{
			Keys:    bson.D{{Key: "evidence.file_id", Value: 1}},
			Options: options.Index().SetName("idx_evidence_file_id"),
		},
	}
}

func CreateKPIIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	collection := db.Collection(repository.KPICollection)
	if _, err := collection.Indexes().CreateMany(ctx, KPIIndexes()); err != nil {
		return errors.Wrap(err, "failed to create KPI indexes")
	}
	return nil
}
