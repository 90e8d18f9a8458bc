package repository

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const EvidenceBucket = "evidence"

var ErrFileNotFound = errors.New("evidence file not found")

// EvidenceStore keeps uploaded evidence files apart from KPI documents.
type EvidenceStore interface {
	Upload(ctx context.Context, name string, data io.Reader, uploadedBy primitive.ObjectID, contentType string) (primitive.ObjectID, error)
	Open(ctx context.Context, fileID primitive.ObjectID) (io.ReadCloser, error)
	Delete(ctx context.Context, fileID primitive.ObjectID) error
}

type gridFSEvidenceStore struct {
	bucket *gridfs.Bucket
}

func NewEvidenceStore(db *mongo.Database) (EvidenceStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(EvidenceBucket))
	if err != nil {
		return nil, errors.Wrap(err, "create GridFS bucket")
	}

	return &gridFSEvidenceStore{bucket: bucket}, nil
}

func (s *gridFSEvidenceStore) Upload(ctx context.Context, name string, data io.Reader, uploadedBy primitive.ObjectID, contentType string) (primitive.ObjectID, error) {
	uploadOpts := options.GridFSUpload().SetMetadata(bson.M{
		"uploadedBy":  uploadedBy,
		"uploadedAt":  time.Now(),
		"contentType": contentType,
	})

	fileID, err := s.bucket.UploadFromStream(name, data, uploadOpts)
	if err != nil {
		return primitive.NilObjectID, errors.Wrap(err, "upload evidence to GridFS")
	}

	return fileID, nil
}

func (s *gridFSEvidenceStore) Open(ctx context.Context, fileID primitive.ObjectID) (io.ReadCloser, error) {
	stream, err := s.bucket.OpenDownloadStream(fileID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "open evidence from GridFS")
	}

	return stream, nil
}

func (s *gridFSEvidenceStore) Delete(ctx context.Context, fileID primitive.ObjectID) error {
	err := s.bucket.Delete(fileID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return ErrFileNotFound
	}
	return errors.Wrap(err, "delete evidence from GridFS")
}
