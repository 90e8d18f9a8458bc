package memorydb

import (
	"bytes"
	"context"
	"io"
	"sync"

	repository "kpitracker/repositories"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type storedFile struct {
	name        string
	contentType string
	data        []byte
}

type EvidenceStore struct {
	sync.Mutex
	files map[primitive.ObjectID]storedFile

	UploadErr error
	DeleteErr error
}

var _ repository.EvidenceStore = (*EvidenceStore)(nil) // interface compliance check

func NewEvidenceStore() *EvidenceStore {
	return &EvidenceStore{files: make(map[primitive.ObjectID]storedFile)}
}

func (s *EvidenceStore) Upload(ctx context.Context, name string, data io.Reader, uploadedBy primitive.ObjectID, contentType string) (primitive.ObjectID, error) {
	if s.UploadErr != nil {
		return primitive.NilObjectID, s.UploadErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return primitive.NilObjectID, err
	}

	s.Lock()
	defer s.Unlock()
	id := primitive.NewObjectID()
	s.files[id] = storedFile{name: name, contentType: contentType, data: b}
	return id, nil
}

func (s *EvidenceStore) Open(ctx context.Context, fileID primitive.ObjectID) (io.ReadCloser, error) {
	s.Lock()
	defer s.Unlock()

	f, ok := s.files[fileID]
	if !ok {
		return nil, repository.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (s *EvidenceStore) Delete(ctx context.Context, fileID primitive.ObjectID) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	s.Lock()
	defer s.Unlock()
	if _, ok := s.files[fileID]; !ok {
		return repository.ErrFileNotFound
	}
	delete(s.files, fileID)
	return nil
}

// Len reports how many files are stored.
func (s *EvidenceStore) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.files)
}
