package engine

import (
	"context"
	"errors"
	"io"

	"github.com/bitswalk/molior/src/moliord/storage"
)

var errFakeStorageNotFound = errors.New("fake storage: not found")

// fakeStorage is an in-memory storage.Backend double that only tracks
// deletions, since the engine package's handlers only ever call Delete
// (rebuild's erase-buildout step and gitrepo's eraseTree).
type fakeStorage struct {
	deleted []string
}

func (f *fakeStorage) Upload(_ context.Context, _ string, _ io.Reader, _ int64, _ string) error {
	return nil
}

func (f *fakeStorage) Download(_ context.Context, _ string) (io.ReadCloser, *storage.ObjectInfo, error) {
	return nil, nil, errFakeStorageNotFound
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (f *fakeStorage) GetInfo(_ context.Context, _ string) (*storage.ObjectInfo, error) {
	return nil, errFakeStorageNotFound
}

func (f *fakeStorage) List(_ context.Context, _ string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (f *fakeStorage) Ping(_ context.Context) error {
	return nil
}

func (f *fakeStorage) Type() string {
	return "fake"
}

func (f *fakeStorage) Location() string {
	return "memory"
}
