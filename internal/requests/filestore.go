// internal/requests/filestore.go
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/novamarket/novamarket-go/internal/model"
	"github.com/novamarket/novamarket-go/internal/storage"
)

// FileStore persists the board to a single JSON file on the host. It is the
// device-local backend: each deployment sees only its own board. A missing
// file is an empty board; a corrupt file is treated as empty and logged,
// never fatal.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewFileStore creates a file-backed board at the given path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// load reads the board file. Callers must hold the mutex.
func (f *FileStore) load() []model.ProductRequest {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("request board file unreadable, starting empty", "path", f.path, "error", err)
		}
		return []model.ProductRequest{}
	}

	var entries []model.ProductRequest
	if err := json.Unmarshal(data, &entries); err != nil {
		f.logger.Warn("request board file corrupt, starting empty", "path", f.path, "error", err)
		return []model.ProductRequest{}
	}
	return entries
}

// save writes the board file. Callers must hold the mutex.
func (f *FileStore) save(entries []model.ProductRequest) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}

func (f *FileStore) ListRequests(ctx context.Context) ([]model.ProductRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.load()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (f *FileStore) GetRequest(ctx context.Context, id string) (*model.ProductRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range f.load() {
		if entry.ID == id {
			entryCopy := entry
			return &entryCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *FileStore) CreateRequest(ctx context.Context, request model.ProductRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.load()
	for _, entry := range entries {
		if entry.ID == request.ID {
			return storage.ErrConflict
		}
	}
	return f.save(append(entries, request))
}

func (f *FileStore) UpdateRequest(ctx context.Context, request model.ProductRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.load()
	for i, entry := range entries {
		if entry.ID == request.ID {
			entries[i] = request
			return f.save(entries)
		}
	}
	return storage.ErrNotFound
}

func (f *FileStore) DeleteRequest(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.load()
	for i, entry := range entries {
		if entry.ID == id {
			entries = append(entries[:i], entries[i+1:]...)
			return f.save(entries)
		}
	}
	return storage.ErrNotFound
}
