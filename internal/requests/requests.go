// internal/requests/requests.go
// Package requests implements the community product-request board: anyone
// can ask for a product that does not exist yet, anyone can upvote, and
// admins move entries through their lifecycle.
package requests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/novamarket/novamarket-go/internal/model"
)

// Store is the persistence port for the board. The shared storage.Store
// satisfies it; FileStore provides the device-local alternative.
type Store interface {
	ListRequests(ctx context.Context) ([]model.ProductRequest, error)
	GetRequest(ctx context.Context, id string) (*model.ProductRequest, error)
	CreateRequest(ctx context.Context, request model.ProductRequest) error
	UpdateRequest(ctx context.Context, request model.ProductRequest) error
	DeleteRequest(ctx context.Context, id string) error
}

// ErrInvalidTransition is returned when a status change moves backwards.
var ErrInvalidTransition = fmt.Errorf("request status may only move forward")

// ErrEmptyTitle is returned when a submission has a blank title.
var ErrEmptyTitle = fmt.Errorf("request title must not be blank")

// statusRank orders the lifecycle for the forward-only check.
var statusRank = map[model.RequestStatus]int{
	model.RequestPending:   0,
	model.RequestReviewed:  1,
	model.RequestFulfilled: 2,
}

// Service applies board semantics on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a board service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// List returns all board entries, newest first.
func (s *Service) List(ctx context.Context) ([]model.ProductRequest, error) {
	return s.store.ListRequests(ctx)
}

// Submit validates and persists a new board entry. A blank title is
// rejected before anything is written. The submitter label defaults to
// "Guest User" when empty.
func (s *Service) Submit(ctx context.Context, title, description, category, submitter string) (*model.ProductRequest, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	if submitter == "" {
		submitter = "Guest User"
	}

	request := model.ProductRequest{
		ID:          ulid.Make().String(),
		Title:       strings.TrimSpace(title),
		Description: description,
		Category:    category,
		Votes:       0,
		UserName:    submitter,
		Status:      model.RequestPending,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateRequest(ctx, request); err != nil {
		return nil, err
	}
	return &request, nil
}

// Upvote increments an entry's tally by one. There is no cap and no
// per-user deduplication; repeat votes from the same caller all count.
func (s *Service) Upvote(ctx context.Context, id string) (*model.ProductRequest, error) {
	request, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	request.Votes++
	if err := s.store.UpdateRequest(ctx, *request); err != nil {
		return nil, err
	}
	return request, nil
}

// SetStatus advances an entry's lifecycle. Transitions are forward-only:
// pending -> reviewed -> fulfilled. Setting the current status again is a
// no-op.
func (s *Service) SetStatus(ctx context.Context, id string, status model.RequestStatus) (*model.ProductRequest, error) {
	rank, known := statusRank[status]
	if !known {
		return nil, fmt.Errorf("unknown request status %q", status)
	}

	request, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if rank < statusRank[request.Status] {
		return nil, ErrInvalidTransition
	}
	request.Status = status
	if err := s.store.UpdateRequest(ctx, *request); err != nil {
		return nil, err
	}
	return request, nil
}

// Remove hard-deletes a board entry.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.store.DeleteRequest(ctx, id)
}
