package requests

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/novamarket/novamarket-go/internal/model"
	"github.com/novamarket/novamarket-go/internal/storage"
)

func newFileService(t *testing.T) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nova_requests.json")
	return NewService(NewFileStore(path, slog.New(slog.NewTextHandler(os.Stderr, nil)))), path
}

// TestSubmitDefaults verifies a fresh submission gets zero votes, pending
// status, and the anonymous submitter label.
func TestSubmitDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFileService(t)

	request, err := svc.Submit(ctx, "Cyberpunk Character Pack", "Rigged characters please", "Graphics", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if request.Votes != 0 {
		t.Errorf("Submit() votes = %d, want 0", request.Votes)
	}
	if request.Status != model.RequestPending {
		t.Errorf("Submit() status = %s, want pending", request.Status)
	}
	if request.UserName != "Guest User" {
		t.Errorf("Submit() userName = %q, want Guest User", request.UserName)
	}
	if request.ID == "" {
		t.Error("Submit() should assign an ID")
	}
}

// TestSubmitRejectsBlankTitle verifies nothing is persisted for a blank
// title.
func TestSubmitRejectsBlankTitle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFileService(t)

	if _, err := svc.Submit(ctx, "   ", "desc", "Graphics", ""); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("Submit() error = %v, want ErrEmptyTitle", err)
	}

	entries, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List() after rejected submit = %d entries, want 0", len(entries))
	}
}

// TestUpvoteAccumulates verifies N upvotes yield a tally of N with no cap
// or deduplication.
func TestUpvoteAccumulates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFileService(t)

	request, err := svc.Submit(ctx, "LUTs Pack Vol 2", "", "Video Assets", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.Upvote(ctx, request.ID); err != nil {
			t.Fatalf("Upvote() #%d error = %v", i+1, err)
		}
	}

	entries, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Votes != 5 {
		t.Errorf("List() votes = %v, want 5", entries)
	}
}

// TestSetStatusForwardOnly verifies the lifecycle cannot move backwards.
func TestSetStatusForwardOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFileService(t)

	request, err := svc.Submit(ctx, "React Course Sequel", "", "Courses", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if _, err := svc.SetStatus(ctx, request.ID, model.RequestFulfilled); err != nil {
		t.Fatalf("SetStatus(fulfilled) error = %v", err)
	}
	if _, err := svc.SetStatus(ctx, request.ID, model.RequestReviewed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetStatus(reviewed after fulfilled) error = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.SetStatus(ctx, request.ID, "archived"); err == nil {
		t.Error("SetStatus(archived) should reject an unknown status")
	}

	// Re-setting the current status is a no-op, not an error
	if _, err := svc.SetStatus(ctx, request.ID, model.RequestFulfilled); err != nil {
		t.Errorf("SetStatus(same status) error = %v, want nil", err)
	}
}

// TestRemove verifies admin deletion.
func TestRemove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFileService(t)

	request, err := svc.Submit(ctx, "Backgrounds Vol 2", "", "Graphics", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := svc.Remove(ctx, request.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := svc.Remove(ctx, request.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Remove() twice error = %v, want ErrNotFound", err)
	}
}

// TestFileStoreCorruptFile verifies a corrupt board file reads as empty
// instead of failing.
func TestFileStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nova_requests.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := NewFileStore(path, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	entries, err := store.ListRequests(ctx)
	if err != nil {
		t.Fatalf("ListRequests() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ListRequests() on corrupt file = %d entries, want 0", len(entries))
	}

	// The board recovers: new submissions persist over the corrupt content
	svc := NewService(store)
	if _, err := svc.Submit(ctx, "Fresh Start", "", "Other", ""); err != nil {
		t.Fatalf("Submit() after corruption error = %v", err)
	}
	entries, err = store.ListRequests(ctx)
	if err != nil {
		t.Fatalf("ListRequests() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("ListRequests() = %d entries, want 1", len(entries))
	}
}

// TestServiceOnSharedStore verifies the board runs unchanged on the shared
// storage backend.
func TestServiceOnSharedStore(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storage.NewMemory())

	request, err := svc.Submit(ctx, "Shared Board Entry", "", "Other", "alice")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if request.UserName != "alice" {
		t.Errorf("Submit() userName = %q, want alice", request.UserName)
	}
	if _, err := svc.Upvote(ctx, request.ID); err != nil {
		t.Fatalf("Upvote() error = %v", err)
	}
	entries, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Votes != 1 {
		t.Errorf("List() = %v, want one entry with one vote", entries)
	}
}
