package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/novamarket/novamarket-go/internal/model"
	"github.com/novamarket/novamarket-go/internal/schema"
	"github.com/novamarket/novamarket-go/internal/storage"
)

func newEditor(t *testing.T) (*Editor, storage.Store) {
	t.Helper()
	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	store := storage.NewMemory()
	return New(store, validator, 10*1024*1024), store
}

// TestOpenCreateDefaults verifies the fresh-draft defaults.
func TestOpenCreateDefaults(t *testing.T) {
	e, _ := newEditor(t)
	draft := e.OpenCreate()

	if draft.Phase != PhaseEditing {
		t.Errorf("OpenCreate() phase = %s, want editing", draft.Phase)
	}
	if draft.Product.Category != model.CategoryGraphics {
		t.Errorf("OpenCreate() category = %s, want Graphics", draft.Product.Category)
	}
	if draft.Product.IsFree {
		t.Error("OpenCreate() isFree = true, want false")
	}
	if draft.Product.Price != 0 {
		t.Errorf("OpenCreate() price = %v, want 0", draft.Product.Price)
	}
	if draft.Product.Rating != 5.0 {
		t.Errorf("OpenCreate() rating = %v, want 5.0", draft.Product.Rating)
	}
}

// TestAttachImageCeiling verifies oversized artwork is rejected up front.
func TestAttachImageCeiling(t *testing.T) {
	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	e := New(storage.NewMemory(), validator, 16)
	draft := e.OpenCreate()

	if err := e.AttachImage(draft, "cover.png", make([]byte, 17)); err == nil {
		t.Fatal("AttachImage() over limit should fail")
	}
	var tooLarge *ErrImageTooLarge
	err = e.AttachImage(draft, "cover.png", make([]byte, 17))
	if !errors.As(err, &tooLarge) {
		t.Fatalf("AttachImage() error = %T, want ErrImageTooLarge", err)
	}
	if draft.Product.ImageURL != "" {
		t.Error("AttachImage() failed attach should not set the image")
	}

	if err := e.AttachImage(draft, "cover.png", make([]byte, 16)); err != nil {
		t.Fatalf("AttachImage() at limit error = %v", err)
	}
	if !strings.HasPrefix(draft.Product.ImageURL, "data:image/png;base64,") {
		t.Errorf("AttachImage() imageUrl = %q, want a png data URL", draft.Product.ImageURL)
	}
}

// TestAttachDeliveryFile verifies tag and size derivation.
func TestAttachDeliveryFile(t *testing.T) {
	e, _ := newEditor(t)
	draft := e.OpenCreate()

	if err := e.AttachDeliveryFile(draft, "pack.zip", make([]byte, 2*1024*1024)); err != nil {
		t.Fatalf("AttachDeliveryFile() error = %v", err)
	}
	if draft.Product.FileType != "ZIP" {
		t.Errorf("FileType = %q, want ZIP", draft.Product.FileType)
	}
	if draft.Product.FileSize != "2.00 MB" {
		t.Errorf("FileSize = %q, want 2.00 MB", draft.Product.FileSize)
	}
	if !strings.HasPrefix(draft.Product.FileURL, "data:") {
		t.Errorf("FileURL = %q, want a data URL", draft.Product.FileURL)
	}

	// No extension falls back to the DATA tag
	if err := e.AttachDeliveryFile(draft, "README", []byte("x")); err != nil {
		t.Fatalf("AttachDeliveryFile() error = %v", err)
	}
	if draft.Product.FileType != "DATA" {
		t.Errorf("FileType = %q, want DATA", draft.Product.FileType)
	}
}

// TestSetDeliveryLink verifies the link-mode markers.
func TestSetDeliveryLink(t *testing.T) {
	e, _ := newEditor(t)
	draft := e.OpenCreate()

	e.SetDeliveryLink(draft, "https://cdn.example.com/pack.zip")
	if draft.Product.FileType != "LINK" {
		t.Errorf("FileType = %q, want LINK", draft.Product.FileType)
	}
	if draft.Product.FileSize != "Managed Link" {
		t.Errorf("FileSize = %q, want Managed Link", draft.Product.FileSize)
	}
	if draft.DeliveryMode != ModeLink {
		t.Errorf("DeliveryMode = %q, want link", draft.DeliveryMode)
	}
}

// TestSaveValidationFailureWritesNothing verifies a bad draft stays in
// editing and leaves the store untouched.
func TestSaveValidationFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	e, store := newEditor(t)
	draft := e.OpenCreate()
	draft.Product.Title = "No Delivery File"
	// FileURL deliberately left empty

	_, err := e.Save(ctx, draft)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Save() error = %v, want ValidationError", err)
	}
	if draft.Phase != PhaseEditing {
		t.Errorf("Save() failed phase = %s, want editing", draft.Phase)
	}

	products, err := store.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if len(products) != 0 {
		t.Errorf("ListProducts() after failed save = %d, want 0", len(products))
	}
}

// TestSaveFreeForcesZeroPrice verifies flipping a priced product to free
// persists a zero price in the same write.
func TestSaveFreeForcesZeroPrice(t *testing.T) {
	ctx := context.Background()
	e, store := newEditor(t)

	draft := e.OpenCreate()
	draft.Product.Title = "UI Design Fundamentals"
	draft.Product.Price = 10
	e.SetDeliveryLink(draft, "https://cdn.example.com/book.pdf")

	saved, err := e.Save(ctx, draft)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	edit := e.OpenEdit(*saved)
	edit.Product.IsFree = true
	edit.Product.Price = 10

	updated, err := e.Save(ctx, edit)
	if err != nil {
		t.Fatalf("Save() update error = %v", err)
	}
	if updated.Price != 0 {
		t.Errorf("Save() free price = %v, want 0", updated.Price)
	}

	stored, err := store.GetProduct(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if !stored.IsFree || stored.Price != 0 {
		t.Errorf("stored product = free %v price %v, want free with 0", stored.IsFree, stored.Price)
	}

	products, err := store.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if len(products) != 1 {
		t.Errorf("ListProducts() = %d products, want 1 (update, not insert)", len(products))
	}
}

// TestSaveRejectsUnknownCategory verifies the schema gate.
func TestSaveRejectsUnknownCategory(t *testing.T) {
	ctx := context.Background()
	e, _ := newEditor(t)

	draft := e.OpenCreate()
	draft.Product.Title = "Mystery Item"
	draft.Product.Category = "Antiques"
	e.SetDeliveryLink(draft, "https://example.com")

	var validation *ValidationError
	if _, err := e.Save(ctx, draft); !errors.As(err, &validation) {
		t.Fatalf("Save() error = %v, want ValidationError", err)
	}
}

// TestOpenEditPreservesLinkMode verifies reopening a link-delivery product.
func TestOpenEditPreservesLinkMode(t *testing.T) {
	e, _ := newEditor(t)
	draft := e.OpenEdit(model.Product{FileType: "LINK", FileURL: "https://example.com"})
	if draft.DeliveryMode != ModeLink {
		t.Errorf("OpenEdit() deliveryMode = %q, want link", draft.DeliveryMode)
	}
	if draft.IsNew {
		t.Error("OpenEdit() isNew = true, want false")
	}
}

// TestHumanSize covers the display units.
func TestHumanSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{450 * 1024 * 1024, "450.00 MB"},
		{4509715660, "4.20 GB"},
	}
	for _, tc := range cases {
		if got := HumanSize(tc.bytes); got != tc.want {
			t.Errorf("HumanSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}
