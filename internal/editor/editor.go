// internal/editor/editor.go
// Package editor implements the admin catalog workflow: drafting a product,
// attaching artwork and delivery files, and committing the result in a
// single write. There is one implementation for create and edit; the two
// differ only in how the draft is opened.
package editor

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novamarket/novamarket-go/internal/model"
	"github.com/novamarket/novamarket-go/internal/schema"
	"github.com/novamarket/novamarket-go/internal/storage"
)

// Phase tracks where a draft is in its lifecycle.
type Phase string

const (
	PhaseEditing Phase = "editing" // Open for changes
	PhaseSaving  Phase = "saving"  // Save in flight; a failed save returns to editing
	PhaseSaved   Phase = "saved"   // Committed
)

// Delivery modes for a draft.
const (
	ModeUpload = "upload" // Delivery bytes are embedded as a data URL
	ModeLink   = "link"   // Delivery is an external managed link
)

// ErrImageTooLarge is returned when an attachment exceeds the configured
// ceiling. The ceiling is checked before any encoding work happens.
type ErrImageTooLarge struct {
	Size  int64 // Attachment size in bytes
	Limit int64 // Configured ceiling in bytes
}

func (e *ErrImageTooLarge) Error() string {
	return fmt.Sprintf("attachment is %d bytes, limit is %d", e.Size, e.Limit)
}

// ValidationError is returned when a draft fails save validation. The draft
// stays in the editing phase and nothing is written.
type ValidationError struct {
	Reason string // Human-readable cause
}

func (e *ValidationError) Error() string {
	return "draft invalid: " + e.Reason
}

// Draft is the in-progress product an admin is working on.
type Draft struct {
	Phase        Phase         // Lifecycle phase
	Product      model.Product // The accumulated product fields
	DeliveryMode string        // upload or link
	IsNew        bool          // True when the draft was opened with OpenCreate
}

// Editor turns drafts into committed products.
type Editor struct {
	store     storage.Store
	validator *schema.Validator
	maxBytes  int64
	now       func() time.Time
}

// New creates an editor. maxBytes is the single attachment ceiling; there
// is no secondary limit anywhere else.
func New(store storage.Store, validator *schema.Validator, maxBytes int64) *Editor {
	return &Editor{
		store:     store,
		validator: validator,
		maxBytes:  maxBytes,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OpenCreate starts a fresh draft with the storefront defaults.
func (e *Editor) OpenCreate() *Draft {
	return &Draft{
		Phase: PhaseEditing,
		IsNew: true,
		Product: model.Product{
			Category: model.CategoryGraphics,
			IsFree:   false,
			Price:    0,
			Rating:   5.0,
		},
		DeliveryMode: ModeUpload,
	}
}

// OpenEdit starts a draft from an existing product.
func (e *Editor) OpenEdit(product model.Product) *Draft {
	mode := ModeUpload
	if product.FileType == "LINK" {
		mode = ModeLink
	}
	return &Draft{
		Phase:        PhaseEditing,
		Product:      product,
		DeliveryMode: mode,
	}
}

// AttachImage places artwork on the draft as a data URL. The size ceiling
// is enforced before encoding.
func (e *Editor) AttachImage(draft *Draft, filename string, data []byte) error {
	if int64(len(data)) > e.maxBytes {
		return &ErrImageTooLarge{Size: int64(len(data)), Limit: e.maxBytes}
	}
	draft.Product.ImageURL = dataURL(filename, data)
	return nil
}

// AttachDeliveryFile places the downloadable content on the draft as a data
// URL, deriving the format tag from the file name and a human-readable size
// from the byte length. The same ceiling applies as for images.
func (e *Editor) AttachDeliveryFile(draft *Draft, filename string, data []byte) error {
	if int64(len(data)) > e.maxBytes {
		return &ErrImageTooLarge{Size: int64(len(data)), Limit: e.maxBytes}
	}
	draft.Product.FileURL = dataURL(filename, data)
	draft.Product.FileType = FileTypeTag(filename)
	draft.Product.FileSize = HumanSize(int64(len(data)))
	draft.DeliveryMode = ModeUpload
	return nil
}

// SetDeliveryLink switches the draft to link delivery.
func (e *Editor) SetDeliveryLink(draft *Draft, url string) {
	draft.Product.FileURL = url
	draft.Product.FileType = "LINK"
	draft.Product.FileSize = "Managed Link"
	draft.DeliveryMode = ModeLink
}

// Save validates the draft and commits it with one insert-or-update write.
// A validation failure returns the draft to editing and writes nothing;
// validation never panics.
func (e *Editor) Save(ctx context.Context, draft *Draft) (*model.Product, error) {
	draft.Phase = PhaseSaving

	if err := e.validate(draft); err != nil {
		draft.Phase = PhaseEditing
		return nil, err
	}

	// Free products always persist with a zero price
	if draft.Product.IsFree {
		draft.Product.Price = 0
	}

	if draft.IsNew {
		draft.Product.ID = uuid.New().String()
		draft.Product.CreatedAt = e.now()
	}

	if err := e.store.SaveProduct(ctx, draft.Product); err != nil {
		draft.Phase = PhaseEditing
		return nil, err
	}

	draft.Phase = PhaseSaved
	product := draft.Product
	return &product, nil
}

// Delete removes a product permanently.
func (e *Editor) Delete(ctx context.Context, id string) error {
	return e.store.DeleteProduct(ctx, id)
}

// validate checks draft invariants and then runs the JSON schema.
func (e *Editor) validate(draft *Draft) error {
	if strings.TrimSpace(draft.Product.Title) == "" {
		return &ValidationError{Reason: "title is required"}
	}
	if !draft.Product.Category.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown category %q", draft.Product.Category)}
	}
	if strings.TrimSpace(draft.Product.FileURL) == "" {
		return &ValidationError{Reason: "a delivery file or link is required"}
	}
	if draft.Product.Price < 0 {
		return &ValidationError{Reason: "price must not be negative"}
	}

	payload := model.SaveProductRequest{
		ID:               draft.Product.ID,
		Title:            draft.Product.Title,
		Description:      draft.Product.Description,
		Price:            draft.Product.Price,
		Category:         draft.Product.Category,
		ImageURL:         draft.Product.ImageURL,
		AdditionalImages: draft.Product.AdditionalImages,
		FileURL:          draft.Product.FileURL,
		FileType:         draft.Product.FileType,
		FileSize:         draft.Product.FileSize,
		IsFree:           draft.Product.IsFree,
		BadgeText:        draft.Product.BadgeText,
		Modules:          draft.Product.Modules,
		Rating:           draft.Product.Rating,
	}
	if err := e.validator.Validate(schema.PayloadProductSave, payload); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

// FileTypeTag derives the short format tag shown to buyers from a file
// name: the extension uppercased, or DATA when there is none.
func FileTypeTag(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return "DATA"
	}
	return strings.ToUpper(ext)
}

// HumanSize renders a byte count the way the storefront displays it.
func HumanSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// dataURL base64-encodes bytes as a data URL, inferring the media type from
// the file extension.
func dataURL(filename string, data []byte) string {
	mediaType := mime.TypeByExtension(filepath.Ext(filename))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
