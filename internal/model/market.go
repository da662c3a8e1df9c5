// internal/model/market.go
// Package model defines the data structures used throughout the NovaMarket service.
// These structures represent the core domain objects for products, profiles, orders,
// and community product requests.
package model

import (
	"time"
)

// Category identifies the storefront section a product belongs to.
// The set is closed; unknown values are rejected at the validation boundary.
type Category string

const (
	CategoryEbooks      Category = "E-books"      // Digital books and guides
	CategoryCourses     Category = "Courses"      // Video courses with module/lesson trees
	CategoryVideoAssets Category = "Video Assets" // LUTs, overlays, stock footage
	CategoryGraphics    Category = "Graphics"     // Images, templates, design assets
	CategoryDevelopment Category = "Development"  // Source code and developer tooling
	CategoryOther       Category = "Other"        // Everything else
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryEbooks,
	CategoryCourses,
	CategoryVideoAssets,
	CategoryGraphics,
	CategoryDevelopment,
	CategoryOther,
}

// Valid reports whether c is a member of the known category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Role distinguishes regular buyers from storefront administrators.
type Role string

const (
	RoleUser  Role = "user"  // Regular buyer
	RoleAdmin Role = "admin" // Full catalog and request-board control
)

// RequestStatus tracks the lifecycle of a community product request.
// Transitions are forward-only: pending -> reviewed -> fulfilled.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"   // Submitted, not yet looked at
	RequestReviewed  RequestStatus = "reviewed"  // Acknowledged by an admin
	RequestFulfilled RequestStatus = "fulfilled" // A matching product was published
)

// OrderStatus tracks order settlement. Purchases are simulated and settle
// instantly, so completed is the common case.
type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed" // Payment settled, entitlement granted
	OrderPending   OrderStatus = "pending"   // Reserved for deferred settlement
)

// Lesson is a single playable unit inside a course module.
type Lesson struct {
	ID       string `json:"id" db:"id"`                 // Unique lesson identifier within the course
	Title    string `json:"title" db:"title"`           // Display title
	VideoURL string `json:"videoUrl,omitempty" db:"video_url"` // Playback source
	Duration string `json:"duration" db:"duration"`     // Human-readable length (e.g. "10:00")
	Content  string `json:"content,omitempty" db:"content"` // Optional written material
}

// CourseModule groups lessons inside a course product.
type CourseModule struct {
	ID      string   `json:"id" db:"id"`         // Unique module identifier within the course
	Title   string   `json:"title" db:"title"`   // Display title
	Lessons []Lesson `json:"lessons" db:"lessons"` // Ordered lesson list
}

// Product represents a catalog listing.
// This corresponds to the products table in storage.
type Product struct {
	ID               string         `json:"id" db:"id"`                             // Unique product identifier
	Title            string         `json:"title" db:"title"`                       // Display title
	Description      string         `json:"description" db:"description"`           // Marketing copy, searched together with the title
	Price            float64        `json:"price" db:"price"`                       // List price; forced to 0 when IsFree
	Category         Category       `json:"category" db:"category"`                 // Storefront section
	ImageURL         string         `json:"imageUrl" db:"image_url"`                // Primary artwork (https or data URL)
	AdditionalImages []string       `json:"additionalImages,omitempty" db:"additional_images"` // Extra gallery artwork
	FileURL          string         `json:"fileUrl" db:"file_url"`                  // Delivery reference (data URL, https link, or s3 key)
	FileType         string         `json:"fileType" db:"file_type"`                // Short format tag shown to buyers (e.g. "PDF", "LINK")
	FileSize         string         `json:"fileSize" db:"file_size"`                // Human-readable size (e.g. "4.2 GB", "Managed Link")
	IsFree           bool           `json:"isFree" db:"is_free"`                    // Free products are downloadable by any signed-in user
	BadgeText        string         `json:"badgeText,omitempty" db:"badge_text"`    // Optional promotional badge
	Modules          []CourseModule `json:"modules,omitempty" db:"modules"`         // Course curriculum; only set for playable products
	Rating           float64        `json:"rating" db:"rating"`                     // Editorial rating, 0-5
	SalesCount       int64          `json:"salesCount" db:"sales_count"`            // Purchases plus free acquisitions
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`              // Listing time, drives the newest sort
}

// Playable reports whether the product can be opened in the course player.
// Having at least one module is what qualifies a product; the category alone
// does not.
func (p Product) Playable() bool {
	return len(p.Modules) > 0
}

// Profile represents an authenticated storefront user.
// The subject comes from the identity provider; the rest lives in the
// profiles table.
type Profile struct {
	ID           string    `json:"id" db:"id"`                      // Identity-provider subject
	Email        string    `json:"email" db:"email"`                // Verified email from the token
	Name         string    `json:"name" db:"name"`                  // Display name
	Role         Role      `json:"role" db:"role"`                  // user or admin
	PurchasedIDs []string  `json:"purchasedIds" db:"purchased_ids"` // Product IDs the user is entitled to
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`       // First-seen time
}

// Order represents a settled purchase.
// Rows are append-only; the only permitted status change is pending -> completed.
// This corresponds to the orders table in storage.
type Order struct {
	ID        string      `json:"id" db:"id"`                // Unique order identifier
	UserID    string      `json:"userId" db:"user_id"`       // Buyer's profile ID
	ProductID string      `json:"productId" db:"product_id"` // Purchased product
	Amount    float64     `json:"amount" db:"amount"`        // Price captured at purchase time
	Status    OrderStatus `json:"status" db:"status"`        // completed or pending
	CreatedAt time.Time   `json:"date" db:"created_at"`      // Settlement time
}

// ProductRequest represents a community request for a product that does not
// exist yet. This corresponds to the requests table in shared storage, or an
// entry in the device-local board file.
type ProductRequest struct {
	ID          string        `json:"id" db:"id"`                   // ULID, lexicographically ordered by submission time
	Title       string        `json:"title" db:"title"`             // What is being asked for; never blank
	Description string        `json:"description" db:"description"` // Detailed requirements
	Category    string        `json:"category" db:"category"`       // Free-form category label
	Votes       int64         `json:"votes" db:"votes"`             // Upvote tally; uncapped and not deduplicated
	UserName    string        `json:"userName" db:"user_name"`      // Submitter label; "Guest User" when anonymous
	Status      RequestStatus `json:"status" db:"status"`           // pending, reviewed, or fulfilled
	CreatedAt   time.Time     `json:"date" db:"created_at"`         // Submission time
}

// CatalogQuery represents the filter and ordering parameters for a catalog
// listing. Zero values mean "no constraint".
type CatalogQuery struct {
	Category Category `json:"category"` // Exact category match when set
	Search   string   `json:"q"`        // Case-insensitive substring over title and description
	Tab      string   `json:"tab"`      // "", "free", or "paid"
	Sort     string   `json:"sort"`     // newest (default), popular, price_low, price_high
}

// CatalogResponse wraps a catalog listing. Degraded is set when the listing
// was served from the bundled seed because the store was unreachable.
type CatalogResponse struct {
	Data     []Product `json:"data"`               // Filtered, sorted products
	Degraded bool      `json:"degraded,omitempty"` // True when served from the seed fallback
}

// ProductResponse wraps a single product together with the action the caller
// may take on it.
type ProductResponse struct {
	Data   Product `json:"data"`   // The product
	Action string  `json:"action"` // "download" or "buy" for the requesting user
}

// CreateOrderRequest represents the request body for recording a purchase.
type CreateOrderRequest struct {
	ProductID string `json:"productId"` // Product to purchase
}

// OrderResponse wraps a single order.
type OrderResponse struct {
	Data Order `json:"data"` // The recorded order
}

// OrdersResponse wraps an order listing, newest first.
type OrdersResponse struct {
	Data []Order `json:"data"` // The caller's orders
}

// ProfileResponse wraps the caller's profile.
type ProfileResponse struct {
	Data Profile `json:"data"` // The authenticated profile
}

// SaveProductRequest represents the admin request body for creating or
// updating a product. The ID is empty on create.
type SaveProductRequest struct {
	ID               string         `json:"id,omitempty"`               // Existing product ID; empty for create
	Title            string         `json:"title"`                      // Display title
	Description      string         `json:"description"`                // Marketing copy
	Price            float64        `json:"price"`                      // Ignored when IsFree
	Category         Category       `json:"category"`                   // Storefront section
	ImageURL         string         `json:"imageUrl"`                   // Primary artwork
	AdditionalImages []string       `json:"additionalImages,omitempty"` // Extra gallery artwork
	FileURL          string         `json:"fileUrl"`                    // Delivery reference
	FileType         string         `json:"fileType,omitempty"`         // Format tag; derived when attaching a file
	FileSize         string         `json:"fileSize,omitempty"`         // Human-readable size; derived when attaching a file
	IsFree           bool           `json:"isFree"`                     // Free flag
	BadgeText        string         `json:"badgeText,omitempty"`        // Optional promotional badge
	Modules          []CourseModule `json:"modules,omitempty"`          // Course curriculum
	Rating           float64        `json:"rating"`                     // Editorial rating
}

// SubmitRequestRequest represents the request body for posting to the
// community request board.
type SubmitRequestRequest struct {
	Title       string `json:"title"`       // Required; blank titles are rejected
	Description string `json:"description"` // Detailed requirements
	Category    string `json:"category"`    // Free-form category label
}

// UpdateRequestStatusRequest represents the admin request body for advancing
// a board entry's status.
type UpdateRequestStatusRequest struct {
	Status RequestStatus `json:"status"` // Target status; must move forward
}

// RequestResponse wraps a single board entry.
type RequestResponse struct {
	Data ProductRequest `json:"data"` // The board entry
}

// RequestsResponse wraps a board listing, newest first.
type RequestsResponse struct {
	Data []ProductRequest `json:"data"` // Board entries
}

// CourseResponse wraps the course tree returned to entitled users together
// with the initial lesson selection. Current is null when the course has no
// lessons yet.
type CourseResponse struct {
	Data    Product `json:"data"`              // The course product with its module tree
	Current *Lesson `json:"current,omitempty"` // First lesson of the first module, or null
}

// DownloadResponse wraps a delivery reference handed to an entitled user.
type DownloadResponse struct {
	Data DownloadData `json:"data"` // Delivery details
}

// DownloadData contains the resolved delivery reference for a product.
type DownloadData struct {
	ProductID string    `json:"productId"`           // The product being delivered
	URL       string    `json:"url"`                 // Data URL, external link, or presigned URL
	FileType  string    `json:"fileType"`            // Format tag
	FileSize  string    `json:"fileSize"`            // Human-readable size
	ExpiresAt time.Time `json:"expiresAt,omitempty"` // Set when URL is presigned
}

// AdminStats summarizes storefront activity for the admin dashboard.
type AdminStats struct {
	Revenue      float64 `json:"revenue"`      // Sum of completed order amounts
	ProductCount int     `json:"productCount"` // Catalog size
	OrderCount   int     `json:"orderCount"`   // Total orders recorded
}

// AdminStatsResponse wraps the admin dashboard summary.
type AdminStatsResponse struct {
	Data AdminStats `json:"data"` // Aggregated storefront numbers
}

// AttachmentResponse wraps the result of encoding an uploaded delivery file
// or image into an inline reference.
type AttachmentResponse struct {
	Data AttachmentData `json:"data"` // Encoded attachment
}

// AttachmentData contains an encoded attachment ready to be placed on a
// product draft.
type AttachmentData struct {
	DataURL  string `json:"dataUrl"`  // base64 data URL of the uploaded bytes
	FileType string `json:"fileType"` // Format tag derived from the file name
	FileSize string `json:"fileSize"` // Human-readable size of the upload
}

// UploadInitRequest represents the request body for requesting a presigned
// upload slot for a delivery binary too large to inline.
type UploadInitRequest struct {
	Filename string `json:"filename"` // Original file name, used for the format tag
	Size     int64  `json:"size"`     // Size in bytes
}

// UploadInitResponse wraps the presigned upload details.
type UploadInitResponse struct {
	Data UploadInitData `json:"data"` // Upload slot
}

// UploadInitData contains the details needed to upload a delivery binary.
type UploadInitData struct {
	Key       string    `json:"key"`       // Object key to reference as s3://<key> on the product
	UploadURL string    `json:"uploadUrl"` // Presigned PUT URL
	ExpiresAt time.Time `json:"expiresAt"` // When the upload URL expires
}
