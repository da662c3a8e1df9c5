// internal/server/mux.go
// Package server implements the HTTP handlers and routing for the NovaMarket
// service. It provides RESTful endpoints for the catalog, purchases,
// downloads, the course player, the community request board, and the admin
// dashboard, with JWT authentication, schema validation, and event publishing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/novamarket/novamarket-go/internal/cache"
	"github.com/novamarket/novamarket-go/internal/catalog"
	"github.com/novamarket/novamarket-go/internal/course"
	"github.com/novamarket/novamarket-go/internal/editor"
	"github.com/novamarket/novamarket-go/internal/entitlement"
	errordefs "github.com/novamarket/novamarket-go/internal/errors"
	"github.com/novamarket/novamarket-go/internal/event"
	"github.com/novamarket/novamarket-go/internal/jwks"
	"github.com/novamarket/novamarket-go/internal/media"
	"github.com/novamarket/novamarket-go/internal/metrics"
	"github.com/novamarket/novamarket-go/internal/model"
	"github.com/novamarket/novamarket-go/internal/requests"
	"github.com/novamarket/novamarket-go/internal/schema"
	"github.com/novamarket/novamarket-go/internal/storage"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// Context keys for storing request-scoped values
	ContextKeyProfile       ContextKey = "profile"       // Stores the authenticated profile
	ContextKeyCorrelationID ContextKey = "correlationId" // Unique ID for request tracking

	// presignExpiry bounds the lifetime of presigned upload and download URLs
	presignExpiry = 15 * time.Minute
)

// Mux handles HTTP requests for the NovaMarket service.
// It implements all the required endpoints and manages dependencies
// such as storage, event publishing, caching, and JWT validation.
type Mux struct {
	mux         *http.ServeMux     // HTTP request multiplexer
	s           storage.Store      // Storage interface for catalog, profiles, and orders
	p           event.Publisher    // Event publisher for streaming updates
	board       *requests.Service  // Community request board
	jwksClient  *jwks.Client       // JWKS client for JWT validation
	jwtIssuer   string             // Expected JWT issuer for validation
	jwtAudience string             // Expected JWT audience for validation
	validator   *schema.Validator  // Schema validator for write payloads
	ed          *editor.Editor     // Admin catalog editor
	cache       cache.ProductCache // Read cache for product lookups
	mediaClient *media.S3Client    // S3 client for large delivery binaries (can be nil)
	metrics     *metrics.Metrics   // Metrics for monitoring

	// Editor limits
	maxImageSize int64 // Maximum attachment size in bytes

	// CORS configuration
	corsAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// NewMux creates a new HTTP mux with all NovaMarket endpoints.
// It initializes all dependencies and registers the HTTP handlers.
// Parameters:
//   - s: Storage interface for data persistence
//   - p: Event publisher for streaming updates
//   - board: Community request board service
//   - jwksClient: JWKS client for JWT validation (nil derives one from the issuer)
//   - jwtIssuer: Expected JWT issuer for validation
//   - jwtAudience: Expected JWT audience for validation
//   - productCache: Read cache for product lookups (nil disables caching)
//   - mediaClient: S3 client for managed deliveries (can be nil)
//   - maxImageSize: Attachment size ceiling in bytes
//   - corsAllowedOrigins: Allowed origins for CORS
func NewMux(s storage.Store, p event.Publisher, board *requests.Service, jwksClient *jwks.Client, jwtIssuer, jwtAudience string, productCache cache.ProductCache, mediaClient *media.S3Client, maxImageSize int64, corsAllowedOrigins []string) *http.ServeMux {
	// Initialize schema validator
	validator, err := schema.NewValidator()
	if err != nil {
		slog.Error("failed to initialize schema validator", "error", err)
		os.Exit(1)
	}

	// Use provided JWKS client or create a new one
	if jwksClient == nil {
		jwksClient = jwks.NewClient(fmt.Sprintf("%s/.well-known/jwks.json", jwtIssuer))
	}

	if productCache == nil {
		productCache = cache.NewNoop()
	}

	m := &Mux{
		mux:                http.NewServeMux(),
		s:                  s,
		p:                  p,
		board:              board,
		jwksClient:         jwksClient,
		jwtIssuer:          jwtIssuer,
		jwtAudience:        jwtAudience,
		validator:          validator,
		ed:                 editor.New(s, validator, maxImageSize),
		cache:              productCache,
		mediaClient:        mediaClient,
		metrics:            metrics.NewMetrics(),
		maxImageSize:       maxImageSize,
		corsAllowedOrigins: corsAllowedOrigins,
	}

	// Register health endpoints
	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	// Storefront endpoints
	m.mux.HandleFunc("/v1/catalog", m.method("GET", m.withMiddleware(m.handleCatalog)))
	m.mux.HandleFunc("/v1/catalog/", m.method("GET", m.withMiddleware(m.handleGetProduct)))
	m.mux.HandleFunc("/v1/me", m.method("GET", m.withMiddleware(m.requireUser(m.handleMe))))
	m.mux.HandleFunc("/v1/me/orders", m.method("GET", m.withMiddleware(m.requireUser(m.handleMyOrders))))
	m.mux.HandleFunc("/v1/orders", m.method("POST", m.withMiddleware(m.requireUser(m.handleCreateOrder))))
	m.mux.HandleFunc("/v1/products/", m.method("GET", m.withMiddleware(m.requireUser(m.handleDownload))))
	m.mux.HandleFunc("/v1/courses/", m.method("GET", m.withMiddleware(m.requireUser(m.handleCourse))))

	// Community request board
	m.mux.HandleFunc("/v1/requests", m.withMiddleware(m.handleRequests))
	m.mux.HandleFunc("/v1/requests/", m.method("POST", m.withMiddleware(m.handleVote)))

	// Admin dashboard
	m.mux.HandleFunc("/v1/admin/products", m.method("POST", m.withMiddleware(m.requireAdmin(m.handleCreateProduct))))
	m.mux.HandleFunc("/v1/admin/products/", m.withMiddleware(m.requireAdmin(m.handleProductByID)))
	m.mux.HandleFunc("/v1/admin/stats", m.method("GET", m.withMiddleware(m.requireAdmin(m.handleAdminStats))))
	m.mux.HandleFunc("/v1/admin/requests/", m.withMiddleware(m.requireAdmin(m.handleAdminRequestByID)))
	m.mux.HandleFunc("/v1/admin/uploads", m.method("POST", m.withMiddleware(m.requireAdmin(m.handleUploadInit))))
	m.mux.HandleFunc("/v1/admin/attachments", m.method("POST", m.withMiddleware(m.requireAdmin(m.handleAttachment))))

	return m.mux
}

// method ensures the HTTP method matches the expected method
func (m *Mux) method(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && r.Method != "OPTIONS" {
			err := errordefs.New(errordefs.NOVA_BAD_REQUEST, "method not allowed", "")
			m.writeErrorDef(w, err)
			return
		}
		h(w, r)
	}
}

// withMiddleware applies common middleware to handlers
func (m *Mux) withMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Handle CORS preflight requests
		if r.Method == "OPTIONS" {
			if m.corsOriginAllowed(r) {
				w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id")
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		// Set CORS headers for regular requests
		if m.corsOriginAllowed(r) {
			w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
		}

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		// Call the handler, recording status for metrics
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		duration := time.Since(start)
		statusLabel := fmt.Sprintf("%d", rec.status)
		m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, r.URL.Path, statusLabel).Inc()
		m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, statusLabel).Observe(duration.Seconds())
		m.logRequest(r, rec.status, duration, correlationID, nil)
	}
}

// statusRecorder captures the response status for metrics and logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// corsOriginAllowed reports whether the request origin is in the allow list.
func (m *Mux) corsOriginAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(m.corsAllowedOrigins) == 0 {
		return false
	}
	for _, allowed := range m.corsAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// requireUser wraps a handler with JWT authentication. The authenticated
// profile is created from the token claims on first sight and stored in the
// request context.
func (m *Mux) requireUser(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, errDef := m.authenticate(r)
		if errDef != nil {
			errDef.CorrelationID = correlationID(r.Context())
			m.writeErrorDef(w, errDef)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyProfile, profile))
		h(w, r)
	}
}

// requireAdmin wraps a handler with JWT authentication and an admin role
// check.
func (m *Mux) requireAdmin(h http.HandlerFunc) http.HandlerFunc {
	return m.requireUser(func(w http.ResponseWriter, r *http.Request) {
		profile := profileFrom(r.Context())
		if profile == nil || profile.Role != model.RoleAdmin {
			err := errordefs.New(errordefs.NOVA_AUTHZ, "admin role required", correlationID(r.Context()))
			m.writeErrorDef(w, err)
			return
		}
		h(w, r)
	})
}

// authenticate validates the bearer token and resolves the caller's profile,
// creating it from the token claims on first sight.
func (m *Mux) authenticate(r *http.Request) (*model.Profile, *errordefs.Error) {
	claims, errDef := m.validateJWT(r)
	if errDef != nil {
		return nil, errDef
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errordefs.New(errordefs.NOVA_JWT_INVALID, "missing or invalid sub claim", "")
	}

	profile, err := m.s.GetProfile(r.Context(), sub)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, errordefs.New(errordefs.NOVA_INTERNAL, "failed to load profile", "")
	}

	// First sight of this subject: materialize a profile from the claims
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	role := model.RoleUser
	if claimRole, _ := claims["role"].(string); claimRole == string(model.RoleAdmin) {
		role = model.RoleAdmin
	}
	created := model.Profile{
		ID:        sub,
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.s.CreateProfile(r.Context(), created); err != nil && !errors.Is(err, storage.ErrConflict) {
		return nil, errordefs.New(errordefs.NOVA_INTERNAL, "failed to create profile", "")
	}
	// Re-read to pick up the canonical row in case of a concurrent create
	profile, err = m.s.GetProfile(r.Context(), sub)
	if err != nil {
		return nil, errordefs.New(errordefs.NOVA_INTERNAL, "failed to load profile", "")
	}
	return profile, nil
}

// optionalProfile resolves the caller's profile when an Authorization header
// is present. Anonymous requests return nil; a present but invalid token is
// still an error.
func (m *Mux) optionalProfile(r *http.Request) (*model.Profile, *errordefs.Error) {
	if r.Header.Get("Authorization") == "" {
		return nil, nil
	}
	return m.authenticate(r)
}

// validateJWT validates a bearer token and returns its claims
func (m *Mux) validateJWT(r *http.Request) (map[string]interface{}, *errordefs.Error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errordefs.New(errordefs.NOVA_AUTHN, "missing Authorization header", "")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, errordefs.New(errordefs.NOVA_AUTHN, "invalid Authorization header format", "")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	// Validate JWT using JWKS
	claims, err := m.jwksClient.ValidateJWT(r.Context(), tokenString, m.jwtIssuer, m.jwtAudience)
	if err != nil {
		// Map specific JWT validation errors to appropriate error codes
		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "expired"):
			return nil, errordefs.New(errordefs.NOVA_JWT_EXPIRED, "JWT token expired", "")
		case strings.Contains(errStr, "invalid issuer"):
			return nil, errordefs.New(errordefs.NOVA_JWT_INVALID, "invalid JWT issuer", "")
		case strings.Contains(errStr, "invalid audience"):
			return nil, errordefs.New(errordefs.NOVA_JWT_INVALID, "invalid JWT audience", "")
		case strings.Contains(errStr, "kid"):
			return nil, errordefs.New(errordefs.NOVA_JWT_MALFORMED, "missing or invalid kid in JWT header", "")
		case strings.Contains(errStr, "key"):
			return nil, errordefs.New(errordefs.NOVA_JWT_INVALID, "failed to get key for JWT validation", "")
		case strings.Contains(errStr, "signature"), strings.Contains(errStr, "verify"):
			return nil, errordefs.New(errordefs.NOVA_JWT_INVALID, "invalid JWT signature", "")
		default:
			return nil, errordefs.New(errordefs.NOVA_JWT_INVALID, fmt.Sprintf("failed to validate JWT: %v", err), "")
		}
	}

	return claims, nil
}

// correlationID extracts the correlation ID stored by the middleware.
func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyCorrelationID).(string)
	return id
}

// profileFrom extracts the authenticated profile stored by requireUser.
func profileFrom(ctx context.Context) *model.Profile {
	profile, _ := ctx.Value(ContextKeyProfile).(*model.Profile)
	return profile
}

// writeJSON writes a response body as-is. Used for responses that carry
// fields beyond the data envelope.
func (m *Mux) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeSuccess writes a successful response wrapped in the data envelope
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	m.writeJSON(w, statusCode, map[string]interface{}{"data": data})
}

// writeError writes an error response following the NovaMarket error taxonomy
func (m *Mux) writeError(w http.ResponseWriter, statusCode int, code, message, correlationID string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"error": map[string]interface{}{
			"code":          code,
			"message":       message,
			"correlationId": correlationID,
		},
	}

	if details != nil {
		response["error"].(map[string]interface{})["details"] = details
	}

	_ = json.NewEncoder(w).Encode(response)
}

// writeErrorDef writes an error response using the error definitions package
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	m.writeError(w, err.HTTPStatus, string(err.Code), err.Message, err.CorrelationID, err.Details)
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}

	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	if profile := profileFrom(r.Context()); profile != nil {
		attrs = append(attrs, slog.String("user_id", profile.ID))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		slog.LogAttrs(r.Context(), slog.LevelError, "request completed with error", attrs...)
	} else {
		slog.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles readiness health check requests
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// A not-found on a probe ID still proves the store is reachable
	_, err := m.s.GetProfile(ctx, "health-check")
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleCatalog handles GET /v1/catalog
func (m *Mux) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleCatalog")
	defer span.End()

	query := model.CatalogQuery{
		Category: model.Category(r.URL.Query().Get("category")),
		Search:   r.URL.Query().Get("q"),
		Tab:      r.URL.Query().Get("tab"),
		Sort:     r.URL.Query().Get("sort"),
	}
	span.SetAttributes(
		attribute.String("category", string(query.Category)),
		attribute.String("tab", query.Tab),
		attribute.String("sort", query.Sort),
		attribute.Bool("has_search", query.Search != ""),
	)

	products, err := m.s.ListProducts(ctx)
	degraded := false
	if err != nil {
		// Serve the bundled seed so the storefront stays browsable
		slog.Warn("catalog listing failed, serving seed", "error", err)
		span.SetStatus(codes.Error, "catalog listing degraded")
		products = catalog.Seed()
		degraded = true
	}

	products = catalog.Apply(products, query)
	m.writeJSON(w, http.StatusOK, model.CatalogResponse{Data: products, Degraded: degraded})
}

// handleGetProduct handles GET /v1/catalog/{id}. Authentication is optional;
// when present it determines the action the caller may take on the product.
func (m *Mux) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleGetProduct")
	defer span.End()

	id := strings.TrimPrefix(r.URL.Path, "/v1/catalog/")
	if id == "" || strings.Contains(id, "/") {
		err := errordefs.New(errordefs.NOVA_VALIDATION, "product id is required", correlationID(ctx))
		m.writeErrorDef(w, err)
		return
	}
	span.SetAttributes(attribute.String("product_id", id))

	user, errDef := m.optionalProfile(r)
	if errDef != nil {
		errDef.CorrelationID = correlationID(ctx)
		m.writeErrorDef(w, errDef)
		return
	}

	product, err := m.lookupProduct(ctx, id)
	if err != nil {
		m.writeProductError(w, ctx, err)
		return
	}

	m.writeJSON(w, http.StatusOK, model.ProductResponse{
		Data:   *product,
		Action: entitlement.Action(user, *product),
	})
}

// lookupProduct reads a product through the cache, falling back to storage
// on a miss and populating the cache on the way out.
func (m *Mux) lookupProduct(ctx context.Context, id string) (*model.Product, error) {
	if product, ok := m.cache.GetProduct(ctx, id); ok {
		m.metrics.CacheRequestTotal.WithLabelValues("hit").Inc()
		return product, nil
	}
	m.metrics.CacheRequestTotal.WithLabelValues("miss").Inc()

	product, err := m.s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	m.cache.SetProduct(ctx, *product)
	return product, nil
}

// writeProductError maps storage errors from product lookups.
func (m *Mux) writeProductError(w http.ResponseWriter, ctx context.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_NOT_FOUND, "product not found", correlationID(ctx)))
		return
	}
	m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to load product", correlationID(ctx)))
}

// handleMe handles GET /v1/me
func (m *Mux) handleMe(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	m.writeSuccess(w, http.StatusOK, profile)
}

// handleMyOrders handles GET /v1/me/orders
func (m *Mux) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := profileFrom(ctx)

	orders, err := m.s.ListOrders(ctx, profile.ID)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to list orders", correlationID(ctx)))
		return
	}
	m.writeSuccess(w, http.StatusOK, orders)
}

// handleCreateOrder handles POST /v1/orders. The order row, the entitlement
// grant, and the sales-count bump are committed atomically by the store.
func (m *Mux) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleCreateOrder")
	defer span.End()
	defer r.Body.Close()

	profile := profileFrom(ctx)

	var req model.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}
	if req.ProductID == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "productId is required", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.String("product_id", req.ProductID))

	product, err := m.s.GetProduct(ctx, req.ProductID)
	if err != nil {
		m.metrics.PurchaseTotal.WithLabelValues("rejected").Inc()
		m.writeProductError(w, ctx, err)
		return
	}

	order, err := m.s.Purchase(ctx, profile.ID, *product)
	if err != nil {
		span.SetStatus(codes.Error, "purchase failed")
		switch {
		case errors.Is(err, storage.ErrAlreadyOwned):
			m.metrics.PurchaseTotal.WithLabelValues("duplicate").Inc()
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_CONFLICT, "product already owned", correlationID(ctx)))
		case errors.Is(err, storage.ErrNotFound):
			m.metrics.PurchaseTotal.WithLabelValues("rejected").Inc()
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_NOT_FOUND, "profile not found", correlationID(ctx)))
		default:
			m.metrics.PurchaseTotal.WithLabelValues("error").Inc()
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to record purchase", correlationID(ctx)))
		}
		return
	}

	m.metrics.PurchaseTotal.WithLabelValues("completed").Inc()
	m.metrics.PurchaseAmount.Observe(order.Amount)

	// The sales count changed, so any cached copy is stale
	m.cache.InvalidateProduct(ctx, product.ID)

	if err := m.p.PublishOrderCompleted(ctx, *order); err != nil {
		slog.Warn("failed to publish order completed event", "error", err)
		m.metrics.EventPublishTotal.WithLabelValues("order.completed", "error").Inc()
	} else {
		m.metrics.EventPublishTotal.WithLabelValues("order.completed", "ok").Inc()
	}

	m.writeSuccess(w, http.StatusOK, order)
}

// handleDownload handles GET /v1/products/{id}/download. Only entitled users
// get a delivery reference; bucket-hosted deliveries come back as time-limited
// presigned URLs.
func (m *Mux) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleDownload")
	defer span.End()

	path := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	id := strings.TrimSuffix(path, "/download")
	if id == "" || id == path || strings.Contains(id, "/") {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "product id is required", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.String("product_id", id))

	profile := profileFrom(ctx)

	product, err := m.lookupProduct(ctx, id)
	if err != nil {
		m.writeProductError(w, ctx, err)
		return
	}

	if !entitlement.HasAccess(profile, *product) {
		span.SetStatus(codes.Error, "not entitled")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_AUTHZ, "purchase required", correlationID(ctx)))
		return
	}

	data := model.DownloadData{
		ProductID: product.ID,
		URL:       product.FileURL,
		FileType:  product.FileType,
		FileSize:  product.FileSize,
	}
	if media.IsManaged(product.FileURL) {
		if m.mediaClient == nil {
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_UNAVAILABLE, "managed delivery is not configured", correlationID(ctx)))
			return
		}
		url, err := m.mediaClient.GenerateDownloadURL(ctx, media.Key(product.FileURL), presignExpiry)
		if err != nil {
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to generate download URL", correlationID(ctx)))
			return
		}
		data.URL = url
		data.ExpiresAt = time.Now().UTC().Add(presignExpiry)
	}

	m.writeSuccess(w, http.StatusOK, data)
}

// handleCourse handles GET /v1/courses/{id}. The course tree is only served
// to entitled users; the response carries the initial lesson selection.
func (m *Mux) handleCourse(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleCourse")
	defer span.End()

	id := strings.TrimPrefix(r.URL.Path, "/v1/courses/")
	if id == "" || strings.Contains(id, "/") {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "course id is required", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.String("product_id", id))

	profile := profileFrom(ctx)

	product, err := m.lookupProduct(ctx, id)
	if err != nil {
		m.writeProductError(w, ctx, err)
		return
	}

	if !entitlement.HasAccess(profile, *product) {
		span.SetStatus(codes.Error, "not entitled")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_AUTHZ, "purchase required", correlationID(ctx)))
		return
	}

	if !product.Playable() {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "product has no course content", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, model.CourseResponse{
		Data:    *product,
		Current: course.NewNavigator(*product).Current(),
	})
}

// handleRequests dispatches GET and POST on /v1/requests. The board is open:
// listing and submitting require no authentication.
func (m *Mux) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		m.handleListRequests(w, r)
	case "POST":
		m.handleSubmitRequest(w, r)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_BAD_REQUEST, "method not allowed", ""))
	}
}

// handleListRequests handles GET /v1/requests
func (m *Mux) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := m.board.List(ctx)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to list requests", correlationID(ctx)))
		return
	}
	m.writeSuccess(w, http.StatusOK, entries)
}

// handleSubmitRequest handles POST /v1/requests. A signed-in caller's name
// becomes the submitter label; anonymous submissions are attributed to
// "Guest User" by the board.
func (m *Mux) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleSubmitRequest")
	defer span.End()
	defer r.Body.Close()

	var req model.SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	if err := m.validator.Validate(schema.PayloadRequestSubmit, req); err != nil {
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.NOVA_SCHEMA_REJECT, "schema validation failed", correlationID(ctx), err.Error()))
		return
	}

	submitter := ""
	user, errDef := m.optionalProfile(r)
	if errDef != nil {
		errDef.CorrelationID = correlationID(ctx)
		m.writeErrorDef(w, errDef)
		return
	}
	if user != nil {
		submitter = user.Name
	}

	entry, err := m.board.Submit(ctx, req.Title, req.Description, req.Category, submitter)
	if err != nil {
		if errors.Is(err, requests.ErrEmptyTitle) {
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "request title must not be blank", correlationID(ctx)))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to submit request", correlationID(ctx)))
		return
	}

	if err := m.p.PublishRequestSubmitted(ctx, *entry); err != nil {
		slog.Warn("failed to publish request submitted event", "error", err)
		m.metrics.EventPublishTotal.WithLabelValues("request.submitted", "error").Inc()
	} else {
		m.metrics.EventPublishTotal.WithLabelValues("request.submitted", "ok").Inc()
	}

	m.writeSuccess(w, http.StatusOK, entry)
}

// handleVote handles POST /v1/requests/{id}/vote. Votes are uncapped and not
// deduplicated.
func (m *Mux) handleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := strings.TrimPrefix(r.URL.Path, "/v1/requests/")
	id := strings.TrimSuffix(path, "/vote")
	if id == "" || id == path || strings.Contains(id, "/") {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "request id is required", correlationID(ctx)))
		return
	}

	entry, err := m.board.Upvote(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_NOT_FOUND, "request not found", correlationID(ctx)))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to record vote", correlationID(ctx)))
		return
	}

	m.writeSuccess(w, http.StatusOK, entry)
}

// handleCreateProduct handles POST /v1/admin/products
func (m *Mux) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleCreateProduct")
	defer span.End()
	defer r.Body.Close()

	var req model.SaveProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	draft := m.ed.OpenCreate()
	applyDraft(draft, req)
	m.saveDraft(w, ctx, span, draft)
}

// handleProductByID dispatches PUT and DELETE on /v1/admin/products/{id}
func (m *Mux) handleProductByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := strings.TrimPrefix(r.URL.Path, "/v1/admin/products/")
	if id == "" || strings.Contains(id, "/") {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "product id is required", correlationID(ctx)))
		return
	}

	switch r.Method {
	case "PUT":
		m.handleUpdateProduct(w, r, id)
	case "DELETE":
		m.handleDeleteProduct(w, r, id)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_BAD_REQUEST, "method not allowed", correlationID(ctx)))
	}
}

// handleUpdateProduct handles PUT /v1/admin/products/{id}
func (m *Mux) handleUpdateProduct(w http.ResponseWriter, r *http.Request, id string) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleUpdateProduct")
	defer span.End()
	defer r.Body.Close()

	span.SetAttributes(attribute.String("product_id", id))

	var req model.SaveProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	existing, err := m.s.GetProduct(ctx, id)
	if err != nil {
		m.writeProductError(w, ctx, err)
		return
	}

	draft := m.ed.OpenEdit(*existing)
	applyDraft(draft, req)
	draft.Product.ID = id
	m.saveDraft(w, ctx, span, draft)
}

// applyDraft copies the request fields onto the draft product.
func applyDraft(draft *editor.Draft, req model.SaveProductRequest) {
	draft.Product.Title = req.Title
	draft.Product.Description = req.Description
	draft.Product.Price = req.Price
	draft.Product.Category = req.Category
	draft.Product.ImageURL = req.ImageURL
	draft.Product.AdditionalImages = req.AdditionalImages
	draft.Product.IsFree = req.IsFree
	draft.Product.BadgeText = req.BadgeText
	draft.Product.Modules = req.Modules
	draft.Product.Rating = req.Rating
	if req.FileType == "LINK" {
		draft.Product.FileURL = req.FileURL
		draft.Product.FileType = "LINK"
		draft.Product.FileSize = "Managed Link"
		draft.DeliveryMode = editor.ModeLink
		return
	}
	draft.Product.FileURL = req.FileURL
	if req.FileType != "" {
		draft.Product.FileType = req.FileType
	}
	if req.FileSize != "" {
		draft.Product.FileSize = req.FileSize
	}
}

// saveDraft commits a draft and writes the outcome. Shared by create and
// update.
func (m *Mux) saveDraft(w http.ResponseWriter, ctx context.Context, span interface{ SetStatus(codes.Code, string) }, draft *editor.Draft) {
	product, err := m.ed.Save(ctx, draft)
	if err != nil {
		span.SetStatus(codes.Error, "save failed")
		var validationErr *editor.ValidationError
		switch {
		case errors.As(err, &validationErr):
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, validationErr.Reason, correlationID(ctx)))
		case errors.Is(err, storage.ErrPermission):
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_PERMISSION, "storage policy rejected the write; check the service role grants", correlationID(ctx)))
		default:
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to save product", correlationID(ctx)))
		}
		return
	}

	m.cache.InvalidateProduct(ctx, product.ID)

	if err := m.p.PublishProductSaved(ctx, *product); err != nil {
		slog.Warn("failed to publish product saved event", "error", err)
		m.metrics.EventPublishTotal.WithLabelValues("product.saved", "error").Inc()
	} else {
		m.metrics.EventPublishTotal.WithLabelValues("product.saved", "ok").Inc()
	}

	m.writeSuccess(w, http.StatusOK, product)
}

// handleDeleteProduct handles DELETE /v1/admin/products/{id}
func (m *Mux) handleDeleteProduct(w http.ResponseWriter, r *http.Request, id string) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleDeleteProduct")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", id))

	if err := m.ed.Delete(ctx, id); err != nil {
		span.SetStatus(codes.Error, "delete failed")
		switch {
		case errors.Is(err, storage.ErrNotFound):
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_NOT_FOUND, "product not found", correlationID(ctx)))
		case errors.Is(err, storage.ErrPermission):
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_PERMISSION, "storage policy rejected the delete; check the service role grants", correlationID(ctx)))
		default:
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to delete product", correlationID(ctx)))
		}
		return
	}

	m.cache.InvalidateProduct(ctx, id)

	if err := m.p.PublishProductDeleted(ctx, id); err != nil {
		slog.Warn("failed to publish product deleted event", "error", err)
		m.metrics.EventPublishTotal.WithLabelValues("product.deleted", "error").Inc()
	} else {
		m.metrics.EventPublishTotal.WithLabelValues("product.deleted", "ok").Inc()
	}

	m.writeSuccess(w, http.StatusOK, map[string]string{"id": id})
}

// handleAdminStats handles GET /v1/admin/stats
func (m *Mux) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleAdminStats")
	defer span.End()

	products, err := m.s.ListProducts(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list products")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to list products", correlationID(ctx)))
		return
	}

	count, revenue, err := m.s.CountOrders(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to count orders")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to count orders", correlationID(ctx)))
		return
	}

	m.writeSuccess(w, http.StatusOK, model.AdminStats{
		Revenue:      revenue,
		ProductCount: len(products),
		OrderCount:   count,
	})
}

// handleAdminRequestByID dispatches PATCH and DELETE on /v1/admin/requests/{id}
func (m *Mux) handleAdminRequestByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := strings.TrimPrefix(r.URL.Path, "/v1/admin/requests/")
	if id == "" || strings.Contains(id, "/") {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "request id is required", correlationID(ctx)))
		return
	}

	switch r.Method {
	case "PATCH":
		m.handleUpdateRequestStatus(w, r, id)
	case "DELETE":
		m.handleDeleteRequest(w, r, id)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_BAD_REQUEST, "method not allowed", correlationID(ctx)))
	}
}

// handleUpdateRequestStatus handles PATCH /v1/admin/requests/{id}. Status
// transitions are forward-only.
func (m *Mux) handleUpdateRequestStatus(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	defer r.Body.Close()

	var req model.UpdateRequestStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	entry, err := m.board.SetStatus(ctx, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_NOT_FOUND, "request not found", correlationID(ctx)))
		case errors.Is(err, requests.ErrInvalidTransition):
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "request status may only move forward", correlationID(ctx)))
		default:
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, err.Error(), correlationID(ctx)))
		}
		return
	}

	m.writeSuccess(w, http.StatusOK, entry)
}

// handleDeleteRequest handles DELETE /v1/admin/requests/{id}
func (m *Mux) handleDeleteRequest(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	if err := m.board.Remove(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_NOT_FOUND, "request not found", correlationID(ctx)))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to delete request", correlationID(ctx)))
		return
	}

	m.writeSuccess(w, http.StatusOK, map[string]string{"id": id})
}

// handleUploadInit handles POST /v1/admin/uploads. It hands out a presigned
// PUT slot for delivery binaries too large to inline as data URLs.
func (m *Mux) handleUploadInit(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleUploadInit")
	defer span.End()
	defer r.Body.Close()

	var req model.UploadInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	if req.Filename == "" || req.Size <= 0 {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "filename and size are required", correlationID(ctx)))
		return
	}
	span.SetAttributes(
		attribute.String("filename", req.Filename),
		attribute.Int64("size", req.Size),
	)

	if m.mediaClient == nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_UNAVAILABLE, "managed uploads are not configured", correlationID(ctx)))
		return
	}

	key := fmt.Sprintf("deliveries/%s/%s", uuid.New().String(), req.Filename)
	uploadURL, err := m.mediaClient.GenerateUploadURL(ctx, key, presignExpiry)
	if err != nil {
		span.SetStatus(codes.Error, "presign failed")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to generate upload URL", correlationID(ctx)))
		return
	}

	m.writeSuccess(w, http.StatusOK, model.UploadInitData{
		Key:       key,
		UploadURL: uploadURL,
		ExpiresAt: time.Now().UTC().Add(presignExpiry),
	})
}

// handleAttachment handles POST /v1/admin/attachments. It encodes an
// uploaded file as an inline data URL for the product editor, enforcing the
// attachment size ceiling before any encoding work happens.
func (m *Mux) handleAttachment(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("novamarket").Start(r.Context(), "handleAttachment")
	defer span.End()
	defer r.Body.Close()

	if err := r.ParseMultipartForm(m.maxImageSize + 4096); err != nil {
		span.SetStatus(codes.Error, "invalid multipart form")
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid multipart form", correlationID(ctx)))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "file field is required", correlationID(ctx)))
		return
	}
	defer file.Close()

	if header.Size > m.maxImageSize {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_MEDIA_SIZE, fmt.Sprintf("attachment exceeds limit of %d bytes", m.maxImageSize), correlationID(ctx)))
		return
	}
	span.SetAttributes(
		attribute.String("filename", header.Filename),
		attribute.Int64("size", header.Size),
	)

	data, err := io.ReadAll(io.LimitReader(file, m.maxImageSize+1))
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to read attachment", correlationID(ctx)))
		return
	}

	draft := m.ed.OpenCreate()
	if err := m.ed.AttachDeliveryFile(draft, header.Filename, data); err != nil {
		var tooLarge *editor.ErrImageTooLarge
		if errors.As(err, &tooLarge) {
			m.writeErrorDef(w, errordefs.New(errordefs.NOVA_MEDIA_SIZE, fmt.Sprintf("attachment is %d bytes, limit is %d", tooLarge.Size, tooLarge.Limit), correlationID(ctx)))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to encode attachment", correlationID(ctx)))
		return
	}

	m.writeSuccess(w, http.StatusOK, model.AttachmentData{
		DataURL:  draft.Product.FileURL,
		FileType: draft.Product.FileType,
		FileSize: draft.Product.FileSize,
	})
}
