// Package conformance provides a test harness for verifying NovaMarket
// implementation compliance.
package conformance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/novamarket/novamarket-go/internal/cache"
	"github.com/novamarket/novamarket-go/internal/event"
	"github.com/novamarket/novamarket-go/internal/jwks"
	"github.com/novamarket/novamarket-go/internal/model"
	"github.com/novamarket/novamarket-go/internal/requests"
	"github.com/novamarket/novamarket-go/internal/schema"
	"github.com/novamarket/novamarket-go/internal/server"
	"github.com/novamarket/novamarket-go/internal/storage"
)

// Harness provides a test harness for NovaMarket conformance testing.
type Harness struct {
	server *httptest.Server
	store  storage.Store
	pub    event.Publisher

	issuer   string
	audience string
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// UsePostgres determines whether to use PostgreSQL or in-memory storage
	UsePostgres bool

	// UseNATS determines whether to use NATS or no-op event publisher
	UseNATS bool

	// JWTIssuer is the expected JWT issuer
	JWTIssuer string

	// JWTAudience is the expected JWT audience
	JWTAudience string

	// MaxImageSize is the attachment size ceiling in bytes
	MaxImageSize int64
}

// NewHarness creates a new conformance test harness.
func NewHarness(cfg Config) (*Harness, error) {
	// Both flags fall back to the in-process implementations so the suite
	// runs without external services
	store := storage.NewMemory()
	pub := event.NewNoop()

	// Initialize schema validator
	_, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
	}

	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 10 * 1024 * 1024
	}

	board := requests.NewService(store)
	jwksClient := jwks.NewTestClient()

	// Create HTTP mux with all handlers and middleware
	mux := server.NewMux(store, pub, board, jwksClient, cfg.JWTIssuer, cfg.JWTAudience, cache.NewNoop(), nil, cfg.MaxImageSize, nil)

	// Create test server
	ts := httptest.NewServer(mux)

	return &Harness{
		server:   ts,
		store:    store,
		pub:      pub,
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
	}, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	h.pub.Close()
}

// Token builds a bearer token the harness's JWKS client accepts.
func (h *Harness) Token(t *testing.T, sub, name, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  sub,
		"name": name,
		"iss":  h.issuer,
		"aud":  h.audience,
	}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("conformance"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

// do issues a request against the harness server.
func (h *Harness) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.URL()+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp, payload
}

// data unmarshals the data envelope of a response body into v.
func data(t *testing.T, payload []byte, v interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v (body %s)", err, payload)
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v (body %s)", err, payload)
	}
}

// RunConformanceTests runs all conformance tests against the NovaMarket
// implementation.
func (h *Harness) RunConformanceTests(t *testing.T) {
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	t.Run("StorefrontFlow", h.testStorefrontFlow)
	t.Run("RequestBoard", h.testRequestBoard)
	t.Run("ErrorTaxonomy", h.testErrorTaxonomy)
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, endpoint := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(h.URL() + endpoint)
		if err != nil {
			t.Fatalf("failed to GET %s: %v", endpoint, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", endpoint, resp.StatusCode)
		}
	}
}

// testStorefrontFlow walks the full buyer journey: an admin publishes a
// product, a buyer finds it in the catalog, purchases it, and downloads it.
func (h *Harness) testStorefrontFlow(t *testing.T) {
	admin := h.Token(t, "conf-admin", "Conformance Admin", "admin")
	buyer := h.Token(t, "conf-buyer", "Conformance Buyer", "")

	// Admin publishes a product
	body := `{"title":"Conformance Pack","description":"fixture","price":12,"category":"Graphics","fileUrl":"data:application/zip;base64,AAAA","fileType":"ZIP","rating":5}`
	resp, payload := h.do(t, "POST", "/v1/admin/products", admin, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("product create failed: %d %s", resp.StatusCode, payload)
	}
	var product model.Product
	data(t, payload, &product)

	// The product is browsable in the catalog
	resp, payload = h.do(t, "GET", "/v1/catalog?category=Graphics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog failed: %d", resp.StatusCode)
	}
	var listing model.CatalogResponse
	if err := json.Unmarshal(payload, &listing); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, p := range listing.Data {
		if p.ID == product.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("published product %s missing from catalog", product.ID)
	}

	// The download is withheld before purchase
	resp, _ = h.do(t, "GET", "/v1/products/"+product.ID+"/download", buyer, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 before purchase, got %d", resp.StatusCode)
	}

	// The purchase settles and grants the entitlement
	resp, payload = h.do(t, "POST", "/v1/orders", buyer, fmt.Sprintf(`{"productId":%q}`, product.ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase failed: %d %s", resp.StatusCode, payload)
	}
	var order model.Order
	data(t, payload, &order)
	if order.Amount != 12 {
		t.Errorf("expected order amount 12, got %v", order.Amount)
	}

	// A second submit of the same purchase conflicts
	resp, _ = h.do(t, "POST", "/v1/orders", buyer, fmt.Sprintf(`{"productId":%q}`, product.ID))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 on duplicate purchase, got %d", resp.StatusCode)
	}

	// The download now succeeds
	resp, payload = h.do(t, "GET", "/v1/products/"+product.ID+"/download", buyer, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download after purchase failed: %d %s", resp.StatusCode, payload)
	}
}

// testRequestBoard covers the community board lifecycle end to end.
func (h *Harness) testRequestBoard(t *testing.T) {
	admin := h.Token(t, "conf-admin", "Conformance Admin", "admin")

	resp, payload := h.do(t, "POST", "/v1/requests", "", `{"title":"More LUTs","description":"cinematic","category":"Video Assets"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request submit failed: %d %s", resp.StatusCode, payload)
	}
	var entry model.ProductRequest
	data(t, payload, &entry)

	resp, payload = h.do(t, "POST", "/v1/requests/"+entry.ID+"/vote", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vote failed: %d", resp.StatusCode)
	}
	data(t, payload, &entry)
	if entry.Votes != 1 {
		t.Errorf("expected 1 vote, got %d", entry.Votes)
	}

	resp, _ = h.do(t, "PATCH", "/v1/admin/requests/"+entry.ID, admin, `{"status":"fulfilled"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status update failed: %d", resp.StatusCode)
	}
	resp, _ = h.do(t, "PATCH", "/v1/admin/requests/"+entry.ID, admin, `{"status":"reviewed"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 on backward transition, got %d", resp.StatusCode)
	}
}

// testErrorTaxonomy verifies error responses carry the standard envelope.
func (h *Harness) testErrorTaxonomy(t *testing.T) {
	resp, payload := h.do(t, "GET", "/v1/catalog/does-not-exist", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var envelope struct {
		Error struct {
			Code          string `json:"code"`
			Message       string `json:"message"`
			CorrelationID string `json:"correlationId"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v (body %s)", err, payload)
	}
	if envelope.Error.Code != "NOVA_NOT_FOUND" {
		t.Errorf("expected NOVA_NOT_FOUND, got %q", envelope.Error.Code)
	}
	if envelope.Error.CorrelationID == "" {
		t.Error("expected a correlation ID on the error envelope")
	}
}

// RunAcceptanceTests runs acceptance tests that verify the implementation
// exposes the full endpoint surface.
func (h *Harness) RunAcceptanceTests(t *testing.T) {
	t.Run("APICompliance", h.testAPICompliance)
	t.Run("AuthCompliance", h.testAuthCompliance)
}

// testAPICompliance verifies all public endpoints exist.
func (h *Harness) testAPICompliance(t *testing.T) {
	endpoints := []string{
		"/healthz",
		"/readyz",
		"/v1/catalog",
		"/v1/requests",
	}

	for _, endpoint := range endpoints {
		resp, err := http.Get(h.URL() + endpoint)
		if err != nil {
			t.Errorf("failed to access endpoint %s: %v", endpoint, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("endpoint %s returned %d", endpoint, resp.StatusCode)
		}
	}
}

// testAuthCompliance verifies authenticated endpoints reject anonymous
// callers and admin endpoints reject regular users.
func (h *Harness) testAuthCompliance(t *testing.T) {
	resp, _ := h.do(t, "GET", "/v1/me", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for anonymous /v1/me, got %d", resp.StatusCode)
	}

	user := h.Token(t, "conf-user", "Conformance User", "")
	resp, _ = h.do(t, "GET", "/v1/admin/stats", user, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin stats, got %d", resp.StatusCode)
	}
}
