// internal/server/mux_test.go
// Package server provides unit tests for the HTTP handlers and routing.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/novamarket/novamarket-go/internal/cache"
	"github.com/novamarket/novamarket-go/internal/event"
	"github.com/novamarket/novamarket-go/internal/jwks"
	"github.com/novamarket/novamarket-go/internal/model"
	"github.com/novamarket/novamarket-go/internal/requests"
	"github.com/novamarket/novamarket-go/internal/storage"
)

// newTestMux wires a mux against the in-memory store with a permissive
// test JWKS client and no external dependencies.
func newTestMux(store storage.Store, maxImageSize int64) *http.ServeMux {
	board := requests.NewService(store)
	return NewMux(store, event.NewNoop(), board, jwks.NewTestClient(), "test-issuer", "test-audience", cache.NewNoop(), nil, maxImageSize, nil)
}

// testToken builds a bearer token the test JWKS client accepts. The
// signature is never checked in test mode; only issuer and audience are.
func testToken(t *testing.T, sub, name, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  sub,
		"name": name,
		"iss":  "test-issuer",
		"aud":  "test-audience",
	}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return "Bearer " + signed
}

// doRequest serves a request against the mux and returns the recorder.
func doRequest(t *testing.T, mux *http.ServeMux, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

// decodeData unmarshals the data envelope of a response into v.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response envelope: %v (body %s)", err, rr.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("failed to decode response data: %v (body %s)", err, rr.Body.String())
	}
}

// seedProduct writes a product straight into the store.
func seedProduct(t *testing.T, store storage.Store, p model.Product) model.Product {
	t.Helper()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := store.SaveProduct(context.Background(), p); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return p
}

// TestHealthzEndpoint tests the healthz endpoint.
func TestHealthzEndpoint(t *testing.T) {
	mux := newTestMux(storage.NewMemory(), 10*1024*1024)

	rr := doRequest(t, mux, "GET", "/healthz", "", "")

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), "ok")
	}
}

// TestReadyzEndpoint tests the readyz endpoint.
func TestReadyzEndpoint(t *testing.T) {
	mux := newTestMux(storage.NewMemory(), 10*1024*1024)

	rr := doRequest(t, mux, "GET", "/readyz", "", "")

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
}

// failingStore simulates an unreachable backing store for the catalog
// degraded-mode test. Only the methods the test exercises are overridden.
type failingStore struct {
	storage.Store
}

func (f *failingStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	return nil, errors.New("store unreachable")
}

// TestCatalogServesSeedWhenStoreDown verifies the catalog degrades to the
// bundled seed listing instead of failing outright.
func TestCatalogServesSeedWhenStoreDown(t *testing.T) {
	mux := newTestMux(&failingStore{Store: storage.NewMemory()}, 10*1024*1024)

	rr := doRequest(t, mux, "GET", "/v1/catalog", "", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	var resp model.CatalogResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode catalog response: %v", err)
	}
	if !resp.Degraded {
		t.Error("expected degraded flag on seed-served catalog")
	}
	if len(resp.Data) == 0 {
		t.Error("expected seed products in degraded catalog")
	}
}

// TestCatalogFiltering verifies category, tab, and sort parameters.
func TestCatalogFiltering(t *testing.T) {
	store := storage.NewMemory()
	now := time.Now().UTC()
	seedProduct(t, store, model.Product{ID: "p1", Title: "Old Paid Course", Category: model.CategoryCourses, Price: 50, FileURL: "x", CreatedAt: now.Add(-2 * time.Hour)})
	seedProduct(t, store, model.Product{ID: "p2", Title: "Free Graphics Pack", Category: model.CategoryGraphics, IsFree: true, FileURL: "x", CreatedAt: now.Add(-1 * time.Hour)})
	seedProduct(t, store, model.Product{ID: "p3", Title: "New Paid Graphics", Category: model.CategoryGraphics, Price: 10, FileURL: "x", CreatedAt: now})
	mux := newTestMux(store, 10*1024*1024)

	rr := doRequest(t, mux, "GET", "/v1/catalog?category=Graphics&tab=paid", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var resp model.CatalogResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "p3" {
		t.Errorf("expected only p3, got %+v", resp.Data)
	}

	rr = doRequest(t, mux, "GET", "/v1/catalog?sort=price_low&tab=paid", "", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 2 || resp.Data[0].ID != "p3" || resp.Data[1].ID != "p1" {
		t.Errorf("expected p3 then p1 by ascending price, got %+v", resp.Data)
	}
}

// TestGetProductActionForAnonymous verifies the product detail action for
// an unauthenticated caller.
func TestGetProductActionForAnonymous(t *testing.T) {
	store := storage.NewMemory()
	seedProduct(t, store, model.Product{ID: "paid", Title: "Paid", Category: model.CategoryEbooks, Price: 20, FileURL: "x"})
	seedProduct(t, store, model.Product{ID: "free", Title: "Free", Category: model.CategoryEbooks, IsFree: true, FileURL: "x"})
	mux := newTestMux(store, 10*1024*1024)

	rr := doRequest(t, mux, "GET", "/v1/catalog/paid", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var resp model.ProductResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Action != "buy" {
		t.Errorf("expected buy action for anonymous on paid product, got %q", resp.Action)
	}

	rr = doRequest(t, mux, "GET", "/v1/catalog/free", "", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Action != "download" {
		t.Errorf("expected download action on free product, got %q", resp.Action)
	}
}

// TestGetProductNotFound verifies unknown product IDs return 404.
func TestGetProductNotFound(t *testing.T) {
	mux := newTestMux(storage.NewMemory(), 10*1024*1024)

	rr := doRequest(t, mux, "GET", "/v1/catalog/nope", "", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNotFound)
	}
}

// TestPurchaseFlow walks through a purchase: order creation, the duplicate
// rejection, and the resulting entitlement on the profile.
func TestPurchaseFlow(t *testing.T) {
	store := storage.NewMemory()
	seedProduct(t, store, model.Product{ID: "prod-1", Title: "LUT Pack", Category: model.CategoryVideoAssets, Price: 29, FileURL: "x"})
	mux := newTestMux(store, 10*1024*1024)
	token := testToken(t, "user-1", "Test Buyer", "")

	rr := doRequest(t, mux, "POST", "/v1/orders", token, `{"productId":"prod-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("purchase returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
	var order model.Order
	decodeData(t, rr, &order)
	if order.Amount != 29 || order.Status != model.OrderCompleted {
		t.Errorf("unexpected order: %+v", order)
	}

	// Double submit must not produce a second order
	rr = doRequest(t, mux, "POST", "/v1/orders", token, `{"productId":"prod-1"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate purchase returned wrong status code: got %v want %v", rr.Code, http.StatusConflict)
	}

	rr = doRequest(t, mux, "GET", "/v1/me", token, "")
	var profile model.Profile
	decodeData(t, rr, &profile)
	if len(profile.PurchasedIDs) != 1 || profile.PurchasedIDs[0] != "prod-1" {
		t.Errorf("expected single entitlement for prod-1, got %v", profile.PurchasedIDs)
	}

	rr = doRequest(t, mux, "GET", "/v1/me/orders", token, "")
	var orders []model.Order
	decodeData(t, rr, &orders)
	if len(orders) != 1 {
		t.Errorf("expected exactly one order, got %d", len(orders))
	}
}

// TestPurchaseUnknownProduct verifies a purchase of a missing product is a 404.
func TestPurchaseUnknownProduct(t *testing.T) {
	mux := newTestMux(storage.NewMemory(), 10*1024*1024)
	token := testToken(t, "user-1", "Test Buyer", "")

	rr := doRequest(t, mux, "POST", "/v1/orders", token, `{"productId":"ghost"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNotFound)
	}
}

// TestDownloadRequiresEntitlement verifies the download gate: a paid product
// is withheld until purchased, then delivered.
func TestDownloadRequiresEntitlement(t *testing.T) {
	store := storage.NewMemory()
	seedProduct(t, store, model.Product{ID: "prod-1", Title: "E-book", Category: model.CategoryEbooks, Price: 15, FileURL: "data:application/pdf;base64,AAAA", FileType: "PDF", FileSize: "1.00 KB"})
	mux := newTestMux(store, 10*1024*1024)
	token := testToken(t, "user-1", "Test Buyer", "")

	rr := doRequest(t, mux, "GET", "/v1/products/prod-1/download", token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unentitled download returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}

	rr = doRequest(t, mux, "POST", "/v1/orders", token, `{"productId":"prod-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("purchase failed: %s", rr.Body.String())
	}

	rr = doRequest(t, mux, "GET", "/v1/products/prod-1/download", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("entitled download returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
	var data model.DownloadData
	decodeData(t, rr, &data)
	if data.URL != "data:application/pdf;base64,AAAA" || data.FileType != "PDF" {
		t.Errorf("unexpected download data: %+v", data)
	}
}

// TestDownloadFreeProduct verifies free products are downloadable by any
// signed-in user without a purchase.
func TestDownloadFreeProduct(t *testing.T) {
	store := storage.NewMemory()
	seedProduct(t, store, model.Product{ID: "free-1", Title: "Freebie", Category: model.CategoryGraphics, IsFree: true, FileURL: "https://example.com/pack.zip", FileType: "ZIP"})
	mux := newTestMux(store, 10*1024*1024)
	token := testToken(t, "user-1", "Test Buyer", "")

	rr := doRequest(t, mux, "GET", "/v1/products/free-1/download", token, "")
	if rr.Code != http.StatusOK {
		t.Errorf("free download returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
}

// TestCourseAccess verifies the course player gate and the initial lesson
// selection.
func TestCourseAccess(t *testing.T) {
	store := storage.NewMemory()
	seedProduct(t, store, model.Product{
		ID: "course-1", Title: "Go Course", Category: model.CategoryCourses, IsFree: true, FileURL: "x",
		Modules: []model.CourseModule{
			{ID: "m1", Title: "Basics", Lessons: []model.Lesson{
				{ID: "l1", Title: "Intro", Duration: "05:00"},
				{ID: "l2", Title: "Setup", Duration: "10:00"},
			}},
		},
	})
	seedProduct(t, store, model.Product{ID: "paid-course", Title: "Paid Course", Category: model.CategoryCourses, Price: 99, FileURL: "x", Modules: []model.CourseModule{{ID: "m1", Title: "M", Lessons: []model.Lesson{{ID: "l1", Title: "L"}}}}})
	seedProduct(t, store, model.Product{ID: "not-course", Title: "Just a File", Category: model.CategoryEbooks, IsFree: true, FileURL: "x"})
	mux := newTestMux(store, 10*1024*1024)
	token := testToken(t, "user-1", "Student", "")

	rr := doRequest(t, mux, "GET", "/v1/courses/course-1", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("course returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
	var resp model.CourseResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Current == nil || resp.Current.ID != "l1" {
		t.Errorf("expected first lesson l1 selected, got %+v", resp.Current)
	}

	// Unpurchased paid course is withheld
	rr = doRequest(t, mux, "GET", "/v1/courses/paid-course", token, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("unentitled course returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}

	// A product without modules cannot be played
	rr = doRequest(t, mux, "GET", "/v1/courses/not-course", token, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non-course returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}

// TestRequestBoardFlow covers submission, voting, the forward-only status
// rule, and deletion.
func TestRequestBoardFlow(t *testing.T) {
	store := storage.NewMemory()
	mux := newTestMux(store, 10*1024*1024)
	admin := testToken(t, "admin-1", "Admin", "admin")

	// Anonymous submission gets the guest label
	rr := doRequest(t, mux, "POST", "/v1/requests", "", `{"title":"Figma templates","description":"please","category":"Graphics"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
	var entry model.ProductRequest
	decodeData(t, rr, &entry)
	if entry.UserName != "Guest User" {
		t.Errorf("expected Guest User label, got %q", entry.UserName)
	}
	if entry.Status != model.RequestPending {
		t.Errorf("expected pending status, got %q", entry.Status)
	}

	// Repeat votes all count
	for i := 0; i < 3; i++ {
		rr = doRequest(t, mux, "POST", "/v1/requests/"+entry.ID+"/vote", "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("vote returned wrong status code: got %v", rr.Code)
		}
	}
	decodeData(t, rr, &entry)
	if entry.Votes != 3 {
		t.Errorf("expected 3 votes, got %d", entry.Votes)
	}

	// Advance to reviewed, then reject the move back to pending
	rr = doRequest(t, mux, "PATCH", "/v1/admin/requests/"+entry.ID, admin, `{"status":"reviewed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status update returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, mux, "PATCH", "/v1/admin/requests/"+entry.ID, admin, `{"status":"pending"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("backward transition returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}

	rr = doRequest(t, mux, "DELETE", "/v1/admin/requests/"+entry.ID, admin, "")
	if rr.Code != http.StatusOK {
		t.Errorf("delete returned wrong status code: got %v", rr.Code)
	}
}

// TestSubmitRequestBlankTitle verifies blank titles are rejected before
// anything is written.
func TestSubmitRequestBlankTitle(t *testing.T) {
	store := storage.NewMemory()
	mux := newTestMux(store, 10*1024*1024)

	rr := doRequest(t, mux, "POST", "/v1/requests", "", `{"title":"   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank title returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
	entries, err := store.ListRequests(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no board entries after rejected submit, got %d", len(entries))
	}
}

// TestAdminRequiresRole verifies non-admin tokens cannot reach admin
// endpoints.
func TestAdminRequiresRole(t *testing.T) {
	mux := newTestMux(storage.NewMemory(), 10*1024*1024)
	user := testToken(t, "user-1", "Regular", "")

	rr := doRequest(t, mux, "POST", "/v1/admin/products", user, `{"title":"X","category":"Graphics","fileUrl":"x"}`)
	if rr.Code != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}

	rr = doRequest(t, mux, "GET", "/v1/admin/stats", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated admin call returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
	}
}

// TestAdminProductLifecycle covers create, update, and delete through the
// editor flow, including the free-price rule.
func TestAdminProductLifecycle(t *testing.T) {
	store := storage.NewMemory()
	mux := newTestMux(store, 10*1024*1024)
	admin := testToken(t, "admin-1", "Admin", "admin")

	body := `{"title":"New Pack","description":"d","price":25,"category":"Graphics","fileUrl":"data:application/zip;base64,AAAA","fileType":"ZIP","rating":4.5}`
	rr := doRequest(t, mux, "POST", "/v1/admin/products", admin, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("create returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
	var created model.Product
	decodeData(t, rr, &created)
	if created.ID == "" || created.Price != 25 {
		t.Fatalf("unexpected created product: %+v", created)
	}

	// Marking it free forces the stored price to zero
	update := `{"title":"New Pack","description":"d","price":25,"isFree":true,"category":"Graphics","fileUrl":"data:application/zip;base64,AAAA","fileType":"ZIP","rating":4.5}`
	rr = doRequest(t, mux, "PUT", "/v1/admin/products/"+created.ID, admin, update)
	if rr.Code != http.StatusOK {
		t.Fatalf("update returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
	var updated model.Product
	decodeData(t, rr, &updated)
	if !updated.IsFree || updated.Price != 0 {
		t.Errorf("expected free product with zero price, got %+v", updated)
	}

	rr = doRequest(t, mux, "DELETE", "/v1/admin/products/"+created.ID, admin, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete returned wrong status code: got %v", rr.Code)
	}
	rr = doRequest(t, mux, "GET", "/v1/catalog/"+created.ID, "", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("deleted product still served: got %v want %v", rr.Code, http.StatusNotFound)
	}
}

// TestAdminProductValidation verifies a draft missing required fields is
// rejected and nothing is written.
func TestAdminProductValidation(t *testing.T) {
	store := storage.NewMemory()
	mux := newTestMux(store, 10*1024*1024)
	admin := testToken(t, "admin-1", "Admin", "admin")

	rr := doRequest(t, mux, "POST", "/v1/admin/products", admin, `{"title":"","category":"Graphics","fileUrl":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid draft returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, mux, "POST", "/v1/admin/products", admin, `{"title":"X","category":"Nonsense","fileUrl":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown category returned wrong status code: got %v", rr.Code)
	}

	products, err := store.ListProducts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 0 {
		t.Errorf("expected no products after rejected drafts, got %d", len(products))
	}
}

// TestAdminStats verifies the dashboard aggregates.
func TestAdminStats(t *testing.T) {
	store := storage.NewMemory()
	seedProduct(t, store, model.Product{ID: "p1", Title: "A", Category: model.CategoryEbooks, Price: 10, FileURL: "x"})
	seedProduct(t, store, model.Product{ID: "p2", Title: "B", Category: model.CategoryEbooks, Price: 40, FileURL: "x"})
	mux := newTestMux(store, 10*1024*1024)
	admin := testToken(t, "admin-1", "Admin", "admin")
	buyer := testToken(t, "user-1", "Buyer", "")

	rr := doRequest(t, mux, "POST", "/v1/orders", buyer, `{"productId":"p1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("purchase failed: %s", rr.Body.String())
	}
	rr = doRequest(t, mux, "POST", "/v1/orders", buyer, `{"productId":"p2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("purchase failed: %s", rr.Body.String())
	}

	rr = doRequest(t, mux, "GET", "/v1/admin/stats", admin, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats returned wrong status code: got %v", rr.Code)
	}
	var stats model.AdminStats
	decodeData(t, rr, &stats)
	if stats.Revenue != 50 || stats.ProductCount != 2 || stats.OrderCount != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// TestAttachmentSizeLimit verifies the attachment ceiling is enforced
// before any encoding happens.
func TestAttachmentSizeLimit(t *testing.T) {
	store := storage.NewMemory()
	// 1KB ceiling for the test
	mux := newTestMux(store, 1024)
	admin := testToken(t, "admin-1", "Admin", "admin")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "big.zip")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(make([]byte, 2048)); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	req, err := http.NewRequest("POST", "/v1/admin/attachments", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", admin)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("oversized attachment returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
}

// TestAttachmentEncoding verifies a small upload comes back as a data URL
// with the derived format tag.
func TestAttachmentEncoding(t *testing.T) {
	store := storage.NewMemory()
	mux := newTestMux(store, 10*1024*1024)
	admin := testToken(t, "admin-1", "Admin", "admin")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "guide.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("pdf bytes")); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	req, err := http.NewRequest("POST", "/v1/admin/attachments", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", admin)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("attachment returned wrong status code: got %v body %s", rr.Code, rr.Body.String())
	}
	var data model.AttachmentData
	decodeData(t, rr, &data)
	if data.FileType != "PDF" {
		t.Errorf("expected PDF format tag, got %q", data.FileType)
	}
	if !strings.HasPrefix(data.DataURL, "data:") {
		t.Errorf("expected data URL, got %q", data.DataURL)
	}
	if data.FileSize != "9 B" {
		t.Errorf("expected 9 B size, got %q", data.FileSize)
	}
}

// TestUploadInitWithoutMediaClient verifies managed uploads report
// unavailable when no bucket is configured.
func TestUploadInitWithoutMediaClient(t *testing.T) {
	mux := newTestMux(storage.NewMemory(), 10*1024*1024)
	admin := testToken(t, "admin-1", "Admin", "admin")

	rr := doRequest(t, mux, "POST", "/v1/admin/uploads", admin, `{"filename":"video.mp4","size":4509715660}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusServiceUnavailable)
	}
}

// TestInvalidTokenRejected verifies a token with the wrong issuer is
// rejected.
func TestInvalidTokenRejected(t *testing.T) {
	mux := newTestMux(storage.NewMemory(), 10*1024*1024)

	claims := jwt.MapClaims{"sub": "user-1", "iss": "other-issuer", "aud": "test-audience"}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	rr := doRequest(t, mux, "GET", "/v1/me", "Bearer "+signed, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
	}
}
