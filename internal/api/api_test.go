package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"OfferTracker/internal/domain"
	"OfferTracker/internal/store"
	"OfferTracker/internal/usecase"
)

type fakeSource struct {
	listings []domain.RawListing
	err      error
}

func (f *fakeSource) Fetch(context.Context, string, int) ([]domain.RawListing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

type stubCatalog struct{}

func (stubCatalog) FiltersFor(categoryID int) []domain.FilterDefinition {
	if categoryID != 9 {
		return []domain.FilterDefinition{}
	}
	return []domain.FilterDefinition{{Key: "state", Label: "Stan"}}
}

func (stubCatalog) Categories() []domain.Category {
	return []domain.Category{{ID: 1, Name: "Elektronika"}}
}

func pricedListing(id int64, title, price string) domain.RawListing {
	return domain.RawListing{
		ID:              id,
		Title:           title,
		URL:             fmt.Sprintf("https://marketplace.test/offer/%d", id),
		LastRefreshTime: "2026-01-01T10:00:00Z",
		Params: []domain.Param{
			{Key: "price", Value: domain.ParamValue{
				Label: price + " zł",
				Value: json.RawMessage(price),
			}},
		},
	}
}

func newTestServer(source *fakeSource) (*Server, *store.Registry) {
	registry := store.New()
	refresher := usecase.NewRefresher(usecase.RefresherDeps{
		Source:   source,
		Registry: registry,
	})
	server := New(Deps{
		Registry:  registry,
		Refresher: refresher,
		Source:    source,
		Catalog:   stubCatalog{},
	})
	return server, registry
}

func doJSON(t *testing.T, server *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	var decoded map[string]any
	raw := rec.Body.Bytes()
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode response %s: %v", raw, err)
		}
	}
	return rec, decoded
}

func offersOf(t *testing.T, view map[string]any) []map[string]any {
	t.Helper()
	raw, ok := view["offers"].([]any)
	if !ok {
		t.Fatalf("response has no offers array: %v", view)
	}
	offers := make([]map[string]any, 0, len(raw))
	for _, o := range raw {
		offers = append(offers, o.(map[string]any))
	}
	return offers
}

func TestCreateObservation(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeSource{})

	rec, view := doJSON(t, server, http.MethodPost, "/api/observations", `{"categoryId": 9, "priceMax": 500}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	if view["id"] == "" || view["id"] == nil {
		t.Fatalf("created observation has no id: %v", view)
	}
	if view["categoryId"] != "9" || view["priceMax"] != "500" {
		t.Fatalf("criteria not echoed: %v", view)
	}
	if offers := offersOf(t, view); len(offers) != 0 {
		t.Fatalf("new observation should start with no offers: %v", offers)
	}
}

func TestCreateObservationRequiresCategory(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeSource{})

	rec, _ := doJSON(t, server, http.MethodPost, "/api/observations", `{"keywords": "iphone"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, server, http.MethodPost, "/api/observations", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status = %d, want 400", rec.Code)
	}
}

func TestGetObservationNotFound(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeSource{})

	rec, _ := doJSON(t, server, http.MethodGet, "/api/observations/12345", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRefreshEndToEnd(t *testing.T) {
	t.Parallel()

	source := &fakeSource{listings: []domain.RawListing{
		pricedListing(1, "cheap phone", "400"),
		pricedListing(2, "pricey phone", "600"),
	}}
	server, _ := newTestServer(source)

	_, created := doJSON(t, server, http.MethodPost, "/api/observations", `{"categoryId": 9, "priceMax": 500}`)
	id := created["id"].(string)

	rec, view := doJSON(t, server, http.MethodPost, "/api/observations/"+id+"/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	offers := offersOf(t, view)
	if len(offers) != 1 || offers[0]["id"] != "1" {
		t.Fatalf("expected only the 400-priced listing, got %v", offers)
	}
	if view["lastChecked"] == nil {
		t.Fatalf("lastChecked missing: %v", view)
	}
}

func TestRefreshUnknownObservation(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeSource{})
	rec, _ := doJSON(t, server, http.MethodPost, "/api/observations/999/refresh", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRefreshFetchFailure(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}
	server, _ := newTestServer(source)

	_, created := doJSON(t, server, http.MethodPost, "/api/observations", `{"categoryId": 9}`)
	id := created["id"].(string)

	source.err = errors.New("marketplace down")
	rec, _ := doJSON(t, server, http.MethodPost, "/api/observations/"+id+"/refresh", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestPatchTriggersRefresh(t *testing.T) {
	t.Parallel()

	source := &fakeSource{listings: []domain.RawListing{
		pricedListing(1, "iPhone 13", "400"),
		pricedListing(2, "Samsung Galaxy", "450"),
	}}
	server, _ := newTestServer(source)

	_, created := doJSON(t, server, http.MethodPost, "/api/observations", `{"categoryId": 9}`)
	id := created["id"].(string)

	rec, view := doJSON(t, server, http.MethodPatch, "/api/observations/"+id, `{"keywords": "iphone"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if view["keywords"] != "iphone" {
		t.Fatalf("patched keywords not echoed: %v", view)
	}

	offers := offersOf(t, view)
	if len(offers) != 1 || offers[0]["id"] != "1" {
		t.Fatalf("patch did not re-match with new criteria: %v", offers)
	}
}

func TestPatchUnknownObservation(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeSource{})
	rec, _ := doJSON(t, server, http.MethodPatch, "/api/observations/999", `{"keywords": "x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteObservationIdempotent(t *testing.T) {
	t.Parallel()

	server, registry := newTestServer(&fakeSource{})

	_, created := doJSON(t, server, http.MethodPost, "/api/observations", `{"categoryId": 9}`)
	id := created["id"].(string)

	rec, _ := doJSON(t, server, http.MethodDelete, "/api/observations/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}

	if _, err := registry.Get(id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("observation survived delete: %v", err)
	}
	rec, _ = doJSON(t, server, http.MethodGet, "/api/observations/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", rec.Code)
	}

	rec, _ = doJSON(t, server, http.MethodDelete, "/api/observations/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("second delete status = %d, want 200", rec.Code)
	}
}

func TestCategoryFilters(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeSource{})

	rec, _ := doJSON(t, server, http.MethodGet, "/api/category-filters", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing categoryId: status = %d, want 400", rec.Code)
	}

	rec, body := doJSON(t, server, http.MethodGet, "/api/category-filters?categoryId=9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	filters, ok := body["filters"].([]any)
	if !ok || len(filters) != 1 {
		t.Fatalf("unexpected filters payload: %v", body)
	}
}

func TestSampleOffersCapped(t *testing.T) {
	t.Parallel()

	listings := make([]domain.RawListing, 0, 12)
	for i := int64(1); i <= 12; i++ {
		listings = append(listings, pricedListing(i, "thing", "100"))
	}
	server, _ := newTestServer(&fakeSource{listings: listings})

	req := httptest.NewRequest(http.MethodGet, "/api/sample-offers?categoryId=9", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var offers []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &offers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(offers) != 10 {
		t.Fatalf("sample size = %d, want 10", len(offers))
	}
}

func TestStoredOfferEndpointsWithoutDatabase(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeSource{})

	rec, _ := doJSON(t, server, http.MethodPost, "/api/offers/", `{"id": "1"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("create status = %d, want 503", rec.Code)
	}
	rec, _ = doJSON(t, server, http.MethodGet, "/api/offers/1", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("get status = %d, want 503", rec.Code)
	}
	rec, _ = doJSON(t, server, http.MethodGet, "/api/offers/by-observation/1", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("list status = %d, want 503", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(&fakeSource{})

	req := httptest.NewRequest(http.MethodOptions, "/api/observations", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header missing")
	}
}
