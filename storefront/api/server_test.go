package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanpawarit/atelier-storefront/storefront/cart"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
	"github.com/tanpawarit/atelier-storefront/storefront/session"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var linenDress = contract.Hit{ObjectID: "p1", Name: "Linen dress", Brand: "Atelier", Price: contract.Price{Value: 89.5}}

type fakeBackend struct{}

func (fakeBackend) Search(_ context.Context, q contract.SearchQuery) (contract.SearchResponse, error) {
	if q.Query == "boom" {
		return contract.SearchResponse{}, fmt.Errorf("%w: index unavailable", contract.ErrUpstream)
	}
	return contract.SearchResponse{Query: q.Query, Hits: []contract.Hit{linenDress}, NbHits: 1, NbPages: 1}, nil
}

type fakeCatalog struct{ err error }

func (f fakeCatalog) GetProduct(_ context.Context, id string) (contract.Hit, error) {
	if f.err != nil {
		return contract.Hit{}, f.err
	}
	if id != linenDress.ObjectID {
		return contract.Hit{}, fmt.Errorf("%w: product %s", contract.ErrNotFound, id)
	}
	return linenDress, nil
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   bool            `json:"error"`
}

type harness struct {
	t       *testing.T
	handler http.Handler
}

func newHarness(t *testing.T, catalog contract.ProductCatalog) *harness {
	t.Helper()
	manager := session.NewManager(session.Config{IndexName: "products"}, session.Deps{
		Backend: fakeBackend{},
		Catalog: catalog,
	})
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	srv := NewServer(manager, catalog, Options{SettleWait: 2 * time.Second})
	return &harness{t: t, handler: srv.Handler()}
}

func (h *harness) do(method, path string, body any) (int, envelope) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (h *harness) createSession(body any) string {
	h.t.Helper()
	code, env := h.do(http.MethodPost, "/api/v1/sessions", body)
	require.Equal(h.t, http.StatusCreated, code, env.Message)
	var view struct {
		ID string `json:"id"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &view))
	require.NotEmpty(h.t, view.ID)
	return view.ID
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, fakeCatalog{})

	code, env := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Message)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_active_sessions")
}

func TestCreateSessionFromRoute(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(map[string]string{"route": "?q=linen&brand=Atelier&page=2"})

	code, env := h.do(http.MethodGet, "/api/v1/sessions/"+id+"/route", nil)
	require.Equal(t, http.StatusOK, code)
	var got struct {
		Query string `json:"query"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "brand=Atelier&page=2&q=linen", got.Query)
}

func TestCreateSessionWithoutBody(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	h.createSession(nil)
}

func TestGetSearchAppliesURLParams(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(nil)

	code, env := h.do(http.MethodGet, "/api/v1/sessions/"+id+"/search?q=linen&size=M", nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	var got struct {
		Route   string `json:"route"`
		Results struct {
			Query  string         `json:"query"`
			Status string         `json:"status"`
			Hits   []contract.Hit `json:"hits"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "q=linen&size=M", got.Route)
	assert.Equal(t, "linen", got.Results.Query)
	assert.Equal(t, "idle", got.Results.Status)
	assert.Len(t, got.Results.Hits, 1)
}

func TestGetSearchBackendFailure(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(nil)

	code, env := h.do(http.MethodGet, "/api/v1/sessions/"+id+"/search?q=boom", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.True(t, env.Error)
}

func TestRefineSearch(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(map[string]string{"route": "q=linen"})
	path := "/api/v1/sessions/" + id + "/search/refine"

	code, env := h.do(http.MethodPost, path, map[string]any{"action": "toggleRefinement", "attribute": "brand", "value": "Atelier"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var got struct {
		Route string `json:"route"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "brand=Atelier&q=linen", got.Route)

	code, env = h.do(http.MethodPost, path, map[string]any{"action": "setPriceRange", "price": "20:120"})
	require.Equal(t, http.StatusOK, code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "brand=Atelier&price=20%3A120&q=linen", got.Route)

	code, _ = h.do(http.MethodPost, path, map[string]any{"action": "setPriceRange", "price": "cheap"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPost, path, map[string]any{"action": "toggleRefinement", "attribute": "material", "value": "silk"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPost, path, map[string]any{"action": "teleport"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPost, path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCartLifecycle(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(nil)
	base := "/api/v1/sessions/" + id + "/cart"

	code, env := h.do(http.MethodPost, base+"/items", map[string]any{"objectID": "p1", "quantity": 2})
	require.Equal(t, http.StatusCreated, code, env.Message)
	code, env = h.do(http.MethodPost, base+"/items", map[string]any{"objectID": "p1"})
	require.Equal(t, http.StatusCreated, code, env.Message)

	var snap cart.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.TotalItems)
	assert.InDelta(t, 268.5, snap.TotalPrice, 0.001)

	code, _ = h.do(http.MethodPost, base+"/items", map[string]any{"objectID": "missing"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = h.do(http.MethodPatch, base+"/items/p1", map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Empty(t, snap.Items)

	_, _ = h.do(http.MethodPost, base+"/items", map[string]any{"objectID": "p1"})
	code, env = h.do(http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 0, snap.TotalItems)
}

func TestToolCallRoundTrip(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(nil)

	call := map[string]any{
		"toolCallId": "call-1",
		"toolName":   "addToCart",
		"state":      "input-available",
		"input":      map[string]any{"objectID": "p1", "quantity": 2},
	}
	code, env := h.do(http.MethodPost, "/api/v1/sessions/"+id+"/tool-calls", call)
	require.Equal(t, http.StatusAccepted, code, env.Message)

	// A replayed observation must not answer twice.
	code, _ = h.do(http.MethodPost, "/api/v1/sessions/"+id+"/tool-calls", call)
	require.Equal(t, http.StatusAccepted, code)

	code, env = h.do(http.MethodGet, "/api/v1/sessions/"+id+"/tool-results", nil)
	require.Equal(t, http.StatusOK, code)
	var results []contract.ToolResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "call-1", results[0].CallID)
	assert.True(t, results[0].OK())

	code, env = h.do(http.MethodGet, "/api/v1/sessions/"+id+"/cart", nil)
	require.Equal(t, http.StatusOK, code)
	var snap cart.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 2, snap.TotalItems)
}

func TestToolCallSearchIsAnsweredAsync(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(nil)

	code, env := h.do(http.MethodPost, "/api/v1/sessions/"+id+"/tool-calls", map[string]any{
		"toolCallId": "call-2",
		"toolName":   "search",
		"state":      "input-available",
		"input":      map[string]any{"query": "linen"},
	})
	require.Equal(t, http.StatusAccepted, code, env.Message)

	var results []contract.ToolResult
	require.Eventually(t, func() bool {
		_, env := h.do(http.MethodGet, "/api/v1/sessions/"+id+"/tool-results", nil)
		var batch []contract.ToolResult
		if err := json.Unmarshal(env.Data, &batch); err == nil {
			results = append(results, batch...)
		}
		return len(results) > 0
	}, 2*time.Second, 20*time.Millisecond)
	require.Len(t, results, 1)
	assert.Equal(t, contract.ToolSearch, results[0].Tool)
}

func TestToolCallRejectsBadInput(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(nil)
	path := "/api/v1/sessions/" + id + "/tool-calls"

	code, _ := h.do(http.MethodPost, path, map[string]any{"toolCallId": "c", "toolName": "search", "state": "half-done"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPost, path, map[string]any{"toolName": "search", "state": "input-available"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t, fakeCatalog{})

	code, env := h.do(http.MethodGet, "/api/v1/sessions/nope/cart", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.True(t, env.Error)

	code, _ = h.do(http.MethodDelete, "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCloseSessionKeepsSnapshot(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(map[string]string{"route": "q=coat"})

	code, _ := h.do(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := h.do(http.MethodGet, "/api/v1/sessions/"+id+"/route", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), "q=coat")
}

func TestGetProduct(t *testing.T) {
	h := newHarness(t, fakeCatalog{})

	code, env := h.do(http.MethodGet, "/api/v1/products/p1", nil)
	require.Equal(t, http.StatusOK, code)
	var hit contract.Hit
	require.NoError(t, json.Unmarshal(env.Data, &hit))
	assert.Equal(t, "Linen dress", hit.Name)

	code, _ = h.do(http.MethodGet, "/api/v1/products/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)

	broken := newHarness(t, fakeCatalog{err: fmt.Errorf("%w: timeout", contract.ErrUpstream)})
	code, _ = broken.do(http.MethodGet, "/api/v1/products/p1", nil)
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestSummaryDisabled(t *testing.T) {
	h := newHarness(t, fakeCatalog{})
	id := h.createSession(nil)

	code, env := h.do(http.MethodGet, "/api/v1/sessions/"+id+"/summary", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Summaries are disabled", env.Message)
}

func TestListTools(t *testing.T) {
	h := newHarness(t, fakeCatalog{})

	code, env := h.do(http.MethodGet, "/api/v1/tools", nil)
	require.Equal(t, http.StatusOK, code)
	var tools []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &tools))
	assert.Len(t, tools, 3)
}
