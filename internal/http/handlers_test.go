package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/analytics"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/config"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/feed"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/simulator"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

var now = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	app *App
	st  *store.Store
	hub *feed.Hub
	h   http.Handler
}

func setupApp(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	cfg := config.Config{CORSOrigins: []string{"http://dash.local"}, FeedBuffer: 8}
	st := store.New()
	require.NoError(t, st.InsertProducts(ctx, []model.Product{
		{ID: "p1", Name: "Novel", Category: "Books", Price: 10, Stock: 3, LastUpdated: now},
		{ID: "p2", Name: "Phone", Category: "Electronics", Price: 20.25, Stock: 14, LastUpdated: now},
		{ID: "p3", Name: "Lamp", Category: "Home & Garden", Price: 30, Stock: 20, LastUpdated: now},
	}))
	for _, o := range []model.Order{
		{ID: "o1", ProductID: "p1", ProductName: "Novel", Category: "Books", Quantity: 1, TotalPrice: 10, Timestamp: now.Add(-26 * time.Hour), Region: "Europe"},
		{ID: "o2", ProductID: "p2", ProductName: "Phone", Category: "Electronics", Quantity: 1, TotalPrice: 5, Timestamp: now.Add(-25 * time.Hour), Region: "Europe"},
		{ID: "o3", ProductID: "p1", ProductName: "Novel", Category: "Books", Quantity: 1, TotalPrice: 20.25, Timestamp: now.Add(-time.Hour), Region: "Asia-Pacific"},
	} {
		require.NoError(t, st.AppendOrder(ctx, o))
	}
	eng := simulator.New(st, st, simulator.Options{
		MinDelay:           time.Hour,
		MaxDelay:           time.Hour,
		RestockProbability: -1,
		Now:                func() time.Time { return now },
	})
	hub := feed.NewHub(cfg)
	hub.Start(ctx)
	app := NewApp(cfg, eng, analytics.New(st, st, func() time.Time { return now }), hub)
	t.Cleanup(func() {
		eng.Stop()
		eng.Wait(ctx)
		hub.Stop()
	})
	return fixture{app: app, st: st, hub: hub, h: NewRouter(app)}
}

func (f fixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	return rr
}

func TestOpenAPIServed(t *testing.T) {
	f := setupApp(t)
	rr := f.do(http.MethodGet, "/openapi.yaml")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct == "" {
		t.Fatalf("expected content-type set")
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("openapi:")) {
		t.Fatalf("expected openapi content")
	}
}

func TestDocsServed(t *testing.T) {
	f := setupApp(t)
	rr := f.do(http.MethodGet, "/docs")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs body")
	}
}

func TestHealthz(t *testing.T) {
	f := setupApp(t)
	if rr := f.do(http.MethodGet, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	f.app.StartShutdown()
	if rr := f.do(http.MethodGet, "/healthz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while shutting down, got %d", rr.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/simulation/status", nil)
	req.Header.Set("X-Request-Id", "test-req-1")
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	assert.Equal(t, "test-req-1", rr.Header().Get("X-Request-Id"))

	rr = f.do(http.MethodGet, "/api/simulation/status")
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestToggleLifecycle(t *testing.T) {
	f := setupApp(t)
	var st runningResponse

	rr := f.do(http.MethodGet, "/api/simulation/status")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.False(t, st.Running)

	for _, want := range []bool{true, true, false, false} {
		target := "/api/simulation/toggle?running=false"
		if want {
			target = "/api/simulation/toggle?running=true"
		}
		rr = f.do(http.MethodPost, target)
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
		assert.Equal(t, want, st.Running)
		assert.Equal(t, want, f.app.Engine.Running())
	}
}

func TestToggleValidation(t *testing.T) {
	f := setupApp(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/simulation/toggle").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/simulation/toggle?running=maybe").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/api/simulation/toggle?running=true").Code)

	f.app.StartShutdown()
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/simulation/toggle?running=true").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/simulation/toggle?running=false").Code)
}

func TestDailyStatsGolden(t *testing.T) {
	f := setupApp(t)
	rr := f.do(http.MethodGet, "/api/dashboard/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	g := goldie.New(t)
	g.Assert(t, "daily_stats", rr.Body.Bytes())
}

func TestRecentOrdersAndSeries(t *testing.T) {
	f := setupApp(t)

	var orders []model.Order
	rr := f.do(http.MethodGet, "/api/dashboard/recent-orders")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &orders))
	require.Len(t, orders, 3)
	assert.Equal(t, "o3", orders[0].ID)

	var points []model.SalesPoint
	rr = f.do(http.MethodGet, "/api/dashboard/sales-chart")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &points))
	require.Len(t, points, 3)
	assert.Equal(t, 10.0, points[0].TotalPrice)
	assert.Equal(t, 20.25, points[2].TotalPrice)

	rr = f.do(http.MethodGet, "/api/dashboard/sales-chart?limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &points))
	require.Len(t, points, 1)
	assert.Equal(t, 20.25, points[0].TotalPrice)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/dashboard/sales-chart?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/dashboard/sales-chart?limit=500").Code)
}

func TestCategoryDistribution(t *testing.T) {
	f := setupApp(t)
	rr := f.do(http.MethodGet, "/api/dashboard/category-dist")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"name":"Books","value":2},{"name":"Electronics","value":1}]`, rr.Body.String())
}

func TestInventoryAndRestock(t *testing.T) {
	f := setupApp(t)

	var products []model.Product
	rr := f.do(http.MethodGet, "/api/inventory")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &products))
	assert.Len(t, products, 3)

	rr = f.do(http.MethodPost, "/api/inventory/restock/p1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Restocked successfully"}`, rr.Body.String())
	p, err := f.st.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 53, p.Stock)

	rr = f.do(http.MethodPost, "/api/inventory/restock/unknown")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_found")
}

type downStore struct{ *store.Store }

func (downStore) RevenueSince(context.Context, time.Time) (model.Revenue, error) {
	return model.Revenue{}, store.ErrUnavailable
}

func TestStoreUnavailableIs503(t *testing.T) {
	f := setupApp(t)
	f.app.Stats = analytics.New(f.st, downStore{f.st}, nil)
	rr := f.do(http.MethodGet, "/api/dashboard/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "store_unavailable")
}

func TestUnknownRouteJSON404(t *testing.T) {
	f := setupApp(t)
	rr := f.do(http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestCORS(t *testing.T) {
	f := setupApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/simulation/toggle", nil)
	req.Header.Set("Origin", "http://dash.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://dash.local", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodGet, "/api/simulation/status", nil)
	req.Header.Set("Origin", "http://evil.local")
	rr = httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsHandler(t *testing.T) {
	f := setupApp(t)
	rr := f.do(http.MethodGet, "/debug/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	for _, k := range []string{"running", "orders_generated", "tick_failures", "feed", "uptime_sec"} {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/debug/vars").Code)
}

func TestStreamPushesOrders(t *testing.T) {
	f := setupApp(t)
	srv := httptest.NewServer(f.h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream/orders"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.hub.Metrics().Subscribers == 1 }, 2*time.Second, 10*time.Millisecond)
	o, err := f.app.Engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, f.hub.Publish(o))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg feed.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, feed.MessageTypeOrder, msg.Type)
	assert.Equal(t, o.ID, msg.Order.ID)
	assert.Equal(t, uint64(1), msg.Sequence)

	// Hijacked connections outlive srv.Close, so wait for the handler to unsubscribe.
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.hub.Metrics().Subscribers == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRejectedWhileShuttingDown(t *testing.T) {
	f := setupApp(t)
	f.app.StartShutdown()
	rr := f.do(http.MethodGet, "/api/stream/orders")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
