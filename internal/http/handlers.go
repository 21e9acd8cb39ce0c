package httpapi

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/analytics"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/config"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/feed"
	httpopenapi "github.com/fairyhunter13/ecommerce-stream-simulator/internal/http/openapi"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/simulator"
)

// App holds the collaborators the handlers delegate to.
type App struct {
	Cfg     config.Config
	Engine  *simulator.Engine
	Stats   *analytics.Service
	Feed    *feed.Hub
	closing atomic.Bool
	started time.Time
}

type runningResponse struct {
	Running bool `json:"running"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewApp(cfg config.Config, eng *simulator.Engine, stats *analytics.Service, hub *feed.Hub) *App {
	return &App{Cfg: cfg, Engine: eng, Stats: stats, Feed: hub, started: time.Now()}
}

// StartShutdown makes control operations fail fast and stops feed intake.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	if a.Feed != nil {
		a.Feed.CloseIntake()
	}
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, runningResponse{Running: a.Engine.Running()})
}

func (a *App) toggleHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("running")
	if raw == "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "running query parameter is required")
		return
	}
	running, err := strconv.ParseBool(raw)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "running must be a boolean")
		return
	}
	if running {
		if a.closing.Load() {
			WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
			return
		}
		a.Engine.Start()
	} else {
		a.Engine.Stop()
	}
	writeJSON(w, runningResponse{Running: a.Engine.Running()})
}

func (a *App) dailyStatsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := a.Stats.DailyStats(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, st)
}

func (a *App) recentOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.Stats.RecentOrders(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, orders)
}

func (a *App) salesSeriesHandler(w http.ResponseWriter, r *http.Request) {
	limit := analytics.SalesSeriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > analytics.SalesSeriesLimit {
			WriteJSONError(w, http.StatusBadRequest, "validation_error", "limit must be within [1, 50]")
			return
		}
		limit = n
	}
	points, err := a.Stats.SalesSeries(r.Context(), limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, points)
}

func (a *App) categoryDistHandler(w http.ResponseWriter, r *http.Request) {
	dist, err := a.Stats.CategoryDistribution(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, dist)
}

func (a *App) inventoryHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.Stats.Inventory(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (a *App) restockHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := a.Engine.RestockByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	obs.Logger.Info("restock_requested",
		"product_id", p.ID,
		"stock", p.Stock,
		"request_id", RequestIDFromContext(r.Context()),
	)
	writeJSON(w, messageResponse{Message: "Restocked successfully"})
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	m := map[string]any{
		"running":          a.Engine.Running(),
		"orders_generated": obs.OrdersGenerated.Value(),
		"tick_failures":    obs.TickFailures.Value(),
		"restocks_applied": obs.RestocksApplied.Value(),
		"uptime_sec":       time.Since(a.started).Seconds(),
	}
	if a.Feed != nil {
		m["feed"] = a.Feed.Metrics()
	}
	writeJSON(w, m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>E-commerce Stream Simulator API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
