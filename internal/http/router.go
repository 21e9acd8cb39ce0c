package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/simulation/status", app.statusHandler).Methods(http.MethodGet)
	api.HandleFunc("/simulation/toggle", app.toggleHandler).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/stats", app.dailyStatsHandler).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/recent-orders", app.recentOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/sales-chart", app.salesSeriesHandler).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/category-dist", app.categoryDistHandler).Methods(http.MethodGet)
	api.HandleFunc("/inventory", app.inventoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/inventory/restock/{id}", app.restockHandler).Methods(http.MethodPost)
	api.HandleFunc("/stream/orders", app.streamHandler).Methods(http.MethodGet)

	r.HandleFunc("/healthz", app.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/debug/metrics", app.metricsHandler).Methods(http.MethodGet)
	r.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", app.openapiHandler).Methods(http.MethodGet)
	r.HandleFunc("/docs", app.docsHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return WithRequestID(WithLogging(WithCORS(app.Cfg.CORSOrigins)(r)))
}
