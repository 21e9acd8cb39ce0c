// Package app assembles the store, simulator, analytics, feed and HTTP layers and
// runs them until shutdown.
package app

import (
	"context"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/analytics"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/catalog"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/config"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/feed"
	httpapi "github.com/fairyhunter13/ecommerce-stream-simulator/internal/http"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/simulator"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store/mongostore"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store/sqlstore"
)

// OpenBackend connects to the store selected by cfg.StoreDriver.
func OpenBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.New(), nil
	case config.DriverSQLite, config.DriverPostgres:
		driver, dsn := sqlstore.DriverSQLite, cfg.SQLitePath
		if cfg.StoreDriver == config.DriverPostgres {
			driver, dsn = sqlstore.DriverPostgres, cfg.DatabaseURL
		}
		s, err := sqlstore.Open(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMongo:
		s, err := mongostore.Open(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Wrapf(config.ErrInvalid, "unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// LoadCatalog returns the catalog from cfg.SeedCatalogFile or the built-in one.
func LoadCatalog(cfg config.Config) (catalog.Catalog, error) {
	if cfg.SeedCatalogFile == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.SeedCatalogFile)
}

// SeedBackend seeds an empty backend from the configured catalog.
func SeedBackend(ctx context.Context, cfg config.Config, b store.Backend) (int, error) {
	c, err := LoadCatalog(cfg)
	if err != nil {
		return 0, err
	}
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return catalog.Seed(ctx, b, c, rng, time.Now())
}

// Service is the running simulator with its HTTP surface.
type Service struct {
	Cfg     config.Config
	Backend store.Backend
	Engine  *simulator.Engine
	Feed    *feed.Hub
	API     *httpapi.App
	handler http.Handler
}

// New wires a Service over b. Nothing runs until Run or Engine.Start.
func New(cfg config.Config, b store.Backend) *Service {
	hub := feed.NewHub(cfg)
	restock := cfg.RestockProbability
	if restock == 0 {
		restock = -1
	}
	eng := simulator.New(b, b, simulator.Options{
		MinDelay:           cfg.TickMinDelay,
		MaxDelay:           cfg.TickMaxDelay,
		ErrorBackoff:       cfg.ErrorBackoff,
		RestockProbability: restock,
		SampleCandidates:   cfg.SampleCandidates,
		Publisher:          hub,
	})
	api := httpapi.NewApp(cfg, eng, analytics.New(b, b, nil), hub)
	return &Service{
		Cfg:     cfg,
		Backend: b,
		Engine:  eng,
		Feed:    hub,
		API:     api,
		handler: httpapi.NewRouter(api),
	}
}

// Handler returns the HTTP handler with middleware applied.
func (s *Service) Handler() http.Handler { return s.handler }

// Run serves HTTP on ln until ctx is done, then shuts everything down within
// cfg.ShutdownTimeout. The engine is started first when cfg.AutoStart is set.
func (s *Service) Run(ctx context.Context, ln net.Listener) error {
	s.Feed.Start(context.WithoutCancel(ctx))
	if s.Cfg.AutoStart {
		s.Engine.Start()
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.Logger.Info("http_listen", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown(srv)
		return nil
	})
	return g.Wait()
}

func (s *Service) shutdown(srv *http.Server) {
	obs.Logger.Info("shutdown_begin")
	s.API.StartShutdown()
	ctx, cancel := context.WithTimeout(context.Background(), s.Cfg.ShutdownTimeout)
	defer cancel()

	s.Engine.Stop()
	if !s.Engine.Wait(ctx) {
		obs.Logger.Warn("shutdown_engine_timeout")
	}
	if s.Feed.DrainUntil(ctx) {
		obs.Logger.Info("shutdown_drain_complete")
	} else {
		obs.Logger.Warn("shutdown_drain_timeout")
	}
	s.Feed.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err.Error())
	}
	if err := s.Backend.Close(ctx); err != nil {
		obs.Logger.Error("store_close_error", "error", err.Error())
	}
	obs.Logger.Info("service_stopped")
}
