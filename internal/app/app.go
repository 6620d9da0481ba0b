package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"

	"github.com/lcalzada-xor/geoloc/internal/adapters/provider"
	"github.com/lcalzada-xor/geoloc/internal/adapters/reporting"
	"github.com/lcalzada-xor/geoloc/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/geoloc/internal/adapters/web/server"
	"github.com/lcalzada-xor/geoloc/internal/config"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
	"github.com/lcalzada-xor/geoloc/internal/core/services/geolocation"
	grpcserver "github.com/lcalzada-xor/geoloc/internal/core/services/grpc"
	"github.com/lcalzada-xor/geoloc/internal/core/services/persistence"
	"github.com/lcalzada-xor/geoloc/internal/geo"
	"github.com/lcalzada-xor/geoloc/internal/telemetry"
)

const persistenceBuffer = 10000

// Application holds the daemon components and orchestrates their lifecycle.
type Application struct {
	Config             *config.Config
	Platform           ports.LocationService
	Feed               *provider.Feed
	Store              *storage.SQLiteAdapter
	PersistenceManager *persistence.PersistenceManager
	Geo                *geolocation.Service
	WebServer          *webserver.Server
	GrpcServer         *grpc.Server
}

// New creates an Application and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}
	if err := app.bootstrap(); err != nil {
		if app.Geo != nil {
			app.Geo.Close()
		}
		app.cleanup()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	telemetry.InitMetrics()

	if err := app.initStorage(); err != nil {
		return err
	}
	app.initPlatform()

	opts := []geolocation.Option{geolocation.WithStore(app.Store)}
	if app.Config.Persist {
		app.PersistenceManager = persistence.NewPersistenceManager(app.Store, persistenceBuffer)
		opts = append(opts, geolocation.WithRecorder(app.PersistenceManager))
	}
	app.Geo = geolocation.NewService(app.Platform, opts...)

	platformCfg, err := app.Config.PlatformConfig()
	if err != nil {
		return err
	}
	if err := app.Geo.SetConfiguration(platformCfg); err != nil {
		return err
	}

	app.initServers()
	return nil
}

func (app *Application) initStorage() error {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create DB directory: %w", err)
	}
	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init fix storage: %w", err)
	}
	app.Store = store
	return nil
}

func (app *Application) initPlatform() {
	cfg := app.Config
	perms := provider.NewPermissions(cfg.InitialAuthorization, cfg.GrantedStatus())

	switch cfg.Provider {
	case config.ProviderStatic:
		app.Platform = provider.NewStatic(cfg.Platform, cfg.Latitude, cfg.Longitude, perms)
	case config.ProviderFeed:
		app.Feed = provider.NewFeed(cfg.Platform, perms)
		app.Platform = app.Feed
	default:
		start := geo.Location{Latitude: cfg.Latitude, Longitude: cfg.Longitude}
		app.Platform = provider.NewSimulated(cfg.Platform, start, cfg.Profile, perms)
	}
	slog.Info("Location provider ready", "provider", cfg.Provider, "platform", cfg.Platform, "authorization", cfg.InitialAuthorization)
}

func (app *Application) initServers() {
	opts := webserver.Options{
		Addr:           app.Config.Addr,
		Geo:            app.Geo,
		Store:          app.Store,
		Exporter:       reporting.NewPDFExporter(),
		RateLimit:      app.Config.RateLimit,
		AllowedOrigins: app.Config.AllowedOrigins,
	}
	if app.Config.TokenHash != "" {
		opts.TokenHash = []byte(app.Config.TokenHash)
	}
	if app.Feed != nil {
		opts.Feed = app.Feed
	}
	app.WebServer = webserver.NewServer(opts)

	if app.Config.GRPCAddr != "" {
		app.GrpcServer = grpcserver.NewGrpcServer(app.Geo)
	}
}

// Run starts the servers and blocks until ctx ends or one of them fails.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting geoloc components...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if app.PersistenceManager != nil {
		app.PersistenceManager.Start(ctx)
	}

	errChan := make(chan error, 2)

	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	if app.GrpcServer != nil {
		lis, err := net.Listen("tcp", app.Config.GRPCAddr)
		if err != nil {
			return errors.Join(fmt.Errorf("grpc listen error: %w", err), app.shutdown(cancel))
		}
		slog.Info("gRPC server listening", "addr", lis.Addr().String())

		go func() {
			<-ctx.Done()
			app.GrpcServer.GracefulStop()
		}()
		go func() {
			if err := app.GrpcServer.Serve(lis); err != nil {
				errChan <- fmt.Errorf("grpc server error: %w", err)
			}
		}()
	}

	slog.Info("geoloc ready. Press Ctrl+C to terminate.")

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case runErr = <-errChan:
	}
	return errors.Join(runErr, app.shutdown(cancel))
}

func (app *Application) shutdown(cancel context.CancelFunc) error {
	cancel()
	// watches end before the recorder flushes so their last fixes are kept
	if app.Geo != nil {
		app.Geo.Close()
	}
	if app.PersistenceManager != nil {
		<-app.PersistenceManager.Done()
	}
	return app.cleanup()
}

func (app *Application) cleanup() error {
	slog.Info("Cleaning up resources...")
	if app.Store != nil {
		return app.Store.Close()
	}
	return nil
}
