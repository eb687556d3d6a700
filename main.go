// main.go - Entry point and dependency injection
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/sstent/vo2sync-go/internal/config"
	"github.com/sstent/vo2sync-go/internal/database"
	"github.com/sstent/vo2sync-go/internal/logger"
	"github.com/sstent/vo2sync-go/internal/parser"
	"github.com/sstent/vo2sync-go/internal/strava"
	"github.com/sstent/vo2sync-go/internal/sync"
	"github.com/sstent/vo2sync-go/internal/tokenstore"
	"github.com/sstent/vo2sync-go/internal/web"
)

var (
	errStravaNotConfigured = errors.New("STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET must be set")
	errStateNotConfigured  = errors.New("STATE_TOKEN must be set")
)

type App struct {
	cfg         config.Config
	log         logrus.FieldLogger
	db          *database.SQLiteDB
	tokens      tokenstore.Store
	oauth       *oauth2.Config
	strava      *strava.Client
	syncService *sync.SyncService
	cron        *cron.Cron
	server      *http.Server
	shutdown    chan os.Signal
}

func main() {
	// Load environment variables from .env file
	log := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using system environment variables")
	}

	Execute()
}

func newApp(cfg config.Config) *App {
	return &App{
		cfg:      cfg,
		log:      logger.NewLogger(cfg.LogLevel),
		oauth:    strava.OAuthConfig(cfg.StravaClientID, cfg.StravaClientSecret, cfg.StravaRedirectURI),
		shutdown: make(chan os.Signal, 1),
	}
}

// init opens storage and the credential store and, when a token is
// available, connects the remote client.
func (app *App) init(ctx context.Context) error {
	var err error

	app.db, err = database.NewSQLiteDB(app.cfg.DBPath, app.log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	app.tokens, err = app.initTokenStore(ctx)
	if err != nil {
		return err
	}

	app.syncService = sync.NewSyncService(app.db, sync.Options{
		Parser:  parser.NewFITParser(nil, app.log),
		PerPage: app.cfg.SyncPerPage,
		Logger:  app.log,
	})

	if err := app.connectRemote(context.Background()); err != nil {
		app.log.WithError(err).Warn("remote service not connected")
	}
	return nil
}

func (app *App) initTokenStore(ctx context.Context) (tokenstore.Store, error) {
	switch app.cfg.TokenStore {
	case "redis":
		store, err := tokenstore.NewRedisStore(ctx, app.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect token store: %w", err)
		}
		return store, nil
	case "", "file":
		return tokenstore.NewFileStore(app.cfg.TokenFile), nil
	}
	return nil, fmt.Errorf("unknown TOKEN_STORE %q", app.cfg.TokenStore)
}

// connectRemote builds the authenticated client from the stored token and
// hands it to the sync service.
func (app *App) connectRemote(ctx context.Context) error {
	if !app.cfg.StravaConfigured() {
		return errStravaNotConfigured
	}
	hc, err := strava.NewHTTPClient(ctx, app.oauth, app.tokens, app.cfg.HTTPTimeout, app.log)
	if err != nil {
		return err
	}
	client, err := strava.NewClient(app.cfg.StravaBaseURL, hc)
	if err != nil {
		return err
	}
	app.strava = client
	app.syncService.Connect(strava.NewNormalizer(client, app.log), client)
	return nil
}

// connect completes the OAuth flow and connects the remote client.
func (app *App) connect(ctx context.Context, code string) error {
	if !app.cfg.StravaConfigured() {
		return errStravaNotConfigured
	}
	if _, err := strava.Exchange(ctx, app.oauth, app.tokens, code); err != nil {
		return err
	}
	return app.connectRemote(context.Background())
}

func (app *App) initServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	opts := web.Options{
		Connect:   app.connect,
		State:     app.cfg.StateToken,
		UploadDir: app.cfg.UploadDir,
		Logger:    app.log,
	}
	if app.cfg.StravaConfigured() && app.cfg.StateToken != "" {
		opts.AuthURL = strava.AuthCodeURL(app.oauth, app.cfg.StateToken)
	}
	webHandler := web.NewWebHandler(app.db, app.syncService, opts)
	webHandler.RegisterRoutes(router)

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (app *App) start() error {
	// Start cron scheduler
	app.cron = cron.New()
	_, err := app.cron.AddFunc(app.cfg.SyncSchedule, func() {
		app.log.Info("starting scheduled sync")
		if _, err := app.syncService.Sync(context.Background()); err != nil {
			if errors.Is(err, sync.ErrRemoteNotConnected) {
				app.log.Debug("skipping scheduled sync, remote service not connected")
				return
			}
			app.log.WithError(err).Error("scheduled sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", app.cfg.SyncSchedule, err)
	}
	app.cron.Start()

	// Start web server
	go func() {
		app.log.WithField("address", app.server.Addr).Info("server starting")
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.WithError(err).Error("server error")
			app.shutdown <- syscall.SIGTERM
		}
	}()
	return nil
}

func (app *App) serve() error {
	app.initServer()
	if err := app.start(); err != nil {
		return err
	}

	// Wait for shutdown signal
	signal.Notify(app.shutdown, os.Interrupt, syscall.SIGTERM)
	<-app.shutdown

	// Graceful shutdown
	app.stop()
	return nil
}

func (app *App) stop() {
	app.log.Info("shutting down")

	// Stop cron
	if app.cron != nil {
		<-app.cron.Stop().Done()
	}

	// Stop web server
	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.server.Shutdown(ctx); err != nil {
			app.log.WithError(err).Error("server shutdown error")
		}
	}

	app.close()
	app.log.Info("shutdown complete")
}

// close releases the database and the token store.
func (app *App) close() {
	if app.db != nil {
		app.db.Close()
	}
	if c, ok := app.tokens.(io.Closer); ok {
		c.Close()
	}
}
