// Package server initializes and runs the sync backend: config, logging,
// database with migrations, services, and the HTTP endpoint, with graceful
// shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/verdalabs/wellspring/internal/logging"
	"github.com/verdalabs/wellspring/internal/server/config"
	"github.com/verdalabs/wellspring/internal/server/httpapi"
	"github.com/verdalabs/wellspring/internal/server/repositories/repomanager"
	"github.com/verdalabs/wellspring/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	userService *services.UserService
	syncService *services.SyncService
	feedService *services.FeedService
}

func NewApp(c *config.Config) (*App, error) {

	l := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(l)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := m.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	fs := services.NewFeedService(db, m, c, logger)
	ss := services.NewSyncService(db, m, fs, logger, c)
	us := services.NewUserService(db, m, c)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		userService: us,
		syncService: ss,
		feedService: fs,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	router := httpapi.NewRouter(
		app.syncService,
		app.userService,
		app.feedService,
		app.db,
		[]byte(app.config.SecretKey),
		app.logger,
	)

	s := httpapi.NewHTTPServer(app.config.EndpointAddr, router.Routes(), app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
