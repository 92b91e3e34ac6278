package api

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/reconcilarr/internal/api/handlers"
	"github.com/amaumene/reconcilarr/internal/api/middleware"
	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps are the components the HTTP surface exposes
type Deps struct {
	DB        *models.Database
	Scheduler *scheduler.Scheduler
	Watcher   *controllers.WatcherController
	Renamer   *controllers.RenameController
	Download  *controllers.DownloadController
	Settings  *controllers.SettingsCache
}

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(port string, deps Deps, logger *logrus.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "reconcilarr",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           60 * time.Second,
		// Owner ids outlive the request in scheduler and watcher maps
		Immutable: true,
	})
	app.Use(middleware.Logging(logger))

	s := &Server{
		app:    app,
		addr:   ":" + port,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s
}

// App exposes the fiber app for in-process requests
func (s *Server) App() *fiber.App {
	return s.app
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(deps Deps) {
	health := handlers.NewHealthHandler(s.logger)
	s.app.Get("/health", health.Get)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Registered before the owner group so "webhook" is never read as an owner
	webhook := handlers.NewWebhookHandler(deps.Download, s.logger)
	s.app.Post("/api/webhook/download", webhook.Post)

	owner := s.app.Group("/api/:owner")

	status := handlers.NewStatusHandler(deps.DB, deps.Scheduler, deps.Watcher, s.logger)
	owner.Get("/status", status.Get)
	owner.Post("/check", status.Check)

	watcher := handlers.NewWatcherHandler(deps.Watcher, deps.Scheduler, s.logger)
	owner.Post("/watcher/scan", watcher.Scan)
	owner.Get("/watcher/pending", watcher.Pending)
	owner.Post("/watcher/pending/:id/approve", watcher.Approve)
	owner.Post("/watcher/pending/:id/reject", watcher.Reject)

	media := handlers.NewMediaHandler(deps.DB, deps.Scheduler, s.logger)
	owner.Get("/movies", media.ListMovies)
	owner.Post("/movies", media.AddMovie)
	owner.Delete("/movies/:id", media.DeleteMovie)
	owner.Get("/series", media.ListSeries)
	owner.Post("/series", media.AddSeries)
	owner.Delete("/series/:id", media.DeleteSeries)
	owner.Put("/series/:id/episodes", media.SelectEpisodes)
	owner.Post("/series/:id/episodes/select-all", media.SelectAllEpisodes)
	owner.Post("/series/:id/episodes/unselect-all", media.UnselectAllEpisodes)

	renames := handlers.NewRenameHandler(deps.Renamer, s.logger)
	owner.Get("/renames/preview", renames.Preview)
	owner.Post("/renames/apply", renames.Apply)

	settings := handlers.NewSettingsHandler(deps.Settings, deps.Scheduler, s.logger)
	owner.Get("/settings", settings.Get)
	owner.Put("/settings", settings.Put)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}
