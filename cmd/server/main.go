package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	"github.com/pdftext/backend/internal/api"
	"github.com/pdftext/backend/internal/config"
	"github.com/pdftext/backend/internal/extract"
	"github.com/pdftext/backend/internal/journal"
	"github.com/pdftext/backend/internal/lifecycle"
	"github.com/pdftext/backend/internal/storage"
	"github.com/pdftext/backend/internal/upload"
	"github.com/pdftext/backend/internal/web"
	"github.com/sirupsen/logrus"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "PDFTextExtractor.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := cfg.NewLogger(os.Stderr)

	if err := cfg.Validate(); err != nil {
		log.WithField("config", configPath).Fatalf("Invalid configuration: %v", err)
	}
	maxFileSize, _ := cfg.MaxFileSizeBytes()

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	// Initialize storage; uploads never outlive the process.
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if err := fileStore.Purge(); err != nil {
		log.WithError(err).Warn("Failed to purge stale uploads")
	}

	attempts, err := journal.Open()
	if err != nil {
		log.Fatalf("Failed to open attempt journal: %v", err)
	}
	defer attempts.Close()

	engines := extract.NewRegistry(
		extract.NewDemoEngine(cfg.TickInterval()),
		extract.NewPDFEngine(fileStore, log),
	)
	engine, err := engines.Get(cfg.Extraction.Engine)
	if err != nil {
		log.Fatal(err)
	}

	hub := api.NewHub(cfg.Advanced.WebSocketBufferSize, log)
	intake := upload.NewIntake(fileStore, nil, log)

	ctrl, err := lifecycle.NewController(engine, lifecycle.Options{
		MaxFileSize: maxFileSize,
		Timeout:     cfg.ExtractionTimeout(),
		Engine:      engine.Name(),
		Renderer:    hub,
		Recorder:    attempts,
		Logger:      log,
		OnRelease:   intake.Release,
	})
	if err != nil {
		log.Fatalf("Failed to create session controller: %v", err)
	}
	intake.Attach(ctrl)
	hub.Attach(ctrl)

	// Check if running in embedded mode (frontend built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e)

	// Configure middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				path == "/api/health" ||
				path == "/api/ws"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.Round(time.Microsecond),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
			} else {
				entry.Info("request")
			}
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Accept") == "text/event-stream" ||
				c.Request().URL.Path == "/api/ws"
		},
	}))

	// Body limit for everything but uploads, which are bounded by MaxFileSize
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Skipper: api.SkipUploadBodyLimit,
		Limit:   cfg.Server.BodyLimit,
	}))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderContentDisposition},
		}))
	}

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Controller: ctrl,
		Intake:     intake,
		Journal:    attempts,
		Hub:        hub,
		Logger:     log,
		Version:    Version,
		Engine:     engine.Name(),
	}))

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.WithError(err).Warn("Failed to register static routes")
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           PDF Text Extractor Server                       ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Engine:     %-45s║\n", engine.Name())
	fmt.Printf("║  Max File:   %-45s║\n", bytes.Format(maxFileSize))
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Graceful shutdown failed")
	}
	if err := fileStore.Purge(); err != nil {
		log.WithError(err).Warn("Failed to purge uploads")
	}
}
