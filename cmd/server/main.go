package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/config"
	"salespilot/internal/database"
	"salespilot/internal/handlers"
	"salespilot/internal/jobs"
	"salespilot/internal/logging"
	"salespilot/internal/middleware"
	"salespilot/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting SalesPilot Autopilot Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// Initialize MongoDB
	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mongoDB.Close(ctx)
	}()

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongoDB.Initialize(initCtx); err != nil {
		initCancel()
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}
	initCancel()

	// Initialize Redis (optional — single-replica mode without it)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, continuing without distributed locks: %v", err)
			redisService = nil
		}
	} else {
		log.Println("⚠️  REDIS_URL not set, running in single-replica mode")
	}

	// Metrics
	metrics := services.InitMetrics()

	// Stores
	proposalStore := services.NewProposalStore(mongoDB)
	settingsStore := services.NewSettingsStore(mongoDB)
	readers := autopilot.Readers{
		Prospects: services.NewProspectStore(mongoDB),
		Meetings:  services.NewMeetingStore(mongoDB),
		Research:  services.NewResearchStore(mongoDB),
		Outreach:  services.NewOutreachStore(mongoDB),
		Preps:     services.NewPrepStore(mongoDB),
		Followups: services.NewFollowupStore(mongoDB),
	}

	// Optional org-wide defaults file (hot-reloaded)
	if cfg.DefaultsFile != "" {
		applyDetectorDefaults(cfg.DefaultsFile, settingsStore)
		go startDefaultsFileWatcher(cfg.DefaultsFile, settingsStore)
	}

	// Event bus — carries proposal events to WS clients and execution
	// requests to workers
	eventBus := services.NewProposalEventBus()
	if redisService != nil && cfg.MirrorEventsToRedis {
		eventBus.EnableRedisMirror(redisService, "autopilot:executions")
		log.Println("📡 Execution events mirrored to Redis channel autopilot:executions")
	}

	// Detection engine
	engine := autopilot.NewEngine(proposalStore, readers, settingsStore, cfg.CompletionWindow)
	engine.SetMetrics(metrics)
	engine.SetNotifier(eventBus)
	if redisService != nil {
		engine.SetLocker(redisService)
	}

	// Lifecycle controller
	controller := autopilot.NewController(proposalStore, readers, eventBus)
	controller.SetMetrics(metrics)
	controller.SetNotifier(eventBus)

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	jobScheduler.Register("expire_sweep", jobs.NewExpireSweepJob(proposalStore, redisService, metrics, cfg.ExpireSweepInterval))
	jobScheduler.Register("unsnooze_sweep", jobs.NewUnsnoozeSweepJob(proposalStore, redisService, metrics, cfg.UnsnoozeSweepInterval))
	jobScheduler.Register("watchdog", jobs.NewWatchdogJob(controller, redisService, cfg.WatchdogInterval, cfg.WatchdogThreshold))
	jobScheduler.Register("detection_sweep", jobs.NewDetectionSweepJob(engine, settingsStore, redisService, cfg.DetectionInterval))
	if err := jobScheduler.Start(); err != nil {
		log.Fatalf("❌ Failed to start job scheduler: %v", err)
	}

	// Per-owner custom detection schedules
	detectionScheduler, err := services.NewDetectionScheduler(engine, settingsStore)
	if err != nil {
		log.Fatalf("❌ Failed to create detection scheduler: %v", err)
	}
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := detectionScheduler.Start(startCtx); err != nil {
		log.Printf("⚠️ Failed to start detection scheduler: %v", err)
	}
	startCancel()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SalesPilot Autopilot v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("salespilot")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-User-ID,X-Organization-ID",
		AllowCredentials: allowedOrigins != "*",
	}))

	// Global rate limit, keyed per user where the gateway identifies one
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID := c.Get("X-User-ID"); userID != "" {
				return userID
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please slow down",
			})
		},
	}))

	// Handlers
	runLimiter := services.NewRunLimiter(cfg.DetectionRunLimit)
	healthHandler := handlers.NewHealthHandler(mongoDB, redisService)
	proposalHandler := handlers.NewProposalHandler(controller, engine, proposalStore, runLimiter)
	settingsHandler := handlers.NewSettingsHandler(settingsStore)
	settingsHandler.SetScheduler(detectionScheduler)
	wsHandler := handlers.NewAutopilotWebSocketHandler(eventBus, metrics)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api", middleware.OwnerMiddleware())

	api.Get("/proposals", proposalHandler.ListProposals)
	api.Get("/proposals/:id", proposalHandler.GetProposal)
	api.Post("/proposals/:id/accept", proposalHandler.AcceptProposal)
	api.Post("/proposals/:id/decline", proposalHandler.DeclineProposal)
	api.Post("/proposals/:id/snooze", proposalHandler.SnoozeProposal)
	api.Post("/proposals/:id/retry", proposalHandler.RetryProposal)
	api.Post("/proposals/:id/complete", proposalHandler.CompleteProposal)
	api.Post("/executions/:id/status", proposalHandler.UpdateExecutionStatus)

	api.Get("/autopilot/settings", settingsHandler.GetSettings)
	api.Put("/autopilot/settings", settingsHandler.UpdateSettings)
	api.Post("/autopilot/run", proposalHandler.TriggerRun)

	// WebSocket endpoint
	app.Use("/ws/autopilot", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			userID := c.Get("X-User-ID")
			if userID == "" {
				return fiber.ErrUnauthorized
			}
			c.Locals("user_id", userID)
			c.Locals("organization_id", c.Get("X-Organization-ID"))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/autopilot", websocket.New(wsHandler.Handle, websocket.Config{
		Origins: strings.Split(allowedOrigins, ","),
	}))

	// Start server
	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("🔗 WebSocket endpoint: ws://localhost:%s/ws/autopilot", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🕐 Background jobs: detection sweep (%s), watchdog (%s), expire/unsnooze sweeps (%s/%s)",
		cfg.DetectionInterval, cfg.WatchdogInterval, cfg.ExpireSweepInterval, cfg.UnsnoozeSweepInterval)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()

		if err := detectionScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping detection scheduler: %v", err)
		}

		if redisService != nil {
			if err := redisService.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// applyDetectorDefaults loads the YAML defaults file into the settings store.
func applyDetectorDefaults(filePath string, settingsStore *services.SettingsStore) {
	defaults, err := config.LoadDetectorDefaults(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to load detector defaults from %s: %v", filePath, err)
		return
	}
	settingsStore.SetDefaultsProvider(defaults.Apply)
	log.Printf("✅ Detector defaults loaded from %s", filePath)
}

// startDefaultsFileWatcher watches the defaults file for changes and reloads it
func startDefaultsFileWatcher(filePath string, settingsStore *services.SettingsStore) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					log.Printf("🔄 Detected changes in %s, reloading detector defaults...", filePath)
					applyDetectorDefaults(filePath, settingsStore)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
