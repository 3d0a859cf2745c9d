package main

import (
	"log"
	"os"

	"kindernest_go/config"
	"kindernest_go/database"
	"kindernest_go/database/seeders"
	"kindernest_go/handlers"
	"kindernest_go/middleware"
	"kindernest_go/routes"
	"kindernest_go/services"
	"kindernest_go/services/notifications"
	"kindernest_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func init() {
	setupLogging()
	config.LoadConfig()
	database.Connect()

	if os.Getenv("SEED_DB") == "true" {
		seeders.SeedAll()
	}
}

func main() {
	wsHub := websocket.NewHub()
	go wsHub.Run()

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(config.AppConfig.MaxFileSize),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.LogActivityMiddleware())

	// Wire notifications to the WebSocket hub globally so any new Service
	// uses it (including the scheduler jobs)
	notifications.SetDefaultWSHub(wsHub)
	notifService := notifications.NewService()
	notifService.SetWebSocketHub(wsHub)
	if config.AppConfig.UseRedisNotifications {
		stopNotif := make(chan struct{})
		notifService.StartWorker(stopNotif)
	}

	// LINE push is optional and degrades to a no-op when unconfigured
	lineService := services.NewLineMessagingService()
	notifService.SetParentBroadcaster(lineService)

	// Attendance core: GORM store behind the service, live updates pushed
	// through the hub
	attendanceStore := services.NewAttendanceStore(database.DB)
	attendanceService := services.NewAttendanceService(attendanceStore)
	attendanceService.SetBroadcaster(wsHub)

	mailer := services.NewMailerService()
	logArchive := services.NewLogArchiveService()
	health := services.NewHealthService("KinderNest API", "1.0.0")

	// Cron jobs: morning roster prewarm, finalize reminder, log maintenance
	scheduler := services.NewSchedulerService(attendanceService, notifService)
	scheduler.Start()
	defer scheduler.Stop()

	routes.SetupRoutes(app, routes.Deps{
		WSHub:      wsHub,
		Attendance: attendanceService,
		Notifier:   notifService,
		Mailer:     mailer,
		LogArchive: logArchive,
		Health:     health,
	})

	// LINE webhook: public, signature-validated inside the handler
	lineWebhook := handlers.NewLineWebhookHandler(database.DB)
	app.Post("/webhooks/line", lineWebhook.Handle)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	addr := ":" + config.AppConfig.Port
	log.Printf("Server starting on port %s", config.AppConfig.Port)
	log.Printf("Environment: %s", config.AppConfig.AppEnv)

	if err := app.Listen(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// setupLogging configures the logging system
func setupLogging() {
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel("info")
	if err == nil {
		logrus.SetLevel(level)
	}

	if os.Getenv("APP_ENV") == "development" {
		logrus.SetOutput(os.Stdout)
	} else {
		file, err := os.OpenFile("logs/app.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logrus.SetOutput(file)
		}
	}
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
