package routes

import (
	"kindernest_go/controllers"
	"kindernest_go/middleware"
	"kindernest_go/services"
	"kindernest_go/services/notifications"
	"kindernest_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// Deps carries the shared services the controllers are built on.
type Deps struct {
	WSHub      *websocket.Hub
	Attendance *services.AttendanceService
	Notifier   *notifications.Service
	Mailer     *services.MailerService
	LogArchive *services.LogArchiveService
	Health     *services.HealthService
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Deps) {
	authController := &controllers.AuthController{}
	userController := &controllers.UserController{}
	childrenController := &controllers.ChildrenController{}
	classesController := &controllers.ClassesController{}
	attendanceController := controllers.NewAttendanceController(deps.Attendance)
	eventsController := controllers.NewEventsController(deps.Notifier)
	enrichmentsController := controllers.NewEnrichmentsController(deps.Notifier)
	albumsController := &controllers.AlbumsController{}
	medicalController := &controllers.MedicalController{}
	leavesController := controllers.NewLeavesController(deps.Attendance, deps.Notifier)
	notificationController := controllers.NewNotificationController(deps.Notifier)
	importController := controllers.NewAccountImportController(deps.Mailer)
	logController := controllers.NewLogController(deps.LogArchive)
	healthController := controllers.NewHealthController(deps.Health)
	wsController := controllers.NewWebSocketController(deps.WSHub)

	// API group
	api := app.Group("/api")

	// Health - public
	api.Get("/health", healthController.GetHealthStatus)

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Get("/profile", middleware.JWTMiddleware(), authController.GetProfile)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware())

	protected.Get("/profile", authController.GetProfile)
	protected.Put("/profile/password", authController.ChangePassword)
	protected.Post("/auth/logout", authController.Logout)

	// User management (admin only, except avatar)
	users := protected.Group("/users")
	users.Get("/", middleware.RequireAdmin(), userController.GetUsers)
	users.Get("/:id", middleware.RequireAdmin(), userController.GetUser)
	users.Post("/", middleware.RequireAdmin(), authController.Register)
	users.Put("/:id", middleware.RequireAdmin(), userController.UpdateUser)
	users.Delete("/:id", middleware.RequireAdmin(), userController.DeactivateUser)
	users.Post("/avatar", userController.UploadAvatar)
	users.Post("/reset-password", middleware.RequireAdmin(), authController.ResetPasswordByAdmin)

	// Bulk account import (admin only)
	protected.Post("/import/accounts", middleware.RequireAdmin(), importController.Import)

	// Children
	children := protected.Group("/children")
	children.Get("/", childrenController.GetChildren)
	children.Get("/:id", childrenController.GetChild)
	children.Post("/", middleware.RequireTeacherOrAdmin(), childrenController.CreateChild)
	children.Put("/:id", middleware.RequireTeacherOrAdmin(), childrenController.UpdateChild)
	children.Delete("/:id", middleware.RequireAdmin(), childrenController.DeactivateChild)
	children.Post("/:id/photo", childrenController.UploadChildPhoto)

	// Medical records and leave requests hang off children
	children.Get("/:childId/medical", medicalController.GetRecords)
	children.Post("/:childId/medical", medicalController.CreateRecord)
	children.Delete("/:childId/medical/:recordId", medicalController.DeleteRecord)

	leaves := protected.Group("/leaves")
	leaves.Get("/", leavesController.GetLeaveRequests)
	leaves.Post("/", leavesController.CreateLeaveRequest)
	leaves.Post("/:id/document", leavesController.UploadLeaveDocument)
	leaves.Patch("/:id/review", middleware.RequireTeacherOrAdmin(), leavesController.ReviewLeaveRequest)

	// Class groups, schedules and day remarks
	classes := protected.Group("/classes")
	classes.Get("/", classesController.GetClassGroups)
	classes.Get("/:id", classesController.GetClassGroup)
	classes.Post("/", middleware.RequireAdmin(), classesController.CreateClassGroup)
	classes.Put("/:id", middleware.RequireAdmin(), classesController.UpdateClassGroup)
	classes.Get("/:id/schedule", classesController.GetSchedule)
	classes.Post("/:id/schedule", middleware.RequireTeacherOrAdmin(), classesController.AddScheduleSlot)
	classes.Delete("/:id/schedule/:slotId", middleware.RequireTeacherOrAdmin(), classesController.DeleteScheduleSlot)
	classes.Get("/:id/remarks/:date", classesController.GetRemark)
	classes.Put("/:id/remarks/:date", middleware.RequireTeacherOrAdmin(), classesController.SetRemark)

	// Attendance (teachers and admins mutate, parents may read their group)
	attendance := protected.Group("/attendance")
	attendance.Get("/:groupId", attendanceController.GetDaily)
	attendance.Post("/:groupId/check-in", middleware.RequireTeacherOrAdmin(), attendanceController.CheckIn)
	attendance.Post("/:groupId/check-out", middleware.RequireTeacherOrAdmin(), attendanceController.CheckOut)
	attendance.Post("/:groupId/remark", middleware.RequireTeacherOrAdmin(), attendanceController.SetRemark)
	attendance.Post("/:groupId/finalize", middleware.RequireTeacherOrAdmin(), attendanceController.Finalize)
	attendance.Get("/:groupId/history/:date", attendanceController.GetHistory)

	// Events
	events := protected.Group("/events")
	events.Get("/", eventsController.GetEvents)
	events.Get("/:id", eventsController.GetEvent)
	events.Post("/", middleware.RequireTeacherOrAdmin(), eventsController.CreateEvent)
	events.Post("/:id/register", eventsController.RegisterChild)
	events.Delete("/:id/register/:childId", eventsController.UnregisterChild)

	// Enrichment programs
	enrichments := protected.Group("/enrichments")
	enrichments.Get("/", enrichmentsController.GetPrograms)
	enrichments.Get("/:id", enrichmentsController.GetProgram)
	enrichments.Post("/", middleware.RequireAdmin(), enrichmentsController.CreateProgram)
	enrichments.Put("/:id", middleware.RequireAdmin(), enrichmentsController.UpdateProgram)
	enrichments.Post("/:id/register", enrichmentsController.RegisterChild)
	enrichments.Delete("/:id/register/:childId", enrichmentsController.UnregisterChild)

	// Albums
	albums := protected.Group("/albums")
	albums.Get("/", albumsController.GetAlbums)
	albums.Get("/:id", albumsController.GetAlbum)
	albums.Post("/", middleware.RequireTeacherOrAdmin(), albumsController.CreateAlbum)
	albums.Post("/:id/photos", middleware.RequireTeacherOrAdmin(), albumsController.UploadPhotos)
	albums.Delete("/:id/photos/:photoId", middleware.RequireTeacherOrAdmin(), albumsController.DeletePhoto)

	// Notifications
	notificationsGroup := protected.Group("/notifications")
	notificationsGroup.Get("/", notificationController.GetNotifications)
	notificationsGroup.Get("/unread-count", notificationController.GetUnreadCount)
	notificationsGroup.Post("/", middleware.RequireTeacherOrAdmin(), notificationController.CreateNotification)
	notificationsGroup.Patch("/mark-all-read", notificationController.MarkAllAsRead)
	notificationsGroup.Patch("/:id/read", notificationController.MarkAsRead)
	notificationsGroup.Delete("/:id", notificationController.DeleteNotification)

	// Activity log management (admin only)
	logs := protected.Group("/logs", middleware.RequireAdmin())
	logs.Get("/", logController.GetLogs)
	logs.Get("/stats", logController.GetLogStats)
	logs.Get("/archives", logController.GetArchives)
	logs.Get("/archives/:id/download", logController.DownloadArchive)
	logs.Post("/archives", logController.TriggerArchive)
	logs.Delete("/old", logController.DeleteOldLogs)
	logs.Get("/:id", logController.GetLog)

	// WebSocket stats
	ws := protected.Group("/ws")
	ws.Get("/stats", middleware.RequireAdmin(), wsController.GetWebSocketStats)

	// WebSocket connection endpoint - use websocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", wsController.WebSocketHandler())
}
