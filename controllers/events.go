package controllers

import (
	"time"

	"kindernest_go/database"
	"kindernest_go/middleware"
	"kindernest_go/models"
	"kindernest_go/services/notifications"

	"github.com/gofiber/fiber/v2"
)

type EventsController struct {
	notifier *notifications.Service
}

func NewEventsController(notifier *notifications.Service) *EventsController {
	return &EventsController{notifier: notifier}
}

// registrationWindowOpen reports whether now falls within [from, to]. Zero
// bounds are treated as unbounded.
func registrationWindowOpen(from, to time.Time, now time.Time) bool {
	if !from.IsZero() && now.Before(from) {
		return false
	}
	if !to.IsZero() && now.After(to) {
		return false
	}
	return true
}

// GetEvents lists upcoming events, newest first
func (ec *EventsController) GetEvents(c *fiber.Ctx) error {
	query := database.DB.Model(&models.Event{})
	if c.Query("all") != "true" {
		query = query.Where("event_date >= ?", time.Now().AddDate(0, 0, -1))
	}

	var events []models.Event
	if err := query.Order("event_date ASC").Find(&events).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch events"})
	}

	return c.JSON(fiber.Map{"events": events})
}

// GetEvent returns one event with its registrations
func (ec *EventsController) GetEvent(c *fiber.Ctx) error {
	eventID, err := c.ParamsInt("id")
	if err != nil || eventID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event id"})
	}

	var event models.Event
	if err := database.DB.Preload("Registrations.Child").First(&event, eventID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
	}

	var count int64
	database.DB.Model(&models.EventRegistration{}).Where("event_id = ?", event.ID).Count(&count)

	return c.JSON(fiber.Map{
		"event":            event,
		"registered_count": count,
		"window_open":      registrationWindowOpen(event.RegisterFrom, event.RegisterTo, time.Now()),
	})
}

type eventRequest struct {
	Title        string     `json:"title" validate:"required"`
	Detail       string     `json:"detail"`
	EventDate    time.Time  `json:"event_date" validate:"required"`
	Capacity     int        `json:"capacity"`
	RegisterFrom *time.Time `json:"register_from"`
	RegisterTo   *time.Time `json:"register_to"`
}

// CreateEvent publishes an event and notifies all parents
func (ec *EventsController) CreateEvent(c *fiber.Ctx) error {
	var req eventRequest
	if err := c.BodyParser(&req); err != nil || req.Title == "" || req.EventDate.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	event := models.Event{
		Title:     req.Title,
		Detail:    req.Detail,
		EventDate: req.EventDate,
		Capacity:  req.Capacity,
	}
	if req.RegisterFrom != nil {
		event.RegisterFrom = *req.RegisterFrom
	}
	if req.RegisterTo != nil {
		event.RegisterTo = *req.RegisterTo
	}
	if !event.RegisterFrom.IsZero() && !event.RegisterTo.IsZero() && event.RegisterTo.Before(event.RegisterFrom) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Registration window end is before start"})
	}

	if err := database.DB.Create(&event).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create event"})
	}

	middleware.LogActivity(c, "CREATE", "events", event.ID, fiber.Map{"title": event.Title})

	if ec.notifier != nil {
		go func() {
			_ = ec.notifier.NotifyAllParents(
				"New event: "+event.Title,
				event.Detail,
				"info",
			)
		}()
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"event": event})
}

// RegisterChild signs a child up for an event. Parents may only register
// their own children.
func (ec *EventsController) RegisterChild(c *fiber.Ctx) error {
	eventID, err := c.ParamsInt("id")
	if err != nil || eventID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event id"})
	}

	var req struct {
		ChildID uint `json:"child_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.ChildID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	if _, err := canAccessChild(c, req.ChildID); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Child not found or not yours"})
	}

	var event models.Event
	if err := database.DB.First(&event, eventID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
	}

	if !registrationWindowOpen(event.RegisterFrom, event.RegisterTo, time.Now()) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Registration window is closed"})
	}

	if event.Capacity > 0 {
		var count int64
		database.DB.Model(&models.EventRegistration{}).Where("event_id = ?", event.ID).Count(&count)
		if count >= int64(event.Capacity) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Event is full"})
		}
	}

	registration := models.EventRegistration{
		EventID:      event.ID,
		ChildID:      req.ChildID,
		RegisteredBy: user.ID,
	}
	if err := database.DB.Create(&registration).Error; err != nil {
		// the unique index catches duplicates
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Child is already registered"})
	}

	middleware.LogActivity(c, "CREATE", "event_registrations", registration.ID, fiber.Map{
		"event_id": event.ID,
		"child_id": req.ChildID,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"registration": registration})
}

// UnregisterChild cancels a registration
func (ec *EventsController) UnregisterChild(c *fiber.Ctx) error {
	eventID, err := c.ParamsInt("id")
	if err != nil || eventID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event id"})
	}
	childID, err := c.ParamsInt("childId")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}

	if _, err := canAccessChild(c, uint(childID)); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Child not found or not yours"})
	}

	result := database.DB.Where("event_id = ? AND child_id = ?", eventID, childID).
		Delete(&models.EventRegistration{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel registration"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Registration not found"})
	}

	middleware.LogActivity(c, "DELETE", "event_registrations", uint(eventID), fiber.Map{"child_id": childID})

	return c.JSON(fiber.Map{"message": "Registration cancelled"})
}
