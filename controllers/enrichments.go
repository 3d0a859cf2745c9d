package controllers

import (
	"time"

	"kindernest_go/database"
	"kindernest_go/middleware"
	"kindernest_go/models"
	"kindernest_go/services/notifications"

	"github.com/gofiber/fiber/v2"
)

type EnrichmentsController struct {
	notifier *notifications.Service
}

func NewEnrichmentsController(notifier *notifications.Service) *EnrichmentsController {
	return &EnrichmentsController{notifier: notifier}
}

// GetPrograms lists active enrichment programs
func (ec *EnrichmentsController) GetPrograms(c *fiber.Ctx) error {
	var programs []models.EnrichmentProgram
	if err := database.DB.Where("active = ?", true).Order("weekday ASC, start_time ASC").Find(&programs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch programs"})
	}
	return c.JSON(fiber.Map{"programs": programs})
}

// GetProgram returns one program with its registrations
func (ec *EnrichmentsController) GetProgram(c *fiber.Ctx) error {
	programID, err := c.ParamsInt("id")
	if err != nil || programID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid program id"})
	}

	var program models.EnrichmentProgram
	if err := database.DB.Preload("Registrations.Child").First(&program, programID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Program not found"})
	}

	var count int64
	database.DB.Model(&models.EnrichmentRegistration{}).Where("program_id = ?", program.ID).Count(&count)

	return c.JSON(fiber.Map{
		"program":          program,
		"registered_count": count,
		"window_open":      registrationWindowOpen(program.RegisterFrom, program.RegisterTo, time.Now()),
	})
}

type enrichmentProgramRequest struct {
	Name         string     `json:"name" validate:"required"`
	Detail       string     `json:"detail"`
	Weekday      int        `json:"weekday"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	Term         string     `json:"term"`
	Fee          int        `json:"fee"`
	Capacity     int        `json:"capacity"`
	RegisterFrom *time.Time `json:"register_from"`
	RegisterTo   *time.Time `json:"register_to"`
}

// CreateProgram publishes a program and notifies all parents
func (ec *EnrichmentsController) CreateProgram(c *fiber.Ctx) error {
	var req enrichmentProgramRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Weekday must be 0 (Sunday) to 6 (Saturday)"})
	}

	program := models.EnrichmentProgram{
		Name:      req.Name,
		Detail:    req.Detail,
		Weekday:   req.Weekday,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Term:      req.Term,
		Fee:       req.Fee,
		Capacity:  req.Capacity,
		Active:    true,
	}
	if req.RegisterFrom != nil {
		program.RegisterFrom = *req.RegisterFrom
	}
	if req.RegisterTo != nil {
		program.RegisterTo = *req.RegisterTo
	}

	if err := database.DB.Create(&program).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create program"})
	}

	middleware.LogActivity(c, "CREATE", "enrichment_programs", program.ID, fiber.Map{"name": program.Name})

	if ec.notifier != nil {
		go func() {
			_ = ec.notifier.NotifyAllParents(
				"New enrichment program: "+program.Name,
				program.Detail,
				"info",
			)
		}()
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"program": program})
}

// UpdateProgram edits program details or retires it
func (ec *EnrichmentsController) UpdateProgram(c *fiber.Ctx) error {
	programID, err := c.ParamsInt("id")
	if err != nil || programID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid program id"})
	}

	var program models.EnrichmentProgram
	if err := database.DB.First(&program, programID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Program not found"})
	}

	var req struct {
		enrichmentProgramRequest
		Active *bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Detail != "" {
		updates["detail"] = req.Detail
	}
	if req.Term != "" {
		updates["term"] = req.Term
	}
	if req.Fee > 0 {
		updates["fee"] = req.Fee
	}
	if req.Capacity > 0 {
		updates["capacity"] = req.Capacity
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&program).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update program"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "enrichment_programs", program.ID, fiber.Map{"updates": updates})

	return c.JSON(fiber.Map{"program": program})
}

// RegisterChild signs a child up for a program. Parents may only register
// their own children.
func (ec *EnrichmentsController) RegisterChild(c *fiber.Ctx) error {
	programID, err := c.ParamsInt("id")
	if err != nil || programID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid program id"})
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

	var program models.EnrichmentProgram
	if err := database.DB.Where("active = ?", true).First(&program, programID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Program not found"})
	}

	if !registrationWindowOpen(program.RegisterFrom, program.RegisterTo, time.Now()) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Registration window is closed"})
	}

	if program.Capacity > 0 {
		var count int64
		database.DB.Model(&models.EnrichmentRegistration{}).Where("program_id = ?", program.ID).Count(&count)
		if count >= int64(program.Capacity) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Program is full"})
		}
	}

	registration := models.EnrichmentRegistration{
		ProgramID:    program.ID,
		ChildID:      req.ChildID,
		RegisteredBy: user.ID,
	}
	if err := database.DB.Create(&registration).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Child is already registered"})
	}

	middleware.LogActivity(c, "CREATE", "enrichment_registrations", registration.ID, fiber.Map{
		"program_id": program.ID,
		"child_id":   req.ChildID,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"registration": registration})
}

// UnregisterChild cancels a program registration
func (ec *EnrichmentsController) UnregisterChild(c *fiber.Ctx) error {
	programID, err := c.ParamsInt("id")
	if err != nil || programID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid program id"})
	}
	childID, err := c.ParamsInt("childId")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}

	if _, err := canAccessChild(c, uint(childID)); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Child not found or not yours"})
	}

	result := database.DB.Where("program_id = ? AND child_id = ?", programID, childID).
		Delete(&models.EnrichmentRegistration{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel registration"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Registration not found"})
	}

	middleware.LogActivity(c, "DELETE", "enrichment_registrations", uint(programID), fiber.Map{"child_id": childID})

	return c.JSON(fiber.Map{"message": "Registration cancelled"})
}
