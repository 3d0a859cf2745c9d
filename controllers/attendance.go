package controllers

import (
	"errors"
	"regexp"
	"strconv"

	"kindernest_go/middleware"
	"kindernest_go/models"
	"kindernest_go/services"
	"kindernest_go/utils"

	"github.com/gofiber/fiber/v2"
)

type AttendanceController struct {
	service *services.AttendanceService
}

func NewAttendanceController(service *services.AttendanceService) *AttendanceController {
	return &AttendanceController{service: service}
}

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// resolveDateKey takes the ?date= query param or falls back to today in the
// school timezone.
func resolveDateKey(c *fiber.Ctx) (string, error) {
	dateKey := c.Query("date")
	if dateKey == "" {
		return services.TodayKey(), nil
	}
	if !dateKeyPattern.MatchString(dateKey) {
		return "", errors.New("date must be YYYY-MM-DD")
	}
	return dateKey, nil
}

func parseGroupID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("groupId"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid group id")
	}
	return uint(id), nil
}

// attendanceError maps service errors to HTTP responses.
func attendanceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrRecordNotReady):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Attendance record for this day has not been opened yet",
		})
	case errors.Is(err, services.ErrEntryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Child is not on this day's roster",
		})
	case errors.Is(err, services.ErrVersionConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Attendance record was modified concurrently, please retry",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Attendance operation failed",
		})
	}
}

// GetDaily returns the group's attendance record for the requested day,
// synthesizing it from the current roster on first access.
func (ac *AttendanceController) GetDaily(c *fiber.Ctx) error {
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	dateKey, err := resolveDateKey(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	record, err := ac.service.Reconcile(groupID, dateKey)
	if err != nil {
		return attendanceError(c, err)
	}

	return c.JSON(fiber.Map{
		"attendance": utils.ToAttendanceRecordDTO(*record),
	})
}

type attendanceMutationRequest struct {
	ChildID uint   `json:"child_id" validate:"required"`
	Remark  string `json:"remark"`
}

// CheckIn marks a child present and stamps the arrival time
func (ac *AttendanceController) CheckIn(c *fiber.Ctx) error {
	return ac.mutate(c, "CHECK_IN", func(groupID, childID uint, dateKey, _ string) (*models.AttendanceRecord, error) {
		return ac.service.CheckIn(groupID, childID, dateKey)
	})
}

// CheckOut marks a child absent for the rest of the day and stamps the
// departure time. The arrival time is preserved.
func (ac *AttendanceController) CheckOut(c *fiber.Ctx) error {
	return ac.mutate(c, "CHECK_OUT", func(groupID, childID uint, dateKey, _ string) (*models.AttendanceRecord, error) {
		return ac.service.CheckOut(groupID, childID, dateKey)
	})
}

// SetRemark updates the free-text remark on a child's entry
func (ac *AttendanceController) SetRemark(c *fiber.Ctx) error {
	return ac.mutate(c, "SET_REMARK", func(groupID, childID uint, dateKey, remark string) (*models.AttendanceRecord, error) {
		return ac.service.SetRemark(groupID, childID, dateKey, remark)
	})
}

func (ac *AttendanceController) mutate(c *fiber.Ctx, action string,
	op func(groupID, childID uint, dateKey, remark string) (*models.AttendanceRecord, error)) error {

	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	dateKey, err := resolveDateKey(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var req attendanceMutationRequest
	if err := c.BodyParser(&req); err != nil || req.ChildID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	record, err := op(groupID, req.ChildID, dateKey, req.Remark)
	if err != nil {
		return attendanceError(c, err)
	}

	middleware.LogActivity(c, action, "attendance", req.ChildID, fiber.Map{
		"group_id": groupID,
		"date_key": dateKey,
	})

	return c.JSON(fiber.Map{"attendance": utils.ToAttendanceRecordDTO(*record)})
}

// Finalize strips in/out times into a permanent daily snapshot. The live
// record stays readable but frozen snapshots replace any earlier one.
func (ac *AttendanceController) Finalize(c *fiber.Ctx) error {
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	dateKey, err := resolveDateKey(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	history, err := ac.service.Finalize(groupID, dateKey, user.ID)
	if err != nil {
		return attendanceError(c, err)
	}

	middleware.LogActivity(c, "FINALIZE", "attendance", groupID, fiber.Map{
		"date_key": dateKey,
		"entries":  len(history.Entries),
	})

	return c.JSON(fiber.Map{
		"message": "Attendance finalized",
		"history": history,
	})
}

// GetHistory returns the finalized snapshot for a past day
func (ac *AttendanceController) GetHistory(c *fiber.Ctx) error {
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	dateKey := c.Params("date")
	if !dateKeyPattern.MatchString(dateKey) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
	}

	history, err := ac.service.History(groupID, dateKey)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load history"})
	}
	if history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No finalized attendance for this day"})
	}

	return c.JSON(fiber.Map{"history": history})
}
