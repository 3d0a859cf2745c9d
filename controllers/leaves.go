package controllers

import (
	"errors"
	"fmt"
	"time"

	"kindernest_go/config"
	"kindernest_go/database"
	"kindernest_go/middleware"
	"kindernest_go/models"
	"kindernest_go/services"
	"kindernest_go/services/notifications"
	"kindernest_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type LeavesController struct {
	attendance *services.AttendanceService
	notifier   *notifications.Service
}

func NewLeavesController(attendance *services.AttendanceService, notifier *notifications.Service) *LeavesController {
	return &LeavesController{attendance: attendance, notifier: notifier}
}

// GetLeaveRequests lists requests. Parents see their own children's, staff
// see all, optionally filtered by status.
func (lc *LeavesController) GetLeaveRequests(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	query := database.DB.Model(&models.LeaveRequest{}).Preload("Child")
	if user.Role == "parent" {
		var childIDs []uint
		database.DB.Model(&models.Child{}).Where("parent_id = ?", user.ID).Pluck("id", &childIDs)
		query = query.Where("child_id IN ?", childIDs)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []models.LeaveRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch leave requests"})
	}

	return c.JSON(fiber.Map{"leave_requests": requests})
}

type leaveRequestBody struct {
	ChildID   uint      `json:"child_id" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Reason    string    `json:"reason"`
}

// CreateLeaveRequest submits an absence notice for review
func (lc *LeavesController) CreateLeaveRequest(c *fiber.Ctx) error {
	var req leaveRequestBody
	if err := c.BodyParser(&req); err != nil || req.ChildID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() || req.EndDate.Before(req.StartDate) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date range"})
	}

	child, err := canAccessChild(c, req.ChildID)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Child not found or not yours"})
	}

	leave := models.LeaveRequest{
		ChildID:   child.ID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
		Status:    "pending",
	}
	if err := database.DB.Create(&leave).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create leave request"})
	}

	middleware.LogActivity(c, "CREATE", "leave_requests", leave.ID, fiber.Map{
		"child_id": child.ID,
		"from":     req.StartDate.Format("2006-01-02"),
		"to":       req.EndDate.Format("2006-01-02"),
	})

	// let the teachers know right away
	if lc.notifier != nil {
		var teacherIDs []uint
		database.DB.Model(&models.User{}).
			Where("role IN ? AND status = ?", []string{"teacher", "admin"}, "active").
			Pluck("id", &teacherIDs)
		if len(teacherIDs) > 0 {
			_ = lc.notifier.EnqueueOrCreate(teacherIDs, notifications.Queued(
				"New leave request",
				fmt.Sprintf("%s requested leave %s to %s",
					child.FullName(),
					req.StartDate.Format("2006-01-02"),
					req.EndDate.Format("2006-01-02")),
				"info"))
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"leave_request": leave})
}

// UploadLeaveDocument attaches a supporting document (a doctor's note,
// usually) to a pending leave request.
func (lc *LeavesController) UploadLeaveDocument(c *fiber.Ctx) error {
	leaveID, err := c.ParamsInt("id")
	if err != nil || leaveID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid leave request id"})
	}

	var leave models.LeaveRequest
	if err := database.DB.First(&leave, leaveID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Leave request not found"})
	}
	if _, err := canAccessChild(c, leave.ChildID); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your child's leave request"})
	}
	if leave.Status != "pending" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Leave request already reviewed"})
	}

	file, err := c.FormFile("document")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "document file is required"})
	}

	storageService, err := storage.NewStorageService()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Storage unavailable"})
	}
	url, err := storageService.UploadDocument(file, storage.FolderLeaves, leave.ChildID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload document"})
	}

	if leave.DocumentURL != "" {
		_ = storageService.DeleteFile(leave.DocumentURL)
	}
	if err := database.DB.Model(&leave).Update("document_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save document"})
	}

	middleware.LogActivity(c, "UPDATE", "leave_requests", leave.ID, fiber.Map{
		"document_url": url,
	})

	return c.JSON(fiber.Map{"leave_request": leave})
}

// ReviewLeaveRequest approves or rejects a pending request. Approval marks
// the child's attendance remark on any already-open days in the range.
func (lc *LeavesController) ReviewLeaveRequest(c *fiber.Ctx) error {
	leaveID, err := c.ParamsInt("id")
	if err != nil || leaveID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid leave request id"})
	}

	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || (req.Status != "approved" && req.Status != "rejected") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Status must be approved or rejected"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var leave models.LeaveRequest
	if err := database.DB.Preload("Child").First(&leave, leaveID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Leave request not found"})
	}
	if leave.Status != "pending" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Leave request already reviewed"})
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      req.Status,
		"reviewed_by": user.ID,
		"reviewed_at": now,
	}
	if err := database.DB.Model(&leave).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update leave request"})
	}

	if req.Status == "approved" {
		lc.annotateAttendance(&leave)
	}

	middleware.LogActivity(c, "UPDATE", "leave_requests", leave.ID, fiber.Map{
		"status":      req.Status,
		"reviewed_by": user.ID,
	})

	if lc.notifier != nil {
		_ = lc.notifier.EnqueueOrCreate([]uint{leave.Child.ParentID}, notifications.Queued(
			"Leave request "+req.Status,
			fmt.Sprintf("The leave request for %s was %s", leave.Child.FullName(), req.Status),
			"info"))
	}

	return c.JSON(fiber.Map{"leave_request": leave})
}

// annotateAttendance writes an "on leave" remark into any attendance record
// in the leave range that is already open. Days whose record has not been
// synthesized yet are skipped; the finalize flow will not reach back.
func (lc *LeavesController) annotateAttendance(leave *models.LeaveRequest) {
	if lc.attendance == nil || leave.Child.ClassGroupID == 0 {
		return
	}

	loc := config.AppConfig.SchoolLocation()
	remark := "On approved leave"
	if leave.Reason != "" {
		remark = "On approved leave: " + leave.Reason
	}

	for day := leave.StartDate; !day.After(leave.EndDate); day = day.AddDate(0, 0, 1) {
		dateKey := services.DateKeyIn(day, loc)
		if _, err := lc.attendance.SetRemark(leave.Child.ClassGroupID, leave.ChildID, dateKey, remark); err != nil {
			if !errors.Is(err, services.ErrRecordNotReady) {
				logrus.WithError(err).WithFields(logrus.Fields{
					"child_id": leave.ChildID,
					"date_key": dateKey,
				}).Warn("Failed to annotate attendance for approved leave")
			}
		}
	}
}
