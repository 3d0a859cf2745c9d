package controllers

import (
	"regexp"

	"kindernest_go/database"
	"kindernest_go/middleware"
	"kindernest_go/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClassesController struct{}

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// GetClassGroups lists all class groups with child counts
func (cc *ClassesController) GetClassGroups(c *fiber.Ctx) error {
	var groups []models.ClassGroup
	if err := database.DB.Where("active = ?", true).Order("name ASC").Find(&groups).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch class groups"})
	}

	type groupWithCount struct {
		models.ClassGroup
		ChildCount int64 `json:"child_count"`
	}

	result := make([]groupWithCount, 0, len(groups))
	for _, g := range groups {
		var count int64
		database.DB.Model(&models.Child{}).
			Where("class_group_id = ? AND active = ?", g.ID, true).
			Count(&count)
		result = append(result, groupWithCount{ClassGroup: g, ChildCount: count})
	}

	return c.JSON(fiber.Map{"class_groups": result})
}

// GetClassGroup returns one group with its children and weekly schedule
func (cc *ClassesController) GetClassGroup(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil || groupID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	var group models.ClassGroup
	err = database.DB.
		Preload("Children", "active = ?", true).
		Preload("ScheduleSlots", func(db *gorm.DB) *gorm.DB {
			return db.Order("weekday ASC, sort_order ASC, start_time ASC")
		}).
		First(&group, groupID).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class group not found"})
	}

	return c.JSON(fiber.Map{"class_group": group})
}

type classGroupRequest struct {
	Name     string `json:"name" validate:"required"`
	Room     string `json:"room"`
	Capacity int    `json:"capacity"`
}

// CreateClassGroup adds a new group (admin only)
func (cc *ClassesController) CreateClassGroup(c *fiber.Ctx) error {
	var req classGroupRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	group := models.ClassGroup{
		Name:     req.Name,
		Room:     req.Room,
		Capacity: req.Capacity,
		Active:   true,
	}
	if group.Capacity == 0 {
		group.Capacity = 20
	}

	if err := database.DB.Create(&group).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Class group already exists"})
	}

	middleware.LogActivity(c, "CREATE", "class_groups", group.ID, fiber.Map{"name": group.Name})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"class_group": group})
}

// UpdateClassGroup edits group details (admin only)
func (cc *ClassesController) UpdateClassGroup(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil || groupID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	var group models.ClassGroup
	if err := database.DB.First(&group, groupID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class group not found"})
	}

	var req classGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Room != "" {
		updates["room"] = req.Room
	}
	if req.Capacity > 0 {
		updates["capacity"] = req.Capacity
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&group).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update class group"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "class_groups", group.ID, fiber.Map{"updates": updates})

	return c.JSON(fiber.Map{"class_group": group})
}

type scheduleSlotRequest struct {
	Weekday   int    `json:"weekday"`
	Subject   string `json:"subject" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	SortOrder int    `json:"sort_order"`
}

// GetSchedule returns the group's weekly timetable grouped by weekday
func (cc *ClassesController) GetSchedule(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil || groupID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	var slots []models.ClassScheduleSlot
	err = database.DB.
		Where("class_group_id = ?", groupID).
		Order("weekday ASC, sort_order ASC, start_time ASC").
		Find(&slots).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch schedule"})
	}

	byWeekday := make(map[int][]models.ClassScheduleSlot, 7)
	for _, slot := range slots {
		byWeekday[slot.Weekday] = append(byWeekday[slot.Weekday], slot)
	}

	return c.JSON(fiber.Map{"schedule": byWeekday})
}

// AddScheduleSlot appends a subject block to the weekly timetable
func (cc *ClassesController) AddScheduleSlot(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil || groupID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	var group models.ClassGroup
	if err := database.DB.First(&group, groupID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class group not found"})
	}

	var req scheduleSlotRequest
	if err := c.BodyParser(&req); err != nil || req.Subject == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Weekday must be 0 (Sunday) to 6 (Saturday)"})
	}
	if !timeOfDayPattern.MatchString(req.StartTime) || !timeOfDayPattern.MatchString(req.EndTime) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Times must be HH:MM"})
	}
	if req.EndTime <= req.StartTime {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "End time must be after start time"})
	}

	slot := models.ClassScheduleSlot{
		ClassGroupID: group.ID,
		Weekday:      req.Weekday,
		Subject:      req.Subject,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		SortOrder:    req.SortOrder,
	}
	if slot.SortOrder == 0 {
		slot.SortOrder = 1
	}

	if err := database.DB.Create(&slot).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create schedule slot"})
	}

	middleware.LogActivity(c, "CREATE", "schedule_slots", slot.ID, fiber.Map{
		"group_id": group.ID,
		"weekday":  slot.Weekday,
		"subject":  slot.Subject,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"slot": slot})
}

// DeleteScheduleSlot removes a subject block
func (cc *ClassesController) DeleteScheduleSlot(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil || groupID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}
	slotID, err := c.ParamsInt("slotId")
	if err != nil || slotID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid slot id"})
	}

	result := database.DB.Where("class_group_id = ?", groupID).Delete(&models.ClassScheduleSlot{}, slotID)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete schedule slot"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Schedule slot not found"})
	}

	middleware.LogActivity(c, "DELETE", "schedule_slots", uint(slotID), fiber.Map{"group_id": groupID})

	return c.JSON(fiber.Map{"message": "Schedule slot deleted"})
}

// GetRemark returns the group's note for a specific day
func (cc *ClassesController) GetRemark(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil || groupID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}
	dateKey := c.Params("date")
	if !dateKeyPattern.MatchString(dateKey) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
	}

	var remark models.ClassRemark
	err = database.DB.Where("class_group_id = ? AND date_key = ?", groupID, dateKey).First(&remark).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(fiber.Map{"remark": nil})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch remark"})
	}

	return c.JSON(fiber.Map{"remark": remark})
}

// SetRemark upserts the group's note for a specific day
func (cc *ClassesController) SetRemark(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil || groupID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}
	dateKey := c.Params("date")
	if !dateKeyPattern.MatchString(dateKey) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	remark := models.ClassRemark{
		ClassGroupID: uint(groupID),
		DateKey:      dateKey,
		Note:         req.Note,
	}
	err = database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "class_group_id"}, {Name: "date_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"note", "updated_at"}),
	}).Create(&remark).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save remark"})
	}

	middleware.LogActivity(c, "UPDATE", "class_remarks", uint(groupID), fiber.Map{"date_key": dateKey})

	return c.JSON(fiber.Map{"remark": remark})
}
