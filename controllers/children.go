package controllers

import (
	"kindernest_go/database"
	"kindernest_go/middleware"
	"kindernest_go/models"
	"kindernest_go/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ChildrenController struct{}

// childOwnedByParent checks that the given child belongs to the parent.
func childOwnedByParent(childID, parentID uint) (*models.Child, error) {
	var child models.Child
	err := database.DB.Where("id = ? AND parent_id = ?", childID, parentID).First(&child).Error
	if err != nil {
		return nil, err
	}
	return &child, nil
}

// canAccessChild returns the child if the current user may read it: parents
// only see their own children, staff see everyone.
func canAccessChild(c *fiber.Ctx, childID uint) (*models.Child, error) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return nil, err
	}

	if user.Role == "parent" {
		return childOwnedByParent(childID, user.ID)
	}

	var child models.Child
	if err := database.DB.First(&child, childID).Error; err != nil {
		return nil, err
	}
	return &child, nil
}

// GetChildren lists children. Parents get their own, staff can filter by
// class group.
func (cc *ChildrenController) GetChildren(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	query := database.DB.Model(&models.Child{}).Where("active = ?", true)
	if user.Role == "parent" {
		query = query.Where("parent_id = ?", user.ID)
	} else if groupID := c.QueryInt("group_id"); groupID > 0 {
		query = query.Where("class_group_id = ?", groupID)
	}

	var children []models.Child
	if err := query.Preload("ClassGroup").Order("first_name ASC").Find(&children).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch children"})
	}

	return c.JSON(fiber.Map{"children": children})
}

// GetChild returns one child with class group details
func (cc *ChildrenController) GetChild(c *fiber.Ctx) error {
	childID, err := c.ParamsInt("id")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}

	child, err := canAccessChild(c, uint(childID))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Child not found"})
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
	}

	database.DB.Preload("ClassGroup").Preload("Parent").First(child, child.ID)
	child.Parent.Password = ""

	return c.JSON(fiber.Map{"child": child})
}

type childRequest struct {
	ParentID     uint   `json:"parent_id"`
	ClassGroupID uint   `json:"class_group_id"`
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name"`
	Nickname     string `json:"nickname"`
	Gender       string `json:"gender"`
	AllergyNote  string `json:"allergy_note"`
}

// CreateChild registers a child under a parent account (staff only)
func (cc *ChildrenController) CreateChild(c *fiber.Ctx) error {
	var req childRequest
	if err := c.BodyParser(&req); err != nil || req.FirstName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var parent models.User
	if err := database.DB.Where("id = ? AND role = ?", req.ParentID, "parent").First(&parent).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Parent account not found"})
	}

	if req.ClassGroupID != 0 {
		var group models.ClassGroup
		if err := database.DB.First(&group, req.ClassGroupID).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Class group not found"})
		}
	}

	child := models.Child{
		ParentID:     req.ParentID,
		ClassGroupID: req.ClassGroupID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Nickname:     req.Nickname,
		Gender:       req.Gender,
		AllergyNote:  req.AllergyNote,
		Active:       true,
	}
	if err := database.DB.Create(&child).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create child"})
	}

	middleware.LogActivity(c, "CREATE", "children", child.ID, fiber.Map{
		"name":      child.FullName(),
		"parent_id": child.ParentID,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"child": child})
}

// UpdateChild edits child details or moves the child between groups
func (cc *ChildrenController) UpdateChild(c *fiber.Ctx) error {
	childID, err := c.ParamsInt("id")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}

	var child models.Child
	if err := database.DB.First(&child, childID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Child not found"})
	}

	var req childRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.FirstName != "" {
		updates["first_name"] = req.FirstName
	}
	if req.LastName != "" {
		updates["last_name"] = req.LastName
	}
	if req.Nickname != "" {
		updates["nickname"] = req.Nickname
	}
	if req.AllergyNote != "" {
		updates["allergy_note"] = req.AllergyNote
	}
	if req.ClassGroupID != 0 {
		var group models.ClassGroup
		if err := database.DB.First(&group, req.ClassGroupID).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Class group not found"})
		}
		updates["class_group_id"] = req.ClassGroupID
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&child).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update child"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "children", child.ID, fiber.Map{"updates": updates})

	return c.JSON(fiber.Map{"child": child})
}

// DeactivateChild removes the child from future rosters without deleting
// history
func (cc *ChildrenController) DeactivateChild(c *fiber.Ctx) error {
	childID, err := c.ParamsInt("id")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}

	var child models.Child
	if err := database.DB.First(&child, childID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Child not found"})
	}

	if err := database.DB.Model(&child).Update("active", false).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate child"})
	}

	middleware.LogActivity(c, "DELETE", "children", child.ID, fiber.Map{"name": child.FullName()})

	return c.JSON(fiber.Map{"message": "Child deactivated"})
}

// UploadChildPhoto stores a profile photo for roster display
func (cc *ChildrenController) UploadChildPhoto(c *fiber.Ctx) error {
	childID, err := c.ParamsInt("id")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}

	child, err := canAccessChild(c, uint(childID))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Child not found"})
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing photo file"})
	}

	storageService, err := storage.NewStorageService()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Storage unavailable"})
	}

	url, err := storageService.UploadImage(file, storage.FolderChildren, child.ID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := database.DB.Model(child).Update("photo_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save photo"})
	}

	middleware.LogActivity(c, "UPDATE", "children", child.ID, fiber.Map{"action": "photo_upload"})

	return c.JSON(fiber.Map{"photo_url": url})
}
