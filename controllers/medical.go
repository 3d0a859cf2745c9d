package controllers

import (
	"kindernest_go/database"
	"kindernest_go/middleware"
	"kindernest_go/models"
	"kindernest_go/storage"

	"github.com/gofiber/fiber/v2"
)

type MedicalController struct{}

var medicalKinds = map[string]bool{
	"vaccination": true,
	"allergy":     true,
	"illness":     true,
	"other":       true,
}

// GetRecords lists a child's medical records, newest first
func (mc *MedicalController) GetRecords(c *fiber.Ctx) error {
	childID, err := c.ParamsInt("childId")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}

	if _, err := canAccessChild(c, uint(childID)); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Child not found or not yours"})
	}

	query := database.DB.Where("child_id = ?", childID)
	if kind := c.Query("kind"); kind != "" {
		if !medicalKinds[kind] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown record kind"})
		}
		query = query.Where("kind = ?", kind)
	}

	var records []models.MedicalRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch medical records"})
	}

	return c.JSON(fiber.Map{"records": records})
}

// CreateRecord uploads a medical record with an optional document. The
// request is multipart: fields kind, note plus an optional "document" file.
func (mc *MedicalController) CreateRecord(c *fiber.Ctx) error {
	childID, err := c.ParamsInt("childId")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}

	child, err := canAccessChild(c, uint(childID))
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Child not found or not yours"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	kind := c.FormValue("kind")
	if !medicalKinds[kind] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Kind must be vaccination, allergy, illness or other"})
	}

	record := models.MedicalRecord{
		ChildID:    child.ID,
		Kind:       kind,
		Note:       c.FormValue("note"),
		UploadedBy: user.ID,
	}

	if file, err := c.FormFile("document"); err == nil {
		storageService, err := storage.NewStorageService()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Storage unavailable"})
		}
		url, err := storageService.UploadDocument(file, storage.FolderMedical, child.ID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		record.DocumentURL = url
	}

	if err := database.DB.Create(&record).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save medical record"})
	}

	// allergy records also surface on the roster
	if kind == "allergy" && record.Note != "" {
		database.DB.Model(child).Update("allergy_note", record.Note)
	}

	middleware.LogActivity(c, "CREATE", "medical_records", record.ID, fiber.Map{
		"child_id": child.ID,
		"kind":     kind,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"record": record})
}

// DeleteRecord removes a medical record and its stored document
func (mc *MedicalController) DeleteRecord(c *fiber.Ctx) error {
	childID, err := c.ParamsInt("childId")
	if err != nil || childID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid child id"})
	}
	recordID, err := c.ParamsInt("recordId")
	if err != nil || recordID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid record id"})
	}

	if _, err := canAccessChild(c, uint(childID)); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Child not found or not yours"})
	}

	var record models.MedicalRecord
	if err := database.DB.Where("child_id = ?", childID).First(&record, recordID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Medical record not found"})
	}

	if record.DocumentURL != "" {
		if storageService, err := storage.NewStorageService(); err == nil {
			_ = storageService.DeleteFile(record.DocumentURL)
		}
	}

	if err := database.DB.Delete(&record).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete medical record"})
	}

	middleware.LogActivity(c, "DELETE", "medical_records", record.ID, fiber.Map{"child_id": childID})

	return c.JSON(fiber.Map{"message": "Medical record deleted"})
}
