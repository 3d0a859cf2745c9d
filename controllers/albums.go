package controllers

import (
	"time"

	"kindernest_go/database"
	"kindernest_go/middleware"
	"kindernest_go/models"
	"kindernest_go/storage"

	"github.com/gofiber/fiber/v2"
)

type AlbumsController struct{}

// GetAlbums lists albums visible to the current user, newest first. Parents
// see whole-school albums plus those of their children's groups.
func (ac *AlbumsController) GetAlbums(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	query := database.DB.Model(&models.Album{})
	if user.Role == "parent" {
		var groupIDs []uint
		database.DB.Model(&models.Child{}).
			Where("parent_id = ? AND active = ?", user.ID, true).
			Pluck("class_group_id", &groupIDs)
		query = query.Where("class_group_id = 0 OR class_group_id IN ?", groupIDs)
	}

	var albums []models.Album
	if err := query.Order("event_date DESC, created_at DESC").Find(&albums).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch albums"})
	}

	return c.JSON(fiber.Map{"albums": albums})
}

// GetAlbum returns one album with all photos
func (ac *AlbumsController) GetAlbum(c *fiber.Ctx) error {
	albumID, err := c.ParamsInt("id")
	if err != nil || albumID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid album id"})
	}

	var album models.Album
	if err := database.DB.Preload("Photos").First(&album, albumID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Album not found"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	if user.Role == "parent" && album.ClassGroupID != 0 {
		var count int64
		database.DB.Model(&models.Child{}).
			Where("parent_id = ? AND class_group_id = ? AND active = ?", user.ID, album.ClassGroupID, true).
			Count(&count)
		if count == 0 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
		}
	}

	return c.JSON(fiber.Map{"album": album})
}

type albumRequest struct {
	ClassGroupID uint       `json:"class_group_id"`
	Title        string     `json:"title" validate:"required"`
	EventDate    *time.Time `json:"event_date"`
}

// CreateAlbum opens a new album (staff only)
func (ac *AlbumsController) CreateAlbum(c *fiber.Ctx) error {
	var req albumRequest
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	if req.ClassGroupID != 0 {
		var group models.ClassGroup
		if err := database.DB.First(&group, req.ClassGroupID).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Class group not found"})
		}
	}

	album := models.Album{
		ClassGroupID: req.ClassGroupID,
		Title:        req.Title,
		CreatedBy:    user.ID,
	}
	if req.EventDate != nil {
		album.EventDate = *req.EventDate
	} else {
		album.EventDate = time.Now()
	}

	if err := database.DB.Create(&album).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create album"})
	}

	middleware.LogActivity(c, "CREATE", "albums", album.ID, fiber.Map{"title": album.Title})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"album": album})
}

// UploadPhotos adds one or more photos to an album (multipart form,
// field "photos")
func (ac *AlbumsController) UploadPhotos(c *fiber.Ctx) error {
	albumID, err := c.ParamsInt("id")
	if err != nil || albumID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid album id"})
	}

	var album models.Album
	if err := database.DB.First(&album, albumID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Album not found"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid multipart form"})
	}
	files := form.File["photos"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No photos provided"})
	}

	storageService, err := storage.NewStorageService()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Storage unavailable"})
	}

	caption := c.FormValue("caption")
	uploaded := make([]models.AlbumPhoto, 0, len(files))
	failures := make([]string, 0)

	for _, file := range files {
		url, err := storageService.UploadImage(file, storage.FolderAlbums, album.ID)
		if err != nil {
			failures = append(failures, file.Filename)
			continue
		}

		photo := models.AlbumPhoto{
			AlbumID: album.ID,
			URL:     url,
			Caption: caption,
		}
		if err := database.DB.Create(&photo).Error; err != nil {
			failures = append(failures, file.Filename)
			continue
		}
		uploaded = append(uploaded, photo)
	}

	middleware.LogActivity(c, "CREATE", "album_photos", album.ID, fiber.Map{
		"uploaded": len(uploaded),
		"failed":   len(failures),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"photos": uploaded,
		"failed": failures,
	})
}

// DeletePhoto removes a photo from an album and from storage
func (ac *AlbumsController) DeletePhoto(c *fiber.Ctx) error {
	albumID, err := c.ParamsInt("id")
	if err != nil || albumID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid album id"})
	}
	photoID, err := c.ParamsInt("photoId")
	if err != nil || photoID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid photo id"})
	}

	var photo models.AlbumPhoto
	if err := database.DB.Where("album_id = ?", albumID).First(&photo, photoID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Photo not found"})
	}

	if storageService, err := storage.NewStorageService(); err == nil {
		// best effort; the DB row is authoritative
		_ = storageService.DeleteFile(photo.URL)
	}

	if err := database.DB.Delete(&photo).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete photo"})
	}

	middleware.LogActivity(c, "DELETE", "album_photos", photo.ID, fiber.Map{"album_id": albumID})

	return c.JSON(fiber.Map{"message": "Photo deleted"})
}
