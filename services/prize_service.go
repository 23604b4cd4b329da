package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"coin-toss-system/models"
	"coin-toss-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type PrizeService struct {
	DB    *gorm.DB
	Audit *AuditLogger
}

func NewPrizeService(db *gorm.DB, audit *AuditLogger) *PrizeService {
	return &PrizeService{DB: db, Audit: audit}
}

// DefaultPrize returns the active default template, or nil when none is
// configured. Used when a new competition is created.
func (s *PrizeService) DefaultPrize() (*models.PresetPrize, error) {
	var prize models.PresetPrize
	err := s.DB.Where("is_default = ? AND is_active = ?", true, true).First(&prize).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prize, nil
}

// uniqueSlug derives a URL-safe slug from the prize name, suffixing a short
// id when the plain slug is already taken.
func (s *PrizeService) uniqueSlug(name string) string {
	base := slug.Make(name)
	var count int64
	s.DB.Model(&models.PresetPrize{}).Where("slug = ?", base).Count(&count)
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

func (s *PrizeService) ListPrizes(c *fiber.Ctx) error {
	var prizes []models.PresetPrize
	if err := s.DB.Order("created_at DESC").Find(&prizes).Error; err != nil {
		log.Printf("DB Error fetching prizes: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch prizes"})
	}
	return c.JSON(fiber.Map{"success": true, "prizes": prizes})
}

// CreatePrize accepts a multipart form so the template image can be uploaded
// in the same request; the image lands in R2 and the CDN URL is stored.
func (s *PrizeService) CreatePrize(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)

	name := c.FormValue("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "name is required"})
	}

	isDefault := c.FormValue("is_default") == "true"
	isActive := c.FormValue("is_active") != "false"
	requiresAddress := c.FormValue("requires_address") == "true"

	var imageURL string
	if image, err := c.FormFile("image"); err == nil && image.Size > 0 {
		ext := filepath.Ext(image.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		key := "prizes/" + uuid.NewString() + ext
		url, err := utils.UploadImageToR2(image, key)
		if errors.Is(err, utils.ErrNotAnImage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "prize image must be a JPEG, PNG, GIF or WebP"})
		}
		if err != nil {
			log.Printf("R2 upload failed for prize image: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to upload prize image"})
		}
		imageURL = url
	}

	prize := &models.PresetPrize{
		ID:              uuid.NewString(),
		Name:            name,
		Slug:            s.uniqueSlug(name),
		Description:     c.FormValue("description"),
		ImageURL:        imageURL,
		IsDefault:       isDefault,
		IsActive:        isActive,
		RequiresAddress: requiresAddress,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if isDefault {
			// clear before set so two defaults never coexist
			if err := tx.Model(&models.PresetPrize{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(prize).Error
	})
	if err != nil {
		log.Printf("DB Error creating prize: %v", err)
		s.Audit.Record(actorID, "prize.create", "preset_prize", prize.ID, false, "db insert failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to create prize"})
	}

	s.Audit.Record(actorID, "prize.create", "preset_prize", prize.ID, true, "")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "prize": prize})
}

// UpdatePrize applies the provided JSON fields, leaving others untouched.
func (s *PrizeService) UpdatePrize(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var prize models.PresetPrize
	if err := s.DB.First(&prize, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "prize not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	var req struct {
		Name            *string `json:"name"`
		Description     *string `json:"description"`
		IsActive        *bool   `json:"is_active"`
		RequiresAddress *bool   `json:"requires_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid JSON"})
	}

	if req.Name != nil {
		if *req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "name must not be empty"})
		}
		prize.Name = *req.Name
	}
	if req.Description != nil {
		prize.Description = *req.Description
	}
	if req.IsActive != nil {
		prize.IsActive = *req.IsActive
	}
	if req.RequiresAddress != nil {
		prize.RequiresAddress = *req.RequiresAddress
	}

	if err := s.DB.Save(&prize).Error; err != nil {
		log.Printf("DB Error updating prize %s: %v", id, err)
		s.Audit.Record(actorID, "prize.update", "preset_prize", id, false, "db update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to update prize"})
	}

	s.Audit.Record(actorID, "prize.update", "preset_prize", id, true, "")
	return c.JSON(fiber.Map{"success": true, "prize": prize})
}

// UploadPrizeImage replaces the template image.
func (s *PrizeService) UploadPrizeImage(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var prize models.PresetPrize
	if err := s.DB.First(&prize, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "prize not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	image, err := c.FormFile("image")
	if err != nil || image.Size == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "image file is required"})
	}
	ext := filepath.Ext(image.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := "prizes/" + uuid.NewString() + ext
	url, err := utils.UploadImageToR2(image, key)
	if errors.Is(err, utils.ErrNotAnImage) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "prize image must be a JPEG, PNG, GIF or WebP"})
	}
	if err != nil {
		log.Printf("R2 upload failed for prize %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to upload prize image"})
	}

	if err := s.DB.Model(&prize).Update("image_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to update prize"})
	}

	s.Audit.Record(actorID, "prize.image", "preset_prize", id, true, "")
	prize.ImageURL = url
	return c.JSON(fiber.Map{"success": true, "prize": prize})
}

// SetDefaultPrize makes one template the catalog default. The clear runs
// before the set inside a single transaction so at most one default exists.
func (s *PrizeService) SetDefaultPrize(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var prize models.PresetPrize
	if err := s.DB.First(&prize, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "prize not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	if !prize.IsActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "an inactive prize cannot be the default"})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PresetPrize{}).Where("is_default = ?", true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&prize).Update("is_default", true).Error
	})
	if err != nil {
		log.Printf("DB Error setting default prize %s: %v", id, err)
		s.Audit.Record(actorID, "prize.set_default", "preset_prize", id, false, "db update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to set default prize"})
	}

	s.Audit.Record(actorID, "prize.set_default", "preset_prize", id, true, "")
	prize.IsDefault = true
	return c.JSON(fiber.Map{"success": true, "prize": prize})
}

func (s *PrizeService) DeletePrize(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	result := s.DB.Delete(&models.PresetPrize{}, "id = ?", id)
	if result.Error != nil {
		log.Printf("DB Error deleting prize %s: %v", id, result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to delete prize"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "prize not found"})
	}

	s.Audit.Record(actorID, "prize.delete", "preset_prize", id, true, "")
	return c.JSON(fiber.Map{"success": true, "message": "prize deleted"})
}
