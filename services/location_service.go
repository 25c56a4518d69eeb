package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"mission-reward-system/config"
	"mission-reward-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// LocationService manages the physical sites users check in at
type LocationService struct {
	DB     *gorm.DB
	Cache  *CacheService
	Policy *config.Policy
}

func NewLocationService(db *gorm.DB, cache *CacheService, policy *config.Policy) *LocationService {
	return &LocationService{DB: db, Cache: cache, Policy: policy}
}

// GetLocations lists all store locations (Admin only)
func (s *LocationService) GetLocations(c *fiber.Ctx) error {
	value, err := s.Cache.Get("locations:all", s.Policy.LocationTTL, func() (interface{}, error) {
		var locations []models.StoreLocation
		if err := s.DB.Order("name ASC").Find(&locations).Error; err != nil {
			return nil, err
		}
		return locations, nil
	})
	if err != nil {
		log.Printf("DB Error fetching locations: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch locations"})
	}
	return c.JSON(value.([]models.StoreLocation))
}

// CreateLocation registers a new site (Admin only)
func (s *LocationService) CreateLocation(c *fiber.Ctx) error {
	var req struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Radius    float64 `json:"radius"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}
	if req.Radius <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Radius must be positive"})
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to derive location secret"})
	}

	location := &models.StoreLocation{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Slug:         slug.Make(req.Name),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Radius:       req.Radius,
		QRSecretSeed: hex.EncodeToString(seed),
		IsActive:     true,
	}
	if err := s.DB.Create(location).Error; err != nil {
		log.Printf("DB Error creating location: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create location"})
	}

	s.Cache.Invalidate("locations")
	return c.Status(fiber.StatusCreated).JSON(location)
}

// SetLocationActive toggles a site; inactive locations reject every claim
func (s *LocationService) SetLocationActive(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid location ID"})
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var location models.StoreLocation
	if err := s.DB.First(&location, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Location not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	location.IsActive = req.IsActive
	if err := s.DB.Save(&location).Error; err != nil {
		log.Printf("DB Error updating location: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update location"})
	}

	s.Cache.Invalidate("locations")
	return c.JSON(location)
}

// IssueQRToken mints the current rotating check-in code for a site. The
// admin console polls this and re-renders the QR before the window closes.
func (s *LocationService) IssueQRToken(c *fiber.Ctx) error {
	id := c.Params("id")

	var location models.StoreLocation
	if err := s.DB.First(&location, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Location not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if !location.IsActive {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Location is inactive"})
	}

	now := time.Now()
	token := IssueToken(&location, now)
	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": now.Add(s.Policy.TokenValidityWindow),
	})
}
