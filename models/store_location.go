package models

// StoreLocation is a physical branch a user can check in at.
// Radius is the geofence tolerance in meters; QRSecretSeed derives the
// rotating check-in codes and never leaves the server.
type StoreLocation struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	Name         string  `gorm:"not null" json:"name"`
	Slug         string  `gorm:"uniqueIndex;not null" json:"slug"`
	Latitude     float64 `gorm:"not null" json:"latitude"`
	Longitude    float64 `gorm:"not null" json:"longitude"`
	Radius       float64 `gorm:"not null" json:"radius"` // meters, > 0
	QRSecretSeed string  `gorm:"not null" json:"-"`
	IsActive     bool    `gorm:"default:true;index" json:"is_active"`

	Timestamps
}
