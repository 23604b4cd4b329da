package models

import (
	"time"
)

// PresetPrize is a reusable prize template. At most one row has
// IsDefault=true across the catalog; setting a new default clears the
// previous one first.
type PresetPrize struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"not null"`
	Slug            string    `json:"slug" gorm:"uniqueIndex;not null"`
	Description     string    `json:"description" gorm:"type:text"`
	ImageURL        string    `json:"image_url" gorm:"type:text"`
	IsDefault       bool      `json:"is_default" gorm:"default:false;index"`
	IsActive        bool      `json:"is_active" gorm:"default:true"`
	RequiresAddress bool      `json:"requires_address" gorm:"default:false"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
