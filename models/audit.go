package models

import (
	"time"
)

// AuditLog is the persisted form of an audit entry, written asynchronously by
// the flush worker. The in-memory ring in services keeps the hot tail.
type AuditLog struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	ActorID      string    `json:"actor_id" gorm:"index"`
	Action       string    `json:"action" gorm:"not null;index"`
	TargetType   string    `json:"target_type"`
	TargetID     string    `json:"target_id"`
	Success      bool      `json:"success"`
	ErrorSummary string    `json:"error_summary,omitempty"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
