package models

import (
	"time"
)

type AlertType string

const (
	AlertTheftDetected        AlertType = "theft_detected"
	AlertMismatchDetected     AlertType = "mismatch_detected"
	AlertUnscannedItem        AlertType = "unscanned_item"
	AlertRemovalWithoutScan   AlertType = "removal_without_scan"
	AlertExitValidationFailed AlertType = "exit_validation_failed"
	AlertAIVerificationFailed AlertType = "ai_verification_failed"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type AlertStatus string

const (
	AlertPending       AlertStatus = "pending"
	AlertReviewed      AlertStatus = "reviewed"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false_positive"
)

// Alert rows are append-only facts: resolution flips status and IsActive,
// history is never deleted.
type Alert struct {
	ID         uint                   `gorm:"primaryKey" json:"id"`
	CartID     *uint                  `gorm:"index" json:"cart_id,omitempty"`
	ProductID  *uint                  `gorm:"index" json:"product_id,omitempty"`
	Type       AlertType              `gorm:"type:varchar(40);not null" json:"type"`
	Severity   AlertSeverity          `gorm:"type:varchar(20);default:'medium'" json:"severity"`
	Status     AlertStatus            `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Message    string                 `gorm:"type:text;not null" json:"message"`
	Details    map[string]interface{} `gorm:"serializer:json" json:"details,omitempty"`
	IsActive   bool                   `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time              `json:"created_at"`
	ReviewedAt *time.Time             `json:"reviewed_at,omitempty"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
}

func (Alert) TableName() string {
	return "alerts"
}
