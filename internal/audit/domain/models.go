package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entity types covered by the audit trail.
const (
	EntityTypeSetting  = "setting"
	EntityTypeCategory = "category"
)

// Actions recorded for a mutation.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// AuditLog is one immutable record of a mutation. Rows are append-only;
// nothing in the codebase updates or deletes them.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	EntityType string            `gorm:"type:text;not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   string            `gorm:"type:text;not null;index:idx_audit_entity" json:"entity_id"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	ActorID    *string           `gorm:"type:text;index" json:"actor_id,omitempty"`
	Reason     *string           `gorm:"type:text" json:"reason,omitempty"`
	Before     datatypes.JSONMap `gorm:"type:jsonb" json:"before,omitempty"`
	After      datatypes.JSONMap `gorm:"type:jsonb" json:"after,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// AuditCursor is the keyset position for reverse-chronological listing.
type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter narrows the audit listing.
type ListFilter struct {
	EntityType string
	EntityID   string
	Action     string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
