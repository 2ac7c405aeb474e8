package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/tabung/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry describes one mutation to record.
type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	ActorID    *string
	Reason     *string
	Before     map[string]any
	After      map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	EntityType string
	EntityID   string
	Action     string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Recorder appends audit entries. Record must run on the same transaction as
// the mutation it describes so the entry commits before the write is visible.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

type Service interface {
	Recorder
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidEntity    = errors.New("invalid_entity")
	ErrReasonRequired   = errors.New("reason_required")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
