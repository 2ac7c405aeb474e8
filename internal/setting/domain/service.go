package domain

import (
	"context"
	"time"
)

// Resolver selects the single most specific active record for a key.
type Resolver interface {
	// Resolve returns ErrSettingNotFound when nothing matches, even at
	// global scope. It never substitutes a default.
	Resolve(ctx context.Context, settingKey string, scope ResolveScope) (*SettingRecord, error)
}

// Batch modes for ApplyBatch. Callers must pick one explicitly; the two have
// very different failure-visibility guarantees.
type BatchMode string

const (
	BatchAllOrNothing BatchMode = "all_or_nothing"
	BatchBestEffort   BatchMode = "best_effort"
)

type ScopeInput struct {
	OutletID      *string `json:"outlet_id,omitempty"`
	CustomerTier  *string `json:"customer_tier,omitempty"`
	CylinderType  *string `json:"cylinder_type,omitempty"`
	OperationType *string `json:"operation_type,omitempty"`
}

type CreateRequest struct {
	SettingKey string     `json:"setting_key"`
	Scope      ScopeInput `json:"scope"`
	Value      string     `json:"value"`
	DataType   DataType   `json:"data_type"`
	Priority   *int       `json:"priority,omitempty"`
	IsActive   *bool      `json:"is_active,omitempty"`
	ActorID    *string    `json:"-"`
	Reason     *string    `json:"reason,omitempty"`
}

type UpdateRequest struct {
	ID       string    `json:"id"`
	Value    *string   `json:"value,omitempty"`
	DataType *DataType `json:"data_type,omitempty"`
	Priority *int      `json:"priority,omitempty"`
	// ClearPriority removes an existing priority override. A nil Priority
	// alone means keep the current value.
	ClearPriority bool  `json:"clear_priority,omitempty"`
	IsActive      *bool `json:"is_active,omitempty"`
	// Version is the version the caller read. The write is rejected with
	// ErrStaleVersion when the record has advanced past it.
	Version int64   `json:"version"`
	ActorID *string `json:"-"`
	Reason  *string `json:"reason,omitempty"`
}

type DeleteRequest struct {
	ID      string  `json:"id"`
	Version int64   `json:"version"`
	ActorID *string `json:"-"`
	// Reason is mandatory for deletes.
	Reason string `json:"reason"`
}

// BatchItem is one candidate write. An empty ID means create; otherwise the
// item updates (or deletes, when Delete is set) the identified record.
type BatchItem struct {
	Create *CreateRequest `json:"create,omitempty"`
	Update *UpdateRequest `json:"update,omitempty"`
	Delete *DeleteRequest `json:"delete,omitempty"`
}

type BatchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type BatchResult struct {
	Applied int              `json:"applied"`
	Errors  []BatchItemError `json:"errors,omitempty"`
}

type ListRequest struct {
	SettingKey string
	OutletID   *string
	IsActive   *bool
	SortBy     string
	OrderBy    string
}

type Response struct {
	ID         string    `json:"id"`
	SettingKey string    `json:"setting_key"`
	Scope      Scope     `json:"scope"`
	Value      string    `json:"value"`
	DataType   DataType  `json:"data_type"`
	IsActive   bool      `json:"is_active"`
	Version    int64     `json:"version"`
	Priority   *int      `json:"priority,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ExportRow is the flat row shape used by the import/export collaborator.
// Imports are candidate writes subject to the same version rule as the API.
type ExportRow struct {
	SettingKey    string `json:"setting_key" csv:"key"`
	Value         string `json:"value" csv:"value"`
	DataType      string `json:"data_type" csv:"data_type"`
	OutletID      string `json:"outlet_id" csv:"outlet_id"`
	CustomerTier  string `json:"customer_tier" csv:"customer_tier"`
	CylinderType  string `json:"cylinder_type" csv:"cylinder_type"`
	OperationType string `json:"operation_type" csv:"operation_type"`
	IsActive      bool   `json:"is_active" csv:"is_active"`
	Version       int64  `json:"version" csv:"version"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, req DeleteRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	ApplyBatch(ctx context.Context, items []BatchItem, mode BatchMode) (*BatchResult, error)
	Export(ctx context.Context, req ListRequest) ([]ExportRow, error)
	Import(ctx context.Context, rows []ExportRow, mode BatchMode, actorID *string) (*BatchResult, error)
}
