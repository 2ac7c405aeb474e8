package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows a settings listing. Zero values mean "no filter".
type ListFilter struct {
	SettingKey string
	OutletID   *snowflake.ID
	IsActive   *bool
	SortBy     string
	OrderBy    string
}

// Repository is pure storage for setting records; precedence lives in the
// resolver. Methods take the handle so writes can share a transaction.
type Repository interface {
	ListActiveByKey(ctx context.Context, db *gorm.DB, settingKey string) ([]SettingRecord, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SettingRecord, error)
	FindByIdentity(ctx context.Context, db *gorm.DB, settingKey, scopeKey string) (*SettingRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]SettingRecord, error)
	Insert(ctx context.Context, db *gorm.DB, record *SettingRecord) error
	// UpdateVersioned applies the update only when the stored version still
	// equals expectedVersion, returning false when the row has moved on.
	UpdateVersioned(ctx context.Context, db *gorm.DB, record *SettingRecord, expectedVersion int64) (bool, error)
}
