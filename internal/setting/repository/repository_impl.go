package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	pkgdb "github.com/smallbiznis/tabung/pkg/db"
	"github.com/smallbiznis/tabung/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() settingdomain.Repository {
	return &repo{}
}

func (r *repo) ListActiveByKey(ctx context.Context, db *gorm.DB, settingKey string) ([]settingdomain.SettingRecord, error) {
	var records []settingdomain.SettingRecord
	err := db.WithContext(ctx).
		Model(&settingdomain.SettingRecord{}).
		Where("setting_key = ? AND is_active = ?", settingKey, true).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*settingdomain.SettingRecord, error) {
	var record settingdomain.SettingRecord
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) FindByIdentity(ctx context.Context, db *gorm.DB, settingKey, scopeKey string) (*settingdomain.SettingRecord, error) {
	var record settingdomain.SettingRecord
	err := db.WithContext(ctx).
		Where("setting_key = ? AND scope_key = ?", settingKey, scopeKey).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter settingdomain.ListFilter) ([]settingdomain.SettingRecord, error) {
	var records []settingdomain.SettingRecord
	stmt := db.WithContext(ctx).Model(&settingdomain.SettingRecord{})

	if key := strings.TrimSpace(filter.SettingKey); key != "" {
		stmt = stmt.Where("setting_key = ?", key)
	}
	if filter.OutletID != nil {
		stmt = stmt.Where("outlet_id = ?", *filter.OutletID)
	}
	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"setting_key": true,
		"created_at":  true,
		"updated_at":  true,
		"version":     true,
	})).Apply(stmt)
	if strings.TrimSpace(filter.SortBy) == "" {
		stmt = stmt.Order("setting_key asc, scope_key asc")
	}

	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *settingdomain.SettingRecord) error {
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		// Two writers can race past the identity pre-check; the unique
		// index is the arbiter.
		if pkgdb.IsDuplicateKeyErr(err) {
			return settingdomain.ErrDuplicateScope
		}
		return err
	}
	return nil
}

func (r *repo) UpdateVersioned(ctx context.Context, db *gorm.DB, record *settingdomain.SettingRecord, expectedVersion int64) (bool, error) {
	record.UpdatedAt = time.Now().UTC()
	result := db.WithContext(ctx).
		Model(&settingdomain.SettingRecord{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]any{
			"value":      record.Value,
			"data_type":  record.DataType,
			"is_active":  record.IsActive,
			"priority":   record.Priority,
			"version":    record.Version,
			"updated_at": record.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
