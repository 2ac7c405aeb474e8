package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	"gorm.io/gorm"
)

type defaultSetting struct {
	key      string
	value    string
	dataType settingdomain.DataType
}

// Global baseline so a fresh install can price every operation without
// manual setup. Admins override per outlet or tier afterwards.
var defaultSettings = []defaultSetting{
	{"pricing.lease.daily_rate", "100.00", settingdomain.DataTypeNumber},
	{"pricing.refill.price_per_kg", "50.00", settingdomain.DataTypeNumber},
	{"pricing.refill.minimum_charge", "300.00", settingdomain.DataTypeNumber},
	{"pricing.swap.base_price", "150.00", settingdomain.DataTypeNumber},
	{"pricing.registration.base_price", "250.00", settingdomain.DataTypeNumber},
	{"pricing.penalty.base_price", "500.00", settingdomain.DataTypeNumber},
	{"pricing.deposit.base_price", "5000.00", settingdomain.DataTypeNumber},
	{"deposit.amount", "5000.00", settingdomain.DataTypeNumber},
	{"penalty.condition.good", "0", settingdomain.DataTypeNumber},
	{"penalty.condition.damaged", "25", settingdomain.DataTypeNumber},
	{"tax.rate", "7.5", settingdomain.DataTypeNumber},
	{"tax.type", "exclusive", settingdomain.DataTypeString},
}

// EnsureDefaultSettings seeds the global baseline for startup bootstrap.
// Existing rows are never touched, including deactivated ones.
func EnsureDefaultSettings(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range defaultSettings {
			if err := ensureSettingTx(ctx, tx, node, def); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureSettingTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, def defaultSetting) error {
	scope := settingdomain.Scope{}

	var existing settingdomain.SettingRecord
	err := tx.WithContext(ctx).
		Where("setting_key = ? AND scope_key = ?", def.key, scope.Key()).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	record := settingdomain.SettingRecord{
		ID:         node.Generate(),
		SettingKey: def.key,
		ScopeKey:   scope.Key(),
		Scope:      scope,
		Value:      def.value,
		DataType:   def.dataType,
		IsActive:   true,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := record.Validate(); err != nil {
		return err
	}
	return tx.WithContext(ctx).Create(&record).Error
}
