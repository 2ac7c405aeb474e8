package migration

import (
	auditdomain "github.com/smallbiznis/tabung/internal/audit/domain"
	"github.com/smallbiznis/tabung/internal/config"
	"github.com/smallbiznis/tabung/internal/seed"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// mysql and sqlite have no versioned migration set; the
			// model schema is authoritative there.
			if err := conn.AutoMigrate(
				&settingdomain.SettingRecord{},
				&auditdomain.AuditLog{},
			); err != nil {
				return err
			}
		}

		if cfg.Seed.EnsureDefaults {
			return seed.EnsureDefaultSettings(conn)
		}
		return nil
	}),
)
