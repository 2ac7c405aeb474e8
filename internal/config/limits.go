package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EngineLimits caps the size of write-heavy requests. The limits file can be
// edited in place and takes effect without a restart.
type EngineLimits struct {
	MaxBatchItems   int `mapstructure:"maxBatchItems"`
	MaxBulkContexts int `mapstructure:"maxBulkContexts"`
	MaxImportRows   int `mapstructure:"maxImportRows"`
	MaxPageSize     int `mapstructure:"maxPageSize"`
}

func DefaultEngineLimits() EngineLimits {
	return EngineLimits{
		MaxBatchItems:   100,
		MaxBulkContexts: 50,
		MaxImportRows:   1000,
		MaxPageSize:     200,
	}
}

type EngineLimitsHolder struct {
	current atomic.Value // holds EngineLimits
}

func NewEngineLimitsHolder() (*EngineLimitsHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tabung/config") // Volume-mounted config
	v.AddConfigPath("/etc/tabung")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("TABUNG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultEngineLimits()
		v.SetDefault("limits.maxBatchItems", defaults.MaxBatchItems)
		v.SetDefault("limits.maxBulkContexts", defaults.MaxBulkContexts)
		v.SetDefault("limits.maxImportRows", defaults.MaxImportRows)
		v.SetDefault("limits.maxPageSize", defaults.MaxPageSize)
	}

	var limits EngineLimits
	if err := v.UnmarshalKey("limits", &limits); err != nil {
		return nil, err
	}
	if err := validateEngineLimits(limits); err != nil {
		return nil, err
	}

	holder := &EngineLimitsHolder{}
	holder.current.Store(limits)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineLimits
		if err := v.UnmarshalKey("limits", &updated); err != nil {
			log.Printf("[limits-config] reload failed: %v", err)
			return
		}
		if err := validateEngineLimits(updated); err != nil {
			log.Printf("[limits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[limits-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *EngineLimitsHolder) Get() EngineLimits {
	return h.current.Load().(EngineLimits)
}

func validateEngineLimits(limits EngineLimits) error {
	if limits.MaxBatchItems <= 0 {
		return errors.New("limits.maxBatchItems must be positive")
	}
	if limits.MaxBulkContexts <= 0 {
		return errors.New("limits.maxBulkContexts must be positive")
	}
	if limits.MaxImportRows <= 0 {
		return errors.New("limits.maxImportRows must be positive")
	}
	if limits.MaxPageSize <= 0 {
		return errors.New("limits.maxPageSize must be positive")
	}
	return nil
}
