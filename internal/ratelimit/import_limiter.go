package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tabung/internal/config"
)

const (
	keySettingsImportActor = "settings:import:actor:%s"
	keySettingsImportLock  = "settings:import:lock"
)

// ImportLimiter throttles bulk settings imports per actor and holds a
// single-flight lock so only one import mutates the store at a time.
type ImportLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewImportLimiter(cfg config.Config) (*ImportLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ImportRate <= 0 || limitCfg.ImportBurst <= 0 {
		return nil, errors.New("import rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &ImportLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.ImportRate,
		burst:   limitCfg.ImportBurst,
		lockTTL: time.Duration(limitCfg.ImportLockTTLSeconds) * time.Second,
	}, nil
}

func (l *ImportLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ImportLimiter) AllowActor(ctx context.Context, actorID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keySettingsImportActor, strings.TrimSpace(actorID)), l.rate, l.burst)
}

func (l *ImportLimiter) TryLockImport(ctx context.Context) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, keySettingsImportLock, l.lockTTL)
}

func (l *ImportLimiter) ReleaseImport(ctx context.Context, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, keySettingsImportLock, token)
}
