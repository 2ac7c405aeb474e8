package resolver

import (
	"context"
	"fmt"

	"github.com/smallbiznis/tabung/internal/setting/cache"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  settingdomain.Repository
	Cache *cache.Cache
}

type resolver struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  settingdomain.Repository
	cache *cache.Cache
}

func NewResolver(p Params) settingdomain.Resolver {
	return &resolver{
		db:    p.DB,
		log:   p.Log.Named("setting.resolver"),
		repo:  p.Repo,
		cache: p.Cache,
	}
}

// Resolve selects the most specific active record matching the request scope.
// Read-only; concurrent writes only change what the next read-through sees.
func (r *resolver) Resolve(ctx context.Context, settingKey string, scope settingdomain.ResolveScope) (*settingdomain.SettingRecord, error) {
	records, ok := r.cache.Get(settingKey)
	if !ok {
		// The generation is read before the load so a write that commits
		// and invalidates mid-populate voids this snapshot.
		gen := r.cache.Generation(settingKey)
		loaded, err := r.repo.ListActiveByKey(ctx, r.db, settingKey)
		if err != nil {
			return nil, err
		}
		r.cache.Set(settingKey, gen, loaded)
		records = loaded
	}

	best := pickBest(records, scope)
	if best == nil {
		return nil, fmt.Errorf("%w: %s", settingdomain.ErrSettingNotFound, settingKey)
	}
	return best, nil
}

func pickBest(records []settingdomain.SettingRecord, scope settingdomain.ResolveScope) *settingdomain.SettingRecord {
	var best *settingdomain.SettingRecord
	for i := range records {
		record := &records[i]
		if !record.IsActive || !record.Scope.Matches(scope) {
			continue
		}
		if best == nil || beats(record, best) {
			best = record
		}
	}
	if best == nil {
		return nil
	}
	cloned := *best
	return &cloned
}

// beats reports whether candidate wins over current under the precedence
// rules: specificity, then explicit priority, then most recent update, then
// fixed discriminator order, then lowest ID for full determinism.
func beats(candidate, current *settingdomain.SettingRecord) bool {
	cs, bs := candidate.Scope.Specificity(), current.Scope.Specificity()
	if cs != bs {
		return cs > bs
	}

	cp, bp := priorityOf(candidate), priorityOf(current)
	if cp != bp {
		return cp > bp
	}

	if !candidate.UpdatedAt.Equal(current.UpdatedAt) {
		return candidate.UpdatedAt.After(current.UpdatedAt)
	}

	if cmp := scopeOrderCompare(candidate.Scope, current.Scope); cmp != 0 {
		return cmp > 0
	}

	return candidate.ID < current.ID
}

func priorityOf(record *settingdomain.SettingRecord) int {
	if record.Priority == nil {
		return 0
	}
	return *record.Priority
}

// scopeOrderCompare walks the discriminators in fixed precedence order
// (outlet > customerTier > cylinderType > operationType); the first position
// where exactly one side is non-nil decides. Returns >0 when a wins.
func scopeOrderCompare(a, b settingdomain.Scope) int {
	pairs := [][2]bool{
		{a.OutletID != nil, b.OutletID != nil},
		{a.CustomerTier != nil, b.CustomerTier != nil},
		{a.CylinderType != nil, b.CylinderType != nil},
		{a.OperationType != nil, b.OperationType != nil},
	}
	for _, pair := range pairs {
		if pair[0] && !pair[1] {
			return 1
		}
		if !pair[0] && pair[1] {
			return -1
		}
	}
	return 0
}
