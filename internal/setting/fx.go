package setting

import (
	"github.com/smallbiznis/tabung/internal/setting/cache"
	"github.com/smallbiznis/tabung/internal/setting/repository"
	"github.com/smallbiznis/tabung/internal/setting/resolver"
	"github.com/smallbiznis/tabung/internal/setting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("setting.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.New),
	fx.Provide(resolver.NewResolver),
	fx.Provide(service.NewService),
)
