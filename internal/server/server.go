package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tabung/internal/audit"
	auditdomain "github.com/smallbiznis/tabung/internal/audit/domain"
	"github.com/smallbiznis/tabung/internal/config"
	"github.com/smallbiznis/tabung/internal/observability"
	obsmiddleware "github.com/smallbiznis/tabung/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tabung/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tabung/internal/observability/tracing"
	"github.com/smallbiznis/tabung/internal/pricing"
	pricingdomain "github.com/smallbiznis/tabung/internal/pricing/domain"
	"github.com/smallbiznis/tabung/internal/providers/pdf"
	"github.com/smallbiznis/tabung/internal/ratelimit"
	"github.com/smallbiznis/tabung/internal/setting"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(pdf.NewProvider),
	audit.Module,
	setting.Module,
	pricing.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	limits        *config.EngineLimitsHolder
	db            *gorm.DB
	genID         *snowflake.Node
	settingSvc    settingdomain.Service
	resolver      settingdomain.Resolver
	pricingSvc    pricingdomain.Service
	auditSvc      auditdomain.Service
	obsMetrics    *obsmetrics.Metrics
	importLimiter *ratelimit.ImportLimiter
	pdfProvider   *pdf.PDFProvider
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Limits        *config.EngineLimitsHolder
	DB            *gorm.DB
	GenID         *snowflake.Node
	SettingSvc    settingdomain.Service
	Resolver      settingdomain.Resolver
	PricingSvc    pricingdomain.Service
	AuditSvc      auditdomain.Service
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
	ImportLimiter *ratelimit.ImportLimiter `optional:"true"`
	PDFProvider   *pdf.PDFProvider         `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		limits:        p.Limits,
		db:            p.DB,
		genID:         p.GenID,
		settingSvc:    p.SettingSvc,
		resolver:      p.Resolver,
		pricingSvc:    p.PricingSvc,
		auditSvc:      p.AuditSvc,
		obsMetrics:    p.ObsMetrics,
		importLimiter: p.ImportLimiter,
		pdfProvider:   p.PDFProvider,
	}
	if svc.pdfProvider == nil {
		svc.pdfProvider = pdf.NewProvider()
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) engineLimits() config.EngineLimits {
	if s.limits == nil {
		return config.DefaultEngineLimits()
	}
	return s.limits.Get()
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.ActorContext())

	settings := v1.Group("/settings")
	settings.GET("", s.ListSettings)
	settings.POST("", s.CreateSetting)
	settings.GET("/resolve", s.ResolveSetting)
	settings.GET("/export", s.ExportSettings)
	settings.POST("/import", s.ImportRateLimit(), s.ImportSettings)
	settings.POST("/batch", s.ApplySettingsBatch)
	settings.GET("/:id", s.GetSetting)
	settings.PUT("/:id", s.UpdateSetting)
	settings.DELETE("/:id", s.DeleteSetting)

	pricing := v1.Group("/pricing")
	pricing.POST("/calculate", s.CalculatePrice)
	pricing.POST("/calculate/bulk", s.CalculatePriceBulk)
	pricing.POST("/quote", s.GeneratePricingQuote)
	pricing.POST("/deposit-refund", s.CalculateDepositRefund)

	v1.GET("/audit-logs", s.ListAuditLogs)
}
