package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/tabung/internal/observability/context"
	"github.com/smallbiznis/tabung/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorType = "X-Actor-Type"
	headerOutletID  = "X-Outlet-Id"

	defaultActorType = "admin"
)

// ActorContext propagates caller identity headers into the request context
// for audit attribution and logging. Authentication itself is handled by the
// gateway in front of this service.
func (s *Server) ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if actorID := strings.TrimSpace(c.GetHeader(headerActorID)); actorID != "" {
			actorType := strings.TrimSpace(c.GetHeader(headerActorType))
			if actorType == "" {
				actorType = defaultActorType
			}
			ctx = obscontext.WithActor(ctx, actorType, actorID)
		}
		if outletID := strings.TrimSpace(c.GetHeader(headerOutletID)); outletID != "" {
			ctx = obscontext.WithOutletID(ctx, outletID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ImportRateLimit throttles bulk imports per actor and rejects concurrent
// imports outright.
func (s *Server) ImportRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.importLimiter == nil || !s.importLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		_, actorID := obscontext.ActorFromContext(ctx)
		if actorID == "" {
			actorID = c.ClientIP()
		}

		allowed, err := s.importLimiter.AllowActor(ctx, actorID)
		if err != nil {
			logger.FromContext(ctx).Warn("import rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, c.FullPath())
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		token, locked, err := s.importLimiter.TryLockImport(ctx)
		if err != nil {
			logger.FromContext(ctx).Warn("import lock acquisition failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !locked {
			AbortWithError(c, ErrConflict)
			return
		}
		defer func() {
			if err := s.importLimiter.ReleaseImport(ctx, token); err != nil {
				logger.FromContext(ctx).Warn("import lock release failed", zap.Error(err))
			}
		}()

		c.Next()
	}
}

func actorIDFromRequest(c *gin.Context) *string {
	_, actorID := obscontext.ActorFromContext(c.Request.Context())
	if actorID == "" {
		return nil
	}
	return &actorID
}
