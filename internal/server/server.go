package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tandem/internal/account"
	"github.com/smallbiznis/tandem/internal/activation"
	activationdomain "github.com/smallbiznis/tandem/internal/activation/domain"
	"github.com/smallbiznis/tandem/internal/authorization"
	"github.com/smallbiznis/tandem/internal/config"
	"github.com/smallbiznis/tandem/internal/invite"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"github.com/smallbiznis/tandem/internal/inviteevent"
	"github.com/smallbiznis/tandem/internal/lock"
	"github.com/smallbiznis/tandem/internal/migration"
	"github.com/smallbiznis/tandem/internal/notification"
	"github.com/smallbiznis/tandem/internal/observability"
	obsmiddleware "github.com/smallbiznis/tandem/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tandem/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tandem/internal/observability/tracing"
	"github.com/smallbiznis/tandem/internal/ratelimit"
	"github.com/smallbiznis/tandem/internal/token"
	"github.com/smallbiznis/tandem/internal/verification"
	verificationdomain "github.com/smallbiznis/tandem/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	token.Module,
	lock.Module,
	ratelimit.Module,
	notification.Module,
	inviteevent.Module,
	account.Module,
	authorization.Module,
	invite.Module,
	verification.Module,
	activation.Module,
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
	r.Use(ActorContext())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	inviteSvc       invitedomain.Service
	verificationSvc verificationdomain.Service
	activationSvc   activationdomain.Service
	migrations      *migration.Runner
	probeLimiter    *ratelimit.ProbeLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	InviteSvc       invitedomain.Service
	VerificationSvc verificationdomain.Service
	ActivationSvc   activationdomain.Service
	Migrations      *migration.Runner       `optional:"true"`
	ProbeLimiter    *ratelimit.ProbeLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		inviteSvc:       p.InviteSvc,
		verificationSvc: p.VerificationSvc,
		activationSvc:   p.ActivationSvc,
		migrations:      p.Migrations,
		probeLimiter:    p.ProbeLimiter,
	}

	svc.registerHealthRoutes()
	svc.registerInviteRoutes()
	svc.registerVerificationRoutes()
	svc.registerModerationRoutes()
	svc.registerActivationRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health/ready", s.Ready)
}

func (s *Server) registerInviteRoutes() {
	invites := s.engine.Group("/v1/invites")

	// Token holders are anonymous.
	probes := invites.Group("", s.TokenProbeLimit())
	probes.POST("/verify", s.VerifyInviteToken)
	probes.POST("/decline", s.DeclineInvite)

	owned := invites.Group("", AccountRequired())
	owned.POST("", s.CreateInvite)
	owned.GET("", s.ListInvites)
	owned.POST("/:id/revoke", s.RevokeInvite)
	owned.POST("/:id/resend", s.ResendInvite)
	owned.POST("/:id/confirm", s.ConfirmInvite)
	owned.GET("/:id/events", s.ListInviteEvents)
}

func (s *Server) registerVerificationRoutes() {
	verification := s.engine.Group("/v1/verification", s.TokenProbeLimit())
	verification.POST("/profile", s.SubmitProfile)
	verification.POST("/media", s.SubmitMedia)
}

func (s *Server) registerModerationRoutes() {
	moderation := s.engine.Group("/v1/moderation", AccountRequired())
	moderation.GET("/invites", s.ListModerationInvites)
	moderation.POST("/invites/:id/approve", s.ApproveInvite)
	moderation.POST("/invites/:id/reject", s.RejectInvite)
	moderation.POST("/invites/:id/activation/resend", s.ResendActivation)
}

func (s *Server) registerActivationRoutes() {
	activation := s.engine.Group("/v1/activation", s.TokenProbeLimit())
	activation.POST("/verify", s.VerifyActivationToken)
	activation.POST("/complete", s.CompleteActivation)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// Ready reports whether the schema is in place, retrying the migration if an
// earlier attempt failed.
func (s *Server) Ready(c *gin.Context) {
	if s.migrations != nil {
		if err := s.migrations.Ensure(c.Request.Context()); err != nil {
			s.log.Warn("readiness check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
