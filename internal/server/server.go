package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lettermill/lettermill/internal/auth"
	authdomain "github.com/lettermill/lettermill/internal/auth/domain"
	"github.com/lettermill/lettermill/internal/auth/session"
	"github.com/lettermill/lettermill/internal/config"
	"github.com/lettermill/lettermill/internal/email"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
	"github.com/lettermill/lettermill/internal/mailer"
	"github.com/lettermill/lettermill/internal/merge"
	mergedomain "github.com/lettermill/lettermill/internal/merge/domain"
	"github.com/lettermill/lettermill/internal/merge/progress"
	"github.com/lettermill/lettermill/internal/observability"
	obsmiddleware "github.com/lettermill/lettermill/internal/observability/logger"
	obsmetrics "github.com/lettermill/lettermill/internal/observability/metrics"
	obstracing "github.com/lettermill/lettermill/internal/observability/tracing"
	"github.com/lettermill/lettermill/internal/project"
	projectdomain "github.com/lettermill/lettermill/internal/project/domain"
	"github.com/lettermill/lettermill/internal/ratelimit"
	"github.com/lettermill/lettermill/internal/rewrite"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	auth.Module,
	project.Module,
	email.Module,
	mailer.Module,
	merge.Module,
	ratelimit.Module,
	rewrite.Module,
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	authsvc    authdomain.Service
	sessions   *session.Manager
	genID      *snowflake.Node
	projectSvc projectdomain.Service
	emailSvc   emaildomain.Service
	mergeSvc   mergedomain.Service
	rewriteSvc rewrite.Service
	hub        *progress.Hub
	sender     mailer.Provider
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Authsvc    authdomain.Service
	Sessions   *session.Manager
	GenID      *snowflake.Node
	ProjectSvc projectdomain.Service
	EmailSvc   emaildomain.Service
	MergeSvc   mergedomain.Service
	RewriteSvc rewrite.Service
	Hub        *progress.Hub
	Sender     mailer.Provider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		authsvc:    p.Authsvc,
		sessions:   p.Sessions,
		genID:      p.GenID,
		projectSvc: p.ProjectSvc,
		emailSvc:   p.EmailSvc,
		mergeSvc:   p.MergeSvc,
		rewriteSvc: p.RewriteSvc,
		hub:        p.Hub,
		sender:     p.Sender,
		obsMetrics: p.ObsMetrics,
	}
}

func registerRoutes(s *Server) {
	s.registerAuthRoutes()
	s.registerAPIRoutes()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.WebAuthRequired())

	// -------- Projects --------
	api.GET("/projects", s.ListProjects)
	api.POST("/projects", s.CreateProject)
	api.GET("/projects/:id", s.GetProjectByID)
	api.PATCH("/projects/:id", s.UpdateProject)
	api.DELETE("/projects/:id", s.DeleteProject)
	api.POST("/projects/:id/spreadsheet", s.UploadProjectSpreadsheet)
	api.GET("/projects/:id/headings", s.ListProjectHeadings)
	api.GET("/projects/:id/emails", s.ListProjectEmails)
	api.GET("/projects/:id/attachments", s.ListProjectAttachments)

	// -------- Emails --------
	api.GET("/emails/:id", s.GetEmailByID)
	api.DELETE("/emails/:id", s.DeleteEmail)

	// -------- Attachments --------
	api.POST("/attachments", s.CreateAttachment)
	api.GET("/attachments/:id/download", s.DownloadAttachment)
	api.DELETE("/attachments/:id", s.DeleteAttachment)

	// -------- Mail merge --------
	api.POST("/mail-merge/send", s.SendMailMerge)
	api.POST("/mail-merge/test-send", s.TestSendMailMerge)
	api.POST("/mail-merge/ping", s.PingMail)

	api.GET("/mail-progress/stream", s.StreamMailProgress)

	// -------- AI rewrite --------
	api.POST("/ai/rewrite", s.RewriteText)
}
