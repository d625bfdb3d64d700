package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sat-lms-api/api/swagger"
	"github.com/noah-isme/sat-lms-api/internal/handler"
	"github.com/noah-isme/sat-lms-api/internal/middleware"
	"github.com/noah-isme/sat-lms-api/internal/models"
	"github.com/noah-isme/sat-lms-api/internal/repository"
	"github.com/noah-isme/sat-lms-api/internal/service"
	"github.com/noah-isme/sat-lms-api/pkg/cache"
	"github.com/noah-isme/sat-lms-api/pkg/config"
	"github.com/noah-isme/sat-lms-api/pkg/database"
	"github.com/noah-isme/sat-lms-api/pkg/export"
	"github.com/noah-isme/sat-lms-api/pkg/jobs"
	"github.com/noah-isme/sat-lms-api/pkg/logger"
	"github.com/noah-isme/sat-lms-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/sat-lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sat-lms-api/pkg/middleware/requestid"
	"github.com/noah-isme/sat-lms-api/pkg/storage"
)

// @title SAT LMS API
// @version 1.0.0
// @description Access control, progress tracking, certificates and fee gating for the SAT learning platform
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare certificate storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)

	var mail mailer.Mailer = mailer.NoopMailer{}
	if cfg.Mailer.Enabled && cfg.Mailer.APIKey != "" {
		mail = mailer.NewSendGridMailer(cfg.Mailer.APIKey, cfg.Mailer.FromName, cfg.Mailer.FromAddress, logr)
	}
	notificationSvc := service.NewNotificationService(userRepo, courseRepo, mail, jobs.QueueConfig{
		Workers:    cfg.Mailer.Workers,
		MaxRetries: cfg.Mailer.MaxRetries,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sat-lms-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, validate, logr)
	classSvc := service.NewClassService(classRepo, courseRepo, service.ClassDefaults{
		Locked:    cfg.Content.ClassLockedByDefault,
		Published: cfg.Content.ClassPublishedByDefault,
	}, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, courseRepo, progressRepo, classRepo, notificationSvc, validate, logr)
	progressSvc := service.NewProgressService(progressRepo, classRepo, enrollmentRepo, enrollmentSvc, cfg.Progress.CompletionThreshold, validate, logr)
	certificateSvc := service.NewCertificateService(service.CertificateServiceParams{
		Repo:        certificateRepo,
		Enrollments: enrollmentRepo,
		Courses:     courseRepo,
		Students:    userRepo,
		Renderer:    export.NewCertificatePDF(),
		Storage:     fileStore,
		Signer:      signer,
		Cache:       cacheSvc,
		Notifier:    notificationSvc,
		Config: service.CertificateConfig{
			NumberPrefix:    cfg.Certificates.NumberPrefix,
			SequenceDigits:  cfg.Certificates.SequenceDigits,
			CodeSuffixBytes: cfg.Certificates.CodeSuffixBytes,
			DefaultTemplate: cfg.Certificates.DefaultTemplate,
			DefaultGrade:    cfg.Certificates.DefaultGrade,
			IssuerName:      cfg.Certificates.IssuerName,
			IssuerSignatory: cfg.Certificates.IssuerSignatory,
			VerifyCacheTTL:  cfg.Certificates.VerifyCacheTTL,
		},
		Validate: validate,
		Logger:   logr,
	})
	feeSvc := service.NewFeeService(feeRepo, enrollmentRepo, notificationSvc, service.FeeConfig{
		DefaultAmount: cfg.Fees.DefaultAmount,
		DueDay:        cfg.Fees.DueDay,
		BlockReason:   cfg.Fees.BlockReason,
	}, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, classSvc)
	classHandler := handler.NewClassHandler(classSvc, progressSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, feeSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
	}

	api.GET("/certificates/verify/:code", certificateHandler.Verify)
	api.GET("/certificates/download/:token", certificateHandler.ServeDownload)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		protected.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

		users := protected.Group("/users")
		{
			users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
			users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
			users.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionUserCreate, "users"), userHandler.Create)
			users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionUserUpdate, "users"), userHandler.Update)
			users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionUserDelete, "users"), userHandler.Delete)
		}

		courses := protected.Group("/courses")
		{
			courses.GET("", courseHandler.List)
			courses.GET("/:id", courseHandler.Get)
			courses.GET("/:id/classes", courseHandler.ListClasses)
			courses.GET("/:id/progress", classHandler.CourseProgress)

			courses.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), courseHandler.Create)
			courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), courseHandler.Update)
			courses.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), courseHandler.Delete)
			courses.POST("/:id/classes", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), courseHandler.CreateClass)
			courses.PUT("/:id/block-defaulters", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionEnrollmentBlock, "courses"), feeHandler.BlockDefaulters)
		}

		protected.GET("/watch/:classId", middleware.RequireRoles(models.RoleStudent), classHandler.Watch)
		protected.PUT("/progress/:classId", middleware.RequireRoles(models.RoleStudent), classHandler.UpdateProgress)

		classes := protected.Group("/classes")
		{
			classes.GET("/:id", classHandler.Get)

			classes.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), classHandler.Update)
			classes.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), classHandler.Delete)
		}

		enrollments := protected.Group("/enrollments")
		enrollments.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
		{
			enrollments.GET("", enrollmentHandler.List)
			enrollments.GET("/:id", enrollmentHandler.Get)
			enrollments.POST("", enrollmentHandler.Create)
			enrollments.DELETE("/:id", enrollmentHandler.Delete)
			enrollments.PUT("/:id/class/:classId/toggle-lock", middleware.Audit(userRepo, models.AuditActionOverrideToggle, "enrollments"), enrollmentHandler.ToggleClassLock)
			enrollments.PUT("/:id/bulk-class-access", middleware.Audit(userRepo, models.AuditActionOverrideToggle, "enrollments"), enrollmentHandler.BulkClassAccess)
			enrollments.PUT("/:id/block", middleware.Audit(userRepo, models.AuditActionEnrollmentBlock, "enrollments"), enrollmentHandler.Block)
			enrollments.PUT("/:id/unblock", middleware.Audit(userRepo, models.AuditActionEnrollmentUnblock, "enrollments"), enrollmentHandler.Unblock)
		}

		certificates := protected.Group("/certificates")
		{
			certificates.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), certificateHandler.List)
			certificates.GET("/:id", certificateHandler.Get)
			certificates.GET("/:id/download", certificateHandler.Download)
			certificates.POST("/generate", middleware.RequireRoles(models.RoleStudent), certificateHandler.Generate)
			certificates.POST("/issue", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionCertificateIssue, "certificates"), certificateHandler.Issue)
			certificates.PUT("/:id/revoke", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionCertificateRevoke, "certificates"), certificateHandler.Revoke)
			certificates.PUT("/:id/restore", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionCertificateRestore, "certificates"), certificateHandler.Restore)
		}

		fees := protected.Group("/fees")
		{
			fees.GET("", feeHandler.List)
			fees.PUT("/:id/submit-proof", middleware.RequireRoles(models.RoleStudent), feeHandler.SubmitProof)

			fees.POST("/generate", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionFeeGenerate, "fees"), feeHandler.Generate)
			fees.PUT("/:id/review", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionFeeReview, "fees"), feeHandler.Review)
			fees.GET("/export", middleware.RequireRoles(models.RoleAdmin), feeHandler.Export)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
