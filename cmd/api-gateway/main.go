package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edupredict-api/api/swagger"
	"github.com/noah-isme/edupredict-api/internal/handler"
	"github.com/noah-isme/edupredict-api/internal/middleware"
	"github.com/noah-isme/edupredict-api/internal/ml"
	"github.com/noah-isme/edupredict-api/internal/models"
	"github.com/noah-isme/edupredict-api/internal/repository"
	"github.com/noah-isme/edupredict-api/internal/service"
	"github.com/noah-isme/edupredict-api/pkg/cache"
	"github.com/noah-isme/edupredict-api/pkg/config"
	"github.com/noah-isme/edupredict-api/pkg/database"
	"github.com/noah-isme/edupredict-api/pkg/jobs"
	"github.com/noah-isme/edupredict-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edupredict-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edupredict-api/pkg/middleware/requestid"
	"github.com/noah-isme/edupredict-api/pkg/storage"
)

// @title EduPredict API
// @version 0.1.0
// @description Student performance prediction service
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	// Model artifacts load once at startup. A broken export must never serve
	// predictions, so any failure here is fatal.
	artifacts, err := ml.LoadArtifacts(cfg.Model)
	if err != nil {
		logr.Sugar().Fatalw("failed to load model artifacts", "error", err, "dir", cfg.Model.Dir)
	}
	logr.Sugar().Infow("model artifacts loaded",
		"model", artifacts.Metadata.ModelName,
		"features", artifacts.Metadata.FeatureCount)

	validate := validator.New()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	predictionRepo := repository.NewPredictionRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Prediction.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "edupredict-api",
	})

	featureCalc := service.NewFeatureCalculator(
		enrollmentRepo, attendanceRepo, activityRepo, assessmentRepo, studentRepo,
		artifacts.FeatureOrder, service.DefaultFeaturePolicy(), logr)
	predictionSvc := service.NewPredictionService(
		featureCalc, predictionRepo, enrollmentRepo, artifacts,
		cacheSvc, metricsSvc, logr, cfg.Prediction.BatchLimit, cfg.RiskReport.CacheTTL)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, cacheSvc, validate, logr)
	assessmentSvc := service.NewAssessmentService(assessmentRepo, cacheSvc, validate, logr)
	exportSvc := service.NewExportService(predictionSvc, nil, nil, nil, logr)
	if archive, archiveErr := storage.NewLocalStorage(cfg.Export.ArchiveDir); archiveErr != nil {
		logr.Warn("report archive unavailable", zap.Error(archiveErr))
	} else {
		exportSvc = service.NewExportService(predictionSvc, nil, nil, archive, logr)
	}

	predictionQueue := jobs.NewQueue("course-predictions", func(ctx context.Context, job jobs.Job) error {
		offeringID, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("job %s has unexpected payload type %T", job.ID, job.Payload)
		}
		summary, err := predictionSvc.PredictOffering(ctx, offeringID)
		if err != nil {
			return err
		}
		logr.Info("queued course prediction run finished",
			zap.String("job_id", job.ID),
			zap.String("offering_id", offeringID),
			zap.Int("successful", summary.Successful),
			zap.Int("failed", summary.Failed))
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Prediction.WorkerCount,
		BufferSize: cfg.Prediction.QueueBufferLen,
		MaxRetries: 1,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})

	queueCtx, stopQueue := context.WithCancel(context.Background())
	predictionQueue.Start(queueCtx)

	authHandler := handler.NewAuthHandler(authSvc)
	predictionHandler := handler.NewPredictionHandler(predictionSvc, featureCalc, exportSvc, metricsSvc, predictionQueue, logr)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	assessmentHandler := handler.NewAssessmentHandler(assessmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
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
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	if cfg.Activity.Enabled {
		protected.Use(middleware.TrackActivity(activityRepo, logr))
	}

	if cfg.Prediction.Enabled {
		predictions := protected.Group("/predictions")
		predictions.GET("/health", predictionHandler.Health)
		predictions.GET("/model-info", predictionHandler.ModelInfo)

		staff := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty)
		predictions.POST("/enrollments/:enrollmentId", staff, predictionHandler.Generate)
		predictions.GET("/enrollments/:enrollmentId", predictionHandler.GetLatest)
		predictions.GET("/enrollments/:enrollmentId/history", predictionHandler.GetHistory)
		predictions.GET("/enrollments/:enrollmentId/features", staff, predictionHandler.GetFeatures)
		predictions.GET("/courses/:offeringId", staff, predictionHandler.GetCoursePredictions)
		predictions.POST("/courses/:offeringId", staff, predictionHandler.GenerateCourse)

		if cfg.RiskReport.Enabled {
			predictions.GET("/at-risk", staff, predictionHandler.AtRisk)
			predictions.GET("/at-risk/export", staff, predictionHandler.ExportAtRisk)
		}
	}

	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty)
	attendance := protected.Group("/attendance")
	attendance.PUT("", staffOnly, attendanceHandler.Upsert)
	attendance.GET("/enrollments/:enrollmentId", attendanceHandler.List)

	assessments := protected.Group("/assessments")
	assessments.POST("/submissions/:submissionId/grade", staffOnly, assessmentHandler.Grade)

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	stopQueue()
	predictionQueue.Stop()

	if redisClient != nil {
		_ = cacheRepo.Close()
	}
}
