package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-oa/internal/config"
	"github.com/bitfantasy/nimo-oa/internal/middleware"
	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/handler"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/bitfantasy/nimo-oa/internal/oa/service"
	"github.com/bitfantasy/nimo-oa/internal/shared/feishu"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-oa service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 文书类型注册表校验：缺失映射立即失败，不等到运行期
	if err := service.ValidateDocumentRegistry(); err != nil {
		zapLogger.Fatal("Document type registry incomplete", zap.Error(err))
	}

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// AutoMigrate
	if err := db.AutoMigrate(
		&entity.Department{},
		&entity.User{},
		&entity.Approval{},
		&entity.ApprovalStep{},
		&entity.ApprovalParticipant{},
		&entity.ApprovalAttachment{},
		&entity.LeaveDetail{},
		&entity.CarFuelDetail{},
		&entity.ExpenseDetail{},
		&entity.ExpenseLine{},
		&entity.OverseasTripDetail{},
		&entity.TripExpenseLine{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			zapLogger.Warn("Failed to init MinIO client, attachments disabled", zap.Error(err))
			minioClient = nil
		}
	}

	// 初始化飞书客户端
	var feishuClient *feishu.FeishuClient
	feishuAppID := cfg.Feishu.AppID
	feishuAppSecret := cfg.Feishu.AppSecret
	if envID := os.Getenv("FEISHU_APP_ID"); envID != "" {
		feishuAppID = envID
	}
	if envSecret := os.Getenv("FEISHU_APP_SECRET"); envSecret != "" {
		feishuAppSecret = envSecret
	}
	if feishuAppID != "" && feishuAppSecret != "" {
		feishuClient = feishu.NewClient(feishuAppID, feishuAppSecret)
		zapLogger.Info("Feishu client initialized")
	}

	// 初始化依赖
	repos := repository.NewRepositories(db)

	var notifier service.Notifier
	if feishuClient != nil {
		notifier = service.NewFeishuNotifier(feishuClient, repos.User, zapLogger)
	}

	services := service.NewServices(db, repos, rdb, notifier, zapLogger)
	attachmentSvc := service.NewAttachmentService(repos.Attachment, minioClient, cfg.MinIO.Bucket, zapLogger)
	exportSvc := service.NewExportService(repos.ApprovalQuery)

	handlers := handler.NewHandlers(services, attachmentSvc, exportSvc)
	userHandler := handler.NewUserHandler(repos.User)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, userHandler, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, userH *handler.UserHandler, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")

	// SSE 实时推送（需要认证，支持 query param token）
	sseGroup := v1.Group("/sse")
	sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		sseGroup.GET("/events", h.SSE.Stream)
	}

	// 需要认证的接口
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 用户搜索（选择审批人/参与人）
		authorized.GET("/users/search", userH.Search)

		// 审批单
		approvals := authorized.Group("/approvals")
		{
			approvals.POST("", h.Approval.Create)
			approvals.GET("", h.Approval.List)
			approvals.GET("/pending-count", h.Approval.PendingCount)
			approvals.GET("/export", h.Export.Export)
			approvals.GET("/:id", h.Approval.Get)
			approvals.POST("/:id/approve", h.Approval.Approve)
			approvals.POST("/:id/reject", h.Approval.Reject)
			approvals.POST("/:id/cancel", h.Approval.Cancel)
		}

		// 附件
		attachments := authorized.Group("/attachments")
		{
			attachments.POST("", h.Attachment.Upload)
			attachments.GET("/:id/download", h.Attachment.Download)
		}
	}
}
