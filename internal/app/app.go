package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"assessment_engine_backend/internal/config"
	"assessment_engine_backend/internal/controller"
	"assessment_engine_backend/internal/repository"
	"assessment_engine_backend/internal/service"
	"assessment_engine_backend/internal/util"
	"assessment_engine_backend/pkg/configwatcher"
	"assessment_engine_backend/pkg/database"
	"assessment_engine_backend/pkg/logger"
	"assessment_engine_backend/pkg/monitoring"
	"assessment_engine_backend/pkg/security"
	"assessment_engine_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)

	mu      sync.RWMutex
	session config.SessionConfig
}

type repositories struct {
	assessments service.AssessmentStore
	attempts    service.AttemptStore
	directory   service.DirectoryReader
}

type services struct {
	clock       service.Clock
	eligibility *service.EligibilityEvaluator
	scoring     *service.ScoringEngine
	scheduler   *service.DeadlineScheduler
	attempt     *service.AttemptService
	assessment  *service.AssessmentService
}

type controllers struct {
	attempt    *controller.AttemptController
	assessment *controller.AssessmentController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) sessionConfig() config.SessionConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	var repos *repositories
	if db == nil {
		store := repository.NewMemoryStore()
		repos = &repositories{assessments: store, attempts: store, directory: store}
	} else {
		repos = &repositories{
			assessments: repository.NewAssessmentRepository(db),
			attempts:    repository.NewSubmissionRepository(db),
			directory:   repository.NewDirectoryRepository(db),
		}
	}

	if rdb != nil {
		repos.assessments = repository.NewCachedAssessmentRepository(repos.assessments, rdb, a.Config.Redis.CacheTTL())
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{clock: service.SystemClock()}
	s.eligibility = service.NewEligibilityEvaluator(repos.directory)
	s.scoring = service.NewScoringEngine()
	s.scheduler = service.NewDeadlineScheduler(s.clock, cfg.Session.Workers(), nil)
	s.attempt = service.NewAttemptService(repos.assessments, repos.attempts, s.eligibility, s.scoring, s.scheduler, s.clock, cfg.Session)
	s.assessment = service.NewAssessmentService(repos.assessments, s.clock)
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		attempt:    controller.NewAttemptController(s.attempt),
		assessment: controller.NewAssessmentController(s.assessment),
		health:     controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window, security.ByClientIP))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func openStores(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	var db *gorm.DB
	if cfg.Database.Driver != util.DriverMemory {
		var err error
		db, err = database.InitDB(&cfg.Database, cfg.Server.Mode)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize database: %w", err)
		}
		// release 模式下只有显式要求时才迁移
		if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode || cfg.Database.Driver == util.DriverSQLite {
			if err := database.Migrate(db); err != nil {
				return nil, nil, err
			}
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		var err error
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			// 缓存只是加速，启动时不可用则直接读库
			logger.Log.Warn("Redis unavailable, assessment cache disabled", zap.Error(err))
			rdb = nil
		}
	}
	return db, rdb, nil
}

// Build 组装仓储、服务、控制器与路由，不启动任何后台任务
func Build(cfg *config.Config) (*App, error) {
	db, rdb, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		session: cfg.Session,
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	repos := app.initRepositories(db, rdb)
	app.services = app.initServices(repos, cfg)
	controllers := app.initControllers(app.services)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		app.mu.Lock()
		app.session = newCfg.Session
		app.mu.Unlock()
		app.services.attempt.UpdateSettings(newCfg.Session)
		logger.Log.Info("Session settings updated",
			zap.Int("retry_attempts", newCfg.Session.RetryAttempts),
			zap.Bool("grade_async", newCfg.Session.GradeAsync),
			zap.Duration("sweep_interval", newCfg.Session.SweepInterval()))
	})

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers)

	return app, nil
}

func NewApp(cfg *config.Config) *App {
	logger.Init(cfg.Log, cfg.Server.Mode)
	logger.Log.Info("Logger initialized", zap.String("file", cfg.Log.File))

	app, err := Build(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize application", zap.Error(err))
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("assessment-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	return app
}

// startBackgroundTasks 截止时间调度、超时扫描、异步评分与配置热更新
func (a *App) startBackgroundTasks(ctx context.Context) *errgroup.Group {
	g, ctx := errgroup.WithContext(ctx)
	s := a.services

	if n, err := s.attempt.RestoreDeadlines(ctx); err != nil {
		logger.Log.Error("Failed to restore deadlines", zap.Error(err))
	} else {
		logger.Log.Info("Deadlines restored", zap.Int("open_attempts", n))
	}

	g.Go(func() error {
		s.scheduler.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.attempt.RunGradingWorkers(ctx, a.Config.Session.Workers())
		return nil
	})
	g.Go(func() error {
		return a.runSweeper(ctx)
	})

	if file := viper.ConfigFileUsed(); file != "" {
		g.Go(func() error {
			return configwatcher.WatchConfig(ctx, file, nil, a.applyConfig)
		})
	}
	return g
}

// runSweeper 定期自动提交已过期的作答并补评分没有成绩的已关闭作答，兜底重启或多实例时遗漏的定时器
func (a *App) runSweeper(ctx context.Context) error {
	interval := a.sessionConfig().SweepInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.services.attempt.ExpireOverdue(ctx)
			if err != nil {
				logger.Log.Error("Overdue sweep failed", zap.Error(err))
			} else if n > 0 {
				logger.Log.Info("Overdue attempts auto-submitted", zap.Int("count", n))
			}
			if n, err := a.services.attempt.RegradeUngraded(ctx); err != nil {
				logger.Log.Error("Ungraded sweep failed", zap.Error(err))
			} else if n > 0 {
				logger.Log.Info("Closed attempts regraded", zap.Int("count", n))
			}

			if next := a.sessionConfig().SweepInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	background := a.startBackgroundTasks(bgCtx)

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 先停止接收请求，再等待正在进行的自动交卷与评分完成
	stopBackground()
	if err := background.Wait(); err != nil {
		logger.Log.Error("Background task stopped with error", zap.Error(err))
	}

	a.Close()
	logger.Log.Info("Server exiting")
}

// Close 释放外部连接
func (a *App) Close() {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	logger.Sync()
}
