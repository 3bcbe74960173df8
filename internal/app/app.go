package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"skillpilot_backend/internal/config"
	"skillpilot_backend/internal/controller"
	"skillpilot_backend/internal/repository"
	"skillpilot_backend/internal/service"
	"skillpilot_backend/internal/util"
	"skillpilot_backend/pkg/database"
	"skillpilot_backend/pkg/logger"
	"skillpilot_backend/pkg/monitoring"
	"skillpilot_backend/pkg/security"
	"skillpilot_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user           *repository.UserRepository
	plan           *repository.PlanRepository
	subskill       *repository.SubskillRepository
	assessment     *repository.AssessmentRepository
	knowledgeCheck *repository.KnowledgeCheckRepository
	sessionSummary *repository.SessionSummaryRepository
	lessonPlan     *repository.LessonPlanRepository
}

type services struct {
	storage        *service.StorageService
	auth           *service.AuthService
	user           *service.UserService
	ai             *service.AIService
	generator      *service.AssessmentGenerator
	scoring        *service.ScoringEngine
	lessonPlan     *service.LessonPlanService
	subskill       *service.SubskillService
	knowledgeCheck *service.KnowledgeCheckService
	session        *service.SessionService
	progress       *service.ProgressService
	plan           *service.PlanService
	qa             *service.QAService
}

type controllers struct {
	auth           *controller.AuthController
	user           *controller.UserController
	plan           *controller.PlanController
	subskill       *controller.SubskillController
	assessment     *controller.AssessmentController
	knowledgeCheck *controller.KnowledgeCheckController
	lessonPlan     *controller.LessonPlanController
	dashboard      *controller.DashboardController
	qa             *controller.QAController
	health         *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，由配置文件监听器触发
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("Configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:           repository.NewUserRepository(db),
		plan:           repository.NewPlanRepository(db),
		subskill:       repository.NewSubskillRepository(db),
		assessment:     repository.NewAssessmentRepository(db),
		knowledgeCheck: repository.NewKnowledgeCheckRepository(db),
		sessionSummary: repository.NewSessionSummaryRepository(db),
		lessonPlan:     repository.NewLessonPlanRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)

	s.ai = service.NewAIService(cfg.AI)
	s.generator = service.NewAssessmentGenerator(s.ai)
	s.scoring = service.NewScoringEngine()
	s.lessonPlan = service.NewLessonPlanService(repos.lessonPlan, s.ai)

	s.subskill = service.NewSubskillService(
		repos.subskill,
		repos.plan,
		repos.assessment,
		s.generator,
		s.scoring,
		s.lessonPlan,
	)
	s.knowledgeCheck = service.NewKnowledgeCheckService(
		repos.knowledgeCheck,
		repos.subskill,
		repos.plan,
		s.generator,
		s.scoring,
	)
	s.session = service.NewSessionService(repos.subskill, repos.plan, repos.sessionSummary)
	s.progress = service.NewProgressService(repos.plan, repos.subskill)
	s.plan = service.NewPlanService(repos.plan, repos.subskill)
	s.qa = service.NewQAService(repos.subskill, repos.sessionSummary, s.progress, s.ai, rdb)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:           controller.NewAuthController(s.auth, s.user, s.storage),
		user:           controller.NewUserController(s.user),
		plan:           controller.NewPlanController(s.plan, s.progress),
		subskill:       controller.NewSubskillController(s.subskill, s.session, s.lessonPlan),
		assessment:     controller.NewAssessmentController(s.subskill),
		knowledgeCheck: controller.NewKnowledgeCheckController(s.knowledgeCheck),
		lessonPlan:     controller.NewLessonPlanController(s.lessonPlan),
		dashboard:      controller.NewDashboardController(s.progress),
		qa:             controller.NewQAController(s.qa),
		health:         controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode != "release" || cfg.ForceMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// AI 配置支持热更新
	app.RegisterConfigCallback(func(c *config.Config) {
		services.ai.SetConfig(c.AI)
	})

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("skillpilot-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
		router.Static("/api/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 关闭服务
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
