package app

import (
	"skillpilot_backend/docs"
	"skillpilot_backend/internal/config"
	"skillpilot_backend/internal/middleware"
	"skillpilot_backend/internal/model"

	"skillpilot_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerLearningRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, repos, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerLearningRoutes(rg *gin.RouterGroup, c *controllers) {
	// 个人信息
	rg.GET("/profile", c.auth.GetProfile)
	rg.PUT("/profile", c.auth.UpdateProfile)
	rg.PUT("/profile/password", c.auth.ChangePassword)
	rg.POST("/profile/avatar", c.auth.UploadAvatar)

	// 今日视图
	rg.GET("/dashboard/today", c.dashboard.Today)

	// 学习计划
	rg.POST("/plans", c.plan.Create)
	rg.GET("/plans", c.plan.List)
	rg.GET("/plans/:id", c.plan.Get)
	rg.DELETE("/plans/:id", c.plan.Delete)
	rg.GET("/plans/:id/progress", c.plan.Progress)

	// 子技能路由决策与学习会话
	rg.POST("/subskills/:id/start", c.subskill.Start)
	rg.POST("/subskills/:id/sessions/complete", c.subskill.CompleteSession)
	rg.GET("/subskills/:id/sessions", c.subskill.ListSessions)
	rg.GET("/subskills/:id/refresh", c.subskill.RefreshStatus)
	rg.GET("/subskills/:id/lesson-plans", c.subskill.ListLessonPlans)
	rg.POST("/subskills/:id/knowledge-check", c.knowledgeCheck.Start)

	// 诊断测评
	rg.GET("/assessments/:id", c.assessment.Get)
	rg.POST("/assessments/:id/submit", c.assessment.Submit)
	rg.GET("/assessments/:id/results", c.assessment.Results)

	// 知识检测
	rg.GET("/knowledge-checks/:id", c.knowledgeCheck.Get)
	rg.POST("/knowledge-checks/:id/submit", c.knowledgeCheck.Submit)

	// 课程计划
	rg.GET("/lesson-plans/:id", c.lessonPlan.Get)

	// AI 问答
	rg.POST("/qa/ask", c.qa.Ask)
	rg.DELETE("/qa/history", c.qa.ClearHistory)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(a.Config), middleware.ActivityMiddleware(repos.user), middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.GetUsers)
		admin.GET("/users/:id", c.user.GetUser)
		admin.PUT("/users/:id", c.user.UpdateUser)
		admin.DELETE("/users/:id", c.user.DeleteUser)
		admin.POST("/users/:id/reset-password", c.user.ResetPassword)
		admin.POST("/users/:id/disable", c.user.DisableUser)
	}
}
