package app

import (
	"assessment_engine_backend/internal/middleware"
	"assessment_engine_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	api.Use(middleware.IdentityMiddleware())
	{
		api.GET("/health", c.health.HealthCheck)

		// 学员作答接口
		a.registerAttemptRoutes(api, c)

		// 教师相关接口
		a.registerTeacherRoutes(api, c)
	}
}

func (a *App) registerAttemptRoutes(api *gin.RouterGroup, c *controllers) {
	attempts := api.Group("/attempts")
	{
		attempts.POST("/start", c.attempt.Start)
		attempts.GET("/:id", c.attempt.Get)
		attempts.PUT("/:id/answer", c.attempt.SaveAnswer)
		attempts.POST("/:id/finish", c.attempt.Finish)
		attempts.GET("/:id/result", c.attempt.Result)
	}

	api.GET("/assessments/:id/eligibility", c.attempt.Eligibility)
}

func (a *App) registerTeacherRoutes(api *gin.RouterGroup, c *controllers) {
	teacher := api.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(middleware.RoleTeacher))
	{
		teacher.POST("/assessments", c.assessment.CreateAssessment)
		teacher.GET("/assessments", c.assessment.ListAssessments)
		teacher.GET("/assessments/:id", c.assessment.GetAssessment)
		teacher.POST("/assessments/:id/questions", c.assessment.AddQuestion)
		teacher.POST("/assessments/:id/rules", c.assessment.AddRule)
		teacher.POST("/assessments/:id/publish", c.assessment.Publish)
		teacher.POST("/assessments/:id/archive", c.assessment.Archive)
	}
}
