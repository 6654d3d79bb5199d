package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}

	a.registerAdminRoutes(router, c, repos, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 证书查验对外公开
		public.GET("/certificates/verify/:number", c.certificate.Verify)

		// 课程目录允许游客浏览，登录用户可见更多
		public.GET("/courses", middleware.TryAuthMiddleware(a.Config), c.course.ListCourses)
		public.GET("/courses/:id", middleware.TryAuthMiddleware(a.Config), c.course.GetCourse)
		public.GET("/courses/:id/modules", middleware.TryAuthMiddleware(a.Config), c.course.ListModules)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/me", c.auth.Me)
	group.PUT("/me", c.user.UpdateProfile)
	group.PUT("/me/password", c.user.ChangePassword)

	// 选课与学习进度
	group.POST("/enrollments", c.enrollment.Enroll)
	group.GET("/enrollments", c.enrollment.ListMyEnrollments)
	group.DELETE("/enrollments/:id", c.enrollment.Drop)
	group.GET("/enrollments/:id/progress", c.enrollment.GetProgress)
	group.POST("/enrollments/:id/modules/:moduleId/complete", c.enrollment.CompleteModule)
	group.POST("/enrollments/:id/modules/:moduleId/touch", c.enrollment.TouchModule)

	// 答题
	group.GET("/quizzes/:id/take", c.quiz.GetQuizForStudent)
	group.POST("/quizzes/:id/attempts", c.quiz.StartAttempt)
	group.GET("/quizzes/:id/attempts/mine", c.quiz.ListMyAttempts)
	group.POST("/attempts/:id/submit", c.quiz.SubmitAttempt)
	group.GET("/attempts/:id", c.quiz.GetAttempt)

	// 证书
	group.GET("/certificates", c.certificate.ListMyCertificates)

	group.GET("/dashboard/student", c.dashboard.StudentDashboard)
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		// 课程与模块管理
		teacher.POST("/courses", c.course.CreateCourse)
		teacher.PUT("/courses/:id", c.course.UpdateCourse)
		teacher.DELETE("/courses/:id", c.course.DeleteCourse)
		teacher.POST("/courses/:id/publish", c.course.PublishCourse)
		teacher.POST("/courses/:id/unpublish", c.course.UnpublishCourse)
		teacher.POST("/courses/:id/modules", c.course.AddModule)
		teacher.PUT("/courses/:id/modules/:moduleId", c.course.UpdateModule)
		teacher.DELETE("/courses/:id/modules/:moduleId", c.course.DeleteModule)
		teacher.GET("/courses/:id/enrollments", c.enrollment.ListCourseEnrollments)

		// 课程封面与模块附件上传
		teacher.POST("/uploads", c.upload.UploadFile)

		// 测验管理与判分
		teacher.POST("/modules/:moduleId/quiz", c.quiz.CreateQuiz)
		teacher.GET("/quizzes/:id", c.quiz.GetQuiz)
		teacher.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		teacher.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
		teacher.GET("/quizzes/:id/attempts", c.quiz.ListAttempts)
		teacher.POST("/attempts/:id/review", c.quiz.ReviewAttempt)

		teacher.GET("/dashboard/teacher", c.dashboard.TeacherDashboard)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(
		middleware.AuthMiddleware(cfg),
		middleware.ActivityMiddleware(repos.user),
		middleware.RoleMiddleware(model.Admin),
	)
	{
		admin.GET("/users", c.user.GetUsers)
		admin.PUT("/users/:id/role", c.user.UpdateUserRole)
		admin.PUT("/users/:id/disable", c.user.DisableUser)

		admin.POST("/enrollments/:enrollmentId/certificate", c.certificate.Issue)

		admin.GET("/dashboard", c.dashboard.AdminDashboard)
	}
}
