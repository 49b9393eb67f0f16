package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rabbitquest/handlers"
	"rabbitquest/middleware"
	"rabbitquest/storage"
)

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	quizHandler *handlers.QuizHandler,
	userHandler *handlers.UserHandler,
	mainPageHandler *handlers.MainPageHandler,
	tokens middleware.TokenParser,
	avatarDir string,
	log *zap.Logger,
) {
	requireAuth := middleware.AuthMiddleware(tokens, log)

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/register-and-login", authHandler.RegisterAndLogin)
			auth.POST("/refresh-token", authHandler.RefreshToken)
			auth.POST("/revoke", authHandler.Revoke)
		}

		quiz := api.Group("/quiz")
		{
			quiz.GET("/:id", middleware.OptionalAuth(tokens), quizHandler.GetQuizByID)

			protected := quiz.Group("")
			protected.Use(requireAuth)
			protected.POST("/create", quizHandler.CreateQuiz)
			protected.POST("/rate", quizHandler.RateQuiz)
			protected.POST("/:id/start", quizHandler.StartQuiz)
			protected.POST("/:id/complete", quizHandler.CompleteQuiz)
			protected.DELETE("/:id", quizHandler.DeleteQuiz)
		}

		mainPage := api.Group("/mainpage")
		{
			mainPage.GET("/quizzes", mainPageHandler.ListQuizzes)
			mainPage.GET("/users", mainPageHandler.ListUsers)
			mainPage.GET("/categories", mainPageHandler.ListCategories)
		}

		user := api.Group("/user")
		user.Use(requireAuth)
		{
			user.GET("/profile", userHandler.GetProfile)
			user.POST("/avatar", userHandler.UploadAvatar)
			user.GET("/avatar", userHandler.GetAvatar)
		}
	}

	router.Static(storage.URLPrefix, avatarDir)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
