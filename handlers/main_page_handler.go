package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rabbitquest/services"
)

// MainPageHandler serves the public browse and search listings.
type MainPageHandler struct {
	quizService *services.QuizService
	userService *services.UserService
	log         *zap.Logger
}

func NewMainPageHandler(quizService *services.QuizService, userService *services.UserService, log *zap.Logger) *MainPageHandler {
	return &MainPageHandler{quizService: quizService, userService: userService, log: log}
}

func (h *MainPageHandler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.quizService.ListQuizzes(c.Request.Context(), c.Query("searchTerm"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *MainPageHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context(), c.Query("searchTerm"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *MainPageHandler) ListCategories(c *gin.Context) {
	categories, err := h.quizService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}
