package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rabbitquest/middleware"
	"rabbitquest/services"
)

type QuizHandler struct {
	quizService *services.QuizService
	log         *zap.Logger
}

func NewQuizHandler(quizService *services.QuizService, log *zap.Logger) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
		log:         log,
	}
}

func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateQuizInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	quizID, err := h.quizService.CreateQuiz(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quizId": quizID})
}

// GetQuizByID works for anonymous callers; only the author sees answers.
func (h *QuizHandler) GetQuizByID(c *gin.Context) {
	quizID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	viewerID, _ := middleware.UserID(c)

	quiz, err := h.quizService.GetQuizByID(c.Request.Context(), quizID, viewerID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

func (h *QuizHandler) RateQuiz(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.RateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.quizService.RateQuiz(c.Request.Context(), userID, req.QuizID, *req.Rating)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *QuizHandler) StartQuiz(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	quizID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.quizService.StartQuiz(c.Request.Context(), userID, quizID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *QuizHandler) CompleteQuiz(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	quizID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.quizService.CompleteQuiz(c.Request.Context(), userID, quizID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	quizID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.quizService.DeleteQuiz(c.Request.Context(), userID, quizID, middleware.IsAdmin(c)); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Quiz deleted successfully"})
}
