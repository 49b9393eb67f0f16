package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rabbitquest/services"
)

// maxAvatarSize caps the multipart body accepted for an avatar upload.
const maxAvatarSize = 5 << 20

type UserHandler struct {
	userService *services.UserService
	log         *zap.Logger
}

func NewUserHandler(userService *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarSize)
	header, err := c.FormFile("avatarFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Avatar file is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Avatar file could not be read"})
		return
	}
	defer file.Close()

	url, err := h.userService.UploadAvatar(c.Request.Context(), userID, file, header.Filename)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatarUrl": url})
}

func (h *UserHandler) GetAvatar(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	url, err := h.userService.GetAvatar(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatarUrl": url})
}
