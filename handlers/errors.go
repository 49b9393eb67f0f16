package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"rabbitquest/middleware"
	"rabbitquest/services"
)

var errorStatus = map[services.ErrorKind]int{
	services.KindNotFound:        http.StatusNotFound,
	services.KindUnauthorized:    http.StatusUnauthorized,
	services.KindForbidden:       http.StatusForbidden,
	services.KindConflict:        http.StatusConflict,
	services.KindValidation:      http.StatusBadRequest,
	services.KindInvalidArgument: http.StatusBadRequest,
}

// respondError writes the response for a service error. Errors that are not
// AppErrors are logged and reported as a bare 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		status, ok := errorStatus[appErr.Kind]
		if ok {
			body := gin.H{"error": appErr.Message}
			if len(appErr.Details) > 0 {
				body["details"] = appErr.Details
			}
			c.AbortWithStatusJSON(status, body)
			return
		}
	}

	log.Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestID)),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// respondBindError reports request body problems per field when the
// validator produced them.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = describeFieldError(fe)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed the " + fe.Tag() + " check"
	}
}

func requireUserID(c *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return id, ok
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}
