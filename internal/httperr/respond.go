package httperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BadRequest sends a 400 response with the error envelope.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, NewError(message))
}

// AbortWithBadRequest sends a 400 response and aborts the request.
func AbortWithBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewError(message))
}

// Unauthorized sends a 401 response with the auth error envelope.
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, AuthErrorEnvelope{Error: message})
}

// AbortWithUnauthorized sends a 401 response and aborts the request.
func AbortWithUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, AuthErrorEnvelope{Error: message})
}

// Internal sends a 500 response with the error envelope.
func Internal(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, NewError(message))
}

// NotFound sends a 404 response.
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"message": message})
}
