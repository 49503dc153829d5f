package utils

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RespondWithError sends a JSON error response.
func RespondWithError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"status":  "error",
		"message": message,
	})
}

// RespondWithServerError logs err under a fresh error id and returns the id to
// the caller so the two can be correlated. The error itself is not exposed.
func RespondWithServerError(c *gin.Context, log logrus.FieldLogger, statusCode int, message string, err error) {
	errorID := uuid.NewString()
	log.WithFields(logrus.Fields{
		"error_id":   errorID,
		"request_id": c.GetString(RequestIDKey),
		"status":     statusCode,
	}).WithError(err).Error(message)

	c.JSON(statusCode, gin.H{
		"status":   "error",
		"message":  message,
		"error_id": errorID,
	})
}

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// FormatValidationErrors formats validation errors from validator/v10.
// Errors that are not validation errors (e.g. malformed JSON) are returned as a
// single message.
func FormatValidationErrors(err error) []string {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		element := fmt.Sprintf("Field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			element = fmt.Sprintf("%s (value: %s)", element, fe.Param())
		}
		messages = append(messages, element)
	}
	return messages
}
