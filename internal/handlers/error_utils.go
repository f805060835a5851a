package handlers

import (
	"fmt"

	"practicehub/internal/middleware"
	contextutils "practicehub/internal/utils"

	"github.com/gin-gonic/gin"
)

// HandleAppError sends the structured error response for any service error.
// The HTTP status mapping lives in the middleware package next to the panic
// recovery that uses it.
func HandleAppError(c *gin.Context, err error) {
	middleware.HandleAppError(c, err)
}

// HandleValidationError handles input validation errors consistently
func HandleValidationError(c *gin.Context, field string, value interface{}, reason string) {
	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		fmt.Sprintf("Invalid %s", field),
		fmt.Sprintf("Value '%v' is invalid: %s", value, reason),
	)
	middleware.StandardizeAppError(c, appErr)
}
