package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standard error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error sends an error response with the given status code.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// ErrorWithCode sends an error response with an error code.
func ErrorWithCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: message, Code: code})
}

// ErrorWithDetails sends an error response with a code and additional details.
func ErrorWithDetails(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Code: code, Details: details})
}

// BadRequest sends a 400 Bad Request response.
func BadRequest(c *gin.Context, code, message string) {
	ErrorWithCode(c, http.StatusBadRequest, code, message)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "not found"
	}
	ErrorWithCode(c, http.StatusNotFound, "NOT_FOUND", message)
}

// InternalError sends a 500 Internal Server Error response.
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "internal error"
	}
	ErrorWithCode(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// ErrorMapping maps domain errors to HTTP responses.
type ErrorMapping struct {
	Err    error
	Status int
	Code   string
	// Message prefixes the error text. When empty the error text is used as is.
	Message string
	// Details extracts structured details from the error. Optional.
	Details func(err error) any
}

func (m ErrorMapping) message(err error) string {
	if m.Message == "" {
		return err.Error()
	}
	return m.Message + ": " + err.Error()
}

// HandleError handles an error using the provided mappings.
// Returns true if the error was handled, false otherwise.
func HandleError(c *gin.Context, err error, mappings []ErrorMapping) bool {
	for _, m := range mappings {
		if !errors.Is(err, m.Err) {
			continue
		}
		var details any
		if m.Details != nil {
			details = m.Details(err)
		}
		ErrorWithDetails(c, m.Status, m.Code, m.message(err), details)
		return true
	}
	return false
}

// HandleErrorWithDefault handles an error with a generic 500 fallback.
func HandleErrorWithDefault(c *gin.Context, err error, mappings []ErrorMapping) {
	if !HandleError(c, err, mappings) {
		_ = c.Error(err)
		InternalError(c, "")
	}
}
