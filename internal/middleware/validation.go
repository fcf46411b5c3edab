package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// fieldMessages maps the validator tags used by the request structs to client
// facing text. Tags with a parameter get it appended below.
var fieldMessages = map[string]string{
	"required": "This field is required",
	"email":    "Invalid email format",
	"len":      "Value has the wrong length",
	"numeric":  "Value must be numeric",
	"min":      "Value is too short",
	"max":      "Value is too long",
	"gt":       "Value must be greater than",
	"gte":      "Value must be greater than or equal to",
	"oneof":    "Value must be one of:",
}

var paramTags = map[string]bool{"gt": true, "gte": true, "oneof": true}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type BadRequestErrorResponse struct {
	Message string            `json:"message"`
	Details []ValidationError `json:"details"`
}

// ValidateRequest runs the struct tags of a bound request body and returns one
// entry per failing field, nil when the body is valid.
func ValidateRequest(obj any) []ValidationError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var details []ValidationError
	for _, fe := range err.(validator.ValidationErrors) {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "Invalid value"
		} else if paramTags[fe.Tag()] {
			msg += " " + fe.Param()
		}
		details = append(details, ValidationError{
			Field:   fe.Field(),
			Message: msg,
			Type:    fe.Tag(),
		})
	}
	return details
}

func RespondWithValidationError(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Message: "Invalid request data",
		Details: validationErrors,
	})
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"message": message,
	})
}
