package handlers

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	appErrors "github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/response"
	appValidator "github.com/hundredminds/backend/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and applies its validate tags.
// On failure it writes a 400 describing every rejected field and returns false.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("Request body must be valid JSON"))
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}
	return true
}

// formatValidationError joins every field failure using human readable field names.
func formatValidationError(err error) string {
	failures, ok := err.(appValidator.ValidationErrors)
	if !ok || len(failures) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		failure.Field = prettifyFieldName(failure.Field)
		if failure.Tag == "eqfield" {
			failure.Param = prettifyFieldName(failure.Param)
		}
		messages = append(messages, failure.Message())
	}
	return strings.Join(messages, "; ")
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && i > 0:
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// parseIntQuery reads an integer query parameter, falling back when absent or malformed.
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(c.Query(key))); err == nil {
		return parsed
	}
	return fallback
}
