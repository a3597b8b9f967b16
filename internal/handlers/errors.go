package handlers

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
)

// respondError writes the JSON error body for err.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= 500 {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "kind", kind, "error", err)
	}

	body := gin.H{"error": kind, "message": apperr.Message(err)}
	var ve *catalog.ValidationError
	if errors.As(err, &ve) {
		body["fields"] = ve.Fields
	}
	c.JSON(status, body)
}

var registerTagName sync.Once

// bindJSON binds the request body and writes a 400 on failure. Field errors
// are keyed by their JSON name.
func bindJSON(c *gin.Context, out any) bool {
	registerTagName.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonFieldName)
		}
	})

	if err := c.ShouldBindJSON(out); err != nil {
		body := gin.H{"error": apperr.Validation, "message": "Invalid request body."}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			body["message"] = "Missing or invalid fields."
			body["fields"] = validationErrorsToMap(ve)
		}
		c.JSON(apperr.HTTPStatus(apperr.Validation), body)
		return false
	}
	return true
}

func validationErrorsToMap(ve validator.ValidationErrors) map[string]string {
	out := map[string]string{}
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		case "email":
			out[fe.Field()] = "must be a valid email"
		case "min":
			out[fe.Field()] = "must be at least " + fe.Param() + " characters"
		default:
			out[fe.Field()] = "failed " + fe.Tag() + " validation"
		}
	}
	return out
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
