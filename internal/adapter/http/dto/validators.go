package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	// Safaricom mobile numbers, local or international form.
	msisdnRe = regexp.MustCompile(`^(?:\+?254|0)[17]\d{8}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("msisdn", validateMSISDN)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

func validateMSISDN(fl validator.FieldLevel) bool {
	return msisdnRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field of a struct pointer. Other kinds are left alone.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(html.EscapeString(strings.TrimSpace(f.String())))
		}
	}
}
