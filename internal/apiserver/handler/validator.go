package handler

import (
	"reflect"
	"strings"
	"sync"

	"github.com/amoylab/agridash/internal/apiserver/database"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("agriyear", func(fl validator.FieldLevel) bool {
			year := fl.Field().Int()
			return year >= database.MinYear && year <= database.MaxYear
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return database.ValidRole(fl.Field().String())
		})
	})
}

// fieldName reports fields by their wire name
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}
