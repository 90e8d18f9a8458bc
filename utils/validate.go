package utils

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"kpitracker/models"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	Validate.RegisterValidation("kpi_frequency", func(fl validator.FieldLevel) bool {
		return models.Frequency(fl.Field().String()).Valid()
	})
}

// ValidateStruct returns failing fields mapped to the failed tag, or nil.
func ValidateStruct(v interface{}) map[string]string {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"_": err.Error()}
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = e.Tag()
	}
	return errorMessages
}

// DecodeJSON decodes the request body into v, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		HandleMessageResponse(w, r, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return err
	}
	return nil
}

// DecodeAndValidate decodes the request body and validates it with Validate.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := DecodeJSON(w, r, v); err != nil {
		return err
	}
	if fields := ValidateStruct(v); fields != nil {
		HandleValidationResponse(w, r, http.StatusBadRequest, fields)
		return errors.New("validation failed")
	}
	return nil
}
