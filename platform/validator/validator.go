// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// planIDPattern is the shape of an 11-character plan identifier: eleven
// non-whitespace characters. Partner-issued identifiers are opaque, so no
// alphabet is enforced here.
var planIDPattern = regexp.MustCompile(`^\S{11}$`)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// Validate is the shared instance used by HTTP handlers.
var Validate = New()

// New creates a new Validator instance with domain validations registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("planid", validatePlanID)
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

func validatePlanID(fl validator.FieldLevel) bool {
	return planIDPattern.MatchString(fl.Field().String())
}
