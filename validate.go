package gantry

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zoobzio/sentinel"
)

// NoInput represents an empty payload for operations that accept no input.
type NoInput struct{}

// FieldIssue describes one violated constraint in a payload.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError enumerates every violated field in a payload, not only the
// first, so the caller can correct everything in one round trip.
type ValidationError struct {
	Fields []FieldIssue
}

// Error implements the error interface. The message lists field paths and
// reasons only; payload values are never echoed back.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(e.Fields))
	for i, issue := range e.Fields {
		parts[i] = issue.Field + " " + issue.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Schema is a pure structural description of an accepted payload type.
// Validation is deterministic and side-effect free: it decodes JSON and
// checks struct tags, never touching the environment or a datastore.
type Schema[T any] struct {
	meta     sentinel.ModelMetadata
	validate *validator.Validate
	noInput  bool
}

// NewSchema creates a Schema for T with sentinel metadata. Constraints are
// declared with validator struct tags on T; field paths in validation errors
// use json tag names.
func NewSchema[T any]() *Schema[T] {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	return &Schema[T]{
		meta:     sentinel.Scan[T](),
		validate: v,
		noInput:  reflect.TypeFor[T]() == reflect.TypeFor[NoInput](),
	}
}

// TypeName returns the scanned name of T.
func (s *Schema[T]) TypeName() string {
	return s.meta.TypeName
}

// Validate decodes raw into a typed value and checks it against the declared
// constraints. On failure it collects all field violations into a single
// ValidationError.
func (s *Schema[T]) Validate(raw []byte) (T, error) {
	var value T

	if s.noInput {
		return value, nil
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			return value, &ValidationError{
				Fields: []FieldIssue{{Field: "$", Reason: "is not valid JSON"}},
			}
		}
	}

	if err := s.validate.Struct(value); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			// Non-constraint failure (e.g., T is not a struct). A schema
			// defect, not a caller mistake.
			return value, fmt.Errorf("schema for %s is not validatable: %w", s.meta.TypeName, err)
		}

		issues := make([]FieldIssue, 0, len(ve))
		for _, fe := range ve {
			issues = append(issues, FieldIssue{
				Field:  fieldPath(fe),
				Reason: reasonFor(fe),
			})
		}
		return value, &ValidationError{Fields: issues}
	}

	return value, nil
}

// fieldPath strips the root type name from the namespace, leaving the
// dotted path to the violated field.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// reasonFor renders a human-readable reason for a violated constraint.
func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed the " + fe.Tag() + " constraint"
	}
}
