package validator

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"
)

// FieldError is a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects every failed rule of a validation pass.
type Errors []FieldError

func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed at least one rule.
func (ve Errors) Has(field string) bool {
	return slices.ContainsFunc(ve, func(e FieldError) bool { return e.Field == field })
}

// Rule is a deferred check with the error reported when it fails.
type Rule struct {
	Check func() bool
	Error FieldError
}

// Apply runs all rules and returns Errors when any fail.
func Apply(rules ...Rule) error {
	var errs Errors
	for _, r := range rules {
		if !r.Check() {
			errs = append(errs, r.Error)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Extract returns the Errors inside err, or nil.
func Extract(err error) Errors {
	var ve Errors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

// Required fails on empty or whitespace-only strings.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: FieldError{Field: field, Message: "field is required"},
	}
}

// MaxLen limits the length in characters.
func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= max },
		Error: FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", max)},
	}
}

// MaxBytes limits the encoded size.
func MaxBytes(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= max },
		Error: FieldError{Field: field, Message: fmt.Sprintf("must be at most %d bytes", max)},
	}
}

// Email accepts a bare address whose domain has at least one dot.
func Email(field, value string) Rule {
	return Rule{
		Check: func() bool {
			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != value {
				return false
			}
			local, domain, ok := strings.Cut(addr.Address, "@")
			if !ok || local == "" {
				return false
			}
			if !strings.Contains(domain, ".") {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}
			return true
		},
		Error: FieldError{Field: field, Message: "must be a valid email address"},
	}
}

// OneOf requires value to be among options.
func OneOf[T comparable](field string, value T, options []T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(options, value) },
		Error: FieldError{Field: field, Message: fmt.Sprintf("must be one of %v", options)},
	}
}
