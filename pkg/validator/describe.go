package validator

import (
	"fmt"
	"strings"
)

// Describe renders validation failures as a human readable sentence list.
func Describe(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	ve, ok := err.(ValidationErrors)
	if !ok || len(ve) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		messages = append(messages, describeFailure(failure))
	}
	return strings.Join(messages, "; ")
}

func describeFailure(failure ValidationError) string {
	field := prettifyFieldName(failure.Field)
	switch failure.Tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, failure.Param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, failure.Param)
	case "numeric":
		return fmt.Sprintf("%s can only contain numbers", field)
	case "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "username":
		return fmt.Sprintf("%s can only contain letters, numbers, and underscores", field)
	case "password_policy":
		return fmt.Sprintf("%s must contain a lowercase letter, an uppercase letter, a number and a special character", field)
	}
	if failure.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}
