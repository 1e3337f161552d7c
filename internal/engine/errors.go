package engine

import (
	"errors"

	"mosaic-style/internal/registry"
	"mosaic-style/internal/scope"
	"mosaic-style/internal/theme"
	"mosaic-style/internal/variant"
)

// ConfigError is a configuration problem surfaced to the host: a stable code
// for the UI, a short message and the underlying cause.
type ConfigError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *ConfigError) Error() string {
	return e.Message
}

func (e *ConfigError) Unwrap() error { return e.Cause }

var configCodes = []struct {
	target  error
	code    string
	message string
}{
	{scope.ErrConflictingOverride, "CONFLICTING_OVERRIDE", "A scoped theme cannot name a theme and invert the adaptive theme."},
	{theme.ErrUnknownTheme, "UNKNOWN_THEME", "Scoped theme is not registered."},
	{theme.ErrUnknownScheme, "UNKNOWN_SCHEME", "Color scheme must be light or dark."},
	{variant.ErrInvalidSelection, "INVALID_VARIANT", "Variant selection must be a string or boolean."},
	{registry.ErrUnknownRecipe, "UNKNOWN_STYLESHEET", "Stylesheet is not registered."},
	{registry.ErrUnknownKey, "UNKNOWN_STYLE_KEY", "Style key is not defined by the stylesheet."},
	{registry.ErrNotDynamic, "NOT_DYNAMIC", "Style key does not accept arguments."},
	{registry.ErrUnserializableArg, "UNSERIALIZABLE_ARGUMENT", "Dynamic style arguments must be plain data."},
	{registry.ErrRecipeFailed, "RECIPE_FAILED", "Stylesheet recipe failed."},
}

func configError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	for _, c := range configCodes {
		if errors.Is(err, c.target) {
			return &ConfigError{Code: c.code, Message: c.message, Cause: err}
		}
	}
	return &ConfigError{Code: "STYLE_ERROR", Message: "Style resolution failed.", Cause: err}
}
