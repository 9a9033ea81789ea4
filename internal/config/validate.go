package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their environment variable name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fieldMessage(fe))
		}
	}

	// At least one front end
	if c.Discord.Token == "" && !c.XMPP.Enabled() {
		errs = append(errs, "one of DISCORD_TOKEN or XMPP_COMPONENT_SECRET is required")
	}

	// Encryption key is optional; when present it must be exactly 64 hex chars (32 bytes)
	if c.Encryption.Key != "" {
		if len(c.Encryption.Key) != 64 {
			errs = append(errs, "ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes)")
		} else if _, err := hex.DecodeString(c.Encryption.Key); err != nil {
			errs = append(errs, "ENCRYPTION_KEY must be valid hex")
		}
	}

	if c.Storage.Driver == "postgres" && c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required when STORAGE_DRIVER=postgres")
	}

	if c.Limits.Window > c.Limits.ResetInterval {
		errs = append(errs, fmt.Sprintf("LIMITS_WINDOW (%s) must not exceed LIMITS_RESET_INTERVAL (%s)",
			c.Limits.Window, c.Limits.ResetInterval))
	}

	if c.Encryption.Key == "" {
		slog.Warn("ENCRYPTION_KEY is empty, stored prompts are kept in plaintext")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte", "gt":
		return fmt.Sprintf("%s must be %s %s, got %v", fe.Field(), boundWord(fe.Tag()), fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got %q", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q check", fe.Field(), fe.Tag())
	}
}

func boundWord(tag string) string {
	if tag == "gt" {
		return "greater than"
	}
	return "at least"
}
