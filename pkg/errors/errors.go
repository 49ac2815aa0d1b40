package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")

	// Ingest errors. ErrParse aborts the whole run; the more specific
	// sentinels wrap it so callers can match either level.
	ErrParse            = fmt.Errorf("failed to parse input table")
	ErrNoDelimiter      = fmt.Errorf("no delimiter yields a parseable header: %w", ErrParse)
	ErrNoDatetimeColumn = fmt.Errorf("no date or time column found: %w", ErrParse)

	// Catalog errors.
	ErrAuth              = fmt.Errorf("credentials rejected by archive")
	ErrTransient         = fmt.Errorf("transient archive error")
	ErrUnknownProduct    = fmt.Errorf("unknown product name")
	ErrUnknownCollection = fmt.Errorf("unknown collection")

	// Download errors.
	ErrDownloadFailed = fmt.Errorf("download failed")
	ErrSizeMismatch   = fmt.Errorf("downloaded size does not match catalog size")
	ErrInvalidPath    = fmt.Errorf("invalid path")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
