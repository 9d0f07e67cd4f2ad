package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath    = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath  = fmt.Errorf("invalid config file path")
	ErrConfigParse        = fmt.Errorf("failed to parse config")
	ErrConfigValidation   = fmt.Errorf("invalid configuration")
	ErrConfigEncode       = fmt.Errorf("failed to encode config")
	ErrConfigMarshal      = fmt.Errorf("failed to marshal config")
	ErrConfigDirectory    = fmt.Errorf("failed to create config directory")
	ErrConfigFileExists   = fmt.Errorf("configuration file already exists")
	ErrMissingCredentials = fmt.Errorf("archive token is not configured")
	ErrInvalidPath        = fmt.Errorf("invalid path")
	ErrUnknownDataset     = fmt.Errorf("unknown dataset")

	// Settings errors.
	ErrHTTPTimeoutNegative  = fmt.Errorf("http_timeout cannot be negative")
	ErrWorkersInvalid       = fmt.Errorf("worker counts must be at least 1")
	ErrAttemptsInvalid      = fmt.Errorf("attempt limits must be at least 1")
	ErrChunkSizeInvalid     = fmt.Errorf("crawl_chunk_size must be at least 1")
	ErrRateLimitNegative    = fmt.Errorf("rate_limit cannot be negative")
	ErrBandOutOfRange       = fmt.Errorf("band out of range")
	ErrInvalidDateRange     = fmt.Errorf("start date is after end date")
	ErrUnknownSnapshotStore = fmt.Errorf("unknown snapshot backend")

	// Network errors.
	ErrRequestFailed     = fmt.Errorf("request failed")
	ErrMalformedResponse = fmt.Errorf("malformed response")
	ErrAttemptsExhausted = fmt.Errorf("attempts exhausted")

	// Transfer errors.
	ErrChecksumMismatch  = fmt.Errorf("checksum mismatch")
	ErrPermanentTransfer = fmt.Errorf("transfer failed permanently")
	ErrMirrorFileMissing = fmt.Errorf("mirror file missing")

	// Catalog errors.
	ErrInvalidFileName  = fmt.Errorf("invalid archive file name")
	ErrSnapshotNotFound = fmt.Errorf("no catalog snapshot found")
	ErrSnapshotExists   = fmt.Errorf("catalog snapshot already exists")
	ErrSnapshotFormat   = fmt.Errorf("unsupported catalog snapshot format")
)

// ErrInvalidLogLevelWithDetails returns an error for an unknown log level.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error: %w", level, ErrConfigValidation)
}

// ErrInvalidOutputFormatWithDetails returns an error for an unknown output format.
func ErrInvalidOutputFormatWithDetails(format string) error {
	return fmt.Errorf("invalid output format %q, must be one of: text, json, auto: %w", format, ErrConfigValidation)
}

// ErrDatasetExistsWithName returns an error for a duplicated dataset name.
func ErrDatasetExistsWithName(name string) error {
	return fmt.Errorf("dataset %q is defined more than once: %w", name, ErrConfigValidation)
}

// ErrDatasetFieldEmpty returns an error for a dataset with a required field left empty.
func ErrDatasetFieldEmpty(index int, field string) error {
	return fmt.Errorf("dataset at index %d has an empty %s: %w", index, field, ErrConfigValidation)
}

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
