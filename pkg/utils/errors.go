package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrParsing            = errors.New("parsing error")    // Wraps specific parsing error (HTML, YAML, JSON)
	ErrFilesystem         = errors.New("filesystem error") // Wraps os errors
	ErrDatabase           = errors.New("database error")   // Wraps badger errors
	ErrMarkdownConversion = errors.New("failed to convert markdown to HTML")
	ErrConfigValidation   = errors.New("configuration validation error")
	ErrPatternEngine      = errors.New("pattern engine failure") // Match timeout on pathological input
	ErrUnknownFilter      = errors.New("unknown filter")
	ErrDuplicateFilter    = errors.New("filter already registered")
)

// CategorizeError maps an error to a predefined category string for logging and build reports.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrPatternEngine):
		return "Content_PatternEngine"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "YAML") {
			return "Content_ParsingYAML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrMarkdownConversion):
		return "Content_Markdown"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrUnknownFilter), errors.Is(err, ErrDuplicateFilter):
		return "Config_Filter"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	// Bare os errors that were not wrapped with ErrFilesystem
	if errors.Is(err, os.ErrNotExist) {
		return "Filesystem_NotExist"
	}
	if errors.Is(err, os.ErrPermission) {
		return "Filesystem_Permission"
	}

	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "System_TimeoutGeneric"
	}

	return "Unknown"
}

// WrapErrorf prefixes err with a formatted context message, keeping it unwrappable.
// Returns nil when err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
