package errors

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfig covers invalid plugin options and configuration files.
	CategoryConfig ErrorCategory = "config"
	// CategoryValidation covers documents that fail to parse or validate.
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound covers explicitly requested resources that do not exist.
	CategoryNotFound ErrorCategory = "not_found"

	CategoryFileSystem ErrorCategory = "filesystem"
	CategorySchema     ErrorCategory = "schema"
	CategoryBuild      ErrorCategory = "build"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Aborts the compilation of the file
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}
