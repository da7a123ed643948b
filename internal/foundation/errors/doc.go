// Package errors provides the classified error primitives used across mdocpack.
//
// Every failure that aborts a document compilation is a ClassifiedError so the
// loader boundary and the CLI can decide how to present it without string
// matching:
//   - ErrorCategory: broad classification (validation, not_found, filesystem, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - ErrorContext: structured key/value context (file, slot, partial, ...)
//   - ErrorBuilder: fluent construction
//
// Example usage:
//
//	err := errors.NotFoundError("schema directory missing").
//		WithContext("schema_path", schemaPath).
//		WithCause(statErr).
//		Build()
package errors
