package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *TexBuilderError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *TexBuilderError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *TexBuilderError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Process errors

// ExecutionFailure reports that a command could not be started or awaited.
func ExecutionFailure(command string, cause error) *TexBuilderError {
	return Wrap(cause, CategoryProcess, SeverityFatal, "error running "+command).
		WithCode("TEX01").
		WithContext("command", command)
}

// Build errors

func BuildFailed(document string, cause error) *TexBuilderError {
	return Wrap(cause, CategoryBuild, SeverityFatal, "build failed").
		WithContext("document", document)
}

func FileSystemError(operation string, cause error) *TexBuilderError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "filesystem operation failed").
		WithContext("operation", operation)
}

// Internal errors

func InternalError(message string, cause error) *TexBuilderError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
