package errors

// Convenience constructors for the failure taxonomy used by pipeline stages
// and the serving path.

// UpstreamUnavailable reports a failed fetch from the hosting provider.
func UpstreamUnavailable(message string, cause error) *HostError {
	return &HostError{
		Category:  CategoryUpstream,
		Severity:  SeverityError,
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

// ArchiveCorrupt reports a tarball that could not be parsed.
func ArchiveCorrupt(message string, cause error) *HostError {
	return &HostError{Category: CategoryArchive, Severity: SeverityError, Message: message, Cause: cause}
}

// BuildToolFailure reports a generator subprocess that exited non-zero.
func BuildToolFailure(message string, cause error) *HostError {
	return &HostError{Category: CategoryBuildTool, Severity: SeverityError, Message: message, Cause: cause}
}

// StorageUnavailable reports an object store read/write failure.
func StorageUnavailable(message string, cause error) *HostError {
	return &HostError{
		Category:  CategoryStorage,
		Severity:  SeverityError,
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

// PermissionDenied reports a permission engine deny.
func PermissionDenied(message string) *HostError {
	return &HostError{Category: CategoryPermission, Severity: SeverityWarning, Message: message}
}

// NotFound reports a missing tenant, project, or artifact.
func NotFound(message string) *HostError {
	return &HostError{Category: CategoryNotFound, Severity: SeverityWarning, Message: message}
}

// ConfigError reports invalid or missing configuration.
func ConfigError(message string) *HostError {
	return &HostError{Category: CategoryConfig, Severity: SeverityFatal, Message: message}
}
