package errors

import "fmt"

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key)
}

// NewAPIError creates an API error for a platform call. Server side and
// throttling failures are retryable.
func NewAPIError(platform, action string, statusCode int, err error) *AppError {
	var code ErrorCode
	switch platform {
	case "qq":
		code = ErrCodeQQAPI
	case "telegram":
		code = ErrCodeTelegramAPI
	default:
		code = ErrCodeInternalError
	}

	appErr := Wrap(err, code, fmt.Sprintf("%s API call failed", platform)).
		WithContext("platform", platform).
		WithContext("action", action).
		WithContext("status_code", statusCode)

	appErr.Retryable = statusCode == 0 || statusCode >= 500 || statusCode == 429 || statusCode == 408
	return appErr
}

// NewTransportError wraps a network level failure; these are always retryable.
func NewTransportError(platform, action string, err error) *AppError {
	return WrapRetryable(err, ErrCodeTransport, fmt.Sprintf("%s %s transport failure", platform, action)).
		WithContext("platform", platform).
		WithContext("action", action)
}

// NewInvalidInputError marks a request the remote side will never accept.
func NewInvalidInputError(field, message string) *AppError {
	return New(ErrCodeInvalidInput, message).
		WithContext("field", field)
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier)
}
