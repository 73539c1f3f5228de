package dto

import "net/http"

// Error code constants, format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeValidation   = "ERR_VALIDATION"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 if unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes.
// Validation failures map to 400, state and policy violations to 422.
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"DUPLICATE_CODE":       ErrCodeAlreadyExists,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,

	"INVALID_INPUT":      ErrCodeInvalidInput,
	"INVALID_CODE":       ErrCodeInvalidInput,
	"INVALID_NAME":       ErrCodeInvalidInput,
	"INVALID_EMAIL":      ErrCodeInvalidInput,
	"INVALID_TYPE":       ErrCodeInvalidInput,
	"INVALID_STATUS":     ErrCodeInvalidInput,
	"INVALID_AMOUNT":     ErrCodeInvalidInput,
	"INVALID_NUMBER":     ErrCodeInvalidInput,
	"INVALID_CHANNEL":    ErrCodeInvalidInput,
	"INVALID_CYCLE":      ErrCodeInvalidInput,
	"INVALID_ESCALATION": ErrCodeInvalidInput,
	"INVALID_THRESHOLD":  ErrCodeInvalidInput,
	"BAD_REQUEST":        ErrCodeBadRequest,

	"INVALID_STATE":             ErrCodeInvalidState,
	"INVALID_STATEMENT":         ErrCodeInvalidState,
	"ALREADY_BILLED":            ErrCodeInvalidState,
	"ALREADY_PAID":              ErrCodeInvalidState,
	"EXCEEDS_REMAINING":         ErrCodeBusinessRule,
	"NO_UNBILLED_BALANCE":       ErrCodeBusinessRule,
	"BALANCE_NOT_ZERO":          ErrCodeBusinessRule,
	"ALLOCATION_TARGET_MISSING": ErrCodeBusinessRule,

	"INTERNAL_ERROR": ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the ERR_ format, or unknown ones, pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
