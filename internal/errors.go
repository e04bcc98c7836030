package internal

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidTimeSlot  ErrorCode = "INVALID_TIME_SLOT"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodePriceMismatch    ErrorCode = "PRICE_MISMATCH"

	ErrCodePaymentNotFound    ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeServiceNotFound    ErrorCode = "SERVICE_NOT_FOUND"
	ErrCodeMerchantNotFound   ErrorCode = "MERCHANT_NOT_FOUND"
	ErrCodeWithdrawalNotFound ErrorCode = "WITHDRAWAL_NOT_FOUND"

	ErrCodeInsufficientBalance      ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeInsufficientPendingFunds ErrorCode = "INSUFFICIENT_PENDING_FUNDS"
	ErrCodeAlreadyReleased          ErrorCode = "ALREADY_RELEASED"
	ErrCodeNotYetEligible           ErrorCode = "NOT_YET_ELIGIBLE"
	ErrCodeConcurrencyConflict      ErrorCode = "CONCURRENCY_CONFLICT"
	ErrCodeWithdrawalInProgress     ErrorCode = "WITHDRAWAL_IN_PROGRESS"
	ErrCodeInvalidMerchantStatus    ErrorCode = "INVALID_MERCHANT_STATUS"

	ErrCodePayoutFailed              ErrorCode = "PAYOUT_FAILED"
	ErrCodeCaptureVerificationFailed ErrorCode = "CAPTURE_VERIFICATION_FAILED"
	ErrCodeBookingRecordFailed       ErrorCode = "BOOKING_RECORD_FAILED"

	ErrCodeUnauthorizedAccess ErrorCode = "UNAUTHORIZED_ACCESS"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			return strings.Join(messages, "; ")
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so sentinel values survive wrapping and WithCause copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy carrying cause, leaving shared sentinels untouched.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewExternalError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

var (
	ErrInsufficientBalance      = NewConflictError("insufficient available balance", ErrCodeInsufficientBalance)
	ErrInsufficientPendingFunds = NewConflictError("insufficient pending balance", ErrCodeInsufficientPendingFunds)
	ErrConcurrencyConflict      = NewConflictError("balance was modified concurrently", ErrCodeConcurrencyConflict)

	ErrPaymentNotFound    = NewNotFoundError("Payment not found", ErrCodePaymentNotFound)
	ErrServiceNotFound    = NewNotFoundError("Service not found", ErrCodeServiceNotFound)
	ErrMerchantNotFound   = NewNotFoundError("Merchant not found", ErrCodeMerchantNotFound)
	ErrWithdrawalNotFound = NewNotFoundError("Withdrawal not found", ErrCodeWithdrawalNotFound)

	ErrAlreadyReleased      = NewConflictError("payment has already been released", ErrCodeAlreadyReleased)
	ErrNotYetEligible       = NewConflictError("payment is not yet eligible for release", ErrCodeNotYetEligible)
	ErrWithdrawalInProgress = NewConflictError("another withdrawal is in progress", ErrCodeWithdrawalInProgress)

	ErrPayoutFailed        = NewExternalError("Withdrawal failed, please try again", ErrCodePayoutFailed, nil)
	ErrBookingRecordFailed = NewExternalError("payment captured but booking recording failed, contact support", ErrCodeBookingRecordFailed, nil)

	ErrUnauthorizedAccess = NewForbiddenError("unauthorized access", ErrCodeUnauthorizedAccess)
	ErrAuthRequired       = NewUnauthorizedError("authentication required", ErrCodeInvalidToken)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether the AppError in err's chain carries code, either
// as its own code or as the code of one of its field errors.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := IsAppError(err)
	if !ok {
		return false
	}
	if appErr.Code == code {
		return true
	}
	if details, ok := appErr.Details.(ValidationErrors); ok {
		for _, fieldErr := range details.Errors {
			if fieldErr.Code == string(code) {
				return true
			}
		}
	}
	return false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
