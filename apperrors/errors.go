package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	NotFound             Code = "NOT_FOUND"
	InsufficientStock    Code = "INSUFFICIENT_STOCK"
	InsufficientPoints   Code = "INSUFFICIENT_POINTS"
	VoucherInvalid       Code = "VOUCHER_INVALID"
	VoucherNotRedeemable Code = "VOUCHER_NOT_REDEEMABLE"
	DuplicateReview      Code = "DUPLICATE_REVIEW"
	NotEligible          Code = "NOT_ELIGIBLE"
	Forbidden            Code = "FORBIDDEN"
	InvalidTransition    Code = "INVALID_TRANSITION"
	ValidationError      Code = "VALIDATION_ERROR"
	Unauthenticated      Code = "UNAUTHENTICATED"
	Unexpected           Code = "UNEXPECTED"
)

// 与 errors.Is 配合使用, 只比较 Code
var (
	ErrNotFound             = &Error{Code: NotFound}
	ErrInsufficientStock    = &Error{Code: InsufficientStock}
	ErrInsufficientPoints   = &Error{Code: InsufficientPoints}
	ErrVoucherInvalid       = &Error{Code: VoucherInvalid}
	ErrVoucherNotRedeemable = &Error{Code: VoucherNotRedeemable}
	ErrDuplicateReview      = &Error{Code: DuplicateReview}
	ErrNotEligible          = &Error{Code: NotEligible}
	ErrForbidden            = &Error{Code: Forbidden}
	ErrInvalidTransition    = &Error{Code: InvalidTransition}
	ErrValidation           = &Error{Code: ValidationError}
	ErrUnauthenticated      = &Error{Code: Unauthenticated}
	ErrUnexpected           = &Error{Code: Unexpected}
)

var statusMap = map[Code]int{
	NotFound:             http.StatusNotFound,
	InsufficientStock:    http.StatusConflict,
	InsufficientPoints:   http.StatusConflict,
	VoucherInvalid:       http.StatusUnprocessableEntity,
	VoucherNotRedeemable: http.StatusUnprocessableEntity,
	DuplicateReview:      http.StatusConflict,
	NotEligible:          http.StatusForbidden,
	Forbidden:            http.StatusForbidden,
	InvalidTransition:    http.StatusConflict,
	ValidationError:      http.StatusBadRequest,
	Unauthenticated:      http.StatusUnauthorized,
	Unexpected:           http.StatusInternalServerError,
}

// Error 业务错误, Message 可以直接返回给调用方
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf 非业务错误一律视为 Unexpected
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unexpected
}

// As 将任意错误转换为 *Error
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(Unexpected, err, "internal server error")
}

func HTTPStatus(code Code) int {
	if s, ok := statusMap[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// PublicMessage Unexpected 不暴露内部细节
func PublicMessage(err error) string {
	e := As(err)
	if e.Code == Unexpected {
		return "internal server error"
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}
