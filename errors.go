package autodoc

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSchemaInference   = errors.New("record could not be parsed")
	ErrNoTemplateMatch   = errors.New("no template matches the record")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrRenderTimeout     = errors.New("render timed out")
	ErrRender            = errors.New("render failed")
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrLowConfidence     = errors.New("mapping confidence below threshold")
	ErrMapping           = errors.New("mapping could not be applied")
	ErrSource            = errors.New("record source failed")
	ErrNotFound          = errors.New("resource not found")
	ErrExpired           = errors.New("resource expired")
	ErrPoolClosed        = errors.New("render pool closed")
	ErrInvalidRequest    = errors.New("invalid request")
)

// Error codes surfaced to callers.
const (
	CodeSchemaInference   = "SCHEMA_INFERENCE_ERROR"
	CodeNoTemplateMatch   = "NO_TEMPLATE_MATCH"
	CodeTemplateNotFound  = "TEMPLATE_NOT_FOUND"
	CodeRenderTimeout     = "RENDER_TIMEOUT"
	CodeRender            = "RENDER_ERROR"
	CodeOracleUnavailable = "ORACLE_UNAVAILABLE"
	CodeLowConfidence     = "LOW_CONFIDENCE"
	CodeMapping           = "MAPPING_ERROR"
	CodeSource            = "SOURCE_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeExpired           = "EXPIRED"
	CodePoolClosed        = "POOL_CLOSED"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeCanceled          = "CANCELED"
	CodeDeadlineExceeded  = "DEADLINE_EXCEEDED"
	CodeInternal          = "INTERNAL_ERROR"
)

var codes = []struct {
	err    error
	code   string
	status int
}{
	{ErrSchemaInference, CodeSchemaInference, 422},
	{ErrNoTemplateMatch, CodeNoTemplateMatch, 422},
	{ErrTemplateNotFound, CodeTemplateNotFound, 404},
	{ErrRenderTimeout, CodeRenderTimeout, 504},
	{ErrRender, CodeRender, 500},
	{ErrOracleUnavailable, CodeOracleUnavailable, 503},
	{ErrLowConfidence, CodeLowConfidence, 200},
	{ErrMapping, CodeMapping, 422},
	{ErrSource, CodeSource, 502},
	{ErrNotFound, CodeNotFound, 404},
	{ErrExpired, CodeExpired, 410},
	{ErrPoolClosed, CodePoolClosed, 503},
	{ErrInvalidRequest, CodeInvalidRequest, 400},
	// Caller-side context errors come last so pipeline sentinels win.
	{context.Canceled, CodeCanceled, 499},
	{context.DeadlineExceeded, CodeDeadlineExceeded, 504},
}

// Error is the structured error returned by the pipeline. It unwraps to one
// of the sentinel errors above.
type Error struct {
	Code       string
	Status     int
	Message    string
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// newError builds an Error whose code and status follow the sentinel found
// in cause.
func newError(cause error, format string, args ...any) *Error {
	e := &Error{
		Code:    CodeInternal,
		Status:  500,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
	for _, c := range codes {
		if errors.Is(cause, c.err) {
			e.Code, e.Status = c.code, c.status
			break
		}
	}
	return e
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// StatusOf returns the HTTP-style status for err.
func StatusOf(err error) int {
	if err == nil {
		return 200
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return 500
}
