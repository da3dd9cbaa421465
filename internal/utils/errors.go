package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeTimeout          Code = "TIMEOUT"
	CodeGenerationFailed Code = "GENERATION_FAILED"
	CodeInternal         Code = "INTERNAL"
)

// Kind names a failure of the roadmap pipeline precisely enough for a
// client to decide between "upload a different file", "try again" and
// "try again later".
type Kind string

const (
	KindDocumentFormat        Kind = "DocumentFormatError"
	KindDocumentEmpty         Kind = "DocumentEmptyError"
	KindGenerationUnavailable Kind = "GenerationUnavailableError"
	KindGenerationTimeout     Kind = "GenerationTimeoutError"
	KindGenerationQuota       Kind = "GenerationQuotaError"
	KindMalformedResponse     Kind = "MalformedResponseError"
	KindInvalidRoadmapItem    Kind = "InvalidRoadmapItemError"
	KindUserNotFound          Kind = "UserNotFoundError"
	KindRoadmapItemNotFound   Kind = "RoadmapItemNotFoundError"
)

// kindCodes is the transport class each kind surfaces as.
var kindCodes = map[Kind]Code{
	KindDocumentFormat:        CodeInvalidArgument,
	KindDocumentEmpty:         CodeInvalidArgument,
	KindGenerationUnavailable: CodeUnavailable,
	KindGenerationTimeout:     CodeTimeout,
	KindGenerationQuota:       CodeUnavailable,
	KindMalformedResponse:     CodeGenerationFailed,
	KindInvalidRoadmapItem:    CodeGenerationFailed,
	KindUserNotFound:          CodeNotFound,
	KindRoadmapItemNotFound:   CodeNotFound,
}

// Retry hints returned to clients next to the error kind.
const (
	RetryUploadDifferentFile = "upload_different_file"
	RetryTryAgain            = "try_again"
	RetryTryAgainLater       = "try_again_later"
)

// AppError is the unified error contract across layers.
type AppError struct {
	Code    Code
	Kind    Kind   // pipeline taxonomy, empty for plumbing errors
	Stage   string // pipeline stage that produced the error, ex: "Generating"
	Op      string // operation name, ex: "RoadmapService.Generate"
	Message string // safe message
	Err     error  // wrapped error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := e.Op
	if e.Stage != "" {
		if prefix != "" {
			prefix += "[" + e.Stage + "]"
		} else {
			prefix = e.Stage
		}
	}
	switch {
	case prefix != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	case prefix != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	case prefix != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "error"
	}
}

func (e *AppError) Unwrap() error { return e.Err }

func E(code Code, op, msg string, err error) error {
	return &AppError{Code: code, Op: op, Message: msg, Err: err}
}

// K builds an error of the given kind; the code is derived from the kind.
func K(kind Kind, op, msg string, err error) error {
	code, ok := kindCodes[kind]
	if !ok {
		code = CodeInternal
	}
	return &AppError{Code: code, Kind: kind, Op: op, Message: msg, Err: err}
}

// WithStage tags err with the pipeline stage that produced it. Errors that
// are not an *AppError are wrapped as internal errors first. A stage that is
// already set is kept.
func WithStage(err error, stage string) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if !errors.As(err, &ae) {
		return &AppError{Code: CodeInternal, Stage: stage, Message: "internal error", Err: err}
	}
	if ae.Stage != "" {
		return err
	}
	cp := *ae
	cp.Stage = stage
	return &cp
}

func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

func IsKind(err error, kind Kind) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the taxonomy kind of err, or "" when it has none.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// StageOf returns the pipeline stage err was tagged with, or "".
func StageOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return ""
}

// RetryHint tells the caller what the user can do about err.
func RetryHint(err error) string {
	var ae *AppError
	if !errors.As(err, &ae) {
		return RetryTryAgainLater
	}
	switch ae.Code {
	case CodeInvalidArgument:
		return RetryUploadDifferentFile
	case CodeGenerationFailed:
		return RetryTryAgain
	case CodeNotFound, CodeUnauthorized, CodeForbidden, CodeConflict:
		return ""
	default:
		return RetryTryAgainLater
	}
}

func HTTPStatus(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeUnauthorized:
			return http.StatusUnauthorized
		case CodeForbidden:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		case CodeUnavailable, CodeTimeout:
			return http.StatusServiceUnavailable
		case CodeGenerationFailed:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	// fallback
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Backward-compatible sentinel errors
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)
