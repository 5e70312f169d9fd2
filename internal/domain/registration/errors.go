package domain

// ErrorCode is a stable machine-readable rejection code. Callers map each
// code to a distinct user-facing message and HTTP status.
type ErrorCode string

const (
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeNotPublished        ErrorCode = "NOT_PUBLISHED"
	CodeRegistrationPaused  ErrorCode = "REGISTRATION_PAUSED"
	CodeRegistrationNotOpen ErrorCode = "REGISTRATION_NOT_OPEN"
	CodeRegistrationClosed  ErrorCode = "REGISTRATION_CLOSED"
	CodeSoldOut             ErrorCode = "SOLD_OUT"
	CodeAlreadyRegistered   ErrorCode = "ALREADY_REGISTERED"
)

// Error is a typed domain rejection. Infrastructure failures (lock timeouts,
// connection loss) are never wrapped in Error; they propagate as-is.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "distance not found"}
	ErrNotPublished        = &Error{Code: CodeNotPublished, Message: "edition is not published"}
	ErrRegistrationPaused  = &Error{Code: CodeRegistrationPaused, Message: "registration is paused"}
	ErrRegistrationNotOpen = &Error{Code: CodeRegistrationNotOpen, Message: "registration has not opened yet"}
	ErrRegistrationClosed  = &Error{Code: CodeRegistrationClosed, Message: "registration has closed"}
	ErrSoldOut             = &Error{Code: CodeSoldOut, Message: "distance is sold out"}
	ErrAlreadyRegistered   = &Error{Code: CodeAlreadyRegistered, Message: "an active registration already exists for this edition"}
)
