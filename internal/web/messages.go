package web

// messages.go maps errors from the log reader to user-facing messages with
// support codes.
//
//	FMT001 - A log file on the server is malformed          (500)
//	KEY001 - Column, header entry, model or profile missing (404)
//	IDX001 - Row index out of range                         (404)
//	DUP001 - Model number appears in several history rows   (409)
//	QRY001 - Selection expression rejected                  (400)
//	RUN001 - Unknown run ID                                 (404)
//	PAR001 - Path or query parameter is not an integer      (400)
//	BSY001 - All profile parse slots busy                   (503)
//	REQ001 - Request cancelled or timed out                 (503)
//	ERR000 - Anything else                                  (500)
//
// Typed errors are matched with errors.Is before falling back to
// case-insensitive substring patterns.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/JonMunkholm/mesalogs/internal/query"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Status  int    // HTTP status
}

var (
	errUnknownRun = errors.New("run not found")
	errBadParam   = errors.New("invalid parameter")
)

type errorKind struct {
	target error
	msg    UserMessage
}

// Order matters: the first match wins.
var errorKinds = []errorKind{
	{query.ErrInvalid, UserMessage{
		Message: "The selection expression is invalid",
		Action:  "Check column names and use a boolean expression such as star_age > 1e9",
		Code:    "QRY001",
		Status:  http.StatusBadRequest,
	}},
	{errUnknownRun, UserMessage{
		Message: "Run not found",
		Action:  "List runs at /api/runs",
		Code:    "RUN001",
		Status:  http.StatusNotFound,
	}},
	{errBadParam, UserMessage{
		Message: "A parameter is not a valid integer",
		Action:  "Use a whole number",
		Code:    "PAR001",
		Status:  http.StatusBadRequest,
	}},
	{mesa.ErrKeyNotFound, UserMessage{
		Message: "The requested item does not exist in this run",
		Action:  "Check the name against the run summary",
		Code:    "KEY001",
		Status:  http.StatusNotFound,
	}},
	{mesa.ErrIndexRange, UserMessage{
		Message: "Row index is out of range",
		Action:  "Use a row between 0 and the history row count minus one",
		Code:    "IDX001",
		Status:  http.StatusNotFound,
	}},
	{mesa.ErrDuplicateModel, UserMessage{
		Message: "The model number appears in more than one history row",
		Action:  "Enable restart scrubbing or address the row by index",
		Code:    "DUP001",
		Status:  http.StatusConflict,
	}},
	{ErrBusy, UserMessage{
		Message: "The server is busy reading other profiles",
		Action:  "Please wait a moment and try again",
		Code:    "BSY001",
		Status:  http.StatusServiceUnavailable,
	}},
	{mesa.ErrFormat, UserMessage{
		Message: "A log file for this run is malformed",
		Action:  "Check that the run finished writing its output",
		Code:    "FMT001",
		Status:  http.StatusInternalServerError,
	}},
	{context.DeadlineExceeded, requestMessage},
	{context.Canceled, requestMessage},
}

var requestMessage = UserMessage{
	Message: "Request timed out",
	Action:  "Please try again",
	Code:    "REQ001",
	Status:  http.StatusServiceUnavailable,
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"context deadline exceeded", requestMessage},
	{"context canceled", requestMessage},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts an error to a UserMessage. nil maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}
