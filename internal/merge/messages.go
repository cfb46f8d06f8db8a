package merge

// messages.go maps technical errors to user-facing messages with codes for
// support reference:
//
//	MRG001 - No inputs: no files were given, or every file was empty
//	MRG002 - Header conflict: a header has columns the first file lacks
//	MRG003 - Invalid options: a delimiter, encoding or option value is wrong
//	FILE001 - Not found: an input file does not exist
//	FILE002 - Permission denied: an input file cannot be read
//	FILE003 - Encoding error: bytes are not valid in the file's encoding
//	FILE004 - Invalid CSV: the file is not valid delimited text
//	FILE005 - File too large: an uploaded file exceeds the size limit
//	FILE006 - Too many files: an upload has more files than allowed
//	FILE007 - Unreadable: any other input failure
//	OUT001 - Output failed: the merged file could not be written
//	RUN001 - Run not found: no stored merge has that ID
//	RUN002 - Invalid run ID: the ID is not a UUID
//	STO001 - Storage disabled: no database is configured
//	STO002 - Storage failed: merged rows could not be saved
//	UPL002 - System busy: too many merges in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//	ERR000 - Unknown error
//
// Typed *Error values are classified by Kind first; other errors fall back to
// case-insensitive substring patterns where the first match wins.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

var (
	msgNoInputs = UserMessage{
		Message: "No input rows to merge",
		Action:  "Pass at least one non-empty CSV file or a folder containing CSV files",
		Code:    "MRG001",
	}
	msgHeaderConflict = UserMessage{
		Message: "A file has columns that the first file does not",
		Action:  "Remove the extra columns or merge without strict header mode",
		Code:    "MRG002",
	}
	msgInvalidOptions = UserMessage{
		Message: "Invalid merge option",
		Action:  "Check the delimiter, encoding and other option values",
		Code:    "MRG003",
	}
	msgNotFound = UserMessage{
		Message: "Input file not found",
		Action:  "Check the file path and try again",
		Code:    "FILE001",
	}
	msgPermission = UserMessage{
		Message: "Input file cannot be read",
		Action:  "Check the file permissions",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File contains bytes that are not valid in its encoding",
		Action:  "Pass the correct encoding, or replace invalid bytes with the invalid-utf8 option",
		Code:    "FILE003",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not valid delimited text",
		Action:  "Check the file's quoting and delimiter",
		Code:    "FILE004",
	}
	msgUnreadable = UserMessage{
		Message: "Input file could not be read",
		Action:  "Check that the file is accessible and try again",
		Code:    "FILE007",
	}
	msgOutput = UserMessage{
		Message: "Merged output could not be written",
		Action:  "Check the output path, free space and output encoding",
		Code:    "OUT001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try merging fewer or smaller files",
		Code:    "UPL005",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors raised outside the merger (HTTP layer,
// config). More specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE005",
		},
	},
	{
		pattern: "too many files",
		msg: UserMessage{
			Message: "Too many files in one upload",
			Action:  "Merge the files in smaller batches",
			Code:    "FILE006",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No files were selected",
			Action:  "Please select one or more CSV files",
			Code:    "MRG001",
		},
	},
	{
		pattern: "too many concurrent merges",
		msg: UserMessage{
			Message: "Too many merges in progress",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "merge run not found",
		msg: UserMessage{
			Message: "Merge run not found",
			Action:  "Check the merge ID returned in the X-Merge-Id header",
			Code:    "RUN001",
		},
	},
	{
		pattern: "invalid merge id",
		msg: UserMessage{
			Message: "Invalid merge ID",
			Action:  "Merge IDs are UUIDs",
			Code:    "RUN002",
		},
	},
	{
		pattern: "storage is not configured",
		msg: UserMessage{
			Message: "Merged rows cannot be saved on this server",
			Action:  "Set DATABASE_URL to enable storage, or merge without saving",
			Code:    "STO001",
		},
	},
	{
		pattern: "failed to save merge run",
		msg: UserMessage{
			Message: "Merged rows could not be saved",
			Action:  "Check the database connection and try again",
			Code:    "STO002",
		},
	},
	{
		pattern: "encoding error",
		msg:     msgEncoding,
	},
	{
		pattern: "unsupported encoding",
		msg:     msgInvalidOptions,
	},
	{
		pattern: "context deadline exceeded",
		msg:     msgTimeout,
	},
	{
		pattern: "context canceled",
		msg:     msgCancelled,
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch KindOf(err) {
	case KindNoInputs:
		return msgNoInputs
	case KindHeaderConflict:
		return msgHeaderConflict
	case KindInvalidOptions:
		return msgInvalidOptions
	case KindOutputFailed:
		return msgOutput
	case KindCancelled:
		if errors.Is(err, context.DeadlineExceeded) {
			return msgTimeout
		}
		return msgCancelled
	case KindSourceUnreadable:
		return unreadableMessage(err)
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func unreadableMessage(err error) UserMessage {
	var parseErr *csv.ParseError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return msgNotFound
	case errors.Is(err, fs.ErrPermission):
		return msgPermission
	case errors.Is(err, csvio.ErrInvalidUTF8), errors.Is(err, csvio.ErrInvalidUTF16), strings.Contains(err.Error(), "transform"):
		return msgEncoding
	case errors.As(err, &parseErr):
		return msgInvalidCSV
	default:
		return msgUnreadable
	}
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err; it returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
