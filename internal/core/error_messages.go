package core

// # Error Codes Reference
//
// Operator-facing messages with codes. The CLI prints them on failure and the
// HTTP surface returns them in error bodies.
//
//	DB001 - Connection refused     Patterns: SQLSTATE class 08, "connection refused"
//	DB002 - Authentication failed  Patterns: SQLSTATE 28P01/28000, "password authentication failed"
//	DB003 - Statement timeout      Patterns: SQLSTATE 57014, "timeout"
//	DB004 - Permission denied      Patterns: SQLSTATE 42501, "permission denied"
//	LOAD001 - Schema conflict      Kind: schema_conflict
//	LOAD002 - Value rejected       Kind: transfer
//	LOAD003 - Source unreadable    Patterns: "no such file", "parse csv"
//	SQL001 - Syntax error          Patterns: SQLSTATE 42601
//	SQL002 - Missing relation      Patterns: SQLSTATE 42P01
//	SQL003 - SQL file failed       Kind: file_execution
//	RUN001 - Run in progress       Patterns: "run in progress"
//	ERR000 - Unknown error
//
// Resolution order: SQLSTATE of a wrapped *pgconn.PgError, then the
// PipelineError kind, then case-insensitive substring patterns.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides operator-facing error information with guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgConnRefused = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Check PG_HOST and PG_PORT and that the server is running",
		Code:    "DB001",
	}
	msgAuth = UserMessage{
		Message: "Database authentication failed",
		Action:  "Check PG_USER and PG_PASSWORD",
		Code:    "DB002",
	}
	msgTimeout = UserMessage{
		Message: "Statement timed out",
		Action:  "Raise PG_STATEMENT_TIMEOUT or simplify the query",
		Code:    "DB003",
	}
	msgPermission = UserMessage{
		Message: "Permission denied",
		Action:  "Grant the pipeline user access to the target schema",
		Code:    "DB004",
	}
	msgSchemaConflict = UserMessage{
		Message: "Target table conflicts with the schema definition",
		Action:  "Drop or rename the existing relation, or align its columns",
		Code:    "LOAD001",
	}
	msgTransfer = UserMessage{
		Message: "A dataset value was rejected",
		Action:  "Fix the reported line and column in the source file",
		Code:    "LOAD002",
	}
	msgSource = UserMessage{
		Message: "Source file could not be read",
		Action:  "Check LOAD_SOURCE_FILE points at a readable CSV",
		Code:    "LOAD003",
	}
	msgSyntax = UserMessage{
		Message: "SQL syntax error",
		Action:  "Fix the statement in the reported file",
		Code:    "SQL001",
	}
	msgMissingRelation = UserMessage{
		Message: "Referenced table or view does not exist",
		Action:  "Run the load stage first or check the file's ordering prefix",
		Code:    "SQL002",
	}
	msgFileFailed = UserMessage{
		Message: "SQL file failed",
		Action:  "See the batch summary for the failing file",
		Code:    "SQL003",
	}
	msgBusy = UserMessage{
		Message: "A pipeline run is already in progress",
		Action:  "Wait for it to finish and try again",
		Code:    "RUN001",
	}
)

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the underlying error",
	Code:    "ERR000",
}

var sqlStateMessages = map[string]UserMessage{
	"28P01": msgAuth,
	"28000": msgAuth,
	"57014": msgTimeout,
	"42501": msgPermission,
	"42601": msgSyntax,
	"42P01": msgMissingRelation,
}

var kindMessages = map[ErrorKind]UserMessage{
	KindConnection:     msgConnRefused,
	KindSchemaConflict: msgSchemaConflict,
	KindTransfer:       msgTransfer,
	KindFileExecution:  msgFileFailed,
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// First match wins; specific before general.
var errorPatterns = []errorPattern{
	{"password authentication failed", msgAuth},
	{"connection refused", msgConnRefused},
	{"no such host", msgConnRefused},
	{"permission denied", msgPermission},
	{"no such file", msgSource},
	{"parse csv", msgSource},
	{"run in progress", msgBusy},
	{"timeout", msgTimeout},
}

// MapError converts a technical error to an operator-facing message.
// Returns the zero UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlStateMessages[pgErr.Code]; ok {
			return msg
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return msgConnRefused
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if msg, ok := kindMessages[KindOf(err)]; ok {
		return msg
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
