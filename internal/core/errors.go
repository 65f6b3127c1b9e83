package core

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures.
type ErrorKind string

const (
	KindConnection     ErrorKind = "connection"
	KindSchemaConflict ErrorKind = "schema_conflict"
	KindTransfer       ErrorKind = "transfer"
	KindFileExecution  ErrorKind = "file_execution"
	KindDiscovery      ErrorKind = "discovery"
)

// Sentinels matched by errors.Is against a *PipelineError of the same kind.
var (
	ErrConnection     = errors.New("store unreachable")
	ErrSchemaConflict = errors.New("schema conflict")
	ErrTransfer       = errors.New("transfer failed")
	ErrFileExecution  = errors.New("sql file failed")
	ErrDiscovery      = errors.New("discovery warning")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindSchemaConflict:
		return ErrSchemaConflict
	case KindTransfer:
		return ErrTransfer
	case KindFileExecution:
		return ErrFileExecution
	case KindDiscovery:
		return ErrDiscovery
	}
	return nil
}

// PipelineError is a categorized failure. Op names the step that failed
// ("connect", "create_table", "copy", "file 03_bi_x.sql").
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError builds a PipelineError.
func NewError(kind ErrorKind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *PipelineError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first PipelineError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
