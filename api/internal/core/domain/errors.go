package domain

import (
	"errors"
	"strings"
)

// Sentinel kinds. Match with errors.Is against any *ProxyError.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("identity conflict")
	ErrFilesystem   = errors.New("filesystem failure")
	ErrExternalTool = errors.New("external tool failure")
	ErrRollback     = errors.New("rollback failed")
	ErrReload       = errors.New("reload failed")
)

// ProxyError carries the kind, the failing step and the cause. Note records
// what a rollback did; RollbackErr is set when the restore itself failed.
type ProxyError struct {
	Kind        error
	Op          string
	Name        string
	Message     string
	Err         error
	Note        string
	RollbackErr error
}

func (e *ProxyError) Error() string {
	if e.Op == "" {
		return e.UserMessage()
	}
	if e.Name == "" {
		return e.Op + ": " + e.UserMessage()
	}
	return e.Op + " " + e.Name + ": " + e.UserMessage()
}

func (e *ProxyError) Unwrap() error { return e.Err }

func (e *ProxyError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// UserMessage is the text safe to hand back over HTTP.
func (e *ProxyError) UserMessage() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil && !strings.Contains(msg, e.Err.Error()) {
		msg += ": " + e.Err.Error()
	}
	if e.Note != "" {
		msg += "; " + e.Note
	}
	if e.RollbackErr != nil {
		msg += "; restore failed: " + e.RollbackErr.Error()
	}
	return msg
}

// NewError builds a ProxyError of the given kind.
func NewError(kind error, op, name, message string, cause error) *ProxyError {
	return &ProxyError{Kind: kind, Op: op, Name: name, Message: message, Err: cause}
}

// CommandError is returned by external tool invocations.
// Started is false when the process could not run at all (missing binary, timeout).
type CommandError struct {
	Command string
	Output  string
	Started bool
	Err     error
}

func (e *CommandError) Error() string {
	if !e.Started {
		return "could not execute " + e.Command + ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		return out
	}
	return e.Command + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }
