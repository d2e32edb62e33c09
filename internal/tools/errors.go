package tools

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedToolInput = errors.New("malformed tool input")
	ErrUnknownTool        = errors.New("unknown tool")
)

// MalformedToolInputError reports tool input that does not match the tool's input format.
type MalformedToolInputError struct {
	Tool   string
	Input  string
	Reason string
}

func (e *MalformedToolInputError) Error() string {
	return fmt.Sprintf("%s: %s (got %q)", e.Tool, e.Reason, e.Input)
}

func (e *MalformedToolInputError) Is(target error) bool {
	return target == ErrMalformedToolInput
}

// UnknownToolError is returned by Registry.Invoke for a name that was never registered.
type UnknownToolError struct {
	Name      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("%s is not a valid tool, try one of %v.", e.Name, e.Available)
}

func (e *UnknownToolError) Is(target error) bool {
	return target == ErrUnknownTool
}
