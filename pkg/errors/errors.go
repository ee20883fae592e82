/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Error represents a typed scoring-service error carrying a canonical code,
// a human-readable message, the pipeline stage it originated from, optional
// structured details, an inner error and the capture-time stack trace.
type Error struct {
	Stack      []runtime.Frame
	InnerError error
	Code       string
	Message    string
	Stage      string
	Details    map[string]any
}

// New creates an Error with the given code and message and records the
// caller's stack trace.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Error implements the error interface and returns a formatted error string.
func (e *Error) Error() string {
	if e.InnerError == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.InnerError.Error())
}

// Unwrap returns the inner error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.InnerError
}

// GetStackString returns the complete stack trace as a formatted string.
func (e *Error) GetStackString() string {
	result := ""
	for _, frame := range e.Stack {
		funcName := ""
		if frame.Func != nil {
			funcName = frame.Func.Name()
		}
		funcNames := strings.Split(funcName, "/")
		if len(funcNames) > 0 {
			funcName = funcNames[len(funcNames)-1]
		}
		result = fmt.Sprintf("%s%s:%d %s\n", result, frame.File, frame.Line, funcName)
	}
	return result
}

// WithCode sets the error code and returns the Error instance for chaining.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithMessage sets the error message and returns the Error instance for chaining.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// WithStage sets the originating stage and returns the Error instance for chaining.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithDetails attaches structured details and returns the Error instance for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithError sets the inner error and returns the Error instance for chaining.
func (e *Error) WithError(err error) *Error {
	e.InnerError = err
	return e
}

// AsError extracts an *Error from an error chain. The second return value
// reports whether the extraction succeeded.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Convert normalizes any error into an *Error. Untyped errors get the given
// fallback code and stage; typed errors pass through with their stage filled
// in when empty.
func Convert(err error, fallbackCode, stage string) *Error {
	if e, ok := AsError(err); ok {
		if e.Stage == "" {
			e.Stage = stage
		}
		return e
	}
	return &Error{
		Code:    fallbackCode,
		Message: err.Error(),
		Stage:   stage,
		Stack:   captureStack(2),
	}
}

func captureStack(skip int) []runtime.Frame {
	pc := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pc)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pc[:n])
	var result []runtime.Frame
	for {
		frame, more := frames.Next()
		result = append(result, frame)
		if !more {
			break
		}
	}
	return result
}
