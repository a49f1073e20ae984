/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package fault holds the error type shared by every stage of the pipeline.
// Each error carries a Kind and the source location that raised it.
package fault

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

type Kind uint8

const (
	Capacity    Kind = iota + 1 // a fixed-size buffer would overflow
	Unresolved                  // a name or label has no definition
	Structure                   // the program does not have the expected shape
	Unsupported                 // an operation or operand shape has no lowering
	Platform                    // the operating system refused a request
)

func (k Kind) String() string {
	switch k {
	case Capacity:
		return "capacity"
	case Unresolved:
		return "unresolved"
	case Structure:
		return "structure"
	case Unsupported:
		return "unsupported"
	case Platform:
		return "platform"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is a fatal pipeline condition.
type Error struct {
	Kind Kind
	Msg  string
	File string
	Func string
	Line int
	Err  error // cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Location returns file:func:line of the place that raised the error.
func (e *Error) Location() string {
	return fmt.Sprintf("%s:%s:%d", e.File, e.Func, e.Line)
}

func at(skip int, kind Kind, cause error, msg string) *Error {
	e := &Error{Kind: kind, Msg: msg, Err: cause, File: "?", Func: "?"}
	if pc, file, line, ok := runtime.Caller(skip + 1); ok {
		e.File = filepath.Base(file)
		e.Line = line
		if f := runtime.FuncForPC(pc); f != nil {
			name := f.Name()
			if i := strings.LastIndexByte(name, '/'); i >= 0 {
				name = name[i+1:]
			}
			e.Func = name
		}
	}
	return e
}

// New raises an error of the given kind at the caller's location.
func New(kind Kind, format string, args ...any) *Error {
	return at(1, kind, nil, fmt.Sprintf(format, args...))
}

// Wrap raises an error of the given kind that keeps err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return at(1, kind, err, fmt.Sprintf(format, args...))
}

// Full reports that the buffer named what already holds limit entries.
func Full(what string, limit int) *Error {
	return at(1, Capacity, nil, fmt.Sprintf("%s is full (capacity %d)", what, limit))
}

// Is reports whether err or any error it wraps is a fault of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Describe renders err as a one-line diagnostic, prefixed with the
// location of the innermost fault when there is one.
func Describe(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	for {
		var inner *Error
		if e.Err == nil || !errors.As(e.Err, &inner) {
			break
		}
		e = inner
	}
	return e.Location() + ": " + err.Error()
}
