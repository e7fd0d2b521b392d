// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package std holds the small shared helpers used across the messaging
// engine: error taxonomy, colored warnings, address parsing, and the
// optional connection audit trail.
package std

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind enumerates the error taxonomy of the messaging engine.
type ErrorKind int

const (
	// ErrConfig covers invalid buffer sizes, timeouts, or bind addresses.
	ErrConfig ErrorKind = iota
	// ErrPolicyDenied means a peer failed the whitelist/blacklist check.
	ErrPolicyDenied
	// ErrTLS covers handshake failure or certificate rejection.
	ErrTLS
	// ErrIdentificationTimeout means no Auth frame arrived in time.
	ErrIdentificationTimeout
	// ErrMalformedFrame covers length mismatches, bad algorithm tags, and
	// decryption/decompression failures.
	ErrMalformedFrame
	// ErrUnsupportedVersion means the frame's version byte is not 1.
	ErrUnsupportedVersion
	// ErrMalformedAuth means the Auth payload did not parse into four fields.
	ErrMalformedAuth
	// ErrIO covers socket failures.
	ErrIO
	// ErrBackpressure means the send queue is at its configured max depth.
	ErrBackpressure
	// ErrNotConnected means a send was attempted on a session whose state
	// does not permit sending (anything but Ready, Identifying, or
	// HandshakingTLS).
	ErrNotConnected
	// ErrDeserialization means an Object payload failed to decode.
	ErrDeserialization
	// ErrUnexpectedEOF means the peer closed the stream mid-frame.
	ErrUnexpectedEOF
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConfig:
		return "ConfigError"
	case ErrPolicyDenied:
		return "PolicyDenied"
	case ErrTLS:
		return "TlsError"
	case ErrIdentificationTimeout:
		return "IdentificationTimeout"
	case ErrMalformedFrame:
		return "MalformedFrame"
	case ErrUnsupportedVersion:
		return "UnsupportedVersion"
	case ErrMalformedAuth:
		return "MalformedAuth"
	case ErrIO:
		return "IoError"
	case ErrBackpressure:
		return "Backpressure"
	case ErrNotConnected:
		return "NotConnected"
	case ErrDeserialization:
		return "DeserializationError"
	case ErrUnexpectedEOF:
		return "UnexpectedEof"
	default:
		return "UnknownError"
	}
}

// Error pairs a taxonomy Kind with a wrapped cause, preserving a stack trace
// via github.com/pkg/errors the same way the teacher wraps tcpraw/stream
// errors.
type Error struct {
	Kind  ErrorKind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// Wrap builds an *Error of the given kind around cause, attaching a stack
// trace at the call site (even if cause already carries one).
func Wrap(kind ErrorKind, cause error) *Error {
	if cause == nil {
		return &Error{Kind: kind}
	}
	return &Error{Kind: kind, cause: errors.WithStack(cause)}
}

// New builds an *Error of the given kind from a message, no wrapped cause.
func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
