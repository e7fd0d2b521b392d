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

// Package dispatch turns decoded frames into user-visible events (spec.md
// §4.3) and routes them either to a registered dynamic callback or to the
// default event for the frame's MessageType.
package dispatch

import "github.com/xtaci/tcplink/wire"

// SessionHandle is the minimal view of a Session the Dispatcher needs. It
// is implemented by package session's Session type; Dispatcher itself never
// imports that package, which keeps session -> dispatch a one-way edge
// (session.Receiver calls into the Dispatcher, not the reverse).
type SessionHandle interface {
	ID() uint64
	GUID() string
	Name() string
	SetIdentity(wire.Identity)
	ResetInactivityTimer()
}

// DisconnectReason enumerates why a Session was closed (spec.md §4.5).
type DisconnectReason int

const (
	Normal DisconnectReason = iota
	PeerClosed
	Timeout
	PolicyDenied
	ProtocolError
	IoError
)

func (r DisconnectReason) String() string {
	switch r {
	case Normal:
		return "Normal"
	case PeerClosed:
		return "PeerClosed"
	case Timeout:
		return "Timeout"
	case PolicyDenied:
		return "PolicyDenied"
	case ProtocolError:
		return "ProtocolError"
	case IoError:
		return "IoError"
	default:
		return "Unknown"
	}
}

// ConnectedEvent fires once per admitted Session (spec.md §6).
type ConnectedEvent struct {
	Session SessionHandle
}

// DisconnectedEvent fires exactly once per Session lifecycle (spec.md §4.5).
type DisconnectedEvent struct {
	Session SessionHandle
	Reason  DisconnectReason
}

// SslAuthEvent fires after a TLS handshake attempt.
type SslAuthEvent struct {
	Session SessionHandle
	Success bool
	Err     error
}

// MessageEvent carries a Message-type frame to the default handler.
type MessageEvent struct {
	Session  SessionHandle
	Text     string
	Metadata map[string]string
}

// ObjectEvent carries an Object-type frame. A nil Obj/empty Type means
// deserialization failed (spec.md §4.3 item 4 / §9 inverted-branch fix):
// the event still fires, the connection is not dropped, and the failure is
// logged by the Dispatcher before the event is emitted.
type ObjectEvent struct {
	Session  SessionHandle
	Obj      interface{}
	Type     string
	Metadata map[string]string
}

// BytesEvent carries a Bytes-type frame.
type BytesEvent struct {
	Session  SessionHandle
	Data     []byte
	Metadata map[string]string
}

// Handler is a dynamic callback registered under a string key (spec.md
// glossary: "Dynamic callback"). Exactly one of the three On* methods is
// invoked, matching the frame's MessageType; Message/Object/Bytes frames are
// the only types ever routed to a dynamic callback (Auth and KeepAlive are
// intercepted earlier and never reach the dispatch table, spec.md §4.3
// items 1-2).
type Handler interface {
	OnMessage(MessageEvent)
	OnObject(ObjectEvent)
	OnBytes(BytesEvent)
}

// HandlerFuncs adapts three plain functions into a Handler, for callers who
// don't want to define a type. A nil field is a no-op for that variant.
type HandlerFuncs struct {
	Message func(MessageEvent)
	Object  func(ObjectEvent)
	Bytes   func(BytesEvent)
}

func (h HandlerFuncs) OnMessage(e MessageEvent) {
	if h.Message != nil {
		h.Message(e)
	}
}
func (h HandlerFuncs) OnObject(e ObjectEvent) {
	if h.Object != nil {
		h.Object(e)
	}
}
func (h HandlerFuncs) OnBytes(e BytesEvent) {
	if h.Bytes != nil {
		h.Bytes(e)
	}
}
