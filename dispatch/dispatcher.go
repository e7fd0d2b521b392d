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

package dispatch

import (
	"log"
	"sync"

	"github.com/xtaci/tcplink/wire"
)

// ObjectDeserializer is the pluggable "bytes + type tag -> value" inverse
// serializer spec.md §1 names as an external collaborator. A nil
// ObjectDeserializer makes every Object frame deserialize-fail, which is
// still benign per spec.md §4.3 item 4.
type ObjectDeserializer interface {
	Deserialize(data []byte, typeName string) (interface{}, error)
}

// EventSink holds the default handlers for the three user-visible inbound
// event types plus connection lifecycle events. Any nil field is a no-op.
type EventSink struct {
	OnConnected    func(ConnectedEvent)
	OnDisconnected func(DisconnectedEvent)
	OnSslAuth      func(SslAuthEvent)
	OnMessage      func(MessageEvent)
	OnObject       func(ObjectEvent)
	OnBytes        func(BytesEvent)
}

// Dispatcher is shared across every Session on the server and is a
// singleton on the client (spec.md §3 ownership, §4.3).
type Dispatcher struct {
	Sink       EventSink
	Deserializ ObjectDeserializer
	Logger     *log.Logger

	mu        sync.RWMutex
	callbacks map[string]Handler
}

// NewDispatcher builds a Dispatcher with the given default event sink and
// object deserializer.
func NewDispatcher(sink EventSink, deserializer ObjectDeserializer, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		Sink:       sink,
		Deserializ: deserializer,
		Logger:     logger,
		callbacks:  make(map[string]Handler),
	}
}

// RegisterDynamicCallback maps key to handler. A subsequent frame carrying
// ExtraInfo["DynamicCallback"] == key is routed to handler instead of the
// default event (spec.md §4.3 item 3, glossary).
func (d *Dispatcher) RegisterDynamicCallback(key string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[key] = handler
}

// UnregisterDynamicCallback removes key, reverting matching frames to
// default-event behavior.
func (d *Dispatcher) UnregisterDynamicCallback(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.callbacks, key)
}

func (d *Dispatcher) lookupCallback(key string) (Handler, bool) {
	if key == "" {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.callbacks[key]
	return h, ok
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// safely runs fn and converts a panic into a logged error, so a broken user
// callback can never take down the Receiver loop that called Dispatch
// (spec.md §6: "exceptions thrown inside them must not propagate... catch,
// log, continue").
func (d *Dispatcher) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logf("dispatch: recovered from panic in user handler: %v", r)
		}
	}()
	fn()
}

// Dispatch processes one decoded frame for session, per spec.md §4.3.
// Auth and KeepAlive frames never reach a dynamic callback or default
// event; a MalformedAuth frame is returned as an error so the caller (the
// Session state machine) can decide how to fail the connection.
func (d *Dispatcher) Dispatch(session SessionHandle, f wire.Frame) error {
	switch f.Type {
	case wire.Auth:
		id, err := wire.DecodeAuth(f.Payload)
		if err != nil {
			return err
		}
		session.SetIdentity(id)
		return nil

	case wire.KeepAlive:
		session.ResetInactivityTimer()
		return nil

	case wire.Object:
		d.dispatchObject(session, f)
		return nil

	case wire.Message:
		d.dispatchMessage(session, f)
		return nil

	case wire.Bytes:
		d.dispatchBytes(session, f)
		return nil

	default:
		return nil
	}
}

func (d *Dispatcher) callbackKey(f wire.Frame) string {
	key, _ := f.ExtraInfo.Get(wire.ExtraInfoDynamicCallback)
	return key
}

func (d *Dispatcher) dispatchMessage(session SessionHandle, f wire.Frame) {
	ev := MessageEvent{Session: session, Text: string(f.Payload), Metadata: f.Metadata.ToMap()}
	if h, ok := d.lookupCallback(d.callbackKey(f)); ok {
		d.safely(func() { h.OnMessage(ev) })
		return
	}
	if d.Sink.OnMessage != nil {
		d.safely(func() { d.Sink.OnMessage(ev) })
	}
}

func (d *Dispatcher) dispatchBytes(session SessionHandle, f wire.Frame) {
	ev := BytesEvent{Session: session, Data: f.Payload, Metadata: f.Metadata.ToMap()}
	if h, ok := d.lookupCallback(d.callbackKey(f)); ok {
		d.safely(func() { h.OnBytes(ev) })
		return
	}
	if d.Sink.OnBytes != nil {
		d.safely(func() { d.Sink.OnBytes(ev) })
	}
}

func (d *Dispatcher) dispatchObject(session SessionHandle, f wire.Frame) {
	typeName, _ := f.ExtraInfo.Get(wire.ExtraInfoType)

	var obj interface{}
	var err error
	if d.Deserializ != nil && typeName != "" {
		obj, err = d.Deserializ.Deserialize(f.Payload, typeName)
	} else {
		err = errNoDeserializer
	}

	ev := ObjectEvent{Session: session, Metadata: f.Metadata.ToMap()}
	if err != nil || obj == nil {
		// spec.md §9: the source's success/error branches are inverted; here
		// the corrected semantics are implemented directly rather than
		// ported: log the failure, still fire the event with a nil object,
		// and never drop the connection.
		d.logf("dispatch: object deserialization failed for type %q: %v", typeName, err)
		ev.Obj, ev.Type = nil, ""
	} else {
		ev.Obj, ev.Type = obj, typeName
	}

	if h, ok := d.lookupCallback(d.callbackKey(f)); ok {
		d.safely(func() { h.OnObject(ev) })
		return
	}
	if d.Sink.OnObject != nil {
		d.safely(func() { d.Sink.OnObject(ev) })
	}
}

// Connected fires ConnectedEvent for session.
func (d *Dispatcher) Connected(session SessionHandle) {
	if d.Sink.OnConnected != nil {
		d.safely(func() { d.Sink.OnConnected(ConnectedEvent{Session: session}) })
	}
}

// Disconnected fires DisconnectedEvent for session with reason. Idempotency
// (exactly once per Session) is the caller's (Session state machine's)
// responsibility, per spec.md §4.5.
func (d *Dispatcher) Disconnected(session SessionHandle, reason DisconnectReason) {
	if d.Sink.OnDisconnected != nil {
		d.safely(func() { d.Sink.OnDisconnected(DisconnectedEvent{Session: session, Reason: reason}) })
	}
}

// SslAuth fires SslAuthEvent for session.
func (d *Dispatcher) SslAuth(session SessionHandle, success bool, err error) {
	if d.Sink.OnSslAuth != nil {
		d.safely(func() { d.Sink.OnSslAuth(SslAuthEvent{Session: session, Success: success, Err: err}) })
	}
}
