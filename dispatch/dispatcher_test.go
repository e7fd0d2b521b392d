package dispatch

import (
	"testing"

	"github.com/xtaci/tcplink/wire"
)

type fakeSession struct {
	id  uint64
	ids []wire.Identity
}

func (f *fakeSession) ID() uint64                  { return f.id }
func (f *fakeSession) GUID() string                { return "" }
func (f *fakeSession) Name() string                { return "" }
func (f *fakeSession) SetIdentity(id wire.Identity) { f.ids = append(f.ids, id) }
func (f *fakeSession) ResetInactivityTimer()        {}

func TestDispatchAuthUpdatesIdentityWithoutEvent(t *testing.T) {
	fired := false
	d := NewDispatcher(EventSink{OnMessage: func(MessageEvent) { fired = true }}, nil, nil)
	s := &fakeSession{id: 1}
	f := wire.AuthFrame(wire.Identity{Name: "alice", GUID: "g-1", UserDomain: "WORKGROUP", OSVersion: "linux"})
	if err := d.Dispatch(s, f); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if fired {
		t.Fatal("Auth frame must not fire a user event")
	}
	if len(s.ids) != 1 || s.ids[0].Name != "alice" {
		t.Fatalf("identity not applied: %+v", s.ids)
	}
}

func TestDispatchKeepAliveResetsTimerOnly(t *testing.T) {
	reset := false
	fired := false
	d := NewDispatcher(EventSink{
		OnMessage: func(MessageEvent) { fired = true },
		OnObject:  func(ObjectEvent) { fired = true },
		OnBytes:   func(BytesEvent) { fired = true },
	}, nil, nil)
	s := &fakeSession{id: 1}
	_ = s
	// wrap ResetInactivityTimer via a closure-capable session
	rs := &resettingSession{fakeSession: fakeSession{id: 1}, reset: &reset}
	if err := d.Dispatch(rs, wire.KeepAliveFrame()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !reset {
		t.Fatal("expected inactivity timer to be reset")
	}
	if fired {
		t.Fatal("KeepAlive frame must not fire a user event")
	}
}

type resettingSession struct {
	fakeSession
	reset *bool
}

func (r *resettingSession) ResetInactivityTimer() { *r.reset = true }

func TestDynamicCallbackOverridesDefaultEvent(t *testing.T) {
	defaultFired := false
	d := NewDispatcher(EventSink{OnMessage: func(MessageEvent) { defaultFired = true }}, nil, nil)
	callbackFired := false
	d.RegisterDynamicCallback("K", HandlerFuncs{Message: func(MessageEvent) { callbackFired = true }})

	s := &fakeSession{id: 1}
	f := wire.BuildFrame(wire.Message, []byte("hello"), wire.SendOptions{DynamicCallbackKey: "K"})
	if err := d.Dispatch(s, f); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !callbackFired || defaultFired {
		t.Fatalf("expected callback=true default=false, got callback=%v default=%v", callbackFired, defaultFired)
	}

	d.UnregisterDynamicCallback("K")
	callbackFired, defaultFired = false, false
	if err := d.Dispatch(s, f); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if callbackFired || !defaultFired {
		t.Fatalf("expected callback=false default=true after unregister, got callback=%v default=%v", callbackFired, defaultFired)
	}
}

func TestObjectDeserializationFailureFiresBenignEvent(t *testing.T) {
	var got *ObjectEvent
	d := NewDispatcher(EventSink{OnObject: func(e ObjectEvent) { got = &e }}, nil, nil)
	s := &fakeSession{id: 1}
	extra := map[string]string{wire.ExtraInfoType: "widget.Thing"}
	f := wire.BuildFrame(wire.Object, []byte("not-really-a-widget"), wire.SendOptions{ExtraInfo: extra})
	if err := d.Dispatch(s, f); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got == nil {
		t.Fatal("expected ObjectReceived event to fire even on deserialization failure")
	}
	if got.Obj != nil || got.Type != "" {
		t.Fatalf("expected nil obj/type, got %+v", got)
	}
}
