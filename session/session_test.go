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

package session

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/wire"
)

func newPipeSessions(t *testing.T, cfg Config) (*Session, net.Conn) {
	t.Helper()
	serverConn, peerConn := net.Pipe()
	s := New(1, serverConn, cfg)
	return s, peerConn
}

func writeFrames(t *testing.T, conn net.Conn, chunkSize int, frames [][]byte) {
	t.Helper()
	var all []byte
	for _, f := range frames {
		all = append(all, f...)
	}
	for len(all) > 0 {
		n := chunkSize
		if n > len(all) {
			n = len(all)
		}
		if _, err := conn.Write(all[:n]); err != nil {
			t.Fatalf("write: %v", err)
		}
		all = all[n:]
	}
}

// TestStreamingReassemblyArbitraryChunking verifies that N frames split
// across arbitrarily small writes (including 1-byte chunks) are reassembled
// into exactly N decoded frames, in order.
func TestStreamingReassemblyArbitraryChunking(t *testing.T) {
	for _, chunkSize := range []int{1, 3, 17, 4096} {
		chunkSize := chunkSize
		t.Run("", func(t *testing.T) {
			codec := wire.Codec{}
			var mu sync.Mutex
			var received []string

			dispatcher := dispatch.NewDispatcher(dispatch.EventSink{
				OnMessage: func(e dispatch.MessageEvent) {
					mu.Lock()
					received = append(received, e.Text)
					mu.Unlock()
				},
			}, nil, nil)

			s, peer := newPipeSessions(t, Config{Codec: codec, Dispatcher: dispatcher})
			s.setState(Ready)

			const n = 5
			var frames [][]byte
			for i := 0; i < n; i++ {
				f := wire.BuildFrame(wire.Message, []byte{byte('a' + i)}, wire.SendOptions{})
				encoded, err := codec.Encode(f)
				if err != nil {
					t.Fatalf("encode: %v", err)
				}
				frames = append(frames, encoded)
			}

			go s.receiveLoop()
			writeFrames(t, peer, chunkSize, frames)
			peer.Close()

			deadline := time.After(2 * time.Second)
			for {
				mu.Lock()
				got := len(received)
				mu.Unlock()
				if got == n {
					break
				}
				select {
				case <-deadline:
					t.Fatalf("timed out waiting for %d frames, got %d", n, got)
				case <-time.After(time.Millisecond):
				}
			}

			mu.Lock()
			defer mu.Unlock()
			for i, text := range received {
				want := string([]byte{byte('a' + i)})
				if text != want {
					t.Fatalf("frame %d: got %q want %q", i, text, want)
				}
			}
		})
	}
}

// TestOversizeFrameRejectedBeforeBuffering checks that a declared body size
// over MaxFrameBytes closes the connection with a MalformedFrame-derived
// ProtocolError without ever buffering the oversized body: only the header
// is written, so the close must happen before any body byte arrives.
func TestOversizeFrameRejectedBeforeBuffering(t *testing.T) {
	codec := wire.Codec{}
	dispatcher := dispatch.NewDispatcher(dispatch.EventSink{}, nil, nil)

	var closedReason dispatch.DisconnectReason
	var closedOnce int32
	s, peer := newPipeSessions(t, Config{
		Codec:         codec,
		Dispatcher:    dispatcher,
		MaxFrameBytes: 8,
		OnClosed: func(_ *Session, reason dispatch.DisconnectReason) {
			atomic.StoreInt32(&closedOnce, 1)
			closedReason = reason
		},
	})
	s.setState(Ready)

	big := wire.BuildFrame(wire.Bytes, make([]byte, 1024), wire.SendOptions{})
	encoded, err := codec.Encode(big)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	go s.receiveLoop()
	if _, err := peer.Write(encoded[:wire.HeaderPrefixLen]); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&closedOnce) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for session to close")
		case <-time.After(time.Millisecond):
		}
	}
	if closedReason != dispatch.ProtocolError {
		t.Fatalf("got reason %v, want ProtocolError", closedReason)
	}
}

// TestCloseIsIdempotent ensures concurrent Close calls (standing in for a
// concurrent peer-FIN and local shutdown) only ever fire one Disconnected
// event.
func TestCloseIsIdempotent(t *testing.T) {
	codec := wire.Codec{}
	var fired int32
	dispatcher := dispatch.NewDispatcher(dispatch.EventSink{
		OnDisconnected: func(dispatch.DisconnectedEvent) {
			atomic.AddInt32(&fired, 1)
		},
	}, nil, nil)

	s, peer := newPipeSessions(t, Config{Codec: codec, Dispatcher: dispatcher})
	defer peer.Close()
	s.setState(Ready)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close(dispatch.Normal, nil)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("Disconnected fired %d times, want 1", got)
	}
	if s.State() != Closed {
		t.Fatalf("state = %v, want Closed", s.State())
	}
}

// TestSendRejectedWhenNotReadyToSend checks the NotConnected fail-fast path.
func TestSendRejectedWhenNotReadyToSend(t *testing.T) {
	codec := wire.Codec{}
	dispatcher := dispatch.NewDispatcher(dispatch.EventSink{}, nil, nil)
	s, peer := newPipeSessions(t, Config{Codec: codec, Dispatcher: dispatcher})
	defer peer.Close()

	s.setState(Closed)
	f := wire.BuildFrame(wire.Message, []byte("hi"), wire.SendOptions{})
	if err := s.Send(f); err == nil {
		t.Fatal("expected error sending on a Closed session")
	}
}
