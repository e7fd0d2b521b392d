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

package server

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/xtaci/tcplink/client"
	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/policy"
	"github.com/xtaci/tcplink/wire"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestServerAcceptsAndIdentifiesClient(t *testing.T) {
	port := freePort(t)

	var mu sync.Mutex
	var connected []string
	dispatcher := dispatch.NewDispatcher(dispatch.EventSink{
		OnMessage: func(e dispatch.MessageEvent) {
			mu.Lock()
			connected = append(connected, e.Text)
			mu.Unlock()
		},
	}, nil, nil)

	srv := New(Config{Dispatcher: dispatcher, Policy: *policy.NewSet()})
	go srv.Listen("127.0.0.1", port)
	defer srv.Shutdown()
	time.Sleep(20 * time.Millisecond)

	c := client.New(client.Config{Identity: wire.Identity{Name: "tester"}})
	defer c.Close()
	if err := c.Connect("127.0.0.1", port, 0); err != nil {
		t.Fatalf("connect: %v", err)
	}

	sess, ok := c.Session()
	if !ok {
		t.Fatal("client has no session after connect")
	}
	if err := sess.Send(wire.BuildFrame(wire.Message, []byte("hello"), wire.SendOptions{})); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(connected)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for message to arrive at server")
		case <-time.After(time.Millisecond):
		}
	}

	clients := srv.ListClients()
	if len(clients) != 1 {
		t.Fatalf("server has %d clients, want 1", len(clients))
	}
	if name := clients[0].Name(); name != "tester" {
		t.Fatalf("server-side client name = %q, want tester", name)
	}
}

func TestServerRejectsBlacklistedPeer(t *testing.T) {
	port := freePort(t)
	pol := policy.NewSet()
	pol.Blacklist = []string{"127.0.0.1"}

	dispatcher := dispatch.NewDispatcher(dispatch.EventSink{}, nil, nil)
	srv := New(Config{Dispatcher: dispatcher, Policy: *pol})
	go srv.Listen("127.0.0.1", port)
	defer srv.Shutdown()
	time.Sleep(20 * time.Millisecond)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	if err == nil {
		t.Fatal("expected connection to be closed by blacklist rejection")
	}
}
