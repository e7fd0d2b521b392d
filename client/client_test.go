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

package client

import (
	"net"
	"testing"

	"github.com/xtaci/tcplink/wire"
)

func TestNewGeneratesGUIDWhenMissing(t *testing.T) {
	c := New(Config{})
	if c.cfg.Identity.GUID == "" {
		t.Fatal("expected a generated GUID")
	}
}

func TestNewKeepsSuppliedGUID(t *testing.T) {
	c := New(Config{Identity: wire.Identity{GUID: "fixed-guid"}})
	if c.cfg.Identity.GUID != "fixed-guid" {
		t.Fatalf("got GUID %q, want fixed-guid", c.cfg.Identity.GUID)
	}
}

func TestSendWithoutConnectionFails(t *testing.T) {
	c := New(Config{})
	if err := c.Send(wire.BuildFrame(wire.Message, []byte("hi"), wire.SendOptions{})); err == nil {
		t.Fatal("expected error sending before any connection")
	}
}

func TestConnectFailsAgainstClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := New(Config{})
	if err := c.Connect("127.0.0.1", port, 0); err == nil {
		t.Fatal("expected connect to a closed port to fail")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(Config{})
	c.Close()
	c.Close()
}
