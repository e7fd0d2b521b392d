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

// Package client implements the Connector side of the messaging engine
// (spec.md §4.4): dial, optional TLS, send the Auth frame, keep the single
// Session alive with periodic KeepAlive frames, and reconnect on failure.
package client

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/session"
	"github.com/xtaci/tcplink/std"
	"github.com/xtaci/tcplink/wire"
)

// KeepAliveProbe is the default interval between KeepAlive frames; one is
// sent on every tick, whether or not other traffic has flowed (spec.md §4.4).
const KeepAliveProbe = 15 * time.Second

// Config configures a Client at construction time.
type Config struct {
	Dispatcher                *dispatch.Dispatcher
	Passphrase                string
	Identity                  wire.Identity
	MaxFrameBytes             uint32
	MaxQueueDepth             int
	InactivityTimeout         time.Duration
	KeepAliveInterval         time.Duration
	ReconnectInterval         time.Duration
	Logger                    *log.Logger
	TLSConfig                 *tls.Config
	AcceptInvalidCertificates bool
	// OnConnect is invoked once per successful (re)connection, after the
	// Auth frame has been sent, with the new live Session.
	OnConnect func(*session.Session)
}

// Client owns the single outbound Session and its reconnect loop.
type Client struct {
	cfg Config

	mu     sync.RWMutex
	sess   *session.Session
	closed bool
	cancel chan struct{}
}

// New builds a Client that has not yet connected. If cfg.Identity.GUID is
// empty, a fresh one is generated (spec.md glossary: GUID).
func New(cfg Config) *Client {
	if cfg.Identity.GUID == "" {
		cfg.Identity.GUID = shortuuid.New()
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = KeepAliveProbe
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = dispatch.NewDispatcher(dispatch.EventSink{}, nil, cfg.Logger)
	}
	return &Client{cfg: cfg, cancel: make(chan struct{})}
}

// Connect dials ip:port once, and if reconnectInSeconds > 0, keeps
// reconnecting at that interval whenever the Session closes, until Close is
// called. With reconnectInSeconds == 0, Connect returns after the first
// connection attempt's outcome (nil on success).
func (c *Client) Connect(ip string, port int, reconnectInSeconds int) error {
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))

	if reconnectInSeconds <= 0 {
		return c.dialOnce(addr)
	}

	interval := time.Duration(reconnectInSeconds) * time.Second
	if err := c.dialOnce(addr); err != nil {
		std.Warnf(c.cfg.Logger, "initial connection to %s failed: %v", addr, err)
	}
	go c.reconnectLoop(addr, interval)
	return nil
}

func (c *Client) reconnectLoop(addr string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.cancel:
			return
		case <-ticker.C:
			if c.Connected() {
				continue
			}
			if err := c.dialOnce(addr); err != nil {
				std.Warnf(c.cfg.Logger, "reconnect to %s failed: %v", addr, err)
			}
		}
	}
}

func (c *Client) dialOnce(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return std.Wrap(std.ErrIO, err)
	}

	sess := session.New(0, conn, session.Config{
		Codec:                     wire.Codec{Passphrase: c.cfg.Passphrase, Logger: c.cfg.Logger},
		Dispatcher:                c.cfg.Dispatcher,
		MaxFrameBytes:             c.cfg.MaxFrameBytes,
		MaxQueueDepth:             c.cfg.MaxQueueDepth,
		InactivityTimeout:         c.cfg.InactivityTimeout,
		Logger:                    c.cfg.Logger,
		TLSConfig:                 c.cfg.TLSConfig,
		AcceptInvalidCertificates: c.cfg.AcceptInvalidCertificates,
		OnClosed: func(*session.Session, dispatch.DisconnectReason) {
			c.mu.Lock()
			c.sess = nil
			c.mu.Unlock()
		},
	})

	if c.cfg.TLSConfig != nil {
		if err := sess.HandshakeTLS(c.cfg.TLSConfig, false, c.cfg.AcceptInvalidCertificates); err != nil {
			return err
		}
	}

	sess.Start()
	if err := sess.Send(wire.AuthFrame(c.cfg.Identity)); err != nil {
		sess.Close(dispatch.ProtocolError, err)
		return err
	}
	sess.MarkReady()

	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	go c.keepAliveLoop(sess)

	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect(sess)
	}
	return nil
}

func (c *Client) keepAliveLoop(sess *session.Session) {
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.cancel:
			return
		case <-ticker.C:
			if sess.State().Terminal() {
				return
			}
			if err := sess.Send(wire.KeepAliveFrame()); err != nil {
				return
			}
		}
	}
}

// Connected reports whether the Client currently holds a live Session.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess != nil
}

// Session returns the Client's current live Session, if any.
func (c *Client) Session() (*session.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess, c.sess != nil
}

// Send forwards a frame to the current Session, failing with NotConnected
// if there isn't one.
func (c *Client) Send(f wire.Frame) error {
	sess, ok := c.Session()
	if !ok {
		return std.New(std.ErrNotConnected, "client is not connected")
	}
	return sess.Send(f)
}

// Close stops the reconnect and keep-alive loops and closes the current
// Session, if any.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sess := c.sess
	c.mu.Unlock()

	close(c.cancel)
	if sess != nil {
		sess.Close(dispatch.Normal, nil)
	}
}
