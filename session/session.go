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

// Package session implements the per-connection Session: socket ownership,
// optional TLS stream, identity, liveness, the state machine of spec.md
// §4.5, the Receiver of spec.md §4.2, and the Send Queue of spec.md §4.6.
package session

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/std"
	"github.com/xtaci/tcplink/wire"
)

// globalBufferSize is the one intentionally process-wide knob spec.md §5
// calls out: the per-read chunk size new Sessions use. Changing it only
// affects Sessions created after the change.
var globalBufferSize int32 = wire.DefaultBufferSize

// SetGlobalBufferSize reconfigures the process-wide Receiver read chunk
// size. Values below wire.MinBufferSize are rejected as ConfigError.
func SetGlobalBufferSize(n int) error {
	if n < wire.MinBufferSize {
		return std.New(std.ErrConfig, "buffer size below minimum")
	}
	atomic.StoreInt32(&globalBufferSize, int32(n))
	return nil
}

// GlobalBufferSize returns the current process-wide Receiver read chunk
// size.
func GlobalBufferSize() int {
	return int(atomic.LoadInt32(&globalBufferSize))
}

// Config configures a Session at construction time. Zero value fields fall
// back to spec.md's defaults.
type Config struct {
	Codec                     wire.Codec
	Dispatcher                *dispatch.Dispatcher
	MaxFrameBytes             uint32
	MaxQueueDepth             int
	IdentificationTimeout     time.Duration
	InactivityTimeout         time.Duration
	Logger                    *log.Logger
	AuditLog                  *std.AuditLog
	TLSConfig                 *tls.Config
	AcceptInvalidCertificates bool
	// OnClosed is invoked exactly once, after the state machine reaches
	// Closed, so the owning Server/Client can drop the Session from its
	// map (spec.md §3 ownership: the map belongs to the Server, not the
	// Session).
	OnClosed func(*Session, dispatch.DisconnectReason)
}

// Session is one live TCP (optionally TLS-wrapped) connection, per spec.md
// §3.
type Session struct {
	id uint64

	mu         sync.RWMutex
	guid       string
	name       string
	osVersion  string
	userDomain string
	state      State

	conn       net.Conn
	peerIPv4   string
	peerIPv6   string
	bufferSize int

	receiving atomic.Bool
	writing   atomic.Bool
	timedOut  atomic.Bool

	codec         wire.Codec
	dispatcher    *dispatch.Dispatcher
	maxFrameBytes uint32

	queue             *sendQueue
	maxQueueDepth     int
	inactivityTimeout time.Duration
	idTimeout         time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once

	logger   *log.Logger
	auditLog *std.AuditLog
	onClosed func(*Session, dispatch.DisconnectReason)

	idDeadline     *time.Timer
	inactivityTick *time.Timer
}

// New wraps conn as a brand-new Session in state Created. id must be
// unique across the server's lifetime (spec.md §3 invariant); the server
// assigns it monotonically starting at 1, a client assigns itself 0 since
// it has exactly one Session.
func New(id uint64, conn net.Conn, cfg Config) *Session {
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = wire.DefaultMaxFrameBytes
	}
	if cfg.IdentificationTimeout == 0 {
		cfg.IdentificationTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	host4, host6 := splitPeerIPs(conn.RemoteAddr())

	s := &Session{
		id:                id,
		state:             Created,
		conn:              conn,
		peerIPv4:          host4,
		peerIPv6:          host6,
		bufferSize:        GlobalBufferSize(),
		codec:             cfg.Codec,
		dispatcher:        cfg.Dispatcher,
		maxFrameBytes:     cfg.MaxFrameBytes,
		maxQueueDepth:     cfg.MaxQueueDepth,
		inactivityTimeout: cfg.InactivityTimeout,
		idTimeout:         cfg.IdentificationTimeout,
		ctx:               ctx,
		cancel:            cancel,
		logger:            cfg.Logger,
		auditLog:          cfg.AuditLog,
		onClosed:          cfg.OnClosed,
	}
	s.queue = newSendQueue(cfg.MaxQueueDepth)
	return s
}

// --- dispatch.SessionHandle ---

func (s *Session) ID() uint64 { return s.id }

func (s *Session) GUID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guid
}

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetIdentity fills in the fields learned from the client's Auth frame
// (spec.md §4.3 item 1). It does not itself transition the state machine;
// callers transition Identifying->Ready after calling this.
func (s *Session) SetIdentity(id wire.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = id.Name
	s.guid = id.GUID
	s.userDomain = id.UserDomain
	s.osVersion = id.OSVersion
}

// ResetInactivityTimer restarts the inactivity timeout countdown, called on
// every KeepAlive frame and (by the Receiver) on every other frame too.
func (s *Session) ResetInactivityTimer() {
	if s.inactivityTimeout == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inactivityTick != nil {
		s.inactivityTick.Reset(s.inactivityTimeout)
	}
}

// --- accessors ---

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

func (s *Session) PeerIPv4() string { return s.peerIPv4 }
func (s *Session) PeerIPv6() string { return s.peerIPv6 }
func (s *Session) OSVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.osVersion
}
func (s *Session) UserDomain() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userDomain
}
func (s *Session) Receiving() bool { return s.receiving.Load() }
func (s *Session) Writing() bool   { return s.writing.Load() }
func (s *Session) TimedOut() bool  { return s.timedOut.Load() }

func splitPeerIPs(addr net.Addr) (v4, v6 string) {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "", ""
	}
	if ip.To4() != nil {
		return ip.String(), ""
	}
	return "", ip.String()
}

// --- TLS handshake ---

// HandshakeTLS wraps the Session's socket in a TLS stream and drives the
// handshake, transitioning HandshakingTLS->Identifying on success or
// ->Failed on a rejected certificate, per spec.md §4.5. server selects
// whether to use tls.Server or tls.Client.
func (s *Session) HandshakeTLS(cfg *tls.Config, server bool, acceptInvalidCertificates bool) error {
	s.setState(HandshakingTLS)

	var tlsConn *tls.Conn
	if server {
		tlsConn = tls.Server(s.conn, cfg)
	} else {
		tlsConn = tls.Client(s.conn, cfg)
	}

	err := tlsConn.HandshakeContext(s.ctx)
	if err != nil && !acceptInvalidCertificates {
		s.setState(Failed)
		if s.dispatcher != nil {
			s.dispatcher.SslAuth(s, false, err)
		}
		return std.Wrap(std.ErrTLS, err)
	}
	if err != nil {
		// acceptInvalidCertificates swallows the handshake error and
		// proceeds with the connection as negotiated so far.
		std.Warnf(s.logger, "accepting TLS session despite handshake error: %v", err)
	}

	s.conn = tlsConn
	s.setState(Identifying)
	if s.dispatcher != nil {
		s.dispatcher.SslAuth(s, true, nil)
	}
	return nil
}

// --- lifecycle ---

// Start launches the Receiver and Sender goroutines and, if configured,
// the identification deadline timer. Call once the Session has reached
// Identifying (directly from Created when TLS is disabled).
func (s *Session) Start() {
	if s.State() == Created {
		s.setState(Identifying)
	}

	if s.idTimeout > 0 {
		s.idDeadline = time.AfterFunc(s.idTimeout, func() {
			if s.State() == Identifying {
				s.Close(dispatch.Timeout, std.New(std.ErrIdentificationTimeout, "no Auth frame received in time"))
			}
		})
	}
	if s.inactivityTimeout > 0 {
		s.inactivityTick = time.AfterFunc(s.inactivityTimeout, func() {
			s.timedOut.Store(true)
			s.Close(dispatch.Timeout, std.New(std.ErrIO, "inactivity timeout"))
		})
	}

	go s.receiveLoop()
	go s.sendLoop()
}

// MarkReady transitions Identifying->Ready once the first Auth frame has
// been processed, cancelling the identification deadline.
func (s *Session) MarkReady() {
	if s.idDeadline != nil {
		s.idDeadline.Stop()
	}
	s.setState(Ready)
}

// Close requests a graceful shutdown with the given reason. Safe to call
// concurrently and more than once; only the first call has any effect, and
// exactly one DisconnectedEvent is ever fired (spec.md §4.5's idempotent
// guard), satisfying the "at-most-one disconnection event" property even
// under a concurrent peer-FIN and local-shutdown race.
func (s *Session) Close(reason dispatch.DisconnectReason, cause error) {
	s.closeOnce.Do(func() {
		s.setState(Closing)
		s.cancel()

		if idTimer := s.idDeadline; idTimer != nil {
			idTimer.Stop()
		}
		if tick := s.inactivityTick; tick != nil {
			tick.Stop()
		}

		if tcp, ok := s.conn.(interface{ CloseWrite() error }); ok {
			_ = tcp.CloseWrite()
			std.Drain(s.conn, 200*time.Millisecond)
		}
		_ = s.conn.Close()

		s.setState(Closed)
		s.queue.closed()

		if s.auditLog != nil {
			s.auditLog.Record(s.id, "disconnect", s.GUID(), reason.String())
		}
		if s.dispatcher != nil {
			s.dispatcher.Disconnected(s, reason)
		}
		if cause != nil {
			s.logf("session %d closed: %v (%v)", s.id, reason, cause)
		}
		if s.onClosed != nil {
			s.onClosed(s, reason)
		}
	})
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// --- sending ---

// Send encodes f and waits for the send queue to accept it (spec.md §4.6:
// the synchronous send API waits for acceptance, not for the write to
// complete). Returns NotConnected if the Session isn't in a state that
// permits sending, or Backpressure if MaxQueueDepth is set and the queue is
// full.
func (s *Session) Send(f wire.Frame) error {
	_, err := s.enqueue(f, nil)
	return err
}

// SendAsync encodes f, enqueues it, and returns a channel that receives
// exactly one value: nil once the bytes have been written to the socket
// buffer, or the write error. It does not wait for peer acknowledgement
// (there is none at this layer) — spec.md §4.6.
func (s *Session) SendAsync(f wire.Frame) (<-chan error, error) {
	done := make(chan error, 1)
	_, err := s.enqueue(f, done)
	if err != nil {
		return nil, err
	}
	return done, nil
}

func (s *Session) enqueue(f wire.Frame, done chan error) (int, error) {
	if !canSend(s.State()) {
		return 0, std.New(std.ErrNotConnected, "session is not ready to send")
	}

	data, err := s.codec.Encode(f)
	if err != nil {
		return 0, err
	}
	if err := s.queue.push(sendJob{data: data, done: done}); err != nil {
		return 0, err
	}
	return len(data), nil
}
