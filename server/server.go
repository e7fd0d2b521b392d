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

// Package server implements the Listener side of the messaging engine
// (spec.md §4.4): it accepts TCP connections, runs admission control, hands
// each admitted connection to a new session.Session, and keeps the
// authoritative map of live sessions.
package server

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/policy"
	"github.com/xtaci/tcplink/session"
	"github.com/xtaci/tcplink/std"
	"github.com/xtaci/tcplink/wire"
)

// Config configures a Server at construction time.
type Config struct {
	Dispatcher            *dispatch.Dispatcher
	Policy                policy.Set
	Passphrase            string
	MaxFrameBytes         uint32
	MaxQueueDepth         int
	IdentificationTimeout time.Duration
	InactivityTimeout     time.Duration
	Logger                *log.Logger
	AuditLog              *std.AuditLog
	TLSConfig             *tls.Config
	// AcceptInvalidCertificates is forwarded to every Session's TLS
	// handshake; false in production, true only for local testing
	// (spec.md §9's carried-over warning applies equally here).
	AcceptInvalidCertificates bool
}

// Server owns the listening socket, the admission policy, and the map of
// live Sessions (spec.md §3: the server, not the Session, owns that map).
type Server struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[uint64]*session.Session
	nextID   uint64

	ln        net.Listener
	closeOnce sync.Once
	closed    chan struct{}

	accepting atomic.Bool
}

// New builds a Server bound to no socket yet; call Listen to start
// accepting.
func New(cfg Config) *Server {
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = dispatch.NewDispatcher(dispatch.EventSink{}, nil, cfg.Logger)
	}
	if cfg.Policy.MaxSessions == 0 {
		cfg.Policy.MaxSessions = policy.DefaultMaxSessions
	}
	s := &Server{
		cfg:      cfg,
		sessions: make(map[uint64]*session.Session),
		closed:   make(chan struct{}),
	}
	s.accepting.Store(true)
	return s
}

// Listen binds ip:port and runs the accept loop until the Server is
// stopped or the listener errors. It returns once the listener is closed.
func (s *Server) Listen(ip string, port int) error {
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return std.Wrap(std.ErrConfig, err)
	}
	s.ln = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
				return std.Wrap(std.ErrIO, err)
			}
		}
		go s.handleAccept(conn)
	}
}

// CanAcceptConnections reports whether the Server is currently admitting
// new connections: it isn't shut down and hasn't reached MaxSessions
// (spec.md §4.4).
func (s *Server) CanAcceptConnections() bool {
	if !s.accepting.Load() {
		return false
	}
	if s.cfg.Policy.MaxSessions <= 0 {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions) < s.cfg.Policy.MaxSessions
}

func (s *Server) handleAccept(conn net.Conn) {
	peerAddr := conn.RemoteAddr().String()
	host, _, _ := net.SplitHostPort(peerAddr)

	if !s.CanAcceptConnections() || !s.cfg.Policy.IsAllowed(host) {
		if s.cfg.AuditLog != nil {
			s.cfg.AuditLog.Record(0, "reject", "", "PolicyDenied:"+host)
		}
		std.Warnf(s.cfg.Logger, "rejecting connection from %s: admission policy denied", peerAddr)
		_ = conn.Close()
		return
	}

	id := atomic.AddUint64(&s.nextID, 1)
	sess := session.New(id, conn, session.Config{
		Codec:                     wire.Codec{Passphrase: s.cfg.Passphrase, Logger: s.cfg.Logger},
		Dispatcher:                s.cfg.Dispatcher,
		MaxFrameBytes:             s.cfg.MaxFrameBytes,
		MaxQueueDepth:             s.cfg.MaxQueueDepth,
		IdentificationTimeout:     s.cfg.IdentificationTimeout,
		InactivityTimeout:         s.cfg.InactivityTimeout,
		Logger:                    s.cfg.Logger,
		AuditLog:                  s.cfg.AuditLog,
		TLSConfig:                 s.cfg.TLSConfig,
		AcceptInvalidCertificates: s.cfg.AcceptInvalidCertificates,
		OnClosed:                  s.removeSession,
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	if s.cfg.AuditLog != nil {
		s.cfg.AuditLog.Record(id, "connect", "", peerAddr)
	}

	if s.cfg.TLSConfig != nil {
		if err := sess.HandshakeTLS(s.cfg.TLSConfig, true, s.cfg.AcceptInvalidCertificates); err != nil {
			s.removeSession(sess, dispatch.PolicyDenied)
			return
		}
	}

	s.cfg.Dispatcher.Connected(sess)
	sess.Start()
}

// removeSession is the OnClosed hook every Session is configured with: it
// drops the Session from the id-indexed map.
func (s *Server) removeSession(sess *session.Session, _ dispatch.DisconnectReason) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
}

// ShutdownClient closes the Session with the given id, if still connected.
func (s *Server) ShutdownClient(id uint64, reason dispatch.DisconnectReason) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.Close(reason, nil)
	}
}

// IsClientConnected reports whether a Session with the given id is
// currently tracked by the Server.
func (s *Server) IsClientConnected(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// GetClient returns the Session with the given id, if any.
func (s *Server) GetClient(id uint64) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// GetClientByGUID returns the Session identified by guid, if any. GUIDs are
// only known once a Session's Auth frame has been processed, so a lookup
// before that point returns false.
func (s *Server) GetClientByGUID(guid string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.GUID() == guid {
			return sess, true
		}
	}
	return nil, false
}

// ListClients returns every currently tracked Session.
func (s *Server) ListClients() []*session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Shutdown stops accepting new connections, closes every live Session with
// reason Normal, and closes the listening socket.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		s.accepting.Store(false)
		close(s.closed)
		if s.ln != nil {
			_ = s.ln.Close()
		}
		for _, sess := range s.ListClients() {
			sess.Close(dispatch.Normal, nil)
		}
	})
}
