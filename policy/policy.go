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

// Package policy holds the server-side admission policy set: whitelist,
// blacklist, concurrent session cap, and per-session inactivity timeout
// (spec.md §3).
package policy

import (
	"time"

	"github.com/xtaci/tcplink/std"
)

const (
	// DefaultMaxSessions is the default concurrent session cap.
	DefaultMaxSessions = 500
	// MinInactivityTimeout is the smallest non-zero inactivity timeout
	// accepted; zero itself means "infinite" (spec.md §3).
	MinInactivityTimeout = 5 * time.Second
)

// Set is the per-server admission policy. Mutation is only permitted before
// Listen is called (spec.md §5); read access afterward does not need a
// lock because the fields become effectively immutable at that point.
type Set struct {
	Whitelist         []string
	Blacklist         []string
	MaxSessions       int
	InactivityTimeout time.Duration
}

// NewSet builds a Set with spec.md §3's defaults.
func NewSet() *Set {
	return &Set{MaxSessions: DefaultMaxSessions}
}

// Validate enforces spec.md §3's invariant on InactivityTimeout: zero means
// infinite, otherwise it must be at least MinInactivityTimeout.
func (s *Set) Validate() error {
	if s.InactivityTimeout != 0 && s.InactivityTimeout < MinInactivityTimeout {
		return std.New(std.ErrConfig, "inactivity timeout must be zero or at least 5 seconds")
	}
	if s.MaxSessions <= 0 {
		return std.New(std.ErrConfig, "max sessions must be positive")
	}
	return nil
}

// IsAllowed implements spec.md §3's admission rule: a non-empty whitelist
// makes the blacklist irrelevant; otherwise a non-empty blacklist rejects
// matching peers; with both empty, every peer is admitted.
func (s *Set) IsAllowed(peerAddr string) bool {
	if len(s.Whitelist) > 0 {
		return contains(s.Whitelist, peerAddr)
	}
	if len(s.Blacklist) > 0 {
		return !contains(s.Blacklist, peerAddr)
	}
	return true
}

func contains(list []string, addr string) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
