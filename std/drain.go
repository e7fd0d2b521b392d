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

package std

import (
	"io"
	"time"
)

const drainBufSize = 4096

// Drain reads and discards bytes from r until EOF or the deadline elapses,
// giving a peer's final FIN a chance to arrive cleanly before the socket is
// hard-closed. Adapted from the teacher's memory-optimized Copy helper in
// std/copy.go, repurposed from bidirectional proxying to a one-shot
// half-close drain used by the Session state machine's Closing->Closed step.
func Drain(r io.Reader, timeout time.Duration) {
	type deadliner interface {
		SetReadDeadline(time.Time) error
	}
	if d, ok := r.(deadliner); ok {
		d.SetReadDeadline(time.Now().Add(timeout))
	}
	buf := make([]byte, drainBufSize)
	for {
		if _, err := r.Read(buf); err != nil {
			return
		}
	}
}
