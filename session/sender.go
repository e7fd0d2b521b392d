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
	"sync"

	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/std"
)

// sendJob is one already-encoded frame waiting to go out, plus an optional
// completion channel for SendAsync.
type sendJob struct {
	data []byte
	done chan error
}

// sendQueue is the FIFO of spec.md §4.6: a single Sender goroutine dequeues
// and writes, at most one frame in flight. It is a growable slice rather
// than a fixed Go channel so the unbounded (default) case never blocks a
// producer; MaxQueueDepth, when set, turns push into a fail-fast check
// instead of an actual bound on a channel's buffer.
type sendQueue struct {
	mu       sync.Mutex
	items    []sendJob
	notify   chan struct{}
	maxDepth int
	done     bool
}

func newSendQueue(maxDepth int) *sendQueue {
	return &sendQueue{notify: make(chan struct{}, 1), maxDepth: maxDepth}
}

func (q *sendQueue) push(job sendJob) error {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return std.New(std.ErrNotConnected, "session is closed")
	}
	if q.maxDepth > 0 && len(q.items) >= q.maxDepth {
		q.mu.Unlock()
		return std.New(std.ErrBackpressure, "send queue is at its configured maximum depth")
	}
	q.items = append(q.items, job)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// pop blocks until a job is available, the queue is closed (returns
// ok=false), or cancel fires.
func (q *sendQueue) pop(cancel <-chan struct{}) (sendJob, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return job, true
		}
		done := q.done
		q.mu.Unlock()
		if done {
			return sendJob{}, false
		}

		select {
		case <-q.notify:
			continue
		case <-cancel:
			return sendJob{}, false
		}
	}
}

func (q *sendQueue) closed() {
	q.mu.Lock()
	q.done = true
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	for _, job := range pending {
		if job.done != nil {
			job.done <- std.New(std.ErrNotConnected, "session closed before frame was sent")
		}
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// sendLoop is the Sender goroutine: one per Session, dequeuing and writing
// frames in order until the Session's cancellation token fires.
func (s *Session) sendLoop() {
	s.writing.Store(true)
	defer s.writing.Store(false)

	for {
		job, ok := s.queue.pop(s.ctx.Done())
		if !ok {
			return
		}

		_, err := s.conn.Write(job.data)
		if job.done != nil {
			job.done <- err
		}
		if err != nil {
			s.Close(dispatch.IoError, std.Wrap(std.ErrIO, err))
			return
		}
	}
}
