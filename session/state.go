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

// State is a node in the per-Session state machine of spec.md §4.5:
//
//	Created --accept/connect--> HandshakingTLS? --> Identifying --> Ready
//	                                  |                 |            |
//	                                  v                 v            v
//	                               Failed            Failed       Closing --> Closed
type State int

const (
	Created State = iota
	HandshakingTLS
	Identifying
	Ready
	Closing
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case HandshakingTLS:
		return "HandshakingTLS"
	case Identifying:
		return "Identifying"
	case Ready:
		return "Ready"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is one of the state machine's terminal states.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

// canSend reports whether a frame may be enqueued while in state s. Sends
// issued while Identifying or HandshakingTLS are accepted onto the queue
// and written as soon as the Sender goroutine reaches them — this is how an
// explicit Auth send from the client during Identifying (spec.md §4.6) is
// allowed. Any other state fails fast with NotConnected.
func canSend(s State) bool {
	switch s {
	case Ready, Identifying, HandshakingTLS:
		return true
	default:
		return false
	}
}
