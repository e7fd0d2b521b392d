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
	"errors"
	"io"

	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/std"
	"github.com/xtaci/tcplink/wire"
)

// decodeResult is what one pass over the Receiver's buffer produces.
type decodeResult struct {
	consumed int
	frame    wire.Frame
	needMore bool
	err      error
}

// tryDecodeOne runs the AwaitHeader -> AwaitBodyLengths -> AwaitBody states
// of spec.md §4.2 against whatever bytes are currently buffered, without
// allocating anything beyond what's already been read. A frame whose
// declared body would exceed maxFrameBytes is rejected the moment its
// length words are known, before the (possibly enormous) body is ever
// buffered — spec.md §8 property 8.
func tryDecodeOne(buf []byte, codec wire.Codec, maxFrameBytes uint32) decodeResult {
	if len(buf) < wire.HeaderPrefixLen {
		return decodeResult{needMore: true}
	}
	h, err := wire.ParseHeader(buf[:wire.HeaderPrefixLen])
	if err != nil {
		return decodeResult{err: err}
	}

	wordsLen := h.LengthWordCount() * 4
	headerLen := wire.HeaderPrefixLen + wordsLen
	if len(buf) < headerLen {
		return decodeResult{needMore: true}
	}
	h, err = wire.ParseLengthWords(h, buf[wire.HeaderPrefixLen:headerLen])
	if err != nil {
		return decodeResult{err: err}
	}

	bodyLen := h.BodyLen()
	if bodyLen > maxFrameBytes {
		return decodeResult{err: std.New(std.ErrMalformedFrame, "frame body exceeds the configured maximum")}
	}

	total := headerLen + int(bodyLen)
	if len(buf) < total {
		return decodeResult{needMore: true}
	}

	frame, err := codec.Decode(h, buf[headerLen:total])
	if err != nil {
		return decodeResult{err: err}
	}
	return decodeResult{consumed: total, frame: frame}
}

// receiveLoop is the Receiver goroutine: one per Session, the only
// component that reads the socket (spec.md §4.2). It reads at most
// bufferSize bytes at a time, reassembles complete frames from the
// accumulated buffer, and hands each to the Dispatcher, leaving any
// trailing bytes buffered for the next read.
func (s *Session) receiveLoop() {
	s.receiving.Store(true)
	defer s.receiving.Store(false)

	chunk := make([]byte, s.bufferSize)
	var buf []byte

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		n, readErr := s.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}

		for {
			result := tryDecodeOne(buf, s.codec, s.maxFrameBytes)
			if result.needMore {
				break
			}
			if result.err != nil {
				s.Close(dispatch.ProtocolError, result.err)
				return
			}

			buf = buf[result.consumed:]
			s.ResetInactivityTimer()

			if err := s.dispatcher.Dispatch(s, result.frame); err != nil {
				s.Close(dispatch.ProtocolError, err)
				return
			}
			if result.frame.Type == wire.Auth && s.State() == Identifying {
				s.MarkReady()
			}
		}

		if readErr != nil {
			s.handleReadError(readErr, len(buf) > 0)
			return
		}
	}
}

func (s *Session) handleReadError(err error, hasTrailingBytes bool) {
	if errors.Is(err, io.EOF) {
		if hasTrailingBytes {
			s.Close(dispatch.ProtocolError, std.New(std.ErrUnexpectedEOF, "peer closed mid-frame"))
			return
		}
		s.Close(dispatch.PeerClosed, nil)
		return
	}
	s.Close(dispatch.IoError, std.Wrap(std.ErrIO, err))
}
