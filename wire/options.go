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

package wire

const (
	// DefaultBufferSize is the default per-read chunk size the Receiver
	// requests from the socket (spec.md §4.2).
	DefaultBufferSize = 4096
	// MinBufferSize is the floor BufferSize may be reconfigured to.
	MinBufferSize = 256
	// DefaultMaxFrameBytes bounds the total body size the Receiver will
	// accumulate before rejecting a frame (spec.md §4.2).
	DefaultMaxFrameBytes = 64 * 1024 * 1024
)

// SendOptions collapses the send API's overload explosion (spec.md §9) into
// a single options struct, per spec.md §6.
type SendOptions struct {
	Metadata           map[string]string
	ExtraInfo          map[string]string
	DynamicCallbackKey string
	Encryption         EncryptionAlgo
	Compression        CompressionAlgo
}

// BuildFrame turns a MessageType, payload, and SendOptions into an
// immutable Frame ready for the codec.
func BuildFrame(msgType MessageType, payload []byte, opts SendOptions) Frame {
	extra := NewKVMap(opts.ExtraInfo)
	if opts.DynamicCallbackKey != "" {
		extra.Set(ExtraInfoDynamicCallback, opts.DynamicCallbackKey)
	}
	return Frame{
		Type:        msgType,
		Payload:     payload,
		Metadata:    NewKVMap(opts.Metadata),
		ExtraInfo:   extra,
		Compression: opts.Compression,
		Encryption:  opts.Encryption,
	}
}
