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

import (
	"strings"

	"github.com/xtaci/tcplink/std"
)

// Identity is the four fields carried by an Auth frame's payload (spec.md
// §4.3 item 1).
type Identity struct {
	Name       string
	GUID       string
	UserDomain string
	OSVersion  string
}

// EncodeAuth renders id as "name|guid|user_domain|os_version".
func EncodeAuth(id Identity) []byte {
	return []byte(strings.Join([]string{id.Name, id.GUID, id.UserDomain, id.OSVersion}, "|"))
}

// DecodeAuth parses an Auth frame payload. Exactly four '|'-separated
// fields are required; anything else is MalformedAuth.
func DecodeAuth(payload []byte) (Identity, error) {
	fields := strings.Split(string(payload), "|")
	if len(fields) != 4 {
		return Identity{}, std.New(std.ErrMalformedAuth, "auth payload must have exactly four fields")
	}
	return Identity{
		Name:       fields[0],
		GUID:       fields[1],
		UserDomain: fields[2],
		OSVersion:  fields[3],
	}, nil
}

// AuthFrame builds the immutable Frame carrying id as the first frame a
// client sends post-handshake (spec.md §4.5 Identifying state).
func AuthFrame(id Identity) Frame {
	return Frame{Type: Auth, Payload: EncodeAuth(id)}
}

// KeepAliveFrame builds the zero-payload Frame used to reset a peer's
// inactivity timer.
func KeepAliveFrame() Frame {
	return Frame{Type: KeepAlive}
}
