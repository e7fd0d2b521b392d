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
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var bindAddrMatcher = regexp.MustCompile(`^(.*):([0-9]{1,5})$`)

// ResolveBindAddr parses an "ip:port" listen address, mapping the textual
// wildcards "*" and "" for the host to "0.0.0.0" (all interfaces), the way
// spec.md §4.4 requires. Adapted from the teacher's multiport address
// parser, trimmed to the single-port case this engine needs.
func ResolveBindAddr(addr string) (host string, port int, err error) {
	m := bindAddrMatcher.FindStringSubmatch(addr)
	if m == nil {
		return "", 0, errors.Errorf("malformed listen address: %v", addr)
	}
	host = m[1]
	if host == "*" || host == "" {
		host = "0.0.0.0"
	}
	port, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, errors.Wrapf(err, "malformed port in %v", addr)
	}
	if port == 0 || port > 65535 {
		return "", 0, errors.Errorf("port out of range: %v", port)
	}
	return host, port, nil
}
