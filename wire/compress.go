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
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"

	"github.com/pkg/errors"
)

// compressBody applies algo to body as a whole, the way the teacher's
// std.CompStream wraps a whole net.Conn in a snappy writer — here scoped to
// one frame's body instead of the whole stream, since spec.md §4.1 names a
// closed algorithm set (gzip, deflate) that snappy isn't part of.
func compressBody(body []byte, algo CompressionAlgo) ([]byte, error) {
	switch algo {
	case CompressionNone:
		return body, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, errors.Wrap(err, "gzip write")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "gzip close")
		}
		return buf.Bytes(), nil
	case CompressionDeflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, errors.Wrap(err, "flate.NewWriter")
		}
		if _, err := w.Write(body); err != nil {
			return nil, errors.Wrap(err, "flate write")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "flate close")
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.Errorf("unknown compression algorithm: %d", algo)
	}
}

func decompressBody(body []byte, algo CompressionAlgo) ([]byte, error) {
	switch algo {
	case CompressionNone:
		return body, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "gzip.NewReader")
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "gzip read")
		}
		return out, nil
	case CompressionDeflate:
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "flate read")
		}
		return out, nil
	default:
		return nil, errors.Errorf("unknown compression algorithm: %d", algo)
	}
}
