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
	"encoding/binary"
	"log"

	"github.com/xtaci/tcplink/std"
)

// Wire layout (spec.md §4.1), big-endian multi-byte fields:
//
//	[0]       version          (u8, currently 1)
//	[1]       msg_type         (u8)
//	[2]       flags            (u8; bit0=has_metadata, bit1=has_extra_info,
//	                                bit2=compressed, bit3=encrypted)
//	[3]       compression_algo (u8)
//	[4]       encryption_algo  (u8)
//	[5..9)    reserved         (u32, zero)
//	[9..13)   payload_len      (u32) -- size of the ORIGINAL, pre-transform payload
//	[13..17)  metadata_len     (u32, present iff has_metadata)
//	[17..21)  extra_len        (u32, present iff has_extra_info)
//	[ ..+4)   transformed_len  (u32, present iff compressed or encrypted)
//	[ then: body bytes, transformed as a whole if compressed/encrypted ]
//
// transformed_len is this codec's resolution of an ambiguity left open by
// spec.md's encode step 5 ("recompute the three length fields to reflect
// the post-transform body") versus its decode order ("split into
// payload/metadata/extra by the stored lengths" after reversing the
// transforms): payload_len/metadata_len/extra_len must hold the
// *pre*-transform sizes to make that final split possible, so a fourth,
// conditionally-present length word carries the number of raw wire bytes to
// read for the (possibly compressed and/or encrypted) body blob. This is
// the "additional length words... required from the flags" the Receiver
// state machine (spec.md §4.2) already expects to compute generically.
const (
	flagHasMetadata  = 1 << 0
	flagHasExtraInfo = 1 << 1
	flagCompressed   = 1 << 2
	flagEncrypted    = 1 << 3
)

// HeaderPrefixLen is the fixed portion of the header the Receiver waits for
// before it can tell how many additional length words follow (spec.md §4.2
// AwaitHeader: "if >= 13 bytes buffered, parse the fixed prefix").
const HeaderPrefixLen = 13

// Header mirrors the fixed + variable-length-word portion of a frame,
// parsed once by the Receiver and handed to Codec for the rest of decoding.
type Header struct {
	Version     uint8
	Type        MessageType
	Flags       uint8
	Compression CompressionAlgo
	Encryption  EncryptionAlgo
	PayloadLen  uint32
	MetadataLen uint32
	ExtraLen    uint32
	// TransformedLen is the number of raw wire bytes making up the body when
	// Flags has the compressed or encrypted bit set.
	TransformedLen uint32
}

func (h Header) hasMetadata() bool  { return h.Flags&flagHasMetadata != 0 }
func (h Header) hasExtraInfo() bool { return h.Flags&flagHasExtraInfo != 0 }
func (h Header) compressed() bool   { return h.Flags&flagCompressed != 0 }
func (h Header) encrypted() bool    { return h.Flags&flagEncrypted != 0 }

// LengthWordCount reports how many additional u32 length words follow the
// 13-byte fixed prefix, per the flags.
func (h Header) LengthWordCount() int {
	n := 0
	if h.hasMetadata() {
		n++
	}
	if h.hasExtraInfo() {
		n++
	}
	if h.compressed() || h.encrypted() {
		n++
	}
	return n
}

// BodyLen is the number of raw wire bytes that follow the header: the
// transformed blob length if a transform is applied, else the sum of the
// three part lengths (spec.md §4.2 AwaitBodyLengths).
func (h Header) BodyLen() uint32 {
	if h.compressed() || h.encrypted() {
		return h.TransformedLen
	}
	return h.PayloadLen + h.MetadataLen + h.ExtraLen
}

// ParseHeader decodes the 13-byte fixed prefix. It does not consume the
// variable-length words; call ParseLengthWords once enough bytes are
// buffered (LengthWordCount()*4 more).
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderPrefixLen {
		return Header{}, std.New(std.ErrMalformedFrame, "short header")
	}
	h := Header{
		Version:     buf[0],
		Type:        MessageType(buf[1]),
		Flags:       buf[2],
		Compression: CompressionAlgo(buf[3]),
		Encryption:  EncryptionAlgo(buf[4]),
	}
	if h.Version != Version {
		return Header{}, std.New(std.ErrUnsupportedVersion, "unsupported frame version")
	}
	if !h.Type.Valid() {
		return Header{}, std.New(std.ErrMalformedFrame, "unknown message type")
	}
	if !h.Compression.Valid() {
		return Header{}, std.New(std.ErrMalformedFrame, "unknown compression algorithm")
	}
	if !h.Encryption.Valid() {
		return Header{}, std.New(std.ErrMalformedFrame, "unknown encryption algorithm")
	}
	h.PayloadLen = binary.BigEndian.Uint32(buf[9:13])
	return h, nil
}

// ParseLengthWords fills in MetadataLen, ExtraLen, and TransformedLen from
// the buffer immediately following the 13-byte prefix. buf must contain at
// least h.LengthWordCount()*4 bytes.
func ParseLengthWords(h Header, buf []byte) (Header, error) {
	need := h.LengthWordCount() * 4
	if len(buf) < need {
		return h, std.New(std.ErrMalformedFrame, "short length words")
	}
	off := 0
	if h.hasMetadata() {
		h.MetadataLen = binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
	}
	if h.hasExtraInfo() {
		h.ExtraLen = binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
	}
	if h.compressed() || h.encrypted() {
		h.TransformedLen = binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return h, nil
}

// Codec holds configuration shared by Encode/Decode: the passphrase used to
// derive encryption keys and an optional logger for the "encrypted with no
// passphrase" warning.
type Codec struct {
	Passphrase string
	Logger     *log.Logger
}

// Encode builds the wire bytes for f, applying compression then encryption
// to the concatenated payload||metadata||extra body (spec.md §4.1 encoding
// order).
func (c Codec) Encode(f Frame) ([]byte, error) {
	metadataBytes := encodeKV(f.Metadata)
	extraBytes := encodeKV(f.ExtraInfo)

	body := make([]byte, 0, len(f.Payload)+len(metadataBytes)+len(extraBytes))
	body = append(body, f.Payload...)
	body = append(body, metadataBytes...)
	body = append(body, extraBytes...)

	encryption := f.Encryption
	if encryption != EncryptionNone && c.Passphrase == "" {
		// spec.md §4.1: warn, then proceed unencrypted. Preserved verbatim
		// rather than treated as a hard error (spec.md §9 open question).
		std.Warnf(c.Logger, "encryption %v requested but no passphrase configured; sending frame unencrypted", encryption)
		encryption = EncryptionNone
	}

	wireBody := body
	if f.Compression != CompressionNone {
		compressed, err := compressBody(body, f.Compression)
		if err != nil {
			return nil, std.Wrap(std.ErrMalformedFrame, err)
		}
		wireBody = compressed
	}
	if encryption != EncryptionNone {
		encrypted, err := encryptAES256CBC(wireBody, c.Passphrase)
		if err != nil {
			return nil, std.Wrap(std.ErrMalformedFrame, err)
		}
		wireBody = encrypted
	}

	flags := uint8(0)
	if f.Metadata.Len() > 0 {
		flags |= flagHasMetadata
	}
	if f.ExtraInfo.Len() > 0 {
		flags |= flagHasExtraInfo
	}
	transformed := f.Compression != CompressionNone || encryption != EncryptionNone
	if transformed {
		flags |= flagCompressed * b2u8(f.Compression != CompressionNone)
		flags |= flagEncrypted * b2u8(encryption != EncryptionNone)
	}

	out := make([]byte, HeaderPrefixLen, HeaderPrefixLen+20+len(wireBody))
	out[0] = Version
	out[1] = uint8(f.Type)
	out[2] = flags
	out[3] = uint8(f.Compression)
	out[4] = uint8(encryption)
	// out[5:9] reserved, left zero
	binary.BigEndian.PutUint32(out[9:13], uint32(len(f.Payload)))

	if f.Metadata.Len() > 0 {
		out = appendU32(out, uint32(len(metadataBytes)))
	}
	if f.ExtraInfo.Len() > 0 {
		out = appendU32(out, uint32(len(extraBytes)))
	}
	if transformed {
		out = appendU32(out, uint32(len(wireBody)))
	}

	out = append(out, wireBody...)
	return out, nil
}

// Decode reverses Encode given a fully parsed Header and its raw body
// bytes (exactly Header.BodyLen() bytes, as assembled by the Receiver).
func (c Codec) Decode(h Header, rawBody []byte) (Frame, error) {
	body := rawBody
	var err error
	if h.encrypted() {
		body, err = decryptAES256CBC(body, c.Passphrase)
		if err != nil {
			return Frame{}, std.Wrap(std.ErrMalformedFrame, err)
		}
	}
	if h.compressed() {
		body, err = decompressBody(body, h.Compression)
		if err != nil {
			return Frame{}, std.Wrap(std.ErrMalformedFrame, err)
		}
	}

	total := int(h.PayloadLen) + int(h.MetadataLen) + int(h.ExtraLen)
	if total != len(body) {
		return Frame{}, std.New(std.ErrMalformedFrame, "decoded body length does not match header lengths")
	}

	payload := body[:h.PayloadLen]
	off := int(h.PayloadLen)
	metadataBytes := body[off : off+int(h.MetadataLen)]
	off += int(h.MetadataLen)
	extraBytes := body[off : off+int(h.ExtraLen)]

	metadata, err := decodeKV(metadataBytes)
	if err != nil {
		return Frame{}, std.Wrap(std.ErrMalformedFrame, err)
	}
	extra, err := decodeKV(extraBytes)
	if err != nil {
		return Frame{}, std.Wrap(std.ErrMalformedFrame, err)
	}

	return Frame{
		Type:        h.Type,
		Payload:     payload,
		Metadata:    metadata,
		ExtraInfo:   extra,
		Compression: h.Compression,
		Encryption:  h.Encryption,
	}, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// encodeKV serializes a KVMap as length-prefixed UTF-8 key/value pairs in
// insertion order (spec.md §4.1 step 1).
func encodeKV(kv KVMap) []byte {
	if kv.Len() == 0 {
		return nil
	}
	var out []byte
	kv.Range(func(k, v string) {
		out = appendU32(out, uint32(len(k)))
		out = append(out, k...)
		out = appendU32(out, uint32(len(v)))
		out = append(out, v...)
	})
	return out
}

func decodeKV(data []byte) (KVMap, error) {
	var kv KVMap
	off := 0
	for off < len(data) {
		if off+4 > len(data) {
			return KVMap{}, std.New(std.ErrMalformedFrame, "truncated key length")
		}
		klen := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
		if klen < 0 || off+klen > len(data) {
			return KVMap{}, std.New(std.ErrMalformedFrame, "truncated key")
		}
		key := string(data[off : off+klen])
		off += klen

		if off+4 > len(data) {
			return KVMap{}, std.New(std.ErrMalformedFrame, "truncated value length")
		}
		vlen := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
		if vlen < 0 || off+vlen > len(data) {
			return KVMap{}, std.New(std.ErrMalformedFrame, "truncated value")
		}
		value := string(data[off : off+vlen])
		off += vlen

		kv.Set(key, value)
	}
	return kv, nil
}
