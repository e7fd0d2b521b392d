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

// Package wire implements the frame codec: wire layout, compression,
// encryption, and the canonical metadata/extra-info serialization. Frames
// are immutable once built.
package wire

// MessageType tags the kind of payload a Frame carries.
type MessageType uint8

const (
	Message MessageType = iota + 1
	Object
	Bytes
	Auth
	KeepAlive
)

func (t MessageType) Valid() bool {
	return t >= Message && t <= KeepAlive
}

// CompressionAlgo tags the body compression applied to a Frame.
type CompressionAlgo uint8

const (
	CompressionNone CompressionAlgo = iota
	CompressionGzip
	CompressionDeflate
)

func (a CompressionAlgo) Valid() bool {
	return a == CompressionNone || a == CompressionGzip || a == CompressionDeflate
}

// EncryptionAlgo tags the symmetric encryption applied to a Frame.
type EncryptionAlgo uint8

const (
	EncryptionNone EncryptionAlgo = iota
	EncryptionAES256CBC
)

func (a EncryptionAlgo) Valid() bool {
	return a == EncryptionNone || a == EncryptionAES256CBC
}

// Version is the only wire version this codec understands.
const Version uint8 = 1

// Frame is the unit of transfer. Immutable once built.
type Frame struct {
	Type        MessageType
	Payload     []byte
	Metadata    KVMap
	ExtraInfo   KVMap
	Compression CompressionAlgo
	Encryption  EncryptionAlgo
}

// KVMap is an insertion-ordered string->string mapping, serialized on the
// wire as length-prefixed UTF-8 key/value pairs in insertion order (spec.md
// §4.1, encoding step 1). A plain map loses insertion order, so KVMap keeps
// keys and values in parallel slices.
type KVMap struct {
	keys   []string
	values []string
}

// NewKVMap builds a KVMap from a regular map for callers that don't care
// about a specific wire order; iteration order of a Go map is random, so
// callers who need determinism should use Set in the order they want.
func NewKVMap(m map[string]string) KVMap {
	var kv KVMap
	for k, v := range m {
		kv.Set(k, v)
	}
	return kv
}

// Set appends or updates a key, preserving first-insertion order.
func (kv *KVMap) Set(key, value string) {
	for i, k := range kv.keys {
		if k == key {
			kv.values[i] = value
			return
		}
	}
	kv.keys = append(kv.keys, key)
	kv.values = append(kv.values, value)
}

// Get returns the value for key and whether it was present.
func (kv KVMap) Get(key string) (string, bool) {
	for i, k := range kv.keys {
		if k == key {
			return kv.values[i], true
		}
	}
	return "", false
}

// Len reports the number of entries.
func (kv KVMap) Len() int { return len(kv.keys) }

// Range calls fn for every key/value pair in insertion order.
func (kv KVMap) Range(fn func(key, value string)) {
	for i, k := range kv.keys {
		fn(k, kv.values[i])
	}
}

// ToMap copies the entries into a regular map, for callers that surface
// metadata verbatim to a user handler (spec.md §6).
func (kv KVMap) ToMap() map[string]string {
	m := make(map[string]string, len(kv.keys))
	kv.Range(func(k, v string) { m[k] = v })
	return m
}

// Equal reports whether kv and other hold the same entries in the same
// order. Exported for test assertions built on top of go-cmp.
func (kv KVMap) Equal(other KVMap) bool {
	if len(kv.keys) != len(other.keys) {
		return false
	}
	for i := range kv.keys {
		if kv.keys[i] != other.keys[i] || kv.values[i] != other.values[i] {
			return false
		}
	}
	return true
}

// ExtraInfoType is the well-known ExtraInfo key naming an Object's
// serialized type (spec.md §4.3 item 4).
const ExtraInfoType = "Type"

// ExtraInfoDynamicCallback is the well-known ExtraInfo key naming a
// registered dynamic-callback handler (spec.md §4.3 item 3, glossary).
const ExtraInfoDynamicCallback = "DynamicCallback"
