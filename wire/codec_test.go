package wire

import (
	"bytes"
	"log"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func roundTrip(t *testing.T, c Codec, f Frame) Frame {
	t.Helper()
	encoded, err := c.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, err := ParseHeader(encoded[:HeaderPrefixLen])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	off := HeaderPrefixLen
	wordsLen := h.LengthWordCount() * 4
	h, err = ParseLengthWords(h, encoded[off:off+wordsLen])
	if err != nil {
		t.Fatalf("ParseLengthWords: %v", err)
	}
	off += wordsLen
	body := encoded[off : off+int(h.BodyLen())]
	if off+int(h.BodyLen()) != len(encoded) {
		t.Fatalf("leftover bytes after body: wrote %d, consumed %d", len(encoded), off+int(h.BodyLen()))
	}
	decoded, err := c.Decode(h, body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return decoded
}

func TestFrameRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 1 << 20}
	codec := Codec{Passphrase: "correct horse battery staple"}

	for _, msgType := range []MessageType{Message, Object, Bytes, Auth, KeepAlive} {
		for _, comp := range []CompressionAlgo{CompressionNone, CompressionGzip, CompressionDeflate} {
			for _, enc := range []EncryptionAlgo{EncryptionNone, EncryptionAES256CBC} {
				for _, size := range sizes {
					msgType, comp, enc, size := msgType, comp, enc, size
					t.Run("", func(t *testing.T) {
						payload := bytes.Repeat([]byte{0xAB}, size)
						f := Frame{
							Type:        msgType,
							Payload:     payload,
							Metadata:    NewKVMap(map[string]string{"room": "lobby"}),
							ExtraInfo:   NewKVMap(map[string]string{ExtraInfoType: "string"}),
							Compression: comp,
							Encryption:  enc,
						}
						got := roundTrip(t, codec, f)
						if !bytes.Equal(got.Payload, f.Payload) {
							t.Fatalf("payload mismatch: got %d bytes, want %d", len(got.Payload), len(f.Payload))
						}
						if !f.Metadata.Equal(got.Metadata) {
							t.Fatalf("metadata mismatch: %s", cmp.Diff(f.Metadata.ToMap(), got.Metadata.ToMap()))
						}
						if !f.ExtraInfo.Equal(got.ExtraInfo) {
							t.Fatalf("extra info mismatch: %s", cmp.Diff(f.ExtraInfo.ToMap(), got.ExtraInfo.ToMap()))
						}
					})
				}
			}
		}
	}
}

func TestEncryptionWrongPassphraseFails(t *testing.T) {
	f := Frame{Type: Message, Payload: []byte("secret"), Encryption: EncryptionAES256CBC}
	encoded, err := Codec{Passphrase: "alice-pass"}.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, err := ParseHeader(encoded[:HeaderPrefixLen])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	off := HeaderPrefixLen
	wordsLen := h.LengthWordCount() * 4
	h, err = ParseLengthWords(h, encoded[off:off+wordsLen])
	if err != nil {
		t.Fatalf("ParseLengthWords: %v", err)
	}
	off += wordsLen
	body := encoded[off : off+int(h.BodyLen())]

	if _, err := (Codec{Passphrase: "bob-different-pass"}).Decode(h, body); err == nil {
		t.Fatal("expected decode with wrong passphrase to fail")
	}
}

func TestEncryptionWithoutPassphraseWarnsAndSendsPlaintext(t *testing.T) {
	f := Frame{Type: Message, Payload: []byte("hello"), Encryption: EncryptionAES256CBC}
	var logBuf bytes.Buffer
	encoded, err := Codec{Logger: log.New(&logBuf, "", 0)}.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if logBuf.Len() == 0 {
		t.Fatal("expected a warning to be logged when no passphrase is configured")
	}
	h, err := ParseHeader(encoded[:HeaderPrefixLen])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.encrypted() {
		t.Fatal("expected frame to be sent unencrypted when no passphrase is configured")
	}
}

func TestOversizePayloadBodyLenExceedsMaxFrameBytes(t *testing.T) {
	h := Header{Version: Version, Type: Message, PayloadLen: DefaultMaxFrameBytes + 1}
	if h.BodyLen() <= DefaultMaxFrameBytes {
		t.Fatalf("expected BodyLen to exceed MaxFrameBytes, got %d", h.BodyLen())
	}
}

func TestUnsupportedVersionRejected(t *testing.T) {
	buf := make([]byte, HeaderPrefixLen)
	buf[0] = 2 // unsupported version
	if _, err := ParseHeader(buf); err == nil {
		t.Fatal("expected unsupported version to be rejected")
	}
}

func TestAuthRoundTrip(t *testing.T) {
	id := Identity{Name: "alice", GUID: "g-1", UserDomain: "WORKGROUP", OSVersion: "linux"}
	got, err := DecodeAuth(EncodeAuth(id))
	if err != nil {
		t.Fatalf("DecodeAuth: %v", err)
	}
	if got != id {
		t.Fatalf("got %+v, want %+v", got, id)
	}
}

func TestDecodeAuthRejectsWrongFieldCount(t *testing.T) {
	if _, err := DecodeAuth([]byte("alice|g-1|WORKGROUP")); err == nil {
		t.Fatal("expected malformed auth error")
	}
}
