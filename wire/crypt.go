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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Salt is the fixed library salt spec.md §4.1 calls for (step 4:
// "PBKDF2-HMAC-SHA256, 10 000 iterations, fixed library salt"). It is not a
// secret; the passphrase supplies the entropy.
const pbkdf2Salt = "xtaci/tcplink-wire-v1"

const (
	pbkdf2Iterations = 10000
	aes256KeyLen     = 32
	aesBlockSize     = aes.BlockSize
)

// deriveKey turns a passphrase into a 32-byte AES-256 key, exactly the
// golang.org/x/crypto/pbkdf2 call the teacher's server/main.go and
// client/main.go both make before selecting a block cipher, but with the
// iteration count and salt spec.md §4.1 mandates rather than the teacher's
// 4096-iteration KCP default.
func deriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(pbkdf2Salt), pbkdf2Iterations, aes256KeyLen, sha256.New)
}

// encryptAES256CBC derives a key from passphrase, generates a random IV,
// PKCS#7-pads body to a block boundary, and prepends the IV to the
// ciphertext (spec.md §4.1 step 4).
func encryptAES256CBC(body []byte, passphrase string) ([]byte, error) {
	key := deriveKey(passphrase)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes.NewCipher")
	}

	padded := pkcs7Pad(body, aesBlockSize)
	iv := make([]byte, aesBlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, errors.Wrap(err, "generate IV")
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(iv)+len(ciphertext))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return out, nil
}

// decryptAES256CBC reverses encryptAES256CBC. A wrong passphrase yields
// garbage padding, which surfaces as a padding error here; an input that is
// not a multiple of the block size surfaces as a length error. The caller
// converts either to MalformedFrame.
func decryptAES256CBC(data []byte, passphrase string) ([]byte, error) {
	if len(data) < aesBlockSize || len(data)%aesBlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the AES block size")
	}
	key := deriveKey(passphrase)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes.NewCipher")
	}

	iv, ciphertext := data[:aesBlockSize], data[aesBlockSize:]
	if len(ciphertext) == 0 {
		return nil, errors.New("empty ciphertext")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aesBlockSize {
		return nil, errors.New("invalid PKCS#7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid PKCS#7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
