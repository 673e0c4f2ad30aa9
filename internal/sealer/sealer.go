// Package sealer turns structured records into the encrypted text form carried by
// scan QR codes: base64(IV || AES-128-CBC(PKCS#7(json))).
package sealer

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/atinyakov/binfixture/internal/models"
)

// KeySize is the length of the pre-shared AES-128 key.
const KeySize = 16

// Sealer encrypts records with a fixed pre-shared key and a fresh IV per call.
// It keeps no state between calls and is safe for concurrent use.
type Sealer struct {
	block cipher.Block
	rand  io.Reader
}

// Option customizes a Sealer.
type Option func(*Sealer)

// WithRandom replaces the IV source. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(s *Sealer) { s.rand = r }
}

// New creates a Sealer for key, which must be exactly KeySize bytes.
func New(key []byte, opts ...Option) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, encryptionError("init", errors.Newf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, encryptionError("init", err)
	}
	s := &Sealer{block: block, rand: rand.Reader}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Encode serializes record to canonical JSON and encrypts it.
func (s *Sealer) Encode(ctx context.Context, record any) (string, error) {
	plain, err := models.CanonicalJSON(record)
	if err != nil {
		return "", encryptionError("serialize", err)
	}
	return s.EncodeBytes(ctx, plain)
}

// EncodeBytes encrypts plain under a freshly drawn IV and returns
// base64(IV || ciphertext).
func (s *Sealer) EncodeBytes(ctx context.Context, plain []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", encryptionError("encrypt", err)
	}

	bs := s.block.BlockSize()
	out := make([]byte, bs, bs+len(plain)+bs)
	if _, err := io.ReadFull(s.rand, out[:bs]); err != nil {
		return "", encryptionError("iv", err)
	}

	padded := Pad(plain, bs)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, out[:bs]).CryptBlocks(ct, padded)
	out = append(out, ct...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses EncodeBytes the way the receiving firmware does: strip the leading
// IV, decrypt, remove padding.
func (s *Sealer) Open(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	bs := s.block.BlockSize()
	if len(raw) < 2*bs || len(raw)%bs != 0 {
		return nil, errors.Wrapf(ErrMalformed, "length %d", len(raw))
	}
	iv, ct := raw[:bs], raw[bs:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(plain, ct)
	return Unpad(plain, bs)
}

// Pad applies PKCS#7 padding. Block-aligned input gains a full block.
func Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad strips and validates PKCS#7 padding.
func Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}
