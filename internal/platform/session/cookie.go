// Package session provides HMAC tamper-sealing for identity cookies. Values
// are signed, not encrypted: the cookie payload stays readable but any
// modification invalidates the seal.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrBadSignature = errors.New("cookie signature is invalid")

type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("secret is required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) mac(value []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(value)
	return h.Sum(nil)
}

// Sign appends an HMAC-SHA256 seal to value and encodes the pair as
// unpadded base64url, suitable for a cookie value.
func (s *Signer) Sign(value string) string {
	raw := []byte(value)
	return base64.RawURLEncoding.EncodeToString(append(raw, s.mac(raw)...))
}

// Unsign decodes token and verifies its seal, returning the original value.
func (s *Signer) Unsign(token string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", ErrBadSignature
	}
	if len(data) <= sha256.Size {
		return "", ErrBadSignature
	}
	raw, seal := data[:len(data)-sha256.Size], data[len(data)-sha256.Size:]
	if !hmac.Equal(s.mac(raw), seal) {
		return "", ErrBadSignature
	}
	return string(raw), nil
}
