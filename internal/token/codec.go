package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/smartattend/backend/internal/domain"
)

// TokenPrefix is the fixed prefix of every signed token on the wire.
const TokenPrefix = "QR"

// SignatureLength is the number of base64url characters the HMAC digest is
// truncated to. Kept short so the token fits comfortably in a QR code.
const SignatureLength = 16

// Payload is the signed content of a rotating token. Field order matters:
// json.Marshal emits struct fields in declaration order, and the signature
// covers the encoded bytes, so any consumer must reproduce sid, cid, rid,
// sub, seq, ts exactly.
type Payload struct {
	SessionID string `json:"sid"`
	ClassID   string `json:"cid"`
	RoomID    string `json:"rid"`
	SubjectID string `json:"sub"`
	Sequence  int64  `json:"seq"`
	IssuedAt  int64  `json:"ts"`
}

// Codec signs and verifies rotating tokens. Stateless; safe for concurrent
// use.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serializes and signs a payload.
// Wire format: QR_<base64url(JSON payload, no padding)>_<first 16 chars of
// base64url(HMAC-SHA256 over the encoded payload)>.
func (c *Codec) Encode(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return TokenPrefix + "_" + encoded + "_" + c.sign(encoded), nil
}

// Decode verifies a token's structure and signature and returns its payload.
// Signature and payload failures are distinct errors for diagnostics, but
// callers must treat them as equally invalid.
//
// Parsing is positional rather than a split on "_": base64url output can
// itself contain underscores, so the payload is whatever sits between the
// fixed prefix and the fixed-length signature.
func (c *Codec) Decode(token string) (Payload, error) {
	// prefix + "_" + at least one payload char + "_" + signature
	if len(token) < len(TokenPrefix)+1+1+1+SignatureLength {
		return Payload{}, domain.ErrMalformedToken
	}
	if !strings.HasPrefix(token, TokenPrefix+"_") {
		return Payload{}, domain.ErrMalformedToken
	}
	sigSep := len(token) - SignatureLength - 1
	if token[sigSep] != '_' {
		return Payload{}, domain.ErrMalformedToken
	}
	encoded := token[len(TokenPrefix)+1 : sigSep]
	sig := token[sigSep+1:]

	if !hmac.Equal([]byte(sig), []byte(c.sign(encoded))) {
		return Payload{}, domain.ErrInvalidSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, domain.ErrMalformedPayload
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, domain.ErrMalformedPayload
	}
	return p, nil
}

func (c *Codec) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encodedPayload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return sig[:SignatureLength]
}
