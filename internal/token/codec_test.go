package token

import (
	"errors"
	"strings"
	"testing"

	"github.com/smartattend/backend/internal/domain"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	codec := NewCodec("test-secret")

	tests := []struct {
		name    string
		payload Payload
	}{
		{
			name: "typical payload",
			payload: Payload{
				SessionID: "SESS_20260108093000_A1B2C3",
				ClassID:   "CSE-3A",
				RoomID:    "LH-204",
				SubjectID: "CS301",
				Sequence:  42,
				IssuedAt:  1767000000,
			},
		},
		{
			name: "first rotation",
			payload: Payload{
				SessionID: "SESS_1",
				ClassID:   "UNKNOWN",
				RoomID:    "UNKNOWN",
				SubjectID: "UNKNOWN",
				Sequence:  1,
				IssuedAt:  1,
			},
		},
		{
			name:    "zero values",
			payload: Payload{},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			tok, err := codec.Encode(test.payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !strings.HasPrefix(tok, TokenPrefix+"_") {
				t.Errorf("token missing prefix: %q", tok)
			}
			if tok[len(tok)-SignatureLength-1] != '_' {
				t.Errorf("token missing signature separator: %q", tok)
			}

			got, err := codec.Decode(tok)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != test.payload {
				t.Errorf("round trip: got %+v, want %+v", got, test.payload)
			}
		})
	}
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	t.Parallel()
	codec := NewCodec("test-secret")
	tok, err := codec.Encode(Payload{SessionID: "SESS_X", Sequence: 1, IssuedAt: 1767000000})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Flip every single character of the signature segment in turn.
	sigStart := len(tok) - SignatureLength
	for i := sigStart; i < len(tok); i++ {
		mutated := []byte(tok)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		_, err := codec.Decode(string(mutated))
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Errorf("flip at %d: got %v, want ErrInvalidSignature", i, err)
		}
	}
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	t.Parallel()
	codec := NewCodec("test-secret")
	tok, err := codec.Encode(Payload{SessionID: "SESS_X", Sequence: 7, IssuedAt: 1767000000})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Altering any payload byte invalidates the signature over it.
	payloadStart := len(TokenPrefix) + 1
	payloadEnd := len(tok) - SignatureLength - 1
	for i := payloadStart; i < payloadEnd; i++ {
		mutated := []byte(tok)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if _, err := codec.Decode(string(mutated)); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Errorf("flip at %d: got %v, want ErrInvalidSignature", i, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()
	codec := NewCodec("test-secret")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separators", "QRabcdef"},
		{"two segments", "QR_abcdef"},
		{"four segments", "QR_a_b_c"},
		{"wrong prefix", "TK_abcdef_0123456789abcdef"},
		{"missing signature separator", "QR_payloadxx0123456789abcdef"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := codec.Decode(test.token); !errors.Is(err, domain.ErrMalformedToken) {
				t.Errorf("got %v, want ErrMalformedToken", err)
			}
		})
	}
}

func TestDecodeWrongKey(t *testing.T) {
	t.Parallel()
	tok, err := NewCodec("key-one").Encode(Payload{SessionID: "SESS_X", IssuedAt: 1767000000})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := NewCodec("key-two").Decode(tok); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("got %v, want ErrInvalidSignature", err)
	}
}
