package uid

import (
	"crypto/rand"
	"math/big"
	"time"
)

const suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSessionID builds an attendance session identifier of the form
// SESS_<timestamp>_<random>, e.g. SESS_20260108093000_A1B2C3.
func GenerateSessionID(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixAlphabet))))
		if err != nil {
			panic(err)
		}
		suffix[i] = suffixAlphabet[n.Int64()]
	}
	return "SESS_" + now.UTC().Format("20060102150405") + "_" + string(suffix)
}

// GenerateAuthSessionID generates a cryptographically secure random login
// session identifier.
func GenerateAuthSessionID() (string, error) {
	return randomHex(32)
}
