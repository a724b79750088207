package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const (
	PairingCodeLength = 8
	pairingCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Digits and uppercase letters without 0, 1, I and O.
	DisplayCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	sessionIDPrefix = "session"
)

// GeneratePairingCode returns a random code of PairingCodeLength characters
// drawn from [A-Z0-9] that contains at least one letter and one digit.
func GeneratePairingCode() (string, error) {
	for {
		code, err := randomString(pairingCodeChars, PairingCodeLength)
		if err != nil {
			return "", err
		}
		if isMixed(code) {
			return code, nil
		}
	}
}

// RandomDisplayCode returns a fully random XXXX-XXXX code over DisplayCodeChars.
func RandomDisplayCode() (string, error) {
	raw, err := randomString(DisplayCodeChars, 8)
	if err != nil {
		return "", err
	}
	return formatDisplayCode(raw), nil
}

// DeriveDisplayCode maps a seed to a stable XXXX-XXXX code. Each byte of the
// seed's hash (one nibble pair) selects a character of DisplayCodeChars.
func DeriveDisplayCode(seed string) string {
	sum := blake2b.Sum256([]byte(seed))

	raw := make([]byte, 8)
	for i := range raw {
		raw[i] = DisplayCodeChars[int(sum[i])%len(DisplayCodeChars)]
	}
	return formatDisplayCode(string(raw))
}

// NewSessionID returns "session_<unix millis>_<8 hex chars>". It is unique for
// practical purposes but not unpredictable.
func NewSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", sessionIDPrefix, time.Now().UnixMilli(), suffix)
}

func formatDisplayCode(raw string) string {
	return fmt.Sprintf("%s-%s", raw[:4], raw[4:])
}

func randomString(alphabet string, length int) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

func isMixed(code string) bool {
	var hasLetter, hasDigit bool
	for _, c := range code {
		switch {
		case c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
