// Package idgen generates record identifiers.
//
// Internal ids are UUIDv7: globally unique, immutable, and time-ordered so
// a directory of record files lists in creation order. Short ids are the
// human-facing handle: project prefix plus a base36 hash of the creation
// content, stable once assigned.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// DefaultShortIDLength is the base36 code length used for new short ids.
const DefaultShortIDLength = 4

// NewInternalID returns a fresh time-sortable internal id.
func NewInternalID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating internal id: %w", err)
	}
	return id.String(), nil
}

// ShortID creates the human-facing id for a record: <prefix>-<base36 code>.
// The code hashes the creation content so identical input produces identical
// ids on every clone. The nonce handles the rare hash collision: callers
// retry with nonce+1 until the id is unused.
func ShortID(prefix, title, creator string, createdAt time.Time, length, nonce int) string {
	content := fmt.Sprintf("%s|%s|%d|%d", title, creator, createdAt.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))

	// Bytes of entropy needed for the requested base36 width.
	var numBytes int
	switch {
	case length <= 3:
		numBytes = 2
	case length <= 6:
		numBytes = 4
	default:
		numBytes = 5
	}

	return fmt.Sprintf("%s-%s", prefix, encodeBase36(hash[:numBytes], length))
}

// encodeBase36 converts bytes to a zero-padded base36 string of exactly
// length characters, keeping the least significant digits on overflow.
func encodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var b strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		b.WriteByte(chars[i])
	}

	s := b.String()
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}
	if len(s) > length {
		s = s[len(s)-length:]
	}
	return s
}
