package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// idLength is the number of hex characters kept from the digest.
const idLength = 16

// Normalize joins the question and answer after lowercasing, trimming and
// normalizing line endings, so cosmetic edits do not change a card's ID.
func Normalize(question, answer string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}
	// Newline separator keeps "ab"+"c" and "a"+"bc" apart.
	return normalizePart(question) + "\n" + normalizePart(answer)
}

// ID derives a stable card identifier for cards authored without one.
func ID(question, answer string) string {
	sum := sha256.Sum256([]byte(Normalize(question, answer)))
	return hex.EncodeToString(sum[:])[:idLength]
}
