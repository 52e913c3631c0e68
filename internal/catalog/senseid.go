package catalog

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// NormalizeSense joins the sense's part of speech and definition after
// trimming, lowercasing and normalizing line endings, so that cosmetic edits
// to a definition keep the same id.
func NormalizeSense(s Sense) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.Join(strings.Fields(p), " ")
	}

	// Joined with a newline so "verb"+"al..." cannot collide with "verbal"+"...".
	return normalizePart(s.POS) + "\n" + normalizePart(s.Definition)
}

// SenseID derives a stable id for a sense that has none.
func SenseID(s Sense) string {
	sum := sha256.Sum256([]byte(NormalizeSense(s)))
	return fmt.Sprintf("s-%x", sum[:6])
}
