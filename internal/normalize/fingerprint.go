package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	minFingerprintLength      = 50
	minTitleFingerprintLength = 5
	fingerprintTokenCap       = 100
)

// Fingerprint hashes the sorted salient vocabulary of a passage into a
// 32-hex-character key. Sorting the tokens before hashing makes the key
// order-independent. Content shorter than 50 characters is too unreliable
// to fingerprint and yields "".
func Fingerprint(content string) string {
	if utf8.RuneCountInString(content) < minFingerprintLength {
		return ""
	}

	cleaned := replaceNonWord(strings.ToLower(content), ' ')
	tokens := strings.Fields(cleaned)
	kept := tokens[:0]
	for _, token := range tokens {
		if utf8.RuneCountInString(token) > 2 {
			kept = append(kept, token)
		}
	}
	sort.Strings(kept)
	if len(kept) > fingerprintTokenCap {
		kept = kept[:fingerprintTokenCap]
	}

	sum := sha256.Sum256([]byte(strings.Join(kept, " ")))
	return hex.EncodeToString(sum[:])[:32]
}

// TitleFingerprint hashes a cleaned title into a 16-hex-character key.
// Titles shorter than 5 characters yield "".
func TitleFingerprint(title string) string {
	if utf8.RuneCountInString(title) < minTitleFingerprintLength {
		return ""
	}

	cleaned := strings.TrimSpace(stripNonWord(strings.ToLower(title)))
	sum := sha256.Sum256([]byte(cleaned))
	return hex.EncodeToString(sum[:])[:16]
}

// CleanText lowercases a string and replaces everything outside word
// characters, whitespace, and CJK ideographs with spaces. Used to pre-clean
// titles before similarity scoring.
func CleanText(s string) string {
	return strings.Join(strings.Fields(replaceNonWord(strings.ToLower(s), ' ')), " ")
}

// keepRune reports whether a rune survives token cleaning: word characters,
// whitespace, and CJK ideographs.
func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v':
		return true
	case r >= 0x4e00 && r <= 0x9fa5:
		return true
	default:
		return false
	}
}

func replaceNonWord(s string, replacement rune) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if keepRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(replacement)
		}
	}
	return b.String()
}

func stripNonWord(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
