// Package checksum fingerprints stored posts. The fingerprint doubles as the
// HTTP entity tag used for optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether want is empty or equals the digest of data.
func Matches(data []byte, want string) bool {
	return want == "" || want == Sum(data)
}

// ETag formats a digest as a strong entity tag.
func ETag(sum string) string {
	return strconv.Quote(sum)
}

// ParseETag extracts the digest from an If-Match style header value. Weak
// tags and bare digests are accepted; "*" and lists yield "".
func ParseETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	if v == "*" || strings.Contains(v, ",") {
		return ""
	}
	return strings.Trim(v, `"`)
}
