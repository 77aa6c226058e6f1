package prediction

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint derives the deterministic cache key for a request.
// It incorporates the sorted sport set, the normalized query text, the
// active strategy identifier, and the user ID when the strategy is
// user-dependent - two requests differing only by strategy must not collide.
func Fingerprint(queryText string, sports []Sport, strategyID string, userID string) string {
	names := make([]string, 0, len(sports))
	for _, s := range sports {
		names = append(names, string(s))
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(NormalizeQuery(queryText)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(names, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strategyID))
	h.Write([]byte{0})
	h.Write([]byte(userID))

	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeQuery canonicalizes query text so that trivially different
// spellings of the same question share a fingerprint.
func NormalizeQuery(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}
