package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ResumptionTokenBytes is the entropy of a resumption token. Tokens gate
// access to a user's failed assessment snapshot, so they must be
// unguessable rather than merely unique.
const ResumptionTokenBytes = 32

// GenerateResumptionToken returns an unguessable token for resuming a
// failed assessment. Uses crypto/rand, not math/rand.
func GenerateResumptionToken() (string, error) {
	buf := make([]byte, ResumptionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate resumption token: %w", err)
	}
	return "fa_" + hex.EncodeToString(buf), nil
}
