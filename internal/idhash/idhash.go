// Package idhash computes the deterministic identifiers used for
// de-duplication and idempotent persistence.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// derivedPrefix marks identifiers derived from a source URL rather than
// assigned by the upstream.
const derivedPrefix = "url"

// ComputeOpportunityID computes a deterministic opportunity_id.
// Formula: SHA256(user_id|source_id), hex-encoded (64 characters).
// Re-submitting the same source for the same user always maps to the same row.
func ComputeOpportunityID(userID, sourceID string) string {
	data := fmt.Sprintf("%s|%s", userID, sourceID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// DeriveSourceID builds a source identifier from the source URL for
// candidates whose upstream did not assign one. The digest is base58-encoded
// so derived IDs stay short and copy-paste safe.
func DeriveSourceID(sourceURL string) string {
	normalized := strings.TrimRight(strings.TrimSpace(sourceURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return derivedPrefix + "-" + base58.Encode(hash[:16])
}
