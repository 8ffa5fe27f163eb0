// Package idhash derives deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-trade-sentinel/internal/domain"
)

// ComputeEventID computes a deterministic event id using SHA256.
// Formula: SHA256(event_type|token_id|correlation_id|seq|discriminator)
// Returns hex-encoded hash (64 characters).
//
// The same decision re-published for the same sweep yields the same id, so
// journals reject the replay as a duplicate.
func ComputeEventID(
	eventType domain.EventType,
	tokenID string,
	correlationID string,
	seq int,
	discriminator string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%s",
		string(eventType),
		tokenID,
		correlationID,
		seq,
		discriminator,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
