package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Fingerprint derives the stable dedup key for a normalized row within one
// bank account. The reference participates when present so two same-day
// purchases at the same merchant stay distinct; without one the description
// stands in.
func Fingerprint(row NormalizedRow, accountID uuid.UUID) string {
	discriminator := row.Reference
	if discriminator == "" {
		discriminator = row.Description
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", row.PostedAt.String(), discriminator, accountID)))
	return "fp_" + hex.EncodeToString(sum[:])[:16]
}
