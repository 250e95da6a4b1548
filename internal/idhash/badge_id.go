package idhash

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"pokeyen-ledger/internal/domain"
)

// ComputeBadgeID computes a badge_id using SHA256.
// Formula: SHA256(species|source|created_at|nonce) where nonce is 8 random
// bytes, so two badges minted in the same millisecond stay distinct.
// Returns hex-encoded hash (64 characters).
func ComputeBadgeID(species string, source domain.BadgeSource, createdAt int64) string {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("idhash: read random nonce: %v", err))
	}

	data := fmt.Sprintf("%s|%s|%d|%s",
		species,
		string(source),
		createdAt,
		hex.EncodeToString(nonce),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
