package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"token-ledger/internal/domain"
)

// ComputeActionDigest computes a deterministic digest of an applied action using SHA256.
// Formula: SHA256(sequence|contract|name|auth1,auth2,...|data)
// Returns hex-encoded hash (64 characters).
func ComputeActionDigest(
	sequence uint64,
	contract domain.AccountID,
	name string,
	authorization []domain.AccountID,
	data []byte,
) string {
	auth := make([]string, len(authorization))
	for i, a := range authorization {
		auth[i] = string(a)
	}

	payload := fmt.Sprintf("%d|%s|%s|%s|%s",
		sequence,
		contract,
		name,
		strings.Join(auth, ","),
		data,
	)

	hash := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(hash[:])
}
