package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord separates record hashes from any other hash the store keeps.
// The version suffix leaves room for a future algorithm change.
const DomainRecord = "brainway/record/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content hash of r's canonical encoding. Two records with
// equal persisted state always hash equal.
func Hash(r Record) (string, error) {
	data, err := Marshal(r)
	if err != nil {
		return "", fmt.Errorf("hash record: %w", err)
	}
	return hashWithDomain(DomainRecord, data), nil
}

// HashBytes hashes an already-encoded record payload.
func HashBytes(data []byte) string {
	return hashWithDomain(DomainRecord, data)
}
