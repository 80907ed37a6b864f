package models

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// The integrity digest is computed once at creation over the fields that can
// never change afterwards, matching the behavior external verifiers already
// depend on. The chain digest is a separate, additive hash chain extended on
// every mutation so the full history is tamper-evident without a ledger
// substrate: chain' = SHA3-256(chain || label || parts...).

// CreationDigest hashes the immutable creation-time identity of a shipment.
func CreationDigest(trackingNumber, originAddress, destinationAddress string) string {
	return digest("", "created", trackingNumber, originAddress, destinationAddress)
}

// ExtendChain produces the next chain head for a mutation.
func ExtendChain(head, label string, parts ...string) string {
	return digest(head, label, parts...)
}

func digest(head, label string, parts ...string) string {
	h := sha3.New256()
	h.Write([]byte(head))
	h.Write([]byte{0})
	h.Write([]byte(label))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
