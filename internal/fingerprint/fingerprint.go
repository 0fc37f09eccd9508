// Package fingerprint derives the deterministic 64-bit order key used to
// index the order-state store: an FNV-1a hash of the ClOrdID bytes.
package fingerprint

import "hash/fnv"

// Empty is the reserved "no fingerprint" sentinel (spec.md §3). A valid
// ClOrdID must never hash to this value; Of() remaps the rare collision.
const Empty uint64 = 0

// Of computes the FNV-1a 64-bit fingerprint of the given ClOrdID bytes,
// remapping the reserved-zero collision to a fixed non-zero overflow value
// so that a legitimate identifier can never be mistaken for "empty".
func Of(clOrdID []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(clOrdID) // hash.Hash64.Write never errors
	v := h.Sum64()
	if v == Empty {
		// FNV-1a offset basis XORed with prime; astronomically unlikely to
		// also collide, but deterministic and stable across runs/replays.
		return 14695981039346656037 ^ 1099511628211
	}
	return v
}
