// Package apikey issues and verifies API keys.
//
// A key is "sf_" followed by 32 random bytes in unpadded base64url. Only the
// hex SHA-256 of the key is stored, under a unique index, so verification is
// one indexed lookup. The raw key is returned once by Issue and is never
// stored or logged; logs carry the display prefix ("sf_" plus the first eight
// characters of the body) instead.
//
// Verify rejects malformed input before any storage access and treats
// inactive keys as invalid even when the hash matches. Storage failures are
// reported as an invalid credential with reason "unavailable".
package apikey
