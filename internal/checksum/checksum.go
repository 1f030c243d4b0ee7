// Package checksum provides the content fingerprint used for cache
// invalidation and ephemeral task identity.
package checksum

import (
	"hash/fnv"
	"strconv"
)

// Sum returns the hex-encoded FNV-64a digest of data. The fingerprint is
// deliberately non-cryptographic: it only needs to be fast and stable, it is
// never a security boundary.
func Sum(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}

// SumString is Sum over a string.
func SumString(s string) string {
	return Sum([]byte(s))
}
