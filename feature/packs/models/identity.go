package models

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// ComputePackID derives the deterministic pack identifier. The same physical
// seat group always yields the same identifier across independent generation
// runs, which is what makes diffing by identifier equality meaningful.
func ComputePackID(prefix, source, performanceID, level, zone, row string, seatKeys []string) string {
	sorted := make([]string, len(seatKeys))
	copy(sorted, seatKeys)
	sort.Strings(sorted)

	raw := strings.Join([]string{source, performanceID, level, zone, row, strings.Join(sorted, ",")}, "|")
	sum := md5.Sum([]byte(raw))
	return prefix + "_pk_" + hex.EncodeToString(sum[:])[:16]
}
