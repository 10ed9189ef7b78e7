package utils

import (
	"strconv"
	"strings"
)

// ParseUint64Set parses a comma-separated list of non-negative integers
// (e.g. "1,2,10") into a deduplicated set. Blank entries are skipped;
// malformed entries are dropped rather than failing the whole parse, since
// callers treat an empty resulting set as the error condition to check.
func ParseUint64Set(csv string) map[uint64]struct{} {
	out := make(map[uint64]struct{})
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}
		out[n] = struct{}{}
	}
	return out
}
