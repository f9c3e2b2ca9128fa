package util

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// HashFields joins the given fields and returns a stable FNV-1a 64-bit hex
// digest. Used for dedup keys and route IDs; not cryptographic.
func HashFields(fields ...string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(fields, "|")))
	return strconv.FormatUint(h.Sum64(), 16)
}
