package util

import (
	"strings"
)

// Truncate returns at most n leading bytes of s.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ContainsAnyFold reports whether s contains any of the needles,
// case-insensitively.
func ContainsAnyFold(s string, needles []string) bool {
	ls := strings.ToLower(s)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(ls, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// NormalizeSymbol upper-cases and strips common pair suffixes so that
// "xaiusdt" and "XAI/USDT" key the same aggregate.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	for _, suffix := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}
