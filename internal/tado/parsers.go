package tado

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/thatsimonsguy/tado-bridge/internal/model"
)

var (
	quotaPattern     = regexp.MustCompile(`q=(\d+)`)
	remainingPattern = regexp.MustCompile(`r=(\d+)`)
)

// ParseRateLimitHeaders extracts quota stats from the RateLimit-Policy and
// RateLimit response headers. Returns false if neither header carried a value.
func ParseRateLimitHeaders(h http.Header) (model.RateLimit, bool) {
	var rl model.RateLimit
	var found bool

	if m := quotaPattern.FindStringSubmatch(h.Get("RateLimit-Policy")); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			rl.Limit = v
			found = true
		}
	}
	if m := remainingPattern.FindStringSubmatch(h.Get("RateLimit")); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			rl.Remaining = v
			found = true
		}
	}
	return rl, found
}
