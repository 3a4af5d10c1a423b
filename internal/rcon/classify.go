package rcon

import (
	"regexp"
	"strconv"
	"strings"
)

var failureMarkers = []string{"error", "failed", "unknown"}

// ClassifySuccess applies the response rules: a response succeeds unless it
// is empty or contains a recognizable failure marker, case-insensitively.
func ClassifySuccess(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, m := range failureMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}

// blocksRe matches the first integer before or after the token "block(s)".
var blocksRe = regexp.MustCompile(`(?i)(?:(\d+)[^\d]{0,32}?blocks?\b|blocks?\b[^\d]{0,32}?(\d+))`)

// ParseBlocksAffected extracts the affected-block count from a fill
// response. Nil means no parseable count, which is not a failure.
func ParseBlocksAffected(raw string) *int64 {
	m := blocksRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

const gameruleMarker = "currently set to:"

// ParseGameruleValue extracts the value following "currently set to:".
func ParseGameruleValue(raw string) string {
	idx := strings.Index(strings.ToLower(raw), gameruleMarker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(raw[idx+len(gameruleMarker):])
}
