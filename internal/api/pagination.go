package api

import "net/http"

// pageEnvelope is the uniform shape of every paginated list response.
type pageEnvelope struct {
	Items  any   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = parsePositiveInt(r.URL.Query().Get("limit"), defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = parseNonNegativeInt(r.URL.Query().Get("offset"), 0)
	return limit, offset
}

func parsePositiveInt(raw string, fallback int) int {
	n, ok := parseDigits(raw)
	if !ok || n <= 0 {
		return fallback
	}
	return n
}

func parseNonNegativeInt(raw string, fallback int) int {
	n, ok := parseDigits(raw)
	if !ok {
		return fallback
	}
	return n
}

func parseDigits(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	var n int
	for _, ch := range raw {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	return n, true
}
