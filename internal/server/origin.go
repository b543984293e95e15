// Package server normalizes and validates HTTP origins for WebSocket upgrade
// requests against the configured allow-list.
package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
	log      zerolog.Logger
}

// newOriginChecker builds the upgrader's CheckOrigin function. A "*" entry
// (the default configuration) admits every origin, matching the relay's open
// cross-origin contract.
func newOriginChecker(origins []string, logger zerolog.Logger) func(*http.Request) bool {
	checker := &originChecker{
		allowed: make(map[string]struct{}),
		log:     logger,
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			checker.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
			continue
		}
		checker.allowed[normalized] = struct{}{}
	}

	return checker.check
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (oc *originChecker) check(r *http.Request) bool {
	if oc.allowAll {
		return true
	}

	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		oc.log.Warn().Str("origin", originHeader).Msg("blocked websocket connection: malformed origin")
		return false
	}

	if _, exists := oc.allowed[normalized]; exists {
		return true
	}

	oc.log.Warn().Str("origin", originHeader).Msg("blocked websocket connection: disallowed origin")
	return false
}
