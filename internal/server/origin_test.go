package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginCheckerWildcardAllowsEverything(t *testing.T) {
	req := require.New(t)
	check := newOriginChecker([]string{"*"}, zerolog.Nop())

	req.True(check(requestWithOrigin("http://anywhere.example")))
	req.True(check(requestWithOrigin("")))
}

func TestOriginCheckerAllowList(t *testing.T) {
	req := require.New(t)
	check := newOriginChecker([]string{"http://localhost:3000"}, zerolog.Nop())

	req.True(check(requestWithOrigin("http://localhost:3000")))
	// Scheme and host comparison is case-insensitive.
	req.True(check(requestWithOrigin("HTTP://LOCALHOST:3000")))
	req.False(check(requestWithOrigin("http://evil.example")))
	req.False(check(requestWithOrigin("")))
	req.False(check(requestWithOrigin("not a url ://")))
}

func TestOriginCheckerIgnoresInvalidConfigEntries(t *testing.T) {
	req := require.New(t)
	check := newOriginChecker([]string{"", "   ", "://bad", "http://localhost:3000"}, zerolog.Nop())

	req.True(check(requestWithOrigin("http://localhost:3000")))
	req.False(check(requestWithOrigin("http://other.example")))
}
