package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Keys are the API keys accepted by the dashboard. Admin keys can also read.
type Keys struct {
	Public []string
	Admin  []string
}

// presentedKey reads "Authorization: Bearer <key>", then "X-API-Key: <key>".
func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func matchesAny(given string, sets ...[]string) bool {
	if given == "" {
		return false
	}
	for _, set := range sets {
		for _, k := range set {
			if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
				return true
			}
		}
	}
	return false
}

// guard rejects requests whose key is not in sets with status. With no keys
// configured at all the guard is disabled so local runs need no setup.
func guard(status int, sets ...[]string) func(http.Handler) http.Handler {
	enabled := false
	for _, s := range sets {
		enabled = enabled || len(s) > 0
	}
	body := `{"error":"` + strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_")) + `"}`
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matchesAny(presentedKey(r), sets...) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		})
	}
}

// RequireAny lets dashboard readers through with either a public or admin key.
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	return guard(http.StatusUnauthorized, keys.Public, keys.Admin)
}

// RequireAdmin guards the mute-window mutations.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return guard(http.StatusForbidden, keys.Admin)
}
