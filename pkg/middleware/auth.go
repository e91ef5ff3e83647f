package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// HashKey returns the SHA-256 hex digest of a raw API key. Only digests are
// configured, never raw keys.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RequireKey rejects mutating requests (anything but GET, HEAD and OPTIONS)
// that do not present a key whose digest is in hashes. An empty hashes list
// disables the check.
func RequireKey(hashes []string) func(http.Handler) http.Handler {
	allowed := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		allowed = append(allowed, []byte(strings.ToLower(strings.TrimSpace(h))))
	}
	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			key := extractAPIKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			digest := []byte(HashKey(key))
			for _, a := range allowed {
				if subtle.ConstantTimeCompare(digest, a) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusUnauthorized, "invalid api key")
		})
	}
}

// extractAPIKey reads Authorization: Bearer first, then X-API-Key.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}` + "\n"))
}
