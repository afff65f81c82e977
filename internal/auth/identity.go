package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// UserHeader carries the caller's numeric user id. Authentication happens
// upstream; this service trusts the header.
const UserHeader = "X-User-ID"

type userKey struct{}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFromContext returns the user id stored by RequireUser.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey{}).(int64)
	return id, ok
}

// ParseUserID parses a positive user id.
func ParseUserID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RequireUser is middleware that rejects requests without a valid X-User-ID
// header. Browsers cannot set headers on websocket upgrades, so a user_id
// query parameter is accepted as well.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserHeader)
		if raw == "" {
			raw = r.URL.Query().Get("user_id")
		}
		id, ok := ParseUserID(raw)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "missing or invalid " + UserHeader + " header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}
