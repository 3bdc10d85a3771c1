package shared

import (
	"net/http"
	"strconv"
	"strings"
)

// Headers set by the authenticating proxy in front of the service.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// ActorMiddleware attaches the proxy-authenticated user to the request
// context. Requests without a valid id pass through anonymously.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderActorID))
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		actor := Actor{
			ID:   id,
			Name: strings.TrimSpace(r.Header.Get(HeaderActorName)),
			Kind: ActorUser,
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}
