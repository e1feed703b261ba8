package web

import (
	"net/http"
	"strings"
)

// HTTPProtocolMiddleware prevents HTTP/3 QUIC protocol issues in cloud environments.
// Browsers that upgrade the transcript stream to HTTP/3 behind some proxy setups
// hit net::ERR_QUIC_PROTOCOL_ERROR, so HTTP/3 advertising is disabled here
func HTTPProtocolMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Disable HTTP/3 QUIC protocol advertising globally
		w.Header().Set("Alt-Svc", "clear")

		// The event stream needs stable long-lived connections
		if strings.HasPrefix(r.URL.Path, "/events") {
			// Force HTTP/1.1 semantics for SSE
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Force-HTTP1", "true")
			w.Header().Set("Upgrade", "")
		}

		// Continue with the next handler
		next.ServeHTTP(w, r)
	})
}

// WrapMuxWithMiddleware wraps an HTTP mux with the protocol middleware
func WrapMuxWithMiddleware(mux *http.ServeMux) http.Handler {
	return HTTPProtocolMiddleware(mux)
}
