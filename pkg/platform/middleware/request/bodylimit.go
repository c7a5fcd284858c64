package request

import (
	"net/http"
)

// BodyLimit caps form bodies, which carry cover images and profile pictures.
// A request that declares a larger Content-Length is refused before the
// handler runs and answered by tooLarge; nil answers a bare 413. Bodies
// without a declared length are cut off while being read.
func BodyLimit(maxBytes int64, tooLarge http.Handler) func(http.Handler) http.Handler {
	if tooLarge == nil {
		tooLarge = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				// The unread body is left for the server to drain or drop.
				tooLarge.ServeHTTP(w, r)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
