package http

import (
	"mime"
	"net/http"
	"slices"

	"github.com/utafrali/catalog/pkg/httputil"
)

// RequireContentType rejects POST and PUT requests whose media type is not
// one of allowed. Requests without a body are let through.
func RequireContentType(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (r.Method == http.MethodPost || r.Method == http.MethodPut) && r.ContentLength != 0 {
				mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || !slices.Contains(allowed, mt) {
					httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
						Error: &httputil.ErrorResponse{
							Code:    "UNSUPPORTED_MEDIA_TYPE",
							Message: "Content-Type must be multipart/form-data",
						},
					})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
