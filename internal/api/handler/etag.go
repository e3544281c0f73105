package handler

import (
	"net/http"

	"github.com/bcnelson/seo-insights/internal/domain"
)

// SetETagHeader sets the ETag header on the response.
func SetETagHeader(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
}

// SetGroupETag sets the ETag of group on the response.
func SetGroupETag(w http.ResponseWriter, group *domain.GroupDto) {
	SetETagHeader(w, group.ETag())
}

// ifMatch returns the If-Match header. ETag checking is optional, so an
// empty value matches any version.
func ifMatch(r *http.Request) string {
	return r.Header.Get("If-Match")
}
