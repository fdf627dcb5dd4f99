// AngelaMos | 2026
// index.go

package server

import (
	"net/http"
	"strings"

	"github.com/carterperez-dev/homeser/internal/core"
)

// Index lists the API's top-level resources as absolute URLs under
// prefix, e.g. {"services": "http://host/api/services"}.
func Index(prefix string, resources ...string) http.HandlerFunc {
	prefix = strings.TrimRight(prefix, "/")

	return func(w http.ResponseWriter, r *http.Request) {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base := scheme + "://" + r.Host + prefix

		links := make(map[string]string, len(resources))
		for _, name := range resources {
			links[name] = base + "/" + name
		}
		core.OK(w, links)
	}
}
