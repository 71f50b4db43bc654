package edgecache

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// RequestKey generates a deterministic cache key for a request.
// Format: method:path:query1=val1:query2=val2 with query parameters
// sorted, so logically identical requests never produce distinct keys.
//
// Example:
//
//	GET:/api/operations/42/labor:page=2
func RequestKey(req *http.Request) string {
	parts := []string{req.Method, req.URL.Path}

	query := req.URL.Query()
	if len(query) > 0 {
		names := make([]string, 0, len(query))
		for name := range query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := query[name]
			sort.Strings(values)
			for _, value := range values {
				parts = append(parts, fmt.Sprintf("%s=%s", name, value))
			}
		}
	}

	return strings.Join(parts, ":")
}
