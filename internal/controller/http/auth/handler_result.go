package auth

import "net/http"

// result is the default landing page for finished flows. It echoes the query
// as a JSON object; repeated keys become arrays.
func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}
	for k, v := range r.URL.Query() {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		out[k] = v
	}
	writeJSON(w, http.StatusOK, out)
}
