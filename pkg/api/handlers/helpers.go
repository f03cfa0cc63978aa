package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/stager/pkg/stager/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 8 << 20

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// queryList returns the values of a query parameter given either repeated
// or comma-separated.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseWindow reads the limit, newer, older and order query parameters.
// Timestamps are RFC 3339.
func parseWindow(r *http.Request) (store.Window, error) {
	var win store.Window
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return win, fmt.Errorf("invalid limit %q", v)
		}
		win.Limit = n
	}

	for key, dst := range map[string]**time.Time{"newer": &win.Newer, "older": &win.Older} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return win, fmt.Errorf("invalid %s timestamp %q", key, v)
		}
		*dst = &t
	}

	switch order := q.Get("order"); order {
	case "", "asc":
	case "desc":
		win.Descending = true
	default:
		return win, fmt.Errorf("invalid order %q", order)
	}
	return win, nil
}

// UpdatedResponse lists the ids a batch operation actually moved.
type UpdatedResponse struct {
	Updated []string `json:"updated"`
}

func updated(ids []string) UpdatedResponse {
	if ids == nil {
		ids = []string{}
	}
	return UpdatedResponse{Updated: ids}
}
