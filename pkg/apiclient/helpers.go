package apiclient

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// getResource performs a GET request to the given path and decodes the response
// body into a value of type T. Returns a pointer to the decoded value.
func getResource[T any](c *Client, path string) (*T, error) {
	var result T
	if err := c.get(path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// listResources performs a GET request to the given path and decodes the response
// body into a slice of type T.
func listResources[T any](c *Client, path string) ([]T, error) {
	var results []T
	if err := c.get(path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// createResource performs a POST request to the given path with the provided body
// and decodes the response into a value of type T.
func createResource[T any](c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.post(path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// updateIDs posts body and returns the ids the server reports as updated.
func updateIDs(c *Client, path string, body any) ([]string, error) {
	resp, err := createResource[updatedResponse](c, path, body)
	if err != nil {
		return nil, err
	}
	return resp.Updated, nil
}

type updatedResponse struct {
	Updated []string `json:"updated"`
}

// resourcePath builds a resource path, escaping each argument as a path
// segment.
func resourcePath(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return fmt.Sprintf(format, escaped...)
}

// Window bounds a listing.
type Window struct {
	Newer      time.Time
	Older      time.Time
	Descending bool
	Limit      int
}

func (w Window) encode(q url.Values) {
	if w.Limit > 0 {
		q.Set("limit", strconv.Itoa(w.Limit))
	}
	if !w.Newer.IsZero() {
		q.Set("newer", w.Newer.UTC().Format(time.RFC3339))
	}
	if !w.Older.IsZero() {
		q.Set("older", w.Older.UTC().Format(time.RFC3339))
	}
	if w.Descending {
		q.Set("order", "desc")
	}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func setList(q url.Values, key string, values []string) {
	if len(values) > 0 {
		q.Set(key, strings.Join(values, ","))
	}
}
