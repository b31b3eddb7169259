// Package httpx holds small helpers shared by the REST clients.
package httpx

// Truncate caps a response body at n bytes for use in error text, so a
// failing API call cannot flood the logs with a huge payload.
func Truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
