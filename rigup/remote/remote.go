// Package remote is the single place provisioning payloads are fetched
// from. Every fetch is attempted exactly once with the default HTTP
// client: no retries, no timeout.
package remote

import (
	"fmt"
	"io"
	"net/http"
)

// FetchURL retrieves the body at url.
func FetchURL(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
