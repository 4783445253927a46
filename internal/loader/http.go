package loader

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// httpClient is a retrying REST client for fetching symbol/reference-price
// files hosted behind an http(s) URL, configured the same way the teacher's
// CLOB client configures retries and timeouts.
func newHTTPClient() *resty.Client {
	return resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
}

// IsRemote reports whether path names an http(s) resource rather than a
// local file.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// fetchRemote retrieves url's body via a retrying HTTP GET.
func fetchRemote(url string) ([]byte, error) {
	client := newHTTPClient()
	resp, err := client.R().Get(url)
	if err != nil {
		return nil, fmt.Errorf("loader: fetch %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("loader: fetch %s: status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}

// LoadSymbolFile loads and parses a symbol file from a local path or an
// http(s) URL.
func LoadSymbolFile(path string) ([]SymbolEntry, error) {
	if !IsRemote(path) {
		return LoadSymbolFileFromDisk(path)
	}
	body, err := fetchRemote(path)
	if err != nil {
		return nil, err
	}
	return ParseSymbolFile(strings.NewReader(string(body)))
}

// LoadReferencePriceFile loads and parses a reference-price file from a
// local path or an http(s) URL.
func LoadReferencePriceFile(path string) ([]ReferencePriceEntry, error) {
	if !IsRemote(path) {
		return LoadReferencePriceFileFromDisk(path)
	}
	body, err := fetchRemote(path)
	if err != nil {
		return nil, err
	}
	return ParseReferencePriceFile(strings.NewReader(string(body)))
}
