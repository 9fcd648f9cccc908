package content

import (
	"math/rand"
	"net/http"
)

// acceptLanguages contains common browser Accept-Language values
var acceptLanguages = []string{
	"zh-CN,zh;q=0.9,en;q=0.8",
	"en-US,en;q=0.9,zh;q=0.8",
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
}

const acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// addBrowserHeaders adds browser-like headers so article pages treat
// us like a regular visitor. No explicit Accept-Encoding, the
// transport handles gzip transparently.
func addBrowserHeaders(req *http.Request) {
	req.Header.Set("Accept", acceptHTML)
	req.Header.Set("Cache-Control", "no-cache")

	// randomized language
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))]) //nolint:gosec // non-cryptographic randomness is fine for header variation

	req.Header.Set("Connection", "keep-alive")

	// dnt - 30% chance
	if rand.Float32() < 0.3 { //nolint:gosec // non-cryptographic randomness is fine
		req.Header.Set("DNT", "1")
	}
}
