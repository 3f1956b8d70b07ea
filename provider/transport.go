package provider

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// newHTTPClient builds the *http.Client a provider instance owns (each
// provider gets its own), HTTP/2-configured the way a production fetcher tunes its transport.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if err := http2.ConfigureTransport(transport); err != nil {
		// ConfigureTransport only fails on a Transport already holding TLS
		// state incompatible with HTTP/2; a freshly constructed Transport
		// never does.
		panic(err)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
