package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EndpointProber checks that the OTLP collector answers HTTP at all. Any
// response, even an error status, counts as reachable.
type EndpointProber struct {
	url        string
	httpClient *http.Client
}

// NewEndpointProber builds a prober for an OTLP endpoint given as host:port
// or as a full URL.
func NewEndpointProber(endpoint string, insecure bool, timeout time.Duration) *EndpointProber {
	url := endpoint
	if !strings.Contains(url, "://") {
		scheme := "https://"
		if insecure {
			scheme = "http://"
		}
		url = scheme + url
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &EndpointProber{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Probe implements the connectivity check.
func (p *EndpointProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return fmt.Errorf("telemetry: probe request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telemetry: collector unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}
