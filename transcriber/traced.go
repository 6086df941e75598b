package transcriber

import (
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// tracedTransport records connection timings for each request so slow
// transcriptions can be attributed to the network or to the model.
type tracedTransport struct {
	base http.RoundTripper

	mu   sync.Mutex
	last *NetworkMetrics
}

func newTracedClient() (*http.Client, *tracedTransport) {
	tr := &tracedTransport{
		base: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
	return &http.Client{Transport: tr}, tr
}

func (t *tracedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Trace hooks fire on both the transport's write and read goroutines.
	var mu sync.Mutex
	metrics := &NetworkMetrics{}
	var getConnStart, dnsStart, tcpStart, tlsStart time.Time
	var gotConn, wroteHeaders, wroteRequest time.Time
	locked := func(fn func()) {
		mu.Lock()
		fn()
		mu.Unlock()
	}

	trace := &httptrace.ClientTrace{
		GetConn: func(_ string) {
			locked(func() { getConnStart = time.Now() })
		},
		GotConn: func(info httptrace.GotConnInfo) {
			locked(func() {
				gotConn = time.Now()
				metrics.ConnWait = gotConn.Sub(getConnStart)
				metrics.ConnReused = info.Reused
			})
		},
		DNSStart: func(_ httptrace.DNSStartInfo) {
			locked(func() { dnsStart = time.Now() })
		},
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			locked(func() { metrics.DNS = time.Since(dnsStart) })
		},
		ConnectStart: func(_, _ string) {
			locked(func() { tcpStart = time.Now() })
		},
		ConnectDone: func(_, _ string, _ error) {
			locked(func() { metrics.TCP = time.Since(tcpStart) })
		},
		TLSHandshakeStart: func() {
			locked(func() { tlsStart = time.Now() })
		},
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			locked(func() {
				metrics.TLS = time.Since(tlsStart)
				metrics.TLSProtocol = tls.VersionName(cs.Version)
			})
		},
		WroteHeaders: func() {
			locked(func() {
				wroteHeaders = time.Now()
				metrics.ReqHeaders = wroteHeaders.Sub(gotConn)
			})
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			locked(func() {
				wroteRequest = time.Now()
				metrics.ReqBody = wroteRequest.Sub(wroteHeaders)
			})
		},
		GotFirstResponseByte: func() {
			locked(func() { metrics.TTFB = time.Since(wroteRequest) })
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	// The write goroutine may still be reporting, so publish a copy.
	mu.Lock()
	metrics.Total = time.Since(start)
	if resp != nil {
		remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
		limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")
		metrics.RateLimit = remaining + "/" + limit
	}
	snapshot := *metrics
	mu.Unlock()

	t.mu.Lock()
	t.last = &snapshot
	t.mu.Unlock()
	return resp, err
}

// Last returns the metrics of the most recent request, if any.
func (t *tracedTransport) Last() *NetworkMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
