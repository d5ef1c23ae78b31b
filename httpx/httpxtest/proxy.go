package httpxtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// ProxyServer is a forward HTTP proxy that records every absolute-form
// request it relays. CONNECT tunnels are not supported.
type ProxyServer struct {
	*httptest.Server

	mu      sync.Mutex
	targets []string
	forward *http.Transport
}

// NewProxyServer starts a recording proxy.
func NewProxyServer() *ProxyServer {
	p := &ProxyServer{forward: &http.Transport{Proxy: nil}}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	return p
}

func (p *ProxyServer) serve(w http.ResponseWriter, r *http.Request) {
	if !r.URL.IsAbs() {
		http.Error(w, "not a proxy request", http.StatusBadRequest)
		return
	}
	if r.Method == http.MethodConnect {
		http.Error(w, "tunnels are not supported", http.StatusMethodNotAllowed)
		return
	}

	p.mu.Lock()
	p.targets = append(p.targets, r.URL.String())
	p.mu.Unlock()

	out := r.Clone(r.Context())
	out.RequestURI = ""
	out.Header.Del("Proxy-Connection")

	resp, err := p.forward.RoundTrip(out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Via", "1.1 httpxtest-proxy")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// Targets returns the absolute URLs relayed so far.
func (p *ProxyServer) Targets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.targets...)
}

// Close stops the proxy and its upstream connections.
func (p *ProxyServer) Close() {
	p.Server.Close()
	p.forward.CloseIdleConnections()
}
