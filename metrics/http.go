package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the Prometheus exposition handler for embedding into
// an existing HTTP mux.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer starts an HTTP server exposing the metrics endpoint.
// Passing ":0" as addr picks a random free port; the effective address
// is returned. The caller owns the returned server and should Close it
// at shutdown.
func StartServer(addr, path string) (*http.Server, net.Addr, error) {
	if path == "" {
		path = "/metrics"
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	srv := &http.Server{Handler: mux}
	go srv.Serve(l)

	return srv, l.Addr(), nil
}
