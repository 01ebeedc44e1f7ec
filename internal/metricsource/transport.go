package metricsource

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/api"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/security/cabundle"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// caTransport swaps its underlying transport whenever the CA bundle changes.
// In-flight requests finish on the transport they started with.
type caTransport struct {
	bundle     *cabundle.Manager
	skipVerify bool
	current    atomic.Pointer[http.Transport]
}

func newCATransport(cfg config.MetricsSourceConfig, log logger.Logger) (*caTransport, error) {
	t := &caTransport{skipVerify: cfg.InsecureSkipVerify}
	bundle, err := cabundle.NewManager(cfg.CAFile, log, t.rebuild)
	if err != nil {
		return nil, err
	}
	t.bundle = bundle
	t.rebuild()
	if cfg.InsecureSkipVerify {
		log.Warn("Metrics source TLS verification disabled", "address", cfg.Address)
	}
	return t, nil
}

func (t *caTransport) rebuild() {
	base, ok := api.DefaultRoundTripper.(*http.Transport)
	if !ok {
		base = http.DefaultTransport.(*http.Transport)
	}
	next := base.Clone()
	next.TLSClientConfig = t.bundle.TLSConfig(t.skipVerify)
	if prev := t.current.Swap(next); prev != nil {
		prev.CloseIdleConnections()
	}
}

func (t *caTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.current.Load().RoundTrip(req)
}

func (t *caTransport) Close() error {
	t.current.Load().CloseIdleConnections()
	return t.bundle.Close()
}
