// Package cabundle keeps an x509 pool in sync with a PEM bundle on disk.
package cabundle

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// Manager watches an optional CA bundle file and exposes a certificate pool built from it.
type Manager struct {
	path     string
	logger   logger.Logger
	onChange func()

	mu   sync.RWMutex
	pool *x509.CertPool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewManager loads the bundle at path and watches its directory. onChange
// runs after every successful reload. An empty path yields a manager with a
// nil pool and no watcher.
func NewManager(path string, log logger.Logger, onChange func()) (*Manager, error) {
	if log == nil {
		log = logger.NewNop()
	}
	mgr := &Manager{logger: log, onChange: onChange}
	if path == "" {
		return mgr, nil
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve CA bundle path: %w", err)
	}
	mgr.path = abs

	if err := mgr.reloadBundle(); err != nil {
		return nil, fmt.Errorf("load CA bundle %s: %w", abs, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// Watch the directory so atomic replaces (configmap symlink swaps) are seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch directory %s: %w", filepath.Dir(abs), err)
	}
	mgr.watcher = watcher
	mgr.stopCh = make(chan struct{})
	mgr.doneCh = make(chan struct{})

	go mgr.watchLoop()
	log.Info("Metrics source CA bundle loaded", "path", abs)
	return mgr, nil
}

// RootCAs returns the current pool, nil when no bundle is configured.
func (m *Manager) RootCAs() *x509.CertPool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool
}

// TLSConfig returns a client config using the managed pool.
func (m *Manager) TLSConfig(skipVerify bool) *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: skipVerify} //nolint:gosec // opt-in via config
	if pool := m.RootCAs(); pool != nil {
		cfg.RootCAs = pool
	}
	return cfg
}

// ForceReload reloads the bundle from disk immediately.
func (m *Manager) ForceReload() error {
	if m.path == "" {
		return nil
	}
	return m.reloadBundle()
}

// Close stops the watcher.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	close(m.stopCh)
	err := m.watcher.Close()
	<-m.doneCh
	return err
}

func (m *Manager) watchLoop() {
	defer close(m.doneCh)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !m.isRelevant(event) {
				continue
			}
			if err := m.reloadWithRetries(); err != nil {
				m.logger.Warn("Metrics source CA bundle reload failed", "path", m.path, "error", err)
				continue
			}
			m.logger.Info("Metrics source CA bundle reloaded", "path", m.path)
			if m.onChange != nil {
				m.onChange()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Metrics source CA bundle watcher error", "error", err)
		case <-m.stopCh:
			return
		}
	}
}

// reloadWithRetries tolerates the window where a writer has truncated the
// file but not finished writing it.
func (m *Manager) reloadWithRetries() error {
	const (
		attempts = 5
		delay    = 200 * time.Millisecond
	)

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := m.reloadBundle(); err != nil {
			lastErr = err
			select {
			case <-m.stopCh:
				return lastErr
			case <-time.After(delay):
			}
			continue
		}
		return nil
	}
	return lastErr
}

func (m *Manager) reloadBundle() error {
	pool, err := loadBundle(m.path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.pool = pool
	m.mu.Unlock()
	return nil
}

func (m *Manager) isRelevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if event.Name == "" {
		return true
	}
	name := filepath.Clean(event.Name)
	return name == m.path || filepath.Dir(name) == filepath.Dir(m.path)
}

var (
	errInvalidPEMData       = errors.New("invalid PEM data in CA bundle")
	errUnexpectedPEMBlock   = errors.New("unexpected PEM block type")
	errNoCertificatesInPool = errors.New("no certificates found in CA bundle")
)

const certificateBlockType = "CERTIFICATE"

// loadBundle returns the system pool extended with every certificate in path.
func loadBundle(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	rest := data
	added := false
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			if len(bytes.TrimSpace(rest)) == 0 {
				break
			}
			return nil, errInvalidPEMData
		}
		if block.Type != certificateBlockType {
			return nil, fmt.Errorf("%w: %s", errUnexpectedPEMBlock, block.Type)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		added = true
	}

	if !added {
		return nil, errNoCertificatesInPool
	}
	return pool, nil
}
