// Package health provides the bounded-timeout reachability check against the
// remote backend.
//
// The probe models connectivity as strictly binary: a backend is reachable
// only if a TCP connection can be established and GET /health answers with a
// 2xx status inside the timeout. Every error, timeout, or non-success status
// resolves to unreachable - there is no degraded state.
package health

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultTimeout bounds the whole probe, dial included.
const DefaultTimeout = 5 * time.Second

// Probe checks whether the remote backend is reachable.
type Probe struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *log.Logger
}

// Config holds probe configuration.
type Config struct {
	// Timeout bounds the whole probe (default: DefaultTimeout).
	Timeout time.Duration

	// Logger for probe activity (default: stderr logger).
	Logger *log.Logger
}

// New creates a probe against the backend at baseURL.
//
// baseURL is the backend root (for example "http://sync.example.com:8000");
// the probe requests baseURL + "/health".
func New(baseURL string, config *Config) *Probe {
	if config == nil {
		config = &Config{}
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[health] ", log.LstdFlags)
	}

	return &Probe{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// IsReachable reports whether the backend currently answers its health
// endpoint. Unreachable is an expected steady state when the device is
// offline, so failures are logged at informational level only.
func (p *Probe) IsReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Cheap connectivity precheck before the full HTTP round trip
	if err := p.dialCheck(ctx); err != nil {
		p.logger.Printf("Backend unreachable (dial): %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		p.logger.Printf("Backend unreachable (request): %v", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Printf("Backend unreachable: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Printf("Backend health check returned %d", resp.StatusCode)
		return false
	}

	return true
}

// dialCheck attempts a raw TCP connection to the backend host.
func (p *Probe) dialCheck(ctx context.Context) error {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}

	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https", "wss":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return err
	}
	_ = conn.Close()
	return nil
}
