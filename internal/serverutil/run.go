package serverutil

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// TLSConfig names the certificate and key files for a TLS listener.
// Both fields are set together or not at all.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Config describes one run of the API server process.
type Config struct {
	Server          *http.Server
	TLS             TLSConfig
	ShutdownTimeout time.Duration
	// Ready is closed once the listener is bound, before the first
	// request is served. Used by tests and by the startup summary.
	Ready chan<- struct{}
}

// DefaultShutdownTimeout caps how long in-flight requests may run
// after the context is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

// Run binds the server's address, serves until the context is
// cancelled, then drains in-flight requests within ShutdownTimeout.
// A serve error other than http.ErrServerClosed is returned as is.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Server == nil {
		return fmt.Errorf("http server is required")
	}
	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		return fmt.Errorf("tls requires both a certificate and a key file")
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}
	if cfg.TLS.CertFile != "" {
		ln, err = wrapTLS(ln, cfg.Server, cfg.TLS)
		if err != nil {
			return err
		}
	}

	if cfg.Ready != nil {
		close(cfg.Ready)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- cfg.Server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	shutdownErr := cfg.Server.Shutdown(drainCtx)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-drainCtx.Done():
		if shutdownErr != nil {
			return shutdownErr
		}
		return drainCtx.Err()
	}

	return shutdownErr
}

// wrapTLS loads the configured key pair and returns a TLS listener
// over ln, preserving any TLSConfig already set on the server.
func wrapTLS(ln net.Listener, server *http.Server, files TLSConfig) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
	if err != nil {
		ln.Close()
		return nil, err
	}

	tlsCfg := server.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{}
	} else {
		tlsCfg = tlsCfg.Clone()
	}
	tlsCfg.Certificates = append([]tls.Certificate{cert}, tlsCfg.Certificates...)
	server.TLSConfig = tlsCfg
	return tls.NewListener(ln, tlsCfg), nil
}
