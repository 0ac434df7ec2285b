package remote

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"fieldlog/internal/flogerr"
)

// TLSConfig configures client-certificate auth and CA pinning for the
// HTTP endpoint's transport. Grounded on the teacher's
// internal/sinks/common.go createTLSConfig helper, which every named
// vendor sink (Splunk, Loki, Elasticsearch) reused; generalized here as
// the one HTTP sink's own optional TLS config instead of being shared
// plumbing for several vendor-specific sinks.
type TLSConfig struct {
	CertFile           string
	KeyFile            string
	CAFile             string
	InsecureSkipVerify bool
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, flogerr.Wrap(flogerr.Config, "remote", "load client cert", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, flogerr.Wrap(flogerr.Config, "remote", "read CA file", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, flogerr.New(flogerr.Config, "remote", "parse CA file", "no certificates found")
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}
