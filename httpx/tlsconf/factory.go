// Package tlsconf builds TLS client configurations from client settings.
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/spf13/afero"
	"software.sslmate.com/src/go-pkcs12"
)

// Factory loads key and trust material through an afero filesystem.
type Factory struct {
	fs afero.Fs
}

// NewFactory returns a factory reading from fs, or from the OS filesystem if fs is nil.
func NewFactory(fs afero.Fs) *Factory {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Factory{fs: fs}
}

// BuildTrusted returns the TLS configuration for a client with TLS enabled.
//
// Without trust or key material the platform default trust applies
// (RootCAs is nil). A trust store replaces the roots, a key store adds a
// client certificate. Disabling host name verification keeps the chain
// verification against the same roots.
func (f *Factory) BuildTrusted(client string, s settings.TLSSettings) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if s.TrustStore != "" {
		roots, err := f.loadTrustStore(s.TrustStore, s.TrustStorePassword)
		if err != nil {
			return nil, &errs.ConfigurationError{Client: client, Key: "tls.trust-store", Err: err}
		}
		cfg.RootCAs = roots
	}

	if s.KeyStore != "" {
		cert, err := f.loadKeyStore(s.KeyStore, s.KeyStorePassword)
		if err != nil {
			return nil, &errs.ConfigurationError{Client: client, Key: "tls.key-store", Err: err}
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if !s.VerifyHostname {
		skipHostnameVerification(cfg)
	}

	return cfg, nil
}

// BuildInsecure returns a configuration that trusts every server certificate
// and performs no host name check.
func BuildInsecure() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true, //nolint:gosec // explicitly requested through disable-tls-validation
	}
}

// skipHostnameVerification verifies the presented chain against cfg.RootCAs
// (or the system pool) without matching the server name.
func skipHostnameVerification(cfg *tls.Config) {
	roots := cfg.RootCAs
	cfg.InsecureSkipVerify = true //nolint:gosec // chain is verified in VerifyConnection
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("tls: server presented no certificates")
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range cs.PeerCertificates[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := cs.PeerCertificates[0].Verify(opts)
		return err
	}
}

func (f *Factory) read(location string) ([]byte, error) {
	path := strings.TrimPrefix(location, "file:")
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

func isPKCS12(location string) bool {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".p12", ".pfx":
		return true
	}
	return false
}

func (f *Factory) loadTrustStore(location, password string) (*x509.CertPool, error) {
	data, err := f.read(location)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	if isPKCS12(location) {
		certs, err := pkcs12.DecodeTrustStore(data, password)
		if err != nil {
			// A keystore with a private key entry can double as a trust store.
			_, leaf, chain, chainErr := pkcs12.DecodeChain(data, password)
			if chainErr != nil {
				return nil, errors.Wrapf(err, "decoding trust store %s", location)
			}
			certs = append([]*x509.Certificate{leaf}, chain...)
		}
		for _, cert := range certs {
			pool.AddCert(cert)
		}
		return pool, nil
	}

	if !pool.AppendCertsFromPEM(data) {
		return nil, errors.Newf("no PEM certificates found in %s", location)
	}
	return pool, nil
}

func (f *Factory) loadKeyStore(location, password string) (tls.Certificate, error) {
	data, err := f.read(location)
	if err != nil {
		return tls.Certificate{}, err
	}

	if isPKCS12(location) {
		key, leaf, chain, err := pkcs12.DecodeChain(data, password)
		if err != nil {
			return tls.Certificate{}, errors.Wrapf(err, "decoding key store %s", location)
		}
		cert := tls.Certificate{
			Certificate: [][]byte{leaf.Raw},
			PrivateKey:  key,
			Leaf:        leaf,
		}
		for _, c := range chain {
			cert.Certificate = append(cert.Certificate, c.Raw)
		}
		return cert, nil
	}

	// A PEM key store holds the certificate chain and the private key in one file.
	if block, _ := pem.Decode(data); block == nil {
		return tls.Certificate{}, errors.Newf("no PEM data found in %s", location)
	}
	cert, err := tls.X509KeyPair(data, data)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "decoding key store %s", location)
	}
	return cert, nil
}
