package security

import (
	"crypto/tls"
	"crypto/x509"

	"github.com/cuemby/restbackup/pkg/apierr"
)

// LoadServerCertificate loads a PEM certificate/key pair for the
// optional HTTPS listener (spec.md §2.3's tls_cert_file/tls_key_file).
// The Leaf field is populated so callers can inspect expiry without a
// second parse.
func LoadServerCertificate(certFile, keyFile string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to load TLS certificate", err)
	}
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, apierr.Wrap(apierr.Internal, "failed to parse TLS certificate", err)
		}
		cert.Leaf = leaf
	}
	return &cert, nil
}
