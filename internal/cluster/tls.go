package cluster

import (
	"crypto/tls"
	"crypto/x509"
	"net"

	"github.com/pkg/errors"
)

// TLSConfig bundles the mutual-TLS material a Listener needs to accept and
// dial peer connections. Certificate/key loading and CA trust are an
// external (config-loading) concern per spec.md §1; this package only
// consumes an already-built *tls.Config, matching every TLS-using repo in
// the pack (aistore's HTTPS transport, prysm's libp2p-tls wrapper) which
// bottom out on crypto/tls directly rather than a third-party TLS library.
func newServerTLSConfig(cert tls.Certificate, clientCAs *x509.CertPool) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    clientCAs,
		MinVersion:   tls.VersionTLS12,
	}
}

func newClientTLSConfig(cert tls.Certificate, rootCAs *x509.CertPool, serverName string) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      rootCAs,
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS12,
	}
}

// peerIdentity extracts the Common Name of the remote leaf certificate,
// which spec.md §4.6 defines as the peer's cluster identity.
func peerIdentity(conn *tls.Conn) (string, error) {
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return "", errors.New("cluster: peer presented no certificate")
	}
	return state.PeerCertificates[0].Subject.CommonName, nil
}

// dialTLS opens an outbound mutually-authenticated connection to addr.
func dialTLS(addr string, cfg *tls.Config) (*tls.Conn, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "cluster: dial")
	}
	conn := tls.Client(raw, cfg)
	if err := conn.Handshake(); err != nil {
		raw.Close()
		return nil, errors.Wrap(err, "cluster: client handshake")
	}
	return conn, nil
}
