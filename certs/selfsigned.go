// Package certs generates ephemeral self-signed ECDSA P-256 certificates
// for QUIC endpoints that have no provisioned PKI. Peers authenticate the
// certificate by its SHA-256 fingerprint instead of a chain.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"time"
)

// DefaultValidity keeps ephemeral certificates short-lived; a process
// outliving its certificate generates a fresh one on restart.
const DefaultValidity = 14 * 24 * time.Hour

// CertInfo holds a TLS certificate and its SHA-256 fingerprint.
type CertInfo struct {
	TLSCert     tls.Certificate
	Fingerprint [32]byte
	NotAfter    time.Time
}

// FingerprintBase64 returns the SHA-256 fingerprint as base64.
func (c *CertInfo) FingerprintBase64() string {
	return base64.StdEncoding.EncodeToString(c.Fingerprint[:])
}

// FingerprintHex returns the SHA-256 fingerprint as lowercase hex, the
// form accepted for pinning on the dialing side.
func (c *CertInfo) FingerprintHex() string {
	return hex.EncodeToString(c.Fingerprint[:])
}

// Generate creates a new self-signed ECDSA P-256 certificate valid for
// the given duration, or [DefaultValidity] when the duration is not
// positive.
func Generate(validity time.Duration) (*CertInfo, error) {
	if validity <= 0 {
		validity = DefaultValidity
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}

	now := time.Now()
	notBefore := now.Add(-1 * time.Minute) // slight backdate for clock skew
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "tspipe"},
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	fingerprint := sha256.Sum256(certDER)

	tlsCert := tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}

	return &CertInfo{
		TLSCert:     tlsCert,
		Fingerprint: fingerprint,
		NotAfter:    template.NotAfter,
	}, nil
}

// VerifyFingerprint returns a tls.Config VerifyPeerCertificate callback
// that accepts exactly the peer certificate whose SHA-256 fingerprint
// matches hexFingerprint. Pinning replaces chain verification, so the
// config using it must set InsecureSkipVerify.
func VerifyFingerprint(hexFingerprint string) (func(rawCerts [][]byte, _ [][]*x509.Certificate) error, error) {
	want, err := hex.DecodeString(hexFingerprint)
	if err != nil || len(want) != sha256.Size {
		return nil, fmt.Errorf("certs: bad fingerprint %q", hexFingerprint)
	}
	pinned := [sha256.Size]byte(want)
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		for _, raw := range rawCerts {
			if sha256.Sum256(raw) == pinned {
				return nil
			}
		}
		return fmt.Errorf("certs: peer certificate does not match pinned fingerprint")
	}, nil
}
