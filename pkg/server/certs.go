package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// TLSResult is the web server's TLS config. Manager is set when
// certificates come from Let's Encrypt and its HTTP-01 handler must run.
type TLSResult struct {
	Config  *tls.Config
	Manager *autocert.Manager
}

// SetupTLS picks a certificate source from the realm config, in order:
// WebDomain (Let's Encrypt), WebCertFile/WebKeyFile, then a self-signed
// pair kept in CertDir.
func SetupTLS(conf *RealmConf) (*TLSResult, error) {
	if conf.WebDomain != "" {
		cacheDir := filepath.Join(conf.CertDir, "autocert-cache")
		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return nil, fmt.Errorf("server: tls: autocert cache: %w", err)
		}
		log.Printf("tls: using Let's Encrypt for %q", conf.WebDomain)
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(conf.WebDomain),
			Cache:      autocert.DirCache(cacheDir),
		}
		return &TLSResult{Config: m.TLSConfig(), Manager: m}, nil
	}

	if conf.WebCertFile != "" && conf.WebKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(conf.WebCertFile, conf.WebKeyFile)
		if err != nil {
			return nil, fmt.Errorf("server: tls: load %s: %w", conf.WebCertFile, err)
		}
		log.Printf("tls: loaded certificate %s", conf.WebCertFile)
		return &TLSResult{Config: &tls.Config{Certificates: []tls.Certificate{cert}}}, nil
	}

	cert, err := selfSigned(conf.CertDir, conf.RealmName, conf.WebHost)
	if err != nil {
		return nil, err
	}
	return &TLSResult{Config: &tls.Config{Certificates: []tls.Certificate{cert}}}, nil
}

// selfSigned loads realm.crt/realm.key from dir, generating a one-year
// ECDSA pair for localhost (and host, if set) when they are missing.
func selfSigned(dir, realm, host string) (tls.Certificate, error) {
	certPath := filepath.Join(dir, "realm.crt")
	keyPath := filepath.Join(dir, "realm.key")

	if _, err := os.Stat(certPath); err == nil {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("server: tls: load self-signed: %w", err)
		}
		return cert, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return tls.Certificate{}, fmt.Errorf("server: tls: cert dir: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("server: tls: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("server: tls: serial: %w", err)
	}

	names := []string{"localhost"}
	ips := []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback}
	if host != "" {
		if ip := net.ParseIP(host); ip != nil {
			ips = append(ips, ip)
		} else {
			names = append(names, host)
		}
	}
	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{realm}, CommonName: names[len(names)-1]},
		NotBefore:             now,
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              names,
		IPAddresses:           ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("server: tls: create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("server: tls: marshal key: %w", err)
	}

	if err := writePEM(certPath, "CERTIFICATE", der, 0644); err != nil {
		return tls.Certificate{}, err
	}
	if err := writePEM(keyPath, "EC PRIVATE KEY", keyDER, 0600); err != nil {
		return tls.Certificate{}, err
	}
	log.Printf("tls: self-signed certificate written to %s", dir)
	return tls.LoadX509KeyPair(certPath, keyPath)
}

func writePEM(path, typ string, der []byte, perm os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("server: tls: write %s: %w", path, err)
	}
	return nil
}
