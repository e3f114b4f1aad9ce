package tlsLayer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	mathrand "math/rand"
	"net"
	"os"
	"time"

	"github.com/biter777/countries"
	"go.uber.org/zap"

	"github.com/e1732a364fed/p2ptcp/utils"
)

var nameWords = []string{"relay", "meadow", "harbor", "lumen", "quarry", "cobalt", "tundra", "orchard", "vertex", "summit"}

func randomSubject() pkix.Name {
	all := countries.All()
	country := all[mathrand.Intn(len(all))]
	org := nameWords[mathrand.Intn(len(nameWords))] + nameWords[mathrand.Intn(len(nameWords))]

	return pkix.Name{
		Country:      []string{country.Alpha2()},
		Organization: []string{org},
		CommonName:   "www." + org + ".com",
	}
}

// GenerateCertPEM makes a self signed ecc p256 cert valid for a year.
// host goes into the SANs. If it is empty, the subject is random.
func GenerateCertPEM(host string) (certPEM, keyPEM []byte, err error) {
	subject := randomSubject()
	if host != "" {
		subject.CommonName = host
	}

	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      subject,
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(subject.CommonName); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{subject.CommonName}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return
	}
	kb, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return
	}

	if ce := utils.CanLogDebug("generated self signed cert"); ce != nil {
		ce.Write(zap.String("cn", subject.CommonName), zap.Strings("country", subject.Country))
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: kb}), nil
}

// WriteCertKeyFiles generates a cert for host and writes it in pem.
func WriteCertKeyFiles(host, certFile, keyFile string) error {
	cb, kb, err := GenerateCertPEM(host)
	if err != nil {
		return err
	}
	if err := os.WriteFile(certFile, cb, 0644); err != nil {
		return err
	}
	return os.WriteFile(keyFile, kb, 0600)
}

// LoadOrGenerateCert loads the key pair. With either file name empty, a cert
// for host is generated in memory instead. A failed load is an error.
func LoadOrGenerateCert(certFile, keyFile, host string) ([]tls.Certificate, error) {
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, utils.ErrInErr{ErrDesc: "load cert failed", ErrDetail: err, Data: certFile}
		}
		return []tls.Certificate{cert}, nil
	}

	cb, kb, err := GenerateCertPEM(host)
	if err != nil {
		return nil, err
	}
	cert, err := tls.X509KeyPair(cb, kb)
	if err != nil {
		return nil, err
	}
	return []tls.Certificate{cert}, nil
}
