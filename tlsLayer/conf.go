package tlsLayer

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/e1732a364fed/p2ptcp/utils"
)

var (
	ErrCAFileWrong   = errors.New("ca file is somehow wrong")
	ErrPinMismatch   = errors.New("no certificate in the chain matches a pinned key")
	ErrNoCertificate = errors.New("peer sent no certificate")
)

// CertVerifier is an extra check run on the peer chain after the standard
// verification, or instead of it when Insecure is set.
type CertVerifier interface {
	Verify(host string, chain []*x509.Certificate) error
}

type CertVerifierFunc func(host string, chain []*x509.Certificate) error

func (f CertVerifierFunc) Verify(host string, chain []*x509.Certificate) error {
	return f(host, chain)
}

// Conf is the tls part of the configuration. Host is the sni and the name
// verified against. Pins are base64 sha256 hashes of SubjectPublicKeyInfo;
// if given, some certificate of the chain must match one of them.
type Conf struct {
	Type            Type
	Host            string
	Insecure        bool
	CA              string
	Pins            []string
	Alpn            []string
	UtlsFingerprint string

	Verifier CertVerifier
}

type CertConf struct {
	CA                string
	CertFile, KeyFile string
}

func LoadCA(caFile string) (cp *x509.CertPool, err error) {
	if caFile == "" {
		err = utils.ErrNilParameter
		return
	}
	cp = x509.NewCertPool()
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	if !cp.AppendCertsFromPEM(data) {
		return nil, ErrCAFileWrong
	}
	return
}

// SPKIPin returns the pin string of a certificate, as used in Conf.Pins.
func SPKIPin(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func checkPins(pins []string, chain []*x509.Certificate) error {
	if len(pins) == 0 {
		return nil
	}
	for _, c := range chain {
		p := SPKIPin(c)
		for _, want := range pins {
			if p == want {
				return nil
			}
		}
	}
	return ErrPinMismatch
}

// verifyPeer is installed as VerifyPeerCertificate; it runs after the standard
// verification, which is skipped when Insecure.
func (conf *Conf) verifyPeer(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	if len(conf.Pins) == 0 && conf.Verifier == nil {
		return nil
	}

	var chain []*x509.Certificate
	if len(verifiedChains) > 0 {
		chain = verifiedChains[0]
	} else {
		for _, raw := range rawCerts {
			c, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			chain = append(chain, c)
		}
	}
	if len(chain) == 0 {
		return ErrNoCertificate
	}

	if err := checkPins(conf.Pins, chain); err != nil {
		if ce := utils.CanLogWarn("tls pin check failed"); ce != nil {
			ce.Write(zap.String("host", conf.Host), zap.String("leaf", SPKIPin(chain[0])))
		}
		return err
	}

	if conf.Verifier != nil {
		return conf.Verifier.Verify(conf.Host, chain)
	}
	return nil
}

func GetTlsConfig(conf Conf) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify:    conf.Insecure,
		ServerName:            conf.Host,
		NextProtos:            conf.Alpn,
		VerifyPeerCertificate: conf.verifyPeer,
	}
	if conf.CA != "" {
		cp, err := LoadCA(conf.CA)
		if err != nil {
			return nil, utils.ErrInErr{ErrDesc: "load ca failed", ErrDetail: err, Data: conf.CA}
		}
		tc.RootCAs = cp
	}
	return tc, nil
}
