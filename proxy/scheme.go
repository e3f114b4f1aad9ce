package proxy

import (
	"strings"
)

// Scheme is a bit so that a set of schemes is a mask.
type Scheme uint16

const (
	SchemeInvalid Scheme = 0
	SchemeDirect  Scheme = 1 << iota
	SchemeHTTP
	SchemeSOCKS4
	SchemeSOCKS5
	SchemeHTTPS
	SchemeQUIC
)

// SupportedSchemes are the schemes a Connector can tunnel through.
const SupportedSchemes = SchemeDirect | SchemeHTTP | SchemeHTTPS | SchemeSOCKS4 | SchemeSOCKS5

func (s Scheme) String() string {
	switch s {
	case SchemeDirect:
		return "direct"
	case SchemeHTTP:
		return "http"
	case SchemeHTTPS:
		return "https"
	case SchemeSOCKS4:
		return "socks4"
	case SchemeSOCKS5:
		return "socks5"
	case SchemeQUIC:
		return "quic"
	}
	return "invalid"
}

func (s Scheme) DefaultPort() int {
	switch s {
	case SchemeHTTP:
		return 80
	case SchemeHTTPS, SchemeQUIC:
		return 443
	case SchemeSOCKS4, SchemeSOCKS5:
		return 1080
	}
	return 0
}

func StrToScheme(s string) Scheme {
	switch strings.ToLower(s) {
	case "direct":
		return SchemeDirect
	case "http":
		return SchemeHTTP
	case "https":
		return SchemeHTTPS
	case "socks4", "socks4a":
		return SchemeSOCKS4
	case "socks5", "socks5h", "socks":
		return SchemeSOCKS5
	case "quic":
		return SchemeQUIC
	}
	return SchemeInvalid
}
