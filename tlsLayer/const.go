package tlsLayer

import (
	"errors"
	"strings"
)

type Type int

const (
	None Type = iota
	Fake
	Tls
	UTls
)

var ErrUnknownType = errors.New("unknown tls type")

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Fake:
		return "fake"
	case Tls:
		return "tls"
	case UTls:
		return "utls"
	}
	return "unknown"
}

// StrToType accepts "", "none", "fake", "tls" and "utls", case insensitive.
func StrToType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "fake", "faketls", "fake_tls", "ssltcp":
		return Fake, nil
	case "tls":
		return Tls, nil
	case "utls":
		return UTls, nil
	}
	return None, ErrUnknownType
}
