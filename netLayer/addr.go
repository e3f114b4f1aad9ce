package netLayer

import (
	"errors"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	"github.com/e1732a364fed/p2ptcp/utils"
)

var (
	ErrInvalidPort = errors.New("invalid port")
	ErrInvalidHost = errors.New("invalid host")
	ErrNotTcp      = errors.New("only tcp is supported")
)

// Addr represents a tcp endpoint. Either Name or IP is used exclusively.
//
// An Addr is treated as immutable once a connection attempt to it starts;
// callers copy it by value.
type Addr struct {
	Network string
	Name    string // domain name
	IP      net.IP
	Port    int
}

func NewAddrFromTCPAddr(addr *net.TCPAddr) Addr {
	return Addr{
		IP:      addr.IP,
		Port:    addr.Port,
		Network: "tcp",
	}
}

// NewAddrFromNetAddr accepts *net.TCPAddr or anything whose String() is host:port.
func NewAddrFromNetAddr(a net.Addr) (Addr, error) {
	if ta, ok := a.(*net.TCPAddr); ok {
		return NewAddrFromTCPAddr(ta), nil
	}
	r, err := NewAddrByHostPort(a.String())
	if err != nil {
		return r, err
	}
	r.Network = a.Network()
	return r, nil
}

// addrStr must be host:port. An empty host means 127.0.0.1 .
func NewAddr(addrStr string) (Addr, error) {
	return NewAddrByHostPort(addrStr)
}

func NewAddrByHostPort(hostPortStr string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(hostPortStr)
	if err != nil {
		return Addr{}, err
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Addr{}, utils.ErrInErr{ErrDesc: "port is not a number", ErrDetail: ErrInvalidPort, Data: portStr}
	}

	a := Addr{Port: port, Network: "tcp"}
	if ip := net.ParseIP(host); ip != nil {
		a.IP = ip
	} else {
		a.Name = host
	}
	return a, a.Validate()
}

// like tcp://127.0.0.1:443 , tcp://google.com:443
func NewAddrByURL(addrStr string) (Addr, error) {
	u, err := url.Parse(addrStr)
	if err != nil {
		return Addr{}, err
	}
	if u.Scheme != "tcp" {
		return Addr{}, utils.ErrInErr{ErrDesc: "bad url scheme", ErrDetail: ErrNotTcp, Data: u.Scheme}
	}
	return NewAddrByHostPort(u.Host)
}

// NewAddrByTarget accepts host:port or a tcp:// url.
func NewAddrByTarget(s string) (Addr, error) {
	if strings.Contains(s, "://") {
		return NewAddrByURL(s)
	}
	return NewAddrByHostPort(s)
}

// Validate checks the port range and that Name, if used, is a dns name.
func (a *Addr) Validate() error {
	if a.Port <= 0 || a.Port > 65535 {
		return utils.ErrInErr{ErrDesc: "port out of range", ErrDetail: ErrInvalidPort, Data: a.Port}
	}
	if a.IP != nil {
		return nil
	}
	if a.Name == "" || !govalidator.IsDNSName(a.Name) {
		return utils.ErrInErr{ErrDesc: "not a dns name", ErrDetail: ErrInvalidHost, Data: a.Name}
	}
	return nil
}

// Host returns the ip string if IP is given, otherwise Name.
func (a *Addr) Host() string {
	if a.IP != nil {
		return a.IP.String()
	}
	return a.Name
}

// Return host:port string.
func (a *Addr) String() string {
	return net.JoinHostPort(a.Host(), strconv.Itoa(a.Port))
}

func (a *Addr) UrlString() string {
	if a.Network != "" {
		return a.Network + "://" + a.String()
	}
	return "tcp://" + a.String()
}

func (a *Addr) IsEmpty() bool {
	return a.Name == "" && len(a.IP) == 0 && a.Port == 0
}

func (a *Addr) IsIpv6() bool {
	return a.IP != nil && a.IP.To4() == nil
}

// Equal ignores Network, and compares ipv4 in both of its forms as equal.
func (a *Addr) Equal(b Addr) bool {
	if a.Port != b.Port {
		return false
	}
	if a.IP != nil || b.IP != nil {
		return a.IP.Equal(b.IP)
	}
	return strings.EqualFold(a.Name, b.Name)
}

func (a *Addr) ToTCPAddr() *net.TCPAddr {
	if a.IP == nil {
		return nil
	}
	return &net.TCPAddr{IP: a.IP, Port: a.Port}
}

// AddrPort returns an invalid netip.AddrPort when the addr is a domain name.
func (a *Addr) AddrPort() netip.AddrPort {
	theip := a.IP
	if i4 := a.IP.To4(); i4 != nil {
		theip = i4
	}
	ip, _ := netip.AddrFromSlice(theip)
	return netip.AddrPortFrom(ip, uint16(a.Port))
}
