package proxy

import (
	"context"
	"net"
	"strings"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"github.com/yl2chen/cidranger"
	"go.uber.org/zap"
)

// ConfigService decides which proxies to use for a destination.
type ConfigService interface {
	ResolveProxies(ctx context.Context, dest netLayer.Addr) (*List, error)
}

// ServiceFunc adapts a function to ConfigService.
type ServiceFunc func(ctx context.Context, dest netLayer.Addr) (*List, error)

func (f ServiceFunc) ResolveProxies(ctx context.Context, dest netLayer.Addr) (*List, error) {
	return f(ctx, dest)
}

// FixedService returns the same candidates for every destination, except the
// ones matched by a bypass rule, which go direct.
//
// An empty FixedService means direct for everything.
type FixedService struct {
	candidates []Candidate

	hosts    map[string]bool
	suffixes []string
	local    bool
	ranger   cidranger.Ranger
}

// NewFixedService parses servers with ParseCandidate. A bypass rule is one of
//
//	example.com      exact host
//	*.example.com    any subdomain, also .example.com
//	<local>          hosts without a dot
//	10.0.0.0/8       cidr, or a single ip
func NewFixedService(servers []string, bypass []string) (*FixedService, error) {
	fs := &FixedService{
		hosts:  make(map[string]bool),
		ranger: cidranger.NewPCTrieRanger(),
	}
	for _, s := range servers {
		c, err := ParseCandidate(s)
		if err != nil {
			return nil, err
		}
		fs.candidates = append(fs.candidates, c)
	}
	for _, rule := range bypass {
		if err := fs.addBypass(rule); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func (fs *FixedService) addBypass(rule string) error {
	rule = strings.ToLower(strings.TrimSpace(rule))
	switch {
	case rule == "":
		return nil
	case rule == "<local>":
		fs.local = true
	case strings.HasPrefix(rule, "*."):
		fs.suffixes = append(fs.suffixes, rule[1:])
	case strings.HasPrefix(rule, "."):
		fs.suffixes = append(fs.suffixes, rule)
	case strings.Contains(rule, "/"):
		_, ipnet, err := net.ParseCIDR(rule)
		if err != nil {
			return utils.ErrInErr{ErrDesc: "bad bypass cidr", ErrDetail: err, Data: rule}
		}
		return fs.ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet))
	default:
		if ip := net.ParseIP(rule); ip != nil {
			bits := 128
			if ip4 := ip.To4(); ip4 != nil {
				ip = ip4
				bits = 32
			}
			return fs.ranger.Insert(cidranger.NewBasicRangerEntry(net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}))
		}
		fs.hosts[rule] = true
	}
	return nil
}

// Bypassed reports whether dest matches a bypass rule.
func (fs *FixedService) Bypassed(dest netLayer.Addr) bool {
	if dest.IP == nil {
		if parsed := net.ParseIP(dest.Name); parsed != nil {
			dest.IP = parsed
		}
	}
	if dest.IP != nil {
		ok, err := fs.ranger.Contains(dest.IP)
		if err == nil && ok {
			return true
		}
		return fs.hosts[dest.IP.String()]
	}

	name := strings.ToLower(strings.TrimSuffix(dest.Name, "."))
	if fs.hosts[name] {
		return true
	}
	if fs.local && !strings.Contains(name, ".") {
		return true
	}
	for _, suf := range fs.suffixes {
		if strings.HasSuffix(name, suf) || name == suf[1:] {
			return true
		}
	}
	return false
}

func (fs *FixedService) ResolveProxies(_ context.Context, dest netLayer.Addr) (*List, error) {
	if len(fs.candidates) == 0 || fs.Bypassed(dest) {
		if ce := utils.CanLogDebug("proxy bypassed"); ce != nil {
			ce.Write(zap.String("dest", dest.String()))
		}
		return NewList(Direct), nil
	}
	return NewList(fs.candidates...), nil
}
