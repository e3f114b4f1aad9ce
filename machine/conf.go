package machine

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/proxy"
	"github.com/e1732a364fed/p2ptcp/utils"
)

// StandardConf is the toml config file. Every section is optional.
type StandardConf struct {
	App    *AppConf    `toml:"app"`
	Proxy  *ProxyConf  `toml:"proxy"`
	Tls    *TlsConf    `toml:"tls"`
	Dial   *DialConf   `toml:"dial"`
	Retry  *RetryConf  `toml:"retry"`
	P2P    *P2PConf    `toml:"p2p"`
	Listen *ListenConf `toml:"listen"`
}

// AppConf configures the app level things.
type AppConf struct {
	LogLevel *int    `toml:"loglevel"` //pointer, so that an explicit 0 can be told from "not given"
	LogFile  *string `toml:"logfile"`
}

type ProxyConf struct {
	Servers []string `toml:"servers"` //like socks5://u:p@127.0.0.1:1080, tried in order
	Bypass  []string `toml:"bypass"`
	FromEnv bool     `toml:"from_env"` //use HTTPS_PROXY etc. instead of servers

	BadProxyRetrySeconds int `toml:"bad_proxy_retry_seconds"`

	UserAgent string `toml:"user_agent"`

	// for https proxies
	CA       string `toml:"ca"`
	Insecure bool   `toml:"insecure"`
}

// TlsConf is the tls layer over the connection to the peer.
type TlsConf struct {
	Type            string   `toml:"type"` //none, fake, tls, utls
	Host            string   `toml:"host"`
	CA              string   `toml:"ca"`
	Insecure        bool     `toml:"insecure"`
	Pins            []string `toml:"pins"`
	Alpn            []string `toml:"alpn"`
	UtlsFingerprint string   `toml:"utls_fingerprint"`
}

type DialConf struct {
	TimeoutMs int `toml:"timeout_ms"`

	netLayer.Sockopt
}

type RetryConf struct {
	MinMs       int `toml:"min_ms"`
	MaxMs       int `toml:"max_ms"`
	MaxAttempts int `toml:"max_attempts"` //0 means 1
}

type P2PConf struct {
	Mode           string `toml:"mode"` //tcp or stun
	MaxQueuedBytes int64  `toml:"max_queued_bytes"`
}

// ListenConf makes the machine accept p2p connections too.
type ListenConf struct {
	Addr string `toml:"addr"`
	Tls  string `toml:"tls"` //none, fake, tls
	Host string `toml:"host"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`

	ProxyProtocol bool `toml:"proxy_protocol"`
}

func LoadTomlConfStr(str string) (conf StandardConf, err error) {
	_, err = toml.Decode(str, &conf)
	return
}

func LoadTomlConfFile(fileNamePath string) (StandardConf, error) {
	bs, err := os.ReadFile(fileNamePath)
	if err != nil {
		return StandardConf{}, utils.ErrInErr{ErrDesc: "can't read config file", ErrDetail: err, Data: fileNamePath}
	}
	return LoadTomlConfStr(string(bs))
}

// Setup applies the app conf to the utils package. Command line flags win.
func (ac *AppConf) Setup() {
	if ac == nil {
		return
	}
	if ac.LogFile != nil && !utils.IsFlagGiven("lf") {
		utils.LogOutFileName = *ac.LogFile
	}
	if ac.LogLevel != nil && !utils.IsFlagGiven("ll") {
		utils.LogLevel = *ac.LogLevel
	}
}

func (pc *ProxyConf) service() (proxy.ConfigService, error) {
	if pc.FromEnv {
		return proxy.NewEnvService(nil), nil
	}
	fs, err := proxy.NewFixedService(pc.Servers, pc.Bypass)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func (dc *DialConf) timeout() time.Duration {
	if dc == nil || dc.TimeoutMs <= 0 {
		return netLayer.DefaultDialTimeout
	}
	return time.Duration(dc.TimeoutMs) * time.Millisecond
}
