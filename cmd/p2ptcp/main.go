/*
Package main connects to a peer (optionally through proxies and tls) and
exchanges p2p frames with it.

Each line read from stdin is a frame in hex. Every received frame is printed as hex.
With a [listen] section in the config file, it accepts peers as well.
*/
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/e1732a364fed/p2ptcp/frameLayer"
	"github.com/e1732a364fed/p2ptcp/machine"
	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/p2p"
	"github.com/e1732a364fed/p2ptcp/utils"
	"github.com/pkg/profile"
	"go.uber.org/zap"
)

var (
	configFileName string
	target         string
	modeStr        string
	startPProf     bool
	echo           bool
	printVer       bool
	watchConf      bool
)

const defaultConfFn = "client.toml"

func init() {
	flag.StringVar(&configFileName, "c", defaultConfFn, "config file name")
	flag.StringVar(&target, "t", "", "target peer, host:port or tcp://host:port")
	flag.StringVar(&modeStr, "m", "", "framing mode, tcp or stun. Overrides the config file")
	flag.BoolVar(&startPProf, "pp", false, "cpu pprof")
	flag.BoolVar(&echo, "echo", false, "send every frame received by the listener back to its peer")
	flag.BoolVar(&printVer, "v", false, "print the version and exit")
	flag.BoolVar(&watchConf, "w", false, "reload the proxy settings when the config file changes")

	flag.IntVar(&utils.LogLevel, "ll", utils.DefaultLL, "log level,0=debug, 1=info, 2=warning, 3=error, 4=fatal")
	flag.StringVar(&utils.LogOutFileName, "lf", "", "output file for log; If empty, no log file will be used.")
}

// printer writes what a host reports to stdout.
type printer struct {
	remote netLayer.Addr
	host   *p2p.Host //set for the echoing listener only
	failed chan error
}

func (p *printer) OnSocketCreated(local, remote net.Addr) {
	fmt.Printf("connected %s -> %s\n", local, remote)
}

func (p *printer) OnFrameReceived(from netLayer.Addr, frame []byte, at time.Time) {
	fmt.Printf("%s %s\n", from.String(), hex.EncodeToString(frame))
	if p.host != nil {
		p.host.Send(from, frame, frameLayer.PacketOptions{})
	}
}

func (p *printer) OnSendComplete(m p2p.SendMetrics) {
	if ce := utils.CanLogDebug("sent"); ce != nil {
		ce.Write(zap.Uint64("id", m.PacketID), zap.Int("size", m.Size))
	}
}

func (p *printer) OnConnectionError(err error) {
	if ce := utils.CanLogWarn("p2p connection error"); ce != nil {
		ce.Write(zap.String("remote", p.remote.String()), zap.Error(err))
	}
	if p.failed != nil {
		p.failed <- err
	}
}

func main() {
	os.Exit(mainFunc())
}

func mainFunc() (result int) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			if ce := utils.CanLogErr("Captured panic!"); ce != nil {
				ce.Write(zap.Any("err:", r), zap.String("stacktrace", stack))
			}
			log.Println("panic captured!", r, "\n", stack)
			result = -3
		}
	}()

	flag.Parse()

	if printVer {
		printVersion(os.Stdout)
		return
	}

	if startPProf {
		//without NoShutdownHook, ctrl+c would leave no profile
		p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
		defer p.Stop()
	}

	var m *machine.M
	var err error
	confLoaded := false
	if _, statErr := os.Stat(configFileName); statErr == nil {
		m, err = machine.NewFromFile(configFileName)
		confLoaded = true
	} else {
		if utils.IsFlagGiven("c") {
			log.Printf("-c provided but %q doesn't exist\n", configFileName)
			return -1
		}
		m, err = machine.New(machine.StandardConf{})
	}
	utils.InitLog()
	printVersion(os.Stdout)

	if err != nil {
		if ce := utils.CanLogErr("load config failed"); ce != nil {
			ce.Write(zap.Error(err))
		}
		return -1
	}
	defer m.Stop()

	if watchConf && confLoaded {
		w, err := m.WatchConfFile(configFileName)
		if err != nil {
			if ce := utils.CanLogErr("watch config file failed"); ce != nil {
				ce.Write(zap.Error(err))
			}
			return -1
		}
		defer w.Close()
	}

	if modeStr != "" {
		if m.Mode, err = p2p.StrToMode(modeStr); err != nil {
			log.Println(err)
			return -1
		}
	}

	if m.CanListen() {
		s, err := m.Listen(func(remote netLayer.Addr) p2p.Delegate {
			return &printer{remote: remote}
		}, func(h *p2p.Host) {
			if !echo {
				return
			}
			//Init runs after OnAccept, so no frame can arrive before host is set
			if d, ok := h.Delegate().(*printer); ok {
				d.host = h
			}
		})
		if err != nil {
			if ce := utils.CanLogErr("listen failed"); ce != nil {
				ce.Write(zap.Error(err))
			}
			return -1
		}
		if ce := utils.CanLogInfo("Working at"); ce != nil {
			ce.Write(zap.String("listen", s.Addr().String()), zap.String("mode", m.Mode.String()))
		}
	} else if target == "" {
		log.Println("Neither -t given nor [listen] configured. Exit now.")
		return -1
	}

	if utils.LogLevel == utils.Log_debug {
		m.PrintAllState(os.Stdout)
	}

	failed := make(chan error, 1)

	if target != "" {
		dest, err := netLayer.NewAddrByTarget(target)
		if err != nil {
			log.Println(err)
			return -1
		}
		h := m.NewHost(dest, &printer{remote: dest, failed: failed})
		h.Init()
		defer h.Close()

		go readStdin(h, dest)
	}

	select {
	case <-utils.GetSystemKillChan():
	case err := <-failed:
		log.Println("exit:", err)
		result = -2
	}
	return
}

// readStdin sends every hex line as one frame. Blank lines are skipped.
func readStdin(h *p2p.Host, dest netLayer.Addr) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 4096), 2*0xffff+2)
	var id uint64
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		b, err := hex.DecodeString(line)
		if err != nil {
			log.Println("not hex:", err)
			continue
		}
		id++
		h.Send(dest, b, frameLayer.PacketOptions{PacketID: id})
	}
}
