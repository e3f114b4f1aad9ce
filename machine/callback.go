package machine

import (
	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/proxy"
)

type callbacks struct {
	dialed []func(dest netLayer.Addr, via proxy.Candidate, err error) //every DialWithRetry attempt
}

func (m *M) AddDialCallback(f func(dest netLayer.Addr, via proxy.Candidate, err error)) {
	m.Lock()
	m.dialed = append(m.dialed, f)
	m.Unlock()
}

func (m *M) callDialCallbacks(dest netLayer.Addr, via proxy.Candidate, err error) {
	m.Lock()
	fs := m.dialed
	m.Unlock()
	for _, f := range fs {
		f(dest, via, err)
	}
}
