package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"go.uber.org/zap"
)

const DefaultBadProxyRetry = 5 * time.Minute

// Resolver wraps a ConfigService and remembers which proxies failed recently.
// One Resolver is meant to be shared by all sockets of a Machine.
type Resolver struct {
	// set before first use; later changes go through SetService.
	Service ConfigService

	// how long a failed proxy stays at the back of the lists.
	// DefaultBadProxyRetry when zero.
	BadProxyRetry time.Duration

	mu        sync.Mutex
	retryInfo map[string]time.Time //key -> bad until

	now func() time.Time
}

func NewResolver(service ConfigService) *Resolver {
	return &Resolver{Service: service}
}

func (r *Resolver) timeNow() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Resolver) retryDuration() time.Duration {
	if r.BadProxyRetry > 0 {
		return r.BadProxyRetry
	}
	return DefaultBadProxyRetry
}

// ResolveProxies asks the service, then moves the proxies that are currently
// bad to the back of the list. A nil Service means direct.
func (r *Resolver) ResolveProxies(ctx context.Context, dest netLayer.Addr) (*List, error) {
	r.mu.Lock()
	service := r.Service
	r.mu.Unlock()

	var l *List
	if service == nil {
		l = NewList(Direct)
	} else {
		var err error
		l, err = service.ResolveProxies(ctx, dest)
		if err != nil {
			return nil, err
		}
		if l == nil {
			l = new(List)
		}
	}

	now := r.timeNow()
	r.mu.Lock()
	l.deprioritize(func(c Candidate) bool {
		until, ok := r.retryInfo[c.Key()]
		return ok && now.Before(until)
	})
	r.mu.Unlock()

	if ce := utils.CanLogDebug("proxy list resolved"); ce != nil {
		ce.Write(zap.String("dest", dest.String()), zap.String("list", l.String()))
	}
	return l, nil
}

// SetService replaces the config service. The retry info is forgotten, since
// it was about the old proxies. Sockets already connecting keep their lists.
func (r *Resolver) SetService(service ConfigService) {
	r.mu.Lock()
	r.Service = service
	r.retryInfo = nil
	r.mu.Unlock()

	if ce := utils.CanLogInfo("proxy config changed"); ce != nil {
		ce.Write()
	}
}

// IsBad reports whether c failed within BadProxyRetry.
func (r *Resolver) IsBad(c Candidate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.retryInfo[c.Key()]
	return ok && r.timeNow().Before(until)
}

// ReconsiderProxyAfterError decides whether err justifies trying the next
// candidate of l. If so it marks the current one bad and advances, and reports
// whether a candidate is left.
func (r *Resolver) ReconsiderProxyAfterError(l *List, err error) bool {
	if l == nil || l.IsEmpty() || !netLayer.IsRetryable(err) {
		return false
	}
	if ce := utils.CanLogInfo("proxy failed, trying next"); ce != nil {
		c, _ := l.Current()
		ce.Write(zap.String("proxy", c.String()), zap.Error(err))
	}
	return l.Fallback(r.timeNow())
}

// ReportSuccess commits the failures seen while connecting with l into the
// shared retry info. The candidate that worked is cleared.
func (r *Resolver) ReportSuccess(l *List) {
	if l == nil {
		return
	}
	d := r.retryDuration()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retryInfo == nil {
		r.retryInfo = make(map[string]time.Time)
	}
	for k, at := range l.badMarks {
		r.retryInfo[k] = at.Add(d)
	}
	if c, ok := l.Current(); ok && !c.IsDirect() {
		delete(r.retryInfo, c.Key())
	}
	l.badMarks = nil
}
