// Package stubresolve implements the core of a DNS stub resolver: a
// Resolution state machine that drives the conversation with a set of
// configured nameservers until it has an authoritative answer, an
// authoritative non-existence proof, or a final failure, plus the
// Answer cache (unbounded and bounded-LRU variants) that backs it.
//
// The wire codec, transport primitives and system-configuration parsing
// are external collaborators: the core consumes an opaque *dns.Msg, a
// Transport capability (§6), and a Config record (§4.D).
package stubresolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/classmarkets/stubresolve/cache"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Resolver resolves DNS queries by consulting its Cache and driving the
// Resolution state machine against its Config's nameservers.
//
// Concurrent calls to Resolve, ResolveAddress and ZoneForName are safe.
// Concurrent calls share only the Cache and the Config: mutating Config
// fields is the caller's responsibility and must happen when no call is
// in flight, matching the teacher's own documented concurrency contract.
type Resolver struct {
	// Config drives every resolve call. See NewResolver and
	// LoadSystemConfig for ways to construct one.
	Config *Config

	// Cache backs Get/Put for this resolver. If nil, an unbounded
	// cache.Cache is created lazily. Swap in a cache.NewLRU(n) for a
	// bounded alternative.
	Cache store

	// Transport issues the actual queries. If nil, DNSTransport{} is
	// used.
	Transport Transport

	// Logger receives structured diagnostics for every attempt. If nil,
	// logging is discarded.
	Logger logrus.FieldLogger

	mu sync.RWMutex
}

// NewResolver returns a Resolver with the given Config (or a
// freshly-defaulted one if cfg is nil), an unbounded Cache, and the
// default Transport.
func NewResolver(cfg *Config) *Resolver {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Resolver{
		Config: cfg,
	}
}

func (r *Resolver) config() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Config == nil {
		return NewConfig()
	}
	return r.Config
}

func (r *Resolver) store() store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Cache == nil {
		r.Cache = cache.New()
	}
	return r.Cache
}

func (r *Resolver) transport() Transport {
	if r.Transport != nil {
		return r.Transport
	}
	return DNSTransport{}
}

// ClearCache flushes every cached Answer.
func (r *Resolver) ClearCache() {
	r.store().Flush(nil)
}

// Resolve drives the Resolution state machine (§4.G) for (qname, rdtype,
// rdclass) until it produces an authoritative Answer, an authoritative
// non-existence proof, or a terminal error.
//
// The total wall clock spent is bounded by Config.Lifetime; exceeding it
// fails with a *LifetimeTimeoutError carrying the errors seen per
// endpoint so far.
func (r *Resolver) Resolve(ctx context.Context, qname string, rdtype, rdclass uint16, opts ResolveOptions) (*cache.Answer, error) {
	cfg := r.config()

	if cfg.Lifetime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Lifetime)
		defer cancel()
	}

	trace := &Trace{}
	res := newResolution(r, qname, rdtype, rdclass, opts, trace)

	for {
		if err := ctx.Err(); err != nil {
			return nil, res.lifetimeTimeout()
		}

		msg, hit, advance, err := res.nextRequest()
		if err != nil {
			return nil, err
		}
		if hit != nil {
			return hit, nil
		}
		if advance {
			continue
		}

		answer, err := r.attemptQnameLoop(ctx, res, msg)
		if err != nil {
			return nil, err
		}
		if answer != nil {
			return answer, nil
		}
		// Neither an answer nor an error: the inner loop decided to
		// advance to the next qname (NXDOMAIN for this qname).
	}
}

// lifetimeTimeout builds the terminal error for an expired Config.Lifetime.
func (res *resolution) lifetimeTimeout() error {
	return &LifetimeTimeoutError{Errors: res.errorsByServer}
}

// attemptQnameLoop runs the inner "per-attempt" loop of §4.G for the
// current qname's query message, returning a non-nil Answer on success,
// a non-nil error on a terminal failure, or (nil, nil) to signal that
// the outer loop should advance to the next qname.
func (r *Resolver) attemptQnameLoop(ctx context.Context, res *resolution, msg *dns.Msg) (*cache.Answer, error) {
	cfg := r.config()
	transport := r.transport()
	log := r.logger()

	rounds := 1

	for {
		if err := ctx.Err(); err != nil {
			return nil, res.lifetimeTimeout()
		}

		addr, port, tcp, backoffMillis, err := res.nextNameserver()
		if err != nil {
			return nil, err
		}

		if backoffMillis > 0 {
			rounds++
			if rounds >= 5 {
				return nil, TooManyAttempts
			}
			if err := sleepOrDone(ctx, time.Duration(backoffMillis)*time.Millisecond); err != nil {
				return nil, res.lifetimeTimeout()
			}
		}

		res.tcpAttempt = tcp

		deadline := time.Now().Add(cfg.Timeout)
		if cfg.Lifetime > 0 {
			if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
				deadline = dl
			}
		}

		start := time.Now()
		var resp *dns.Msg
		var qerr error
		if tcp {
			resp, qerr = transport.StreamQuery(ctx, msg, addr, port, res.opts.Source, res.opts.SourcePort, deadline)
		} else {
			resp, qerr = transport.DatagramQuery(ctx, msg, addr, port, res.opts.Source, res.opts.SourcePort, deadline, true)
		}
		rtt := time.Since(start)

		log.WithFields(logrus.Fields{
			"qname":      res.currentQname,
			"nameserver": addr,
			"tcp":        tcp,
			"rtt":        rtt,
		}).Debug("dns attempt")

		res.trace.add(&TraceAttempt{
			Qname:      res.currentQname,
			Nameserver: addr,
			TCP:        tcp,
			RTT:        rtt,
			Response:   resp,
			Error:      qerr,
		})

		outcome := res.queryResult(addr, resp, qerr)
		if outcome.err != nil {
			return nil, outcome.err
		}
		if outcome.done {
			if outcome.advance {
				return nil, nil
			}
			return outcome.answer, nil
		}
		// Neither done nor erred: retry within this qname.
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResolveAddress builds the reverse (*.in-addr.arpa or *.ip6.arpa) name
// for ip and resolves a PTR record for it.
func (r *Resolver) ResolveAddress(ctx context.Context, ipStr string, opts ResolveOptions) (*cache.Answer, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, fmt.Errorf("stubresolve: not an IP address: %s", ipStr)
	}

	return r.Resolve(ctx, arpaName(ip), dns.TypePTR, dns.ClassINET, opts)
}

// ZoneForName walks ancestors of name, querying SOA at each, until it
// finds the first name whose SOA answer's owner equals the queried
// name. It fails NotAbsolute on relative input, and NoRootSOA if even
// the root has no SOA.
func (r *Resolver) ZoneForName(ctx context.Context, name string, rdclass uint16) (string, error) {
	if !dns.IsFqdn(name) {
		return "", NotAbsolute
	}
	name = dns.CanonicalName(name)

	raise := false
	opts := ResolveOptions{RaiseOnNoAnswer: &raise}

	for {
		answer, err := r.Resolve(ctx, name, dns.TypeSOA, rdclass, opts)
		if err == nil && answer.HasData() {
			owner := dns.CanonicalName(answer.RRset[0].Header().Name)
			if owner == name {
				return name, nil
			}
		} else if err != nil {
			var nxdomain *NXDOMAINError
			var noAnswer *NoAnswerError
			if !errors.As(err, &nxdomain) && !errors.As(err, &noAnswer) {
				return "", err
			}
		}

		parent, ok := parentName(name)
		if !ok {
			return "", NoRootSOA
		}
		name = parent
	}
}

// parentName returns the parent of an absolute name, or ok=false if
// name is already the root.
func parentName(name string) (string, bool) {
	if name == "." {
		return "", false
	}
	labels := dns.SplitDomainName(name)
	if len(labels) == 0 {
		return ".", true
	}
	return dns.Fqdn(joinLabels(labels[1:])), true
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += "."
		}
		out += l
	}
	return out
}

var (
	defaultResolverMu sync.RWMutex
	defaultResolver    *Resolver
)

// DefaultResolver returns the process-wide Resolver, initializing it on
// first use. Initialization is idempotent and safe for concurrent
// callers.
func DefaultResolver() *Resolver {
	defaultResolverMu.RLock()
	r := defaultResolver
	defaultResolverMu.RUnlock()
	if r != nil {
		return r
	}

	defaultResolverMu.Lock()
	defer defaultResolverMu.Unlock()
	if defaultResolver == nil {
		defaultResolver = newDefaultResolver()
	}
	return defaultResolver
}

// ResetDefaultResolver atomically replaces the process-wide Resolver
// with a freshly-initialized one. Resolve calls already in flight
// against the prior default continue running against it; subsequent
// calls to DefaultResolver see the new one.
func ResetDefaultResolver() {
	defaultResolverMu.Lock()
	defer defaultResolverMu.Unlock()
	defaultResolver = newDefaultResolver()
}

func newDefaultResolver() *Resolver {
	cfg, err := LoadSystemConfig()
	if err != nil {
		cfg = NewConfig()
	}
	return NewResolver(cfg)
}

// Resolve is a convenience function that uses the default resolver.
func Resolve(ctx context.Context, qname string, rdtype, rdclass uint16, opts ResolveOptions) (*cache.Answer, error) {
	return DefaultResolver().Resolve(ctx, qname, rdtype, rdclass, opts)
}

// ResolveAddress is a convenience function that uses the default resolver.
func ResolveAddress(ctx context.Context, ip string, opts ResolveOptions) (*cache.Answer, error) {
	return DefaultResolver().ResolveAddress(ctx, ip, opts)
}

// ZoneForName is a convenience function that uses the default resolver.
func ZoneForName(ctx context.Context, name string, rdclass uint16) (string, error) {
	return DefaultResolver().ZoneForName(ctx, name, rdclass)
}
