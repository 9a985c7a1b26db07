package stubresolve

import (
	"errors"
	"net"

	"github.com/classmarkets/stubresolve/cache"
	"github.com/miekg/dns"
)

// store is what a Resolution needs from an answer cache. Both
// *cache.Cache and *cache.LRU satisfy it.
type store interface {
	Get(key cache.CacheKey) (*cache.Answer, bool)
	Put(key cache.CacheKey, answer *cache.Answer)
	Flush(key *cache.CacheKey)
}

// ResolveOptions carries the per-call parameters of Resolve, mirroring
// the keyword arguments of the source this was distilled from
// (tcp, raise_on_no_answer, source, source_port, search).
type ResolveOptions struct {
	// UseTCP forces every attempt to use stream transport from the
	// start, rather than letting truncation drive the escalation.
	UseTCP bool

	// RaiseOnNoAnswer controls whether an authoritative no-data
	// response is a NoAnswer failure or a successful empty Answer.
	// nil defaults to true.
	RaiseOnNoAnswer *bool

	// Source, if set, binds outgoing queries to this local address.
	Source net.IP

	// SourcePort, if nonzero, binds outgoing queries to this local port.
	SourcePort int

	// Search controls search-list expansion: nil means "use the
	// resolver's UseSearchByDefault", true/false forces it.
	Search *bool
}

func (o ResolveOptions) raiseOnNoAnswer() bool {
	if o.RaiseOnNoAnswer == nil {
		return true
	}
	return *o.RaiseOnNoAnswer
}

func (o ResolveOptions) searchFlag() searchFlag {
	if o.Search == nil {
		return searchUnspecified
	}
	if *o.Search {
		return searchEnabled
	}
	return searchDisabled
}

// resolution is the live state for one outer Resolve call (§3
// "Resolution state").
type resolution struct {
	resolver *Resolver
	store    store
	opts     ResolveOptions

	rdtype  uint16
	rdclass uint16

	qnamesToTry  []string
	currentQname string

	selector *nameserverSelector

	tcpAttempt bool

	// nxdomainOrder preserves the order qnames were classified
	// NXDOMAIN in, since nxdomainResponses (a map) does not.
	nxdomainOrder     []string
	nxdomainResponses map[string]*dns.Msg

	errorsByServer map[string]error

	trace *Trace
}

func newResolution(r *Resolver, name string, rdtype, rdclass uint16, opts ResolveOptions, trace *Trace) *resolution {
	cfg := r.config()

	qnames := planQnames(name, opts.searchFlag(), cfg)

	return &resolution{
		resolver:          r,
		store:             r.store(),
		opts:              opts,
		rdtype:            rdtype,
		rdclass:           rdclass,
		qnamesToTry:       qnames,
		selector:          newNameserverSelector(cfg.Nameservers, cfg.Port, cfg.Rotate),
		nxdomainResponses: map[string]*dns.Msg{},
		errorsByServer:    map[string]error{},
		trace:             trace,
	}
}

func (res *resolution) recordNXDOMAIN(qname string, resp *dns.Msg) {
	if _, seen := res.nxdomainResponses[qname]; !seen {
		res.nxdomainOrder = append(res.nxdomainOrder, qname)
	}
	res.nxdomainResponses[qname] = resp
}

// nextRequest pops the next qname to try and consults the cache for it.
// It returns exactly one of: a cache-hit Answer (done resolving), an
// advance signal (the ANY-shadow says this qname is NXDOMAIN, try the
// next one), a fresh query message to send, or a terminal error.
func (res *resolution) nextRequest() (msg *dns.Msg, hit *cache.Answer, advance bool, err error) {
	if len(res.qnamesToTry) == 0 {
		return nil, nil, false, res.nxdomainFailure()
	}

	qname := res.qnamesToTry[0]
	res.qnamesToTry = res.qnamesToTry[1:]
	res.currentQname = qname

	key := cache.CacheKey{Name: qname, Rdtype: res.rdtype, Rdclass: res.rdclass}
	if a, ok := res.store.Get(key); ok {
		if a.HasData() {
			return nil, a, false, nil
		}
		if res.opts.raiseOnNoAnswer() {
			return nil, nil, false, &NoAnswerError{Qname: qname, Response: a.Response}
		}
		return nil, a, false, nil
	}

	shadowKey := cache.CacheKey{Name: qname, Rdtype: dns.TypeANY, Rdclass: res.rdclass}
	if a, ok := res.store.Get(shadowKey); ok && a.Response != nil {
		if a.Response.Rcode == dns.RcodeNameError {
			res.recordNXDOMAIN(qname, a.Response)
			return nil, nil, true, nil
		}
		// NOERROR-no-data shadow.
		if res.opts.raiseOnNoAnswer() {
			return nil, nil, false, &NoAnswerError{Qname: qname, Response: a.Response}
		}
		return nil, a, false, nil
	}

	return res.buildQuery(qname), nil, false, nil
}

func (res *resolution) buildQuery(qname string) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(qname, res.rdtype)
	msg.Question[0].Qclass = res.rdclass
	msg.RecursionDesired = true
	msg.Id = dns.Id()

	cfg := res.resolver.config()
	if cfg.EDNS >= 0 {
		msg.SetEdns0(4096, false)
		msg.IsEdns0().SetVersion(uint8(cfg.EDNS))
	}

	return msg
}

func (res *resolution) nxdomainFailure() error {
	return &NXDOMAINError{
		Qnames:    append([]string(nil), res.nxdomainOrder...),
		Responses: res.nxdomainResponses,
	}
}

// nextNameserver delegates to the selector; see §4.F. opts.UseTCP forces
// every attempt onto stream transport regardless of the selector's own
// (truncation-driven) decision.
func (res *resolution) nextNameserver() (addr string, port int, useTCP bool, backoffMillis int64, err error) {
	a, p, tcp, b, e := res.selector.next()
	if res.opts.UseTCP {
		tcp = true
	}
	return a, p, tcp, b.Milliseconds(), e
}

// queryOutcome is the tri-state result of classifying one attempt's
// response, per the table in §4.G.
type queryOutcome struct {
	answer  *cache.Answer
	done    bool
	advance bool
	err     error
}

// queryResult classifies one attempt's outcome in the order specified
// by §4.G's table.
func (res *resolution) queryResult(addr string, resp *dns.Msg, queryErr error) queryOutcome {
	qname := res.currentQname
	cfg := res.resolver.config()

	if queryErr != nil {
		res.errorsByServer[addr] = queryErr

		if isTimeout(queryErr) {
			return queryOutcome{}
		}

		if errors.Is(queryErr, Truncated) && !res.tcpAttempt {
			res.selector.requestTCPRetry()
			return queryOutcome{}
		}

		// Per-server fatal: format error, end-of-stream, truncation on
		// stream, not-implemented, or any other transport error.
		return res.removeServer(addr)
	}

	switch resp.Rcode {
	case dns.RcodeYXDomain:
		return queryOutcome{err: YXDOMAIN}

	case dns.RcodeServerFailure:
		if cfg.RetryServfail {
			return queryOutcome{}
		}
		res.errorsByServer[addr] = errors.New("SERVFAIL")
		return res.removeServer(addr)

	case dns.RcodeNameError:
		res.recordNXDOMAIN(qname, resp)
		neg, _ := cache.NewAnswer(qname, dns.TypeANY, res.rdclass, resp, false)
		res.store.Put(cache.CacheKey{Name: qname, Rdtype: dns.TypeANY, Rdclass: res.rdclass}, neg)
		return queryOutcome{done: true, advance: true}

	case dns.RcodeSuccess:
		ans, _ := cache.NewAnswer(qname, res.rdtype, res.rdclass, resp, false)
		if ans.HasData() {
			res.store.Put(cache.CacheKey{Name: qname, Rdtype: res.rdtype, Rdclass: res.rdclass}, ans)
			return queryOutcome{answer: ans, done: true}
		}

		res.store.Put(cache.CacheKey{Name: qname, Rdtype: dns.TypeANY, Rdclass: res.rdclass}, ans)
		if res.opts.raiseOnNoAnswer() {
			return queryOutcome{err: &NoAnswerError{Qname: qname, Response: resp}}
		}
		return queryOutcome{answer: ans, done: true}

	default:
		res.errorsByServer[addr] = errors.New(dns.RcodeToString[resp.Rcode])
		return res.removeServer(addr)
	}
}

func (res *resolution) removeServer(addr string) queryOutcome {
	res.selector.remove(addr)
	if res.selector.empty() {
		return queryOutcome{err: &NoNameserversError{Errors: res.errorsByServer}}
	}
	return queryOutcome{}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
