package stubresolve

import (
	"testing"

	"github.com/classmarkets/stubresolve/cache"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolution(t *testing.T, cfg *Config, opts ResolveOptions) *resolution {
	t.Helper()
	r := &Resolver{Config: cfg}
	return newResolution(r, "www.example.com.", dns.TypeA, dns.ClassINET, opts, &Trace{})
}

func TestQueryResult_YXDOMAINIsTerminal(t *testing.T) {
	cfg := NewConfig()
	cfg.Nameservers = []string{"192.0.2.1"}
	res := newTestResolution(t, cfg, ResolveOptions{})

	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeYXDomain

	outcome := res.queryResult("192.0.2.1", resp, nil)
	assert.ErrorIs(t, outcome.err, YXDOMAIN)
}

func TestQueryResult_SERVFAILDefaultsToPerServerFatal(t *testing.T) {
	cfg := NewConfig()
	cfg.Nameservers = []string{"192.0.2.1"}
	res := newTestResolution(t, cfg, ResolveOptions{})

	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeServerFailure

	outcome := res.queryResult("192.0.2.1", resp, nil)
	require.Error(t, outcome.err)
	var noNS *NoNameserversError
	assert.ErrorAs(t, outcome.err, &noNS)
}

func TestQueryResult_SERVFAILRetriedWhenConfigured(t *testing.T) {
	cfg := NewConfig()
	cfg.Nameservers = []string{"192.0.2.1"}
	cfg.RetryServfail = true
	res := newTestResolution(t, cfg, ResolveOptions{})

	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeServerFailure

	outcome := res.queryResult("192.0.2.1", resp, nil)
	assert.NoError(t, outcome.err)
	assert.False(t, outcome.done)
}

func TestQueryResult_NoDataRaisesByDefault(t *testing.T) {
	cfg := NewConfig()
	cfg.Nameservers = []string{"192.0.2.1"}
	res := newTestResolution(t, cfg, ResolveOptions{})
	res.currentQname = "www.example.com."

	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeSuccess

	outcome := res.queryResult("192.0.2.1", resp, nil)
	var noAnswer *NoAnswerError
	require.ErrorAs(t, outcome.err, &noAnswer)
}

func TestQueryResult_NoDataReturnsEmptyAnswerWhenNotRaising(t *testing.T) {
	cfg := NewConfig()
	cfg.Nameservers = []string{"192.0.2.1"}
	raise := false
	res := newTestResolution(t, cfg, ResolveOptions{RaiseOnNoAnswer: &raise})
	res.currentQname = "www.example.com."

	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeSuccess

	outcome := res.queryResult("192.0.2.1", resp, nil)
	require.NoError(t, outcome.err)
	assert.True(t, outcome.done)
	assert.False(t, outcome.answer.HasData())
}

func TestNextRequest_ANYShadowOfNXDOMAINAdvances(t *testing.T) {
	cfg := NewConfig()
	cfg.Nameservers = []string{"192.0.2.1"}
	res := newTestResolution(t, cfg, ResolveOptions{})

	nxResp := &dns.Msg{}
	nxResp.Rcode = dns.RcodeNameError
	// Without an SOA the negative answer would expire immediately.
	nxResp.Ns = []dns.RR{&dns.SOA{
		Hdr:    dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 300},
		Minttl: 60,
	}}
	neg, err := cache.NewAnswer("www.example.com.", dns.TypeANY, dns.ClassINET, nxResp, false)
	require.NoError(t, err)
	res.store.Put(cache.CacheKey{Name: "www.example.com.", Rdtype: dns.TypeANY, Rdclass: dns.ClassINET}, neg)

	_, _, advance, err := res.nextRequest()
	require.NoError(t, err)
	assert.True(t, advance)
	assert.Equal(t, []string{"www.example.com."}, res.nxdomainOrder)
}

func TestRemoveServer_NoNameserversWhenLastOneRemoved(t *testing.T) {
	cfg := NewConfig()
	cfg.Nameservers = []string{"192.0.2.1"}
	res := newTestResolution(t, cfg, ResolveOptions{})

	outcome := res.removeServer("192.0.2.1")
	var noNS *NoNameserversError
	assert.ErrorAs(t, outcome.err, &noNS)
}
