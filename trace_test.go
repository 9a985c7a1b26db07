package stubresolve

import (
	"errors"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func TestTrace_DumpRendersAttemptsInOrder(t *testing.T) {
	tr := &Trace{}

	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeSuccess
	resp.Answer = []dns.RR{aRecord("www.example.com.", 300, "192.0.2.1")}

	tr.add(&TraceAttempt{
		Qname:      "www.example.com.",
		Nameserver: "192.0.2.53",
		RTT:        12 * time.Millisecond,
		Response:   resp,
	})
	tr.add(&TraceAttempt{
		Qname:      "www.example.com.",
		Nameserver: "192.0.2.54",
		TCP:        true,
		Error:      errors.New("connection refused"),
	})

	out := tr.Dump()
	assert.Contains(t, out, "www.example.com. @192.0.2.53/udp")
	assert.Contains(t, out, "192.0.2.1")
	assert.Contains(t, out, "@192.0.2.54/tcp")
	assert.Contains(t, out, "connection refused")
}
