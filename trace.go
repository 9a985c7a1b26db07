package stubresolve

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Trace records every attempt made during a single Resolve call, for
// diagnostics. Unlike the teacher's delegation-tree Trace (which nests
// children under the NS record that led to them), this Trace is a flat
// list: a stub resolver never recurses through delegations, it only
// retries against the servers in its own Config.
type Trace struct {
	Attempts []*TraceAttempt
}

// TraceAttempt is one query sent to one server.
type TraceAttempt struct {
	Qname      string
	Nameserver string
	TCP        bool
	RTT        time.Duration
	Response   *dns.Msg
	Error      error
}

func (t *Trace) add(a *TraceAttempt) {
	t.Attempts = append(t.Attempts, a)
}

// Dump returns a human-readable rendering of the trace, in the same
// spirit as the teacher's Trace.Dump but without the nesting that
// delegation-following required.
func (t *Trace) Dump() string {
	var b strings.Builder
	for _, a := range t.Attempts {
		proto := "udp"
		if a.TCP {
			proto = "tcp"
		}
		fmt.Fprintf(&b, "? %s @%s/%s %vms\n", a.Qname, a.Nameserver, proto, a.RTT.Milliseconds())
		if a.Error != nil {
			fmt.Fprintf(&b, "  X %v\n", a.Error)
			continue
		}
		if a.Response == nil {
			continue
		}
		if a.Response.Rcode != dns.RcodeSuccess {
			fmt.Fprintf(&b, "  X %s\n", dns.RcodeToString[a.Response.Rcode])
			continue
		}
		for _, rr := range a.Response.Answer {
			fmt.Fprintf(&b, "  ! %s\n", rr.String())
		}
	}
	return b.String()
}
