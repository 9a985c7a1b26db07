// Package cache implements the keyed answer store described in the
// resolver's cache design: an Answer aggregates a response message with
// its derived expiration time and resolved record set, and CacheKey
// identifies it in either the unbounded (Cache) or bounded (LRU) store.
package cache

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// CacheKey identifies a cached Answer. Negative responses (NXDOMAIN and
// empty-answer alike) are stored with Rdtype set to dns.TypeANY, so they
// shadow any specific-type query for the same name.
type CacheKey struct {
	Name    string
	Rdtype  uint16
	Rdclass uint16
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s %s %s", k.Name, dns.ClassToString[k.Rdclass], dns.TypeToString[k.Rdtype])
}

// Answer is the resolved response to a single qname/type/class query,
// plus the record set that actually answers it and the time at which it
// stops being fresh.
type Answer struct {
	Qname      string
	Rdtype     uint16
	Rdclass    uint16
	Response   *dns.Msg
	RRset      []dns.RR // nil if this is a "no data" answer
	Expiration time.Time
}

// NewAnswer builds an Answer for (qname, rdtype, rdclass) out of msg,
// following the CNAME chain in msg.Answer starting at qname to find the
// canonical name, then looking for a record set of rdtype/rdclass owned
// by that name.
//
// If no such record set exists and raiseOnNoAnswer is true, NewAnswer
// returns a *NoDataError. Otherwise it returns an Answer with a nil RRset.
func NewAnswer(qname string, rdtype, rdclass uint16, msg *dns.Msg, raiseOnNoAnswer bool) (*Answer, error) {
	canonical := followCNAMEChain(msg, dns.CanonicalName(qname))

	rrset := matchingRRset(msg.Answer, canonical, rdtype, rdclass)

	if rrset == nil && raiseOnNoAnswer {
		return nil, &NoDataError{Qname: qname, Rdtype: rdtype, Rdclass: rdclass}
	}

	return &Answer{
		Qname:      qname,
		Rdtype:     rdtype,
		Rdclass:    rdclass,
		Response:   msg,
		RRset:      rrset,
		Expiration: time.Now().Add(expirationTTL(rrset, msg)),
	}, nil
}

// NoDataError is returned by NewAnswer when raiseOnNoAnswer is true and no
// matching record set was found.
type NoDataError struct {
	Qname   string
	Rdtype  uint16
	Rdclass uint16
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no %s data for %s", dns.TypeToString[e.Rdtype], e.Qname)
}

func followCNAMEChain(msg *dns.Msg, start string) string {
	name := start
	seen := map[string]bool{}
	for !seen[name] {
		seen[name] = true

		next, ok := cnameTarget(msg.Answer, name)
		if !ok {
			return name
		}
		name = next
	}
	return name
}

func cnameTarget(answer []dns.RR, owner string) (string, bool) {
	for _, rr := range answer {
		cname, ok := rr.(*dns.CNAME)
		if ok && dns.CanonicalName(cname.Hdr.Name) == owner {
			return dns.CanonicalName(cname.Target), true
		}
	}
	return "", false
}

func matchingRRset(answer []dns.RR, owner string, rdtype, rdclass uint16) []dns.RR {
	var rrset []dns.RR
	for _, rr := range answer {
		hdr := rr.Header()
		if dns.CanonicalName(hdr.Name) == owner && hdr.Rrtype == rdtype && hdr.Class == rdclass {
			rrset = append(rrset, rr)
		}
	}
	return rrset
}

// expirationTTL computes the TTL to add to time.Now() for the Expiration
// field: the minimum TTL across rrset if non-empty, else the SOA minimum
// field from the first SOA record in msg.Ns, else zero (immediate
// expiration).
func expirationTTL(rrset []dns.RR, msg *dns.Msg) time.Duration {
	if len(rrset) > 0 {
		min := rrset[0].Header().Ttl
		for _, rr := range rrset[1:] {
			if ttl := rr.Header().Ttl; ttl < min {
				min = ttl
			}
		}
		return time.Duration(min) * time.Second
	}

	for _, rr := range msg.Ns {
		if soa, ok := rr.(*dns.SOA); ok {
			return time.Duration(soa.Minttl) * time.Second
		}
	}

	return 0
}

// HasData reports whether the Answer carries a non-empty record set.
func (a *Answer) HasData() bool {
	return a != nil && len(a.RRset) > 0
}

// At returns the i-th record of the resolved record set. It fails with a
// boundary error if the Answer has no data or the index is out of range,
// mirroring the spec's "index access fails with a boundary error" rule
// for Answers constructed with raiseOnNoAnswer=false.
func (a *Answer) At(i int) (dns.RR, error) {
	if a == nil || i < 0 || i >= len(a.RRset) {
		return nil, fmt.Errorf("cache: Answer index %d out of range", i)
	}
	return a.RRset[i], nil
}

// Expired reports whether the Answer is no longer fresh as of now.
func (a *Answer) Expired(now time.Time) bool {
	return !now.Before(a.Expiration)
}
