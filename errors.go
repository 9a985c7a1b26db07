package stubresolve

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// NotAbsolute is returned when an operation that requires a fully
// qualified name (ZoneForName, most notably) is given a relative one.
var NotAbsolute = errors.New("name is not absolute")

// NoRootSOA is returned by ZoneForName if the root zone itself has no SOA
// record, which normally only happens with misconfigured non-default root
// servers.
var NoRootSOA = errors.New("no SOA found for the root zone")

// YXDOMAIN is returned when a name server reports RcodeYXDomain, meaning
// the query name is too long after DNAME substitution.
var YXDOMAIN = errors.New("YXDOMAIN response")

// TooManyAttempts is returned when the nameserver rotation for one qname
// is about to start its fifth round (after four full wraps) without
// having produced a usable response.
var TooManyAttempts = errors.New("too many attempts")

// NoAnswer is returned when a name server's response is authoritative
// (or otherwise final) but contains no record set of the requested type
// and class, and the caller asked to raise in that case.
type NoAnswerError struct {
	Qname    string
	Response *dns.Msg
}

func (e *NoAnswerError) Error() string {
	return fmt.Sprintf("no answer for %s in response from authoritative server", e.Qname)
}

// NoAnswer is the sentinel tested with errors.Is.
var NoAnswer = &NoAnswerError{}

// Is lets errors.Is(err, NoAnswer) match any *NoAnswerError, regardless of
// its Qname/Response payload.
func (e *NoAnswerError) Is(target error) bool {
	_, ok := target.(*NoAnswerError)
	return ok
}

// NoNameservers is returned when every nameserver configured for a resolve
// call has been removed from rotation due to per-server fatal errors.
type NoNameserversError struct {
	// Errors maps each nameserver address to the error that removed it.
	Errors map[string]error
}

func (e *NoNameserversError) Error() string {
	if len(e.Errors) == 0 {
		return "no nameservers available"
	}
	return fmt.Sprintf("no nameservers available, tried %d: %s", len(e.Errors), e.firstError())
}

func (e *NoNameserversError) firstError() string {
	for addr, err := range e.Errors {
		return fmt.Sprintf("%s: %v", addr, err)
	}
	return ""
}

var NoNameservers = &NoNameserversError{}

func (e *NoNameserversError) Is(target error) bool {
	_, ok := target.(*NoNameserversError)
	return ok
}

func (e *NoNameserversError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		errs = append(errs, err)
	}
	return errs
}

// LifetimeTimeoutError is returned when the outer per-query deadline
// (Config.Lifetime) elapses before a terminal classification is reached.
// It carries the errors observed per endpoint up to that point, so no
// evidence is lost.
type LifetimeTimeoutError struct {
	Errors map[string]error
}

func (e *LifetimeTimeoutError) Error() string {
	return fmt.Sprintf("resolution lifetime exceeded after %d attempted endpoints", len(e.Errors))
}

var LifetimeTimeout = &LifetimeTimeoutError{}

func (e *LifetimeTimeoutError) Is(target error) bool {
	_, ok := target.(*LifetimeTimeoutError)
	return ok
}

// NXDOMAINError is the authoritative non-existence failure. It is
// mergeable: Merge unions the qname lists (preserving order, deduplicated)
// and overlays the response maps, matching dnspython's NXDOMAIN.__add__.
type NXDOMAINError struct {
	// Qnames is the list of fully qualified names tried, in the order they
	// were queried.
	Qnames []string

	// Responses maps each tried qname to the (final) response message
	// received for it.
	Responses map[string]*dns.Msg
}

func (e *NXDOMAINError) Error() string {
	if len(e.Qnames) == 0 {
		return "NXDOMAIN"
	}
	return fmt.Sprintf("NXDOMAIN for %d qname(s), last tried %s", len(e.Qnames), e.Qnames[len(e.Qnames)-1])
}

var NXDOMAIN = &NXDOMAINError{}

func (e *NXDOMAINError) Is(target error) bool {
	_, ok := target.(*NXDOMAINError)
	return ok
}

// Merge returns a new NXDOMAINError that is the union of e and other: the
// qname lists are concatenated and deduplicated preserving order, and the
// response maps are overlaid (other wins on key collision).
func (e *NXDOMAINError) Merge(other *NXDOMAINError) *NXDOMAINError {
	merged := &NXDOMAINError{
		Responses: make(map[string]*dns.Msg, len(e.Responses)+len(other.Responses)),
	}

	seen := make(map[string]bool, len(e.Qnames)+len(other.Qnames))
	for _, q := range e.Qnames {
		if !seen[q] {
			seen[q] = true
			merged.Qnames = append(merged.Qnames, q)
		}
	}
	for _, q := range other.Qnames {
		if !seen[q] {
			seen[q] = true
			merged.Qnames = append(merged.Qnames, q)
		}
	}

	for k, v := range e.Responses {
		merged.Responses[k] = v
	}
	for k, v := range other.Responses {
		merged.Responses[k] = v
	}

	return merged
}

// CanonicalName follows the CNAME chain in the response of the last
// queried qname and returns the terminal owner name. DNAME records are
// not followed. It fails with a type
// error (returned as a plain error, not one of the sentinels above) if e
// has no stored responses.
func (e *NXDOMAINError) CanonicalName() (string, error) {
	if len(e.Qnames) == 0 {
		return "", errors.New("NXDOMAINError: no qnames recorded")
	}

	last := e.Qnames[len(e.Qnames)-1]
	resp, ok := e.Responses[last]
	if !ok || resp == nil {
		return "", fmt.Errorf("NXDOMAINError: no response recorded for %s", last)
	}

	name := last
	for {
		target, ok := cnameTarget(resp, name)
		if !ok {
			return name, nil
		}
		name = target
	}
}

func cnameTarget(m *dns.Msg, owner string) (string, bool) {
	for _, rr := range m.Answer {
		cname, ok := rr.(*dns.CNAME)
		if ok && dns.CanonicalName(cname.Hdr.Name) == dns.CanonicalName(owner) {
			return dns.CanonicalName(cname.Target), true
		}
	}
	return "", false
}
