package stubresolve

import (
	"math/rand"
	"time"
)

// nameserverSelector drives §4.F: which server to contact next, the
// sticky TCP-retry flag, and the backoff schedule once the rotation
// wraps around.
type nameserverSelector struct {
	port int

	addrs []string
	index int

	// round counts how many times the rotation has reached position 0
	// (the first time starts round 1); backoff is returned only on the
	// first call of each round after the first.
	round int

	retryWithTCP bool
	lastAddr     string
}

func newNameserverSelector(addrs []string, port int, rotate bool) *nameserverSelector {
	s := &nameserverSelector{
		port:  port,
		addrs: append([]string(nil), addrs...),
	}
	if rotate && len(s.addrs) > 0 {
		s.index = rand.Intn(len(s.addrs))
	}
	return s
}

// next returns the nameserver to contact, the port, whether to use
// stream transport, and the backoff to sleep before issuing the query.
// backoff is zero except on the first call of each new rotation round,
// where it is 0.1 * 2^(k-1) for the k-th wrap.
func (s *nameserverSelector) next() (addr string, port int, useTCP bool, backoff time.Duration, err error) {
	if len(s.addrs) == 0 {
		return "", 0, false, 0, &NoNameserversError{}
	}

	if s.retryWithTCP {
		s.retryWithTCP = false
		return s.lastAddr, s.port, true, 0, nil
	}

	backoff = s.backoffForIndex(s.index)

	addr = s.addrs[s.index%len(s.addrs)]
	s.index++
	if s.index >= len(s.addrs) {
		s.index = 0
	}

	s.lastAddr = addr
	return addr, s.port, false, backoff, nil
}

// backoffForIndex returns the backoff due when the selector is about to
// serve position idx, which is nonzero exactly when idx==0 and at least
// one full round has already completed.
func (s *nameserverSelector) backoffForIndex(idx int) time.Duration {
	if idx != 0 {
		return 0
	}
	if s.round == 0 {
		s.round++
		return 0
	}
	backoff := 100 * time.Millisecond * time.Duration(1<<(s.round-1))
	s.round++
	return backoff
}

// requestTCPRetry sets the sticky flag that makes the next call to next
// return the same server with useTCP=true.
func (s *nameserverSelector) requestTCPRetry() {
	s.retryWithTCP = true
}

// remove deletes addr from the rotation, normalizing the index modulo
// the new length. It is a no-op if addr is not present.
func (s *nameserverSelector) remove(addr string) {
	for i, a := range s.addrs {
		if a != addr {
			continue
		}
		s.addrs = append(s.addrs[:i], s.addrs[i+1:]...)
		if len(s.addrs) == 0 {
			s.index = 0
			return
		}
		s.index = s.index % len(s.addrs)
		return
	}
}

// empty reports whether every nameserver has been removed.
func (s *nameserverSelector) empty() bool {
	return len(s.addrs) == 0
}
