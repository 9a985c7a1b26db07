package stubresolve

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
)

// Truncated is returned by a Transport's DatagramQuery when the server's
// response has the TC bit set and raiseOnTruncation was true.
var Truncated = errors.New("response truncated")

// NotImplemented is returned by a Transport when the requested endpoint
// kind (e.g. a DoH-only server) isn't supported.
var NotImplemented = errors.New("transport does not support this endpoint")

// FormatError is returned when an exchange yields neither a response
// message nor an error. Parse failures reported by the DNS client are
// returned as they are.
var FormatError = errors.New("malformed response")

// Transport is the capability the Resolution driver consumes to
// actually put bytes on the wire. Implementations must be safe for
// concurrent use; the default implementation, DNSTransport, is.
type Transport interface {
	// DatagramQuery sends msg over UDP to nameserver:port and awaits a
	// single reply. If raiseOnTruncation is true and the reply has TC
	// set, it returns Truncated along with the (incomplete) message.
	DatagramQuery(ctx context.Context, msg *dns.Msg, nameserver string, port int, source net.IP, sourcePort int, deadline time.Time, raiseOnTruncation bool) (*dns.Msg, error)

	// StreamQuery sends msg over TCP to nameserver:port and awaits a
	// single reply. It never reports truncation since a stream carries
	// the full message.
	StreamQuery(ctx context.Context, msg *dns.Msg, nameserver string, port int, source net.IP, sourcePort int, deadline time.Time) (*dns.Msg, error)
}

// DNSTransport is the default Transport, built on *dns.Client exactly
// the way the teacher's Resolver.doQuery issues queries.
type DNSTransport struct{}

var _ Transport = DNSTransport{}

func (DNSTransport) DatagramQuery(ctx context.Context, msg *dns.Msg, nameserver string, port int, source net.IP, sourcePort int, deadline time.Time, raiseOnTruncation bool) (*dns.Msg, error) {
	client := &dns.Client{
		Net:    "udp",
		Dialer: udpDialerFor(source, sourcePort),
	}

	resp, err := exchange(ctx, client, msg, nameserver, port, deadline)
	if err != nil {
		return nil, err
	}

	if raiseOnTruncation && resp.Truncated {
		return resp, Truncated
	}

	return resp, nil
}

func (DNSTransport) StreamQuery(ctx context.Context, msg *dns.Msg, nameserver string, port int, source net.IP, sourcePort int, deadline time.Time) (*dns.Msg, error) {
	client := &dns.Client{
		Net:    "tcp",
		Dialer: tcpDialerFor(source, sourcePort),
	}

	return exchange(ctx, client, msg, nameserver, port, deadline)
}

// udpDialerFor and tcpDialerFor bind a dialer's LocalAddr with a network
// matching the Client they're attached to: net.Resolver rejects a dial
// whose remote address family doesn't match the LocalAddr hint's
// Network(), so a UDPAddr can't be handed to a "tcp" client or vice versa.
func udpDialerFor(source net.IP, sourcePort int) *net.Dialer {
	if source == nil && sourcePort == 0 {
		return nil
	}
	return &net.Dialer{
		LocalAddr: &net.UDPAddr{IP: source, Port: sourcePort},
	}
}

func tcpDialerFor(source net.IP, sourcePort int) *net.Dialer {
	if source == nil && sourcePort == 0 {
		return nil
	}
	return &net.Dialer{
		LocalAddr: &net.TCPAddr{IP: source, Port: sourcePort},
	}
}

func exchange(ctx context.Context, client *dns.Client, msg *dns.Msg, nameserver string, port int, deadline time.Time) (*dns.Msg, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	if port == 0 {
		port = 53
	}
	addr := net.JoinHostPort(nameserver, strconv.Itoa(port))

	resp, _, err := client.ExchangeContext(ctx, msg, addr)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, FormatError
	}

	return resp, nil
}
