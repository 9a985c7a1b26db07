package stubresolve

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// startUDPEchoServer starts a UDP DNS server on loopback that answers every
// query with a single A record, and returns its address.
func startUDPEchoServer(t *testing.T) string {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{
		PacketConn: conn,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			w.WriteMsg(successResponse(r.Question[0].Name, dns.TypeA, 300, "192.0.2.10"))
		}),
	}

	t.Cleanup(func() { srv.Shutdown() })

	go srv.ActivateAndServe()

	return conn.LocalAddr().String()
}

// startTCPEchoServer starts a TCP DNS server on loopback that answers every
// query with a single A record, and returns its address.
func startTCPEchoServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{
		Listener: ln,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			w.WriteMsg(successResponse(r.Question[0].Name, dns.TypeA, 300, "192.0.2.10"))
		}),
	}

	t.Cleanup(func() { srv.Shutdown() })

	go srv.ActivateAndServe()

	return ln.Addr().String()
}

func TestDNSTransport_DatagramQuery_withBoundSource(t *testing.T) {
	addr := startUDPEchoServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	msg := new(dns.Msg)
	msg.SetQuestion("www.example.com.", dns.TypeA)

	transport := DNSTransport{}
	resp, err := transport.DatagramQuery(
		context.Background(), msg, host, port,
		net.ParseIP("127.0.0.1"), 0,
		time.Now().Add(2*time.Second), false,
	)
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
	require.Equal(t, "192.0.2.10", resp.Answer[0].(*dns.A).A.String())
}

func TestDNSTransport_StreamQuery_withBoundSource(t *testing.T) {
	addr := startTCPEchoServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	msg := new(dns.Msg)
	msg.SetQuestion("www.example.com.", dns.TypeA)

	transport := DNSTransport{}
	resp, err := transport.StreamQuery(
		context.Background(), msg, host, port,
		net.ParseIP("127.0.0.1"), 0,
		time.Now().Add(2*time.Second),
	)
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
	require.Equal(t, "192.0.2.10", resp.Answer[0].(*dns.A).A.String())
}
