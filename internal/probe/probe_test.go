package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdingo/dnsbench/internal/model"
)

type fakeExchanger struct {
	resp *dns.Msg
	rtt  time.Duration
	err  error
}

func (f *fakeExchanger) ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error) {
	return f.resp, f.rtt, f.err
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func withFake(ex *fakeExchanger) func(time.Duration) Exchanger {
	return func(time.Duration) Exchanger { return ex }
}

func answerMsg(rcode int, ips ...string) *dns.Msg {
	m := new(dns.Msg)
	m.Rcode = rcode
	for _, ip := range ips {
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET},
			A:   net.ParseIP(ip),
		})
	}
	return m
}

func TestProbeSuccess(t *testing.T) {
	p := &Prober{NewExchanger: withFake(&fakeExchanger{resp: answerMsg(dns.RcodeSuccess, "93.184.216.34")})}
	r := p.Probe(context.Background(), "1.1.1.1", "example.com", time.Second)

	require.True(t, r.Success)
	assert.Equal(t, model.RcodeNOERROR, r.ResponseCode)
	assert.Equal(t, model.ErrNone, r.ErrorKind)
	assert.Equal(t, "93.184.216.34", r.ResolvedIP)
	assert.Equal(t, model.TimingHighPrecision, r.TimingSource)
	assert.GreaterOrEqual(t, r.ElapsedMs, 0.0)
}

func TestProbeNoData(t *testing.T) {
	p := &Prober{NewExchanger: withFake(&fakeExchanger{resp: answerMsg(dns.RcodeSuccess)})}
	r := p.Probe(context.Background(), "1.1.1.1", "example.com", time.Second)

	assert.False(t, r.Success)
	assert.Equal(t, model.RcodeNOERROR, r.ResponseCode)
	assert.Equal(t, model.ErrNoData, r.ErrorKind)
	assert.Empty(t, r.ResolvedIP)
}

func TestProbeNXDOMAIN(t *testing.T) {
	p := &Prober{NewExchanger: withFake(&fakeExchanger{resp: answerMsg(dns.RcodeNameError)})}
	r := p.Probe(context.Background(), "1.1.1.1", "nosuchdomain.invalid", time.Second)

	assert.False(t, r.Success)
	assert.Equal(t, model.RcodeNXDOMAIN, r.ResponseCode)
	assert.Equal(t, model.ErrNXDomain, r.ErrorKind)
}

func TestProbeSERVFAIL(t *testing.T) {
	p := &Prober{NewExchanger: withFake(&fakeExchanger{resp: answerMsg(dns.RcodeServerFailure)})}
	r := p.Probe(context.Background(), "1.1.1.1", "example.com", time.Second)

	assert.Equal(t, model.RcodeSERVFAIL, r.ResponseCode)
	assert.Equal(t, model.ErrServerFail, r.ErrorKind)
}

func TestProbeRefused(t *testing.T) {
	p := &Prober{NewExchanger: withFake(&fakeExchanger{resp: answerMsg(dns.RcodeRefused)})}
	r := p.Probe(context.Background(), "1.1.1.1", "example.com", time.Second)

	assert.Equal(t, model.RcodeREFUSED, r.ResponseCode)
	assert.Equal(t, model.ErrRefused, r.ErrorKind)
}

func TestProbeTimeout(t *testing.T) {
	p := &Prober{NewExchanger: withFake(&fakeExchanger{err: timeoutErr{}})}
	r := p.Probe(context.Background(), "1.1.1.1", "example.com", 50*time.Millisecond)

	assert.False(t, r.Success)
	assert.Equal(t, model.RcodeTIMEOUT, r.ResponseCode)
	assert.Equal(t, model.ErrDNSTimeout, r.ErrorKind)
	assert.InDelta(t, 50.0, r.ElapsedMs, 1.0)
}

func TestProbeNetworkError(t *testing.T) {
	p := &Prober{NewExchanger: withFake(&fakeExchanger{err: &net.OpError{Op: "dial", Err: assertErr("refused")}})}
	r := p.Probe(context.Background(), "1.1.1.1", "example.com", time.Second)

	assert.False(t, r.Success)
	assert.Equal(t, model.RcodeOTHER, r.ResponseCode)
	assert.Equal(t, model.ErrNetwork, r.ErrorKind)
	assert.NotEmpty(t, r.RawSummary)
}

func TestProbeTCPFallbackOnTruncation(t *testing.T) {
	udp := &fakeExchanger{resp: func() *dns.Msg { m := answerMsg(dns.RcodeSuccess); m.Truncated = true; return m }()}
	tcp := &fakeExchanger{resp: answerMsg(dns.RcodeSuccess, "93.184.216.34")}
	p := &Prober{NewExchanger: withFake(udp), NewTCPExchanger: withFake(tcp)}
	r := p.Probe(context.Background(), "1.1.1.1", "example.com", time.Second)

	require.True(t, r.Success)
	assert.Equal(t, "93.184.216.34", r.ResolvedIP, "TCP reply should supersede the truncated UDP one")
}

func TestProbeTCPFallbackFailureKeepsUDPReply(t *testing.T) {
	truncated := answerMsg(dns.RcodeSuccess)
	truncated.Truncated = true
	udp := &fakeExchanger{resp: truncated}
	tcp := &fakeExchanger{err: assertErr("connection refused")}
	p := &Prober{NewExchanger: withFake(udp), NewTCPExchanger: withFake(tcp)}
	r := p.Probe(context.Background(), "1.1.1.1", "example.com", time.Second)

	assert.False(t, r.Success)
	assert.Equal(t, model.ErrNoData, r.ErrorKind, "falls back to the truncated UDP reply when the TCP retry itself fails")
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "1.1.1.1:53", withDefaultPort("1.1.1.1"))
	assert.Equal(t, "1.1.1.1:5353", withDefaultPort("1.1.1.1:5353"))
	assert.Equal(t, "[2606:4700:4700::1111]:53", withDefaultPort("2606:4700:4700::1111"))
	assert.Equal(t, "[::1]:5353", withDefaultPort("[::1]:5353"))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
