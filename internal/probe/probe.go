// Package probe implements the Resolver Probe (spec.md §4.1): issuing
// exactly one A-record recursive query at one resolver with a deadline,
// timing it with a monotonic clock, and classifying the outcome into the
// ProbeResult taxonomy.
//
// The exchange and error classification are grounded on the teacher's
// internal/resolver/local.Resolve() rcode switch, simplified down from a
// multi-attempt res_send()-style loop (retry belongs to the scheduler, per
// spec.md §4.1 "Retry policy is external") to exactly one dns.Client.Exchange
// call per invocation — mirroring other_examples' james-gonzalez-dns-bench
// Client.Measure(), which also constructs a fresh *dns.Client per query so
// concurrent probes never share mutable client state.
//
// A truncated UDP response is retried once over TCP, the same fallback the
// teacher's local resolver performs ("Fall back to TCP?" in
// internal/resolver/local/resolver.go) — the retry is folded into the one
// ProbeResult rather than tracked as a separate attempt, since from the
// scheduler's point of view it is still a single probe of (resolver, domain).
package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/markdingo/dnsbench/internal/dnsutil"
	"github.com/markdingo/dnsbench/internal/model"
)

// Exchanger is the single method of *dns.Client used by Prober. It exists
// so tests can substitute a fake exchanger without touching the network —
// the same reason the teacher defines DNSClientExchanger in
// internal/resolver/local.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// NewExchangerFunc constructs an Exchanger for one query. Overridable in
// tests; the production default returns a fresh *dns.Client per call so
// concurrent probes never share mutable per-query state (spec.md §4.1 rule
// (b)).
type NewExchangerFunc func(timeout time.Duration) Exchanger

func defaultNewExchanger(timeout time.Duration) Exchanger {
	return &dns.Client{Timeout: timeout}
}

// defaultNewTCPExchanger mirrors the teacher's
// config.NewDNSClientExchangerFunc("tcp") fallback client: same timeout, TCP
// transport.
func defaultNewTCPExchanger(timeout time.Duration) Exchanger {
	return &dns.Client{Net: "tcp", Timeout: timeout}
}

// Prober issues single A-record probes against arbitrary resolver
// addresses.
type Prober struct {
	NewExchanger    NewExchangerFunc
	NewTCPExchanger NewExchangerFunc
}

// New constructs a Prober with the production dns.Client-backed exchangers.
func New() *Prober {
	return &Prober{NewExchanger: defaultNewExchanger, NewTCPExchanger: defaultNewTCPExchanger}
}

// Probe issues exactly one A-record query for domain at resolverAddress,
// enforcing deadline. It never returns an error: every outcome, including
// network failure and timeout, is represented in the returned ProbeResult
// (spec.md §7 kind 2 — probe-level failures are data, not engine errors).
func (p *Prober) Probe(ctx context.Context, resolverAddress, domain string, deadline time.Duration) model.ProbeResult {
	newExchanger := p.NewExchanger
	if newExchanger == nil {
		newExchanger = defaultNewExchanger
	}
	newTCPExchanger := p.NewTCPExchanger
	if newTCPExchanger == nil {
		newTCPExchanger = defaultNewTCPExchanger
	}

	server := withDefaultPort(resolverAddress)

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	m.RecursionDesired = true

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now() // monotonic on every Go runtime this engine targets
	exchanger := newExchanger(deadline)
	resp, _, err := exchanger.ExchangeContext(ctx, m, server)

	if err == nil && resp != nil && resp.Truncated {
		tcpExchanger := newTCPExchanger(deadline)
		if tcpResp, _, tcpErr := tcpExchanger.ExchangeContext(ctx, m, server); tcpErr == nil {
			resp = tcpResp // TCP reply supersedes the truncated UDP one
		}
	}
	elapsed := time.Since(start) // one elapsed figure covers the whole probe, fallback included

	result := model.ProbeResult{
		ResolverAddress: resolverAddress,
		Domain:          domain,
		TimingSource:    model.TimingHighPrecision,
		ObservedAt:      time.Now(),
	}

	if err != nil {
		return classifyError(result, err, deadline)
	}

	return classifyResponse(result, resp, elapsed)
}

func classifyError(result model.ProbeResult, err error, deadline time.Duration) model.ProbeResult {
	result.Success = false
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		result.ElapsedMs = msFromDuration(deadline) // deadline expired: report the deadline, not partial progress
		result.ResponseCode = model.RcodeTIMEOUT
		result.ErrorKind = model.ErrDNSTimeout
		return result
	}
	if err == context.DeadlineExceeded {
		result.ElapsedMs = msFromDuration(deadline)
		result.ResponseCode = model.RcodeTIMEOUT
		result.ErrorKind = model.ErrDNSTimeout
		return result
	}
	result.ElapsedMs = msFromDuration(deadline)
	result.ResponseCode = model.RcodeOTHER
	result.ErrorKind = model.ErrNetwork
	result.RawSummary = err.Error()
	return result
}

func classifyResponse(result model.ProbeResult, resp *dns.Msg, elapsed time.Duration) model.ProbeResult {
	result.ElapsedMs = msFromDuration(elapsed)
	result.RawSummary = dnsutil.CompactMsgString(resp)

	switch resp.Rcode {
	case dns.RcodeSuccess:
		ip := firstA(resp)
		if ip == "" {
			result.Success = false
			result.ResponseCode = model.RcodeNOERROR
			result.ErrorKind = model.ErrNoData
			return result
		}
		result.Success = true
		result.ResponseCode = model.RcodeNOERROR
		result.ErrorKind = model.ErrNone
		result.ResolvedIP = ip
		return result

	case dns.RcodeNameError:
		result.Success = false
		result.ResponseCode = model.RcodeNXDOMAIN
		result.ErrorKind = model.ErrNXDomain
		return result

	case dns.RcodeServerFailure:
		result.Success = false
		result.ResponseCode = model.RcodeSERVFAIL
		result.ErrorKind = model.ErrServerFail
		return result

	case dns.RcodeRefused:
		result.Success = false
		result.ResponseCode = model.RcodeREFUSED
		result.ErrorKind = model.ErrRefused
		return result

	default:
		result.Success = false
		result.ResponseCode = model.RcodeOTHER
		result.ErrorKind = model.ErrUnknown
		return result
	}
}

func firstA(resp *dns.Msg) string {
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String()
		}
	}
	return ""
}

func msFromDuration(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// withDefaultPort appends the standard DNS port to a bare IP literal, the
// same adjustment the teacher's local resolver does when turning
// resolv.conf nameserver entries into dial targets.
func withDefaultPort(address string) string {
	if strings.Contains(address, "]") { // already bracketed ipv6:port
		return address
	}
	if ip := net.ParseIP(address); ip != nil {
		if ip.To4() == nil { // bare ipv6 literal
			return "[" + address + "]:53"
		}
		return address + ":53"
	}
	return address // already host:port or [ipv6]:port
}
