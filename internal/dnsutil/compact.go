// Package dnsutil renders a compact, single-line summary of a DNS message
// for use as ProbeResult.raw_summary (internal/probe/probe.go) — enough to
// tell an operator what an A-record probe actually got back (an answer, a
// CNAME chain, a negative-cached SOA, a referral) without dumping the full
// dns.Msg.
package dnsutil

import (
	"fmt"

	"github.com/miekg/dns"
)

// CompactMsgString generates a relatively compact single-line, printable
// representation of the parts of a dns.Msg a resolver benchmark probe cares
// about. The output is intended to be well suited to printing to a log or
// as ProbeResult.raw_summary.
//
// The generated format is: ID/Op/rcode (bits) IN/type/qname ACount/NCount/ECount Answers Auths Extras
func CompactMsgString(m *dns.Msg) string {
	bits := ""
	if m.MsgHdr.Response {
		bits += "R"
	}
	if m.MsgHdr.Authoritative {
		bits += "A"
	}
	if m.MsgHdr.Truncated {
		bits += "T"
	}
	if m.MsgHdr.RecursionDesired {
		bits += "d"
	}
	if m.MsgHdr.RecursionAvailable {
		bits += "a"
	}
	if m.MsgHdr.Zero {
		bits += "Z"
	}
	if m.MsgHdr.AuthenticatedData {
		bits += "s"
	}
	if m.MsgHdr.CheckingDisabled {
		bits += "x"
	}

	qClass := "?"
	qType := "?"
	qName := "?"
	if len(m.Question) > 0 {
		q := m.Question[0]
		qClass = dns.ClassToString[q.Qclass]
		qType = dns.TypeToString[q.Qtype]
		qName = q.Name
	}
	opCode := "?"
	ok := false
	if opCode, ok = dns.OpcodeToString[m.MsgHdr.Opcode]; ok && len(opCode) >= 2 {
		opCode = opCode[0:2]
	}
	s := fmt.Sprintf("%d/%s/%d (%s) %s/%s/%s %d/%d/%d",
		m.MsgHdr.Id, opCode, m.MsgHdr.Rcode, bits,
		qClass, qType, qName, len(m.Answer), len(m.Ns), len(m.Extra))
	s += " A:" + CompactRRsString(m.Answer) + " N:" + CompactRRsString(m.Ns) + " E:" + CompactRRsString(m.Extra)

	return s
}

// CompactRRsString generates a compact String() representation of an array
// of dns.RRs. Only the record types an A-record benchmark probe realistically
// sees in an answer, authority, or additional section are rendered in
// detail (A, AAAA — a resolver that hands back an AAAA glue record alongside
// the A is worth seeing; CNAME — the chain a probe followed; SOA — the
// negative-caching record that comes back with NXDOMAIN/NODATA; NS — the
// referral/delegation record): everything else, including EDNS0/OPT
// options, is unused by this engine's plain-UDP/TCP A-record probes and
// collapses to its bare type name.
func CompactRRsString(rrs []dns.RR) string {
	s := ""
	sep := ""
	for _, interfaceRR := range rrs {
		s += sep
		sep = "/"
		switch rr := interfaceRR.(type) {
		case *dns.A:
			s += "A*" + rr.A.String()
		case *dns.AAAA:
			s += "AAAA*" + rr.AAAA.String()
		case *dns.CNAME:
			s += "CNAME*" + rr.Target
		case *dns.SOA:
			s += fmt.Sprintf("SOA*%s-%d", rr.Ns, rr.Serial)
		case *dns.NS:
			s += "NS*" + rr.Ns
		case *dns.MX:
			s += fmt.Sprintf("MX*%d-%s", rr.Preference, rr.Mx)
		default:
			s += dns.TypeToString[interfaceRR.Header().Rrtype]
		}
	}

	return s
}
