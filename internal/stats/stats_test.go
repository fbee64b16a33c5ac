package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdingo/dnsbench/internal/model"
)

func resolver(addr, name string, origin model.ResolverOrigin) model.Resolver {
	return model.Resolver{Address: addr, DisplayName: name, Origin: origin, Enabled: true}
}

func probe(addr, domain string, success bool, ms float64, kind model.ErrorKind) model.ProbeResult {
	rc := model.RcodeNOERROR
	switch kind {
	case model.ErrDNSTimeout:
		rc = model.RcodeTIMEOUT
	case model.ErrNXDomain:
		rc = model.RcodeNXDOMAIN
	case model.ErrServerFail:
		rc = model.RcodeSERVFAIL
	}
	return model.ProbeResult{
		ResolverAddress: addr,
		Domain:          domain,
		Success:         success,
		ElapsedMs:       ms,
		TimingSource:    model.TimingHighPrecision,
		ResponseCode:    rc,
		ErrorKind:       kind,
	}
}

func TestSummarizeHappyPathOneResolver(t *testing.T) {
	resolvers := []model.Resolver{resolver("8.8.8.8", "Google", model.OriginBuiltInPublic)}
	probes := []model.ProbeResult{
		probe("8.8.8.8", "google.com", true, 10, model.ErrNone),
		probe("8.8.8.8", "github.com", true, 20, model.ErrNone),
	}

	summaries, failures := Summarize(resolvers, probes)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 100.0, s.SuccessRatePct)
	require.NotNil(t, s.AvgMs)
	assert.Equal(t, 15.0, *s.AvgMs)
	assert.Empty(t, failures)
}

func TestSummarizeAllFailUpstreamBlocked(t *testing.T) {
	resolvers := []model.Resolver{
		resolver("1.1.1.1", "Cloudflare", model.OriginBuiltInPublic),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
		resolver("9.9.9.9", "Quad9", model.OriginBuiltInPublic),
	}
	domain := "this-domain-definitely-does-not-exist-12345.example"
	probes := []model.ProbeResult{
		probe("1.1.1.1", domain, false, 5, model.ErrNXDomain),
		probe("8.8.8.8", domain, false, 5, model.ErrNXDomain),
		probe("9.9.9.9", domain, false, 5, model.ErrNXDomain),
	}

	_, failures := Summarize(resolvers, probes)
	require.Len(t, failures, 1)
	f := failures[0]
	assert.True(t, f.FailedOnAllResolvers)
	assert.Equal(t, model.PatternConsistentNXDOMAIN, f.FailurePattern)
	assert.Equal(t, model.HintLikelyUpstreamBlocked, f.UpstreamHint)
}

func TestSummarizeUnreachableResolverRanksLast(t *testing.T) {
	resolvers := []model.Resolver{
		resolver("192.0.2.1", "Unreachable", model.OriginCustomPublic),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
	}
	probes := []model.ProbeResult{
		probe("192.0.2.1", "google.com", false, 1500, model.ErrDNSTimeout),
		probe("8.8.8.8", "google.com", true, 12, model.ErrNone),
	}

	summaries, _ := Summarize(resolvers, probes)
	require.Len(t, summaries, 2)
	assert.Equal(t, "8.8.8.8", summaries[0].ResolverAddress)
	assert.Equal(t, "192.0.2.1", summaries[1].ResolverAddress)
	assert.Nil(t, summaries[1].AvgMs)
	assert.Equal(t, 0.0, summaries[1].SuccessRatePct)
}

func TestLowerMedianTieBreak(t *testing.T) {
	resolvers := []model.Resolver{resolver("8.8.8.8", "Google", model.OriginBuiltInPublic)}
	probes := []model.ProbeResult{
		probe("8.8.8.8", "a.com", true, 10, model.ErrNone),
		probe("8.8.8.8", "b.com", true, 20, model.ErrNone),
		probe("8.8.8.8", "c.com", true, 30, model.ErrNone),
		probe("8.8.8.8", "d.com", true, 40, model.ErrNone),
	}
	summaries, _ := Summarize(resolvers, probes)
	require.NotNil(t, summaries[0].MedianMs)
	assert.Equal(t, 20.0, *summaries[0].MedianMs, "even-sized set takes the lower of the two middle values")
}

func TestRankingTieBreakOrder(t *testing.T) {
	resolvers := []model.Resolver{
		resolver("a", "Beta", model.OriginBuiltInPublic),
		resolver("b", "Alpha", model.OriginBuiltInPublic),
	}
	probes := []model.ProbeResult{
		probe("a", "x.com", true, 10, model.ErrNone),
		probe("b", "x.com", true, 10, model.ErrNone),
	}
	summaries, _ := Summarize(resolvers, probes)
	require.Len(t, summaries, 2)
	assert.Equal(t, "Alpha", summaries[0].DisplayName, "equal avg_ms and success_rate_pct tie-break on display_name")
}

func TestRepeatOffenders(t *testing.T) {
	probes := []model.ProbeResult{
		probe("a", "flaky.com", false, 5, model.ErrDNSTimeout),
		probe("b", "flaky.com", false, 5, model.ErrDNSTimeout),
		probe("a", "onceonly.com", false, 5, model.ErrDNSTimeout),
		probe("a", "ok.com", true, 5, model.ErrNone),
	}
	offenders := RepeatOffenders(probes)
	assert.Equal(t, []string{"flaky.com"}, offenders)
}

func TestLikelyLocalIssue(t *testing.T) {
	resolvers := []model.Resolver{
		resolver("192.168.1.1", "Local Router", model.OriginLocal),
		resolver("8.8.8.8", "Google", model.OriginBuiltInPublic),
	}
	probes := []model.ProbeResult{
		probe("192.168.1.1", "site.com", false, 5, model.ErrDNSTimeout),
		probe("8.8.8.8", "site.com", true, 12, model.ErrNone),
	}
	_, failures := Summarize(resolvers, probes)
	require.Len(t, failures, 1)
	assert.Equal(t, model.HintLikelyLocalIssue, failures[0].UpstreamHint)
	assert.Equal(t, model.PatternServerSpecific, failures[0].FailurePattern)
}

func TestErrorTypeCounts(t *testing.T) {
	probes := []model.ProbeResult{
		probe("a", "1.com", false, 5, model.ErrDNSTimeout),
		probe("a", "2.com", false, 5, model.ErrDNSTimeout),
		probe("a", "3.com", false, 5, model.ErrNXDomain),
		probe("a", "4.com", true, 5, model.ErrNone),
	}
	counts := ErrorTypeCounts(probes)
	require.Len(t, counts, 2)
	assert.Equal(t, model.ErrDNSTimeout, counts[0].ErrorKind)
	assert.Equal(t, 2, counts[0].Count)
}

func TestSummarizeDeterministic(t *testing.T) {
	resolvers := []model.Resolver{resolver("8.8.8.8", "Google", model.OriginBuiltInPublic)}
	probes := []model.ProbeResult{
		probe("8.8.8.8", "a.com", true, 11, model.ErrNone),
		probe("8.8.8.8", "b.com", true, 22, model.ErrNone),
	}
	s1, f1 := Summarize(resolvers, probes)
	s2, f2 := Summarize(resolvers, probes)
	assert.Equal(t, s1, s2)
	assert.Equal(t, f1, f2)
}
