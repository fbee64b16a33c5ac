// Package stats implements the Statistics Aggregator (C3): a pure,
// deterministic function from one run's ProbeResults to its ranked
// ServerSummary rows and per-domain FailureAnalysis rows.
//
// The per-server accumulation pattern is grounded on the teacher's
// internal/bestserver/latency.go (accumulate counts and a running figure
// per resolver, keyed by address) generalized from a single running
// weighted average to full min/max/median/avg plus the failure taxonomy
// spec.md §4.3 adds on top.
package stats

import (
	"sort"

	"github.com/markdingo/dnsbench/internal/model"
)

// Summarize computes the ranked ServerSummary list and the per-domain
// FailureAnalysis list for one run's probe results. It is pure: identical
// input always yields byte-identical output (spec.md §4.3, §8).
func Summarize(resolvers []model.Resolver, probes []model.ProbeResult) ([]model.ServerSummary, []model.FailureAnalysis) {
	summaries := summarizeServers(resolvers, probes)
	failures := analyzeFailures(resolvers, probes)
	return summaries, failures
}

type accumulator struct {
	total      int
	successful int
	latencies  []float64 // successful probes only, in completion order
	allHigh    bool
}

func summarizeServers(resolvers []model.Resolver, probes []model.ProbeResult) []model.ServerSummary {
	accs := make(map[string]*accumulator, len(resolvers))
	displayNames := make(map[string]string, len(resolvers))
	for _, r := range resolvers {
		accs[r.Address] = &accumulator{allHigh: true}
		displayNames[r.Address] = r.DisplayName
	}

	for _, p := range probes {
		acc, ok := accs[p.ResolverAddress]
		if !ok {
			acc = &accumulator{allHigh: true}
			accs[p.ResolverAddress] = acc
			displayNames[p.ResolverAddress] = p.ResolverAddress
		}
		acc.total++
		if p.Success {
			acc.successful++
			acc.latencies = append(acc.latencies, p.ElapsedMs)
		}
		if p.TimingSource != model.TimingHighPrecision {
			acc.allHigh = false
		}
	}

	summaries := make([]model.ServerSummary, 0, len(accs))
	for address, acc := range accs {
		s := model.ServerSummary{
			ResolverAddress: address,
			DisplayName:     displayNames[address],
			Total:           acc.total,
			Successful:      acc.successful,
			Failed:          acc.total - acc.successful,
		}
		if acc.total > 0 {
			s.SuccessRatePct = 100 * float64(acc.successful) / float64(acc.total)
		}
		if acc.successful > 0 {
			avg, min, max, median := stats(acc.latencies)
			s.AvgMs, s.MinMs, s.MaxMs, s.MedianMs = &avg, &min, &max, &median
			if acc.allHigh {
				s.TimingPrecision = model.PrecisionHigh
			} else {
				s.TimingPrecision = model.PrecisionMixed
			}
		} else {
			s.TimingPrecision = model.PrecisionFallback
			if acc.allHigh {
				s.TimingPrecision = model.PrecisionHigh
			}
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool { return rankLess(summaries[i], summaries[j]) })
	return summaries
}

// rankLess implements the tie-break chain of spec.md §4.3: avg_ms asc,
// success_rate_pct desc, median_ms asc, display_name asc. Servers with no
// successful probes (avg_ms == nil) sort last regardless of anything else.
func rankLess(a, b model.ServerSummary) bool {
	if (a.AvgMs == nil) != (b.AvgMs == nil) {
		return a.AvgMs != nil // a sorts first iff a has a value and b doesn't
	}
	if a.AvgMs != nil && *a.AvgMs != *b.AvgMs {
		return *a.AvgMs < *b.AvgMs
	}
	if a.SuccessRatePct != b.SuccessRatePct {
		return a.SuccessRatePct > b.SuccessRatePct
	}
	if (a.MedianMs == nil) != (b.MedianMs == nil) {
		return a.MedianMs != nil
	}
	if a.MedianMs != nil && *a.MedianMs != *b.MedianMs {
		return *a.MedianMs < *b.MedianMs
	}
	return a.DisplayName < b.DisplayName
}

// stats computes avg/min/max/lower-median over a non-empty slice of
// latencies, in the order they were appended (completion order), without
// mutating the caller's slice.
func stats(latencies []float64) (avg, min, max, median float64) {
	min, max = latencies[0], latencies[0]
	sum := 0.0
	for _, v := range latencies {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	avg = sum / float64(len(latencies))

	sorted := append([]float64(nil), latencies...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = sorted[n/2-1] // lower-median tie-break (spec.md §4.3)
	}
	return
}

type domainOutcome struct {
	domain          string
	failedResolvers map[string]model.ErrorKind
	totalResolvers  int
}

func analyzeFailures(resolvers []model.Resolver, probes []model.ProbeResult) []model.FailureAnalysis {
	perDomain := make(map[string]*domainOutcome)
	domainOrder := []string{}
	for _, p := range probes {
		d, ok := perDomain[p.Domain]
		if !ok {
			d = &domainOutcome{domain: p.Domain, failedResolvers: make(map[string]model.ErrorKind)}
			perDomain[p.Domain] = d
			domainOrder = append(domainOrder, p.Domain)
		}
		d.totalResolvers++
		if !p.Success {
			d.failedResolvers[p.ResolverAddress] = p.ErrorKind
		}
	}

	// localAddresses drives the "likely_local_issue" heuristic: did every
	// local resolver fail while some non-local resolver succeeded?
	localAddresses := make(map[string]bool)
	for _, r := range resolvers {
		if r.Origin == model.OriginLocal {
			localAddresses[r.Address] = true
		}
	}

	var out []model.FailureAnalysis
	for _, domain := range domainOrder {
		d := perDomain[domain]
		if len(d.failedResolvers) == 0 {
			continue
		}
		distinctResolvers := distinctResolverCount(probes, domain)
		failedAll := len(d.failedResolvers) == distinctResolvers

		pattern := classifyPattern(d.failedResolvers, failedAll, distinctResolvers)
		hint := classifyHint(pattern, failedAll, d.failedResolvers, localAddresses, distinctResolvers)

		out = append(out, model.FailureAnalysis{
			Domain:               domain,
			FailedOnAllResolvers: failedAll,
			FailurePattern:       pattern,
			UpstreamHint:         hint,
		})
	}
	return out
}

func distinctResolverCount(probes []model.ProbeResult, domain string) int {
	seen := make(map[string]bool)
	for _, p := range probes {
		if p.Domain == domain {
			seen[p.ResolverAddress] = true
		}
	}
	return len(seen)
}

func classifyPattern(failed map[string]model.ErrorKind, failedAll bool, distinctResolvers int) model.FailurePattern {
	if !failedAll {
		return model.PatternServerSpecific
	}
	allTimeout, allNXDomain := true, true
	for _, kind := range failed {
		if kind != model.ErrDNSTimeout {
			allTimeout = false
		}
		if kind != model.ErrNXDomain {
			allNXDomain = false
		}
	}
	switch {
	case allTimeout:
		return model.PatternConsistentTimeout
	case allNXDomain:
		return model.PatternConsistentNXDOMAIN
	default:
		return model.PatternMixedErrors
	}
}

func classifyHint(pattern model.FailurePattern, failedAll bool, failed map[string]model.ErrorKind, localAddresses map[string]bool, distinctResolvers int) model.UpstreamHint {
	if failedAll && (pattern == model.PatternConsistentNXDOMAIN || pattern == model.PatternConsistentTimeout) {
		return model.HintLikelyUpstreamBlocked
	}
	if len(localAddresses) > 0 && !failedAll {
		allLocalFailed := true
		for addr := range localAddresses {
			if _, failedHere := failed[addr]; !failedHere {
				allLocalFailed = false
				break
			}
		}
		if allLocalFailed {
			return model.HintLikelyLocalIssue
		}
	}
	return model.HintUnknown
}

// RepeatOffenders returns domains with ≥2 failing probes across ≥2 distinct
// resolvers (spec.md §4.3).
func RepeatOffenders(probes []model.ProbeResult) []string {
	failuresByDomain := make(map[string]map[string]bool)
	order := []string{}
	for _, p := range probes {
		if p.Success {
			continue
		}
		m, ok := failuresByDomain[p.Domain]
		if !ok {
			m = make(map[string]bool)
			failuresByDomain[p.Domain] = m
			order = append(order, p.Domain)
		}
		m[p.ResolverAddress] = true
	}
	var out []string
	for _, domain := range order {
		if len(failuresByDomain[domain]) >= 2 {
			out = append(out, domain)
		}
	}
	sort.Strings(out)
	return out
}

// FailureBreakdown computes the per-resolver failure detail of spec.md
// §4.3: failed_count, failure_rate_pct, and the set of domains that failed
// on that resolver.
func FailureBreakdown(probes []model.ProbeResult) []model.ServerFailureBreakdown {
	type acc struct {
		total, failed int
		domains       map[string]bool
	}
	accs := make(map[string]*acc)
	order := []string{}
	for _, p := range probes {
		a, ok := accs[p.ResolverAddress]
		if !ok {
			a = &acc{domains: make(map[string]bool)}
			accs[p.ResolverAddress] = a
			order = append(order, p.ResolverAddress)
		}
		a.total++
		if !p.Success {
			a.failed++
			a.domains[p.Domain] = true
		}
	}
	sort.Strings(order)

	out := make([]model.ServerFailureBreakdown, 0, len(accs))
	for _, address := range order {
		a := accs[address]
		if a.failed == 0 {
			continue
		}
		domains := make([]string, 0, len(a.domains))
		for d := range a.domains {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		out = append(out, model.ServerFailureBreakdown{
			ResolverAddress: address,
			FailedCount:     a.failed,
			FailureRatePct:  100 * float64(a.failed) / float64(a.total),
			FailedDomains:   domains,
		})
	}
	return out
}

// ErrorTypeCounts computes the run-wide error_kind histogram over failed
// probes, sorted by count descending then error_kind ascending for
// determinism (spec.md §4.3, §8 determinism property).
func ErrorTypeCounts(probes []model.ProbeResult) []model.ErrorTypeCount {
	counts := make(map[model.ErrorKind]int)
	for _, p := range probes {
		if !p.Success {
			counts[p.ErrorKind]++
		}
	}
	out := make([]model.ErrorTypeCount, 0, len(counts))
	for kind, count := range counts {
		out = append(out, model.ErrorTypeCount{ErrorKind: kind, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ErrorKind < out[j].ErrorKind
	})
	return out
}

// Analyze bundles RepeatOffenders/FailureBreakdown/ErrorTypeCounts/failure
// analyses into one model.RunAnalysis. The scheduler builds the same
// aggregate inline rather than calling Analyze.
func Analyze(resolvers []model.Resolver, probes []model.ProbeResult) model.RunAnalysis {
	_, failures := Summarize(resolvers, probes)
	return model.RunAnalysis{
		RepeatOffenders:  RepeatOffenders(probes),
		FailureBreakdown: FailureBreakdown(probes),
		ErrorTypeCounts:  ErrorTypeCounts(probes),
		Failures:         failures,
	}
}
