// Package config implements the Configuration Store (C7): four JSON
// documents (local resolvers, public resolvers, test profile, network
// policy), each loadable at process start and rewritten atomically on
// update.
//
// The write-temp-then-rename durability pattern and the load/save-locked
// split are grounded on the pack sibling
// go-mizu-mizu/blueprints/bot/pkg/session.FileStore
// (loadIndexLocked/saveIndexLocked over a single JSON index file),
// generalized from one index file to four independent documents guarded by
// one mutex each.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/markdingo/dnsbench/internal/model"
)

// LocalResolvers is the local_resolvers document (spec.md §4.7).
type LocalResolvers struct {
	Servers []LocalServer `json:"servers"`
}

type LocalServer struct {
	Address string `json:"address"`
	Enabled bool   `json:"enabled"`
}

// PublicResolvers is the public_resolvers document (spec.md §4.7).
type PublicResolvers struct {
	Servers []model.Resolver `json:"servers"`
}

// NetworkPolicy is the network_policy document (spec.md §4.7, §4.8).
type NetworkPolicy struct {
	AllowIPAccess       bool     `json:"allow_ip_access"`
	AllowHostnameAccess bool     `json:"allow_hostname_access"`
	CustomOrigins       []string `json:"custom_origins"`
}

// Store holds the four configuration documents, each independently
// guarded and independently persisted under dir.
type Store struct {
	dir string

	localMu   sync.Mutex
	local     LocalResolvers
	publicMu  sync.Mutex
	public    PublicResolvers
	profileMu sync.Mutex
	profile   model.TestProfile
	policyMu  sync.Mutex
	policy    NetworkPolicy
}

const (
	localResolversFile  = "local_resolvers.json"
	publicResolversFile = "public_resolvers.json"
	testProfileFile     = "test_profile.json"
	networkPolicyFile   = "network_policy.json"
)

// Open loads (or initializes with defaults) the four documents under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create dir: %w", err)
	}
	s := &Store{dir: dir}

	if err := loadOrInit(filepath.Join(dir, localResolversFile), &s.local, LocalResolvers{}); err != nil {
		return nil, err
	}
	if err := loadOrInit(filepath.Join(dir, publicResolversFile), &s.public, defaultPublicResolvers()); err != nil {
		return nil, err
	}
	if err := loadOrInit(filepath.Join(dir, testProfileFile), &s.profile, defaultTestProfile()); err != nil {
		return nil, err
	}
	if err := loadOrInit(filepath.Join(dir, networkPolicyFile), &s.policy, NetworkPolicy{AllowIPAccess: true}); err != nil {
		return nil, err
	}
	return s, nil
}

func loadOrInit[T any](path string, dst *T, fallback T) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		*dst = fallback
		return writeAtomic(path, fallback)
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("config: write temp %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: rename %s: %w", path, err)
	}
	return nil
}

// LocalResolvers returns a snapshot of the local_resolvers document.
func (s *Store) LocalResolvers() LocalResolvers {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	return s.local
}

// PutLocalResolvers validates and atomically replaces local_resolvers
// (spec.md §4.7: ≤10 entries, valid IP literal when enabled).
func (s *Store) PutLocalResolvers(doc LocalResolvers) error {
	if len(doc.Servers) > 10 {
		return fmt.Errorf("config: local_resolvers exceeds the 10-entry limit")
	}
	for _, server := range doc.Servers {
		if server.Enabled && net.ParseIP(server.Address) == nil {
			return fmt.Errorf("config: local resolver %q is not a valid IP literal", server.Address)
		}
	}
	s.localMu.Lock()
	defer s.localMu.Unlock()
	if err := writeAtomic(filepath.Join(s.dir, localResolversFile), doc); err != nil {
		return err
	}
	s.local = doc
	return nil
}

// PublicResolvers returns a snapshot of the public_resolvers document.
func (s *Store) PublicResolvers() PublicResolvers {
	s.publicMu.Lock()
	defer s.publicMu.Unlock()
	return s.public
}

// PutPublicResolvers validates and atomically replaces public_resolvers.
// Built-in entries may be toggled or renamed but never removed or have
// their origin changed (spec.md §4.7).
func (s *Store) PutPublicResolvers(doc PublicResolvers) error {
	if len(doc.Servers) > 20 {
		return fmt.Errorf("config: public_resolvers exceeds the 20-entry limit")
	}
	builtins := defaultPublicResolvers()
	for _, required := range builtins.Servers {
		found := false
		for _, candidate := range doc.Servers {
			if candidate.Address == required.Address {
				if candidate.Origin != required.Origin {
					return fmt.Errorf("config: built-in resolver %s (%s) may not change origin", required.DisplayName, required.Address)
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("config: built-in resolver %s (%s) may not be removed", required.DisplayName, required.Address)
		}
	}
	s.publicMu.Lock()
	defer s.publicMu.Unlock()
	if err := writeAtomic(filepath.Join(s.dir, publicResolversFile), doc); err != nil {
		return err
	}
	s.public = doc
	return nil
}

// TestProfile returns a snapshot of the test_profile document.
func (s *Store) TestProfile() model.TestProfile {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	return s.profile
}

// PutTestProfile validates and atomically replaces test_profile, enforcing
// the numeric invariants of spec.md §3 at every mutation. The copy that
// Open reads from disk is not validated.
func (s *Store) PutTestProfile(profile model.TestProfile) error {
	if err := ValidateTestProfile(profile); err != nil {
		return err
	}
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	if err := writeAtomic(filepath.Join(s.dir, testProfileFile), profile); err != nil {
		return err
	}
	s.profile = profile
	return nil
}

// ValidateTestProfile enforces spec.md §3's TestProfile ranges: domain
// counts per run kind (quick 5-50, full 10-200, custom 1-500),
// max_concurrent_servers (1-10), query_timeout_ms (1000-10000), max_retries
// (0-5), inter_query_delay_ms (0-1000), and analysis.min_reliability_pct
// (50-100). Called both from PutTestProfile and from /benchmark/start's
// profile_overrides handling, so an override can never smuggle an
// out-of-range value past the one place the persisted profile is validated.
func ValidateTestProfile(p model.TestProfile) error {
	if err := inRange("domain_counts.quick", p.DomainCounts.Quick, 5, 50); err != nil {
		return err
	}
	if err := inRange("domain_counts.full", p.DomainCounts.Full, 10, 200); err != nil {
		return err
	}
	if err := inRange("domain_counts.custom", p.DomainCounts.Custom, 1, 500); err != nil {
		return err
	}
	if err := inRange("performance.max_concurrent_servers", p.Performance.MaxConcurrentServers, 1, 10); err != nil {
		return err
	}
	if err := inRange("performance.query_timeout_ms", p.Performance.QueryTimeoutMs, 1000, 10000); err != nil {
		return err
	}
	if err := inRange("performance.max_retries", p.Performance.MaxRetries, 0, 5); err != nil {
		return err
	}
	if err := inRange("performance.inter_query_delay_ms", p.Performance.InterQueryDelayMs, 0, 1000); err != nil {
		return err
	}
	if err := inRange("analysis.min_reliability_pct", p.Analysis.MinReliabilityPct, 50, 100); err != nil {
		return err
	}
	return nil
}

func inRange(field string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("config: %s=%d out of range [%d,%d]", field, value, min, max)
	}
	return nil
}

// NetworkPolicy returns a snapshot of the network_policy document.
func (s *Store) NetworkPolicy() NetworkPolicy {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	return s.policy
}

// PutNetworkPolicy validates and atomically replaces network_policy: every
// custom_origins entry must parse as an absolute URL, since it is matched
// exactly against an incoming Origin header (spec.md §4.8) and a malformed
// entry could never match anything.
func (s *Store) PutNetworkPolicy(policy NetworkPolicy) error {
	for _, origin := range policy.CustomOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: custom_origins entry %q is not an absolute URL", origin)
		}
	}
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	if err := writeAtomic(filepath.Join(s.dir, networkPolicyFile), policy); err != nil {
		return err
	}
	s.policy = policy
	return nil
}

// defaultPublicResolvers is the always-present, undeletable built-in set
// of spec.md §4.7, with its documented default enablement.
func defaultPublicResolvers() PublicResolvers {
	mk := func(address, display, provider string, enabled bool) model.Resolver {
		return model.Resolver{
			Address: address, DisplayName: display, ProviderLabel: provider,
			Origin: model.OriginBuiltInPublic, Enabled: enabled,
		}
	}
	return PublicResolvers{Servers: []model.Resolver{
		mk("1.1.1.1", "Cloudflare", "Cloudflare", true),
		mk("1.0.0.1", "Cloudflare (secondary)", "Cloudflare", true),
		mk("8.8.8.8", "Google", "Google", true),
		mk("8.8.4.4", "Google (secondary)", "Google", true),
		mk("9.9.9.9", "Quad9", "Quad9", true),
		mk("149.112.112.112", "Quad9 (secondary)", "Quad9", true),
		mk("208.67.222.222", "OpenDNS", "OpenDNS", false),
		mk("208.67.220.220", "OpenDNS (secondary)", "OpenDNS", false),
		mk("4.2.2.1", "Level3", "Level3", false),
		mk("4.2.2.2", "Level3 (secondary)", "Level3", false),
	}}
}

func defaultTestProfile() model.TestProfile {
	return model.TestProfile{
		DomainCounts: model.DomainCounts{Quick: 10, Full: 50, Custom: 20},
		QueryTypes:   model.QueryTypesProfile{Uncached: true},
		Performance: model.PerformanceProfile{
			MaxConcurrentServers: 4,
			QueryTimeoutMs:       4000,
			MaxRetries:           1,
			InterQueryDelayMs:    0,
		},
		Analysis: model.AnalysisProfile{MinReliabilityPct: 95},
	}
}
