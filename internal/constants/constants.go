/*
Package constants provides common values used across all dnsbench packages. Usage is to call the
global Get() function which returns the Constants by value ensuring that any modifications made
(accidental or otherwise) will not affect other modules when they call Get().

Typically usage:

    consts := constants.Get()
    fmt.Println("I am", consts.ProgramName, "version", consts.Version)

The primary reason for making this a constructed struct rather than the more typical const () block
is so that it can be fed directly into templating packages for printing usage messages.
*/
package constants

import "time"

// Constants contains the system-wide constants
type Constants struct {
	ProgramName string
	Version     string
	PackageName string
	PackageURL  string

	DefaultListenAddress string
	HealthPath           string
	WebSocketPath        string

	SettingsLocalDNSPath      string
	SettingsPublicDNSPath     string
	SettingsTestConfigPath    string
	SettingsNetworkPolicyPath string
	BenchmarkStartPath        string
	ResultsPath               string
	DNSCurrentPath            string

	ContentTypeJSON string

	DNSDefaultPort string // Appended to a bare IP literal that lacks one

	DefaultQueryTimeout    time.Duration
	DefaultMaxConcurrency  int
	DefaultMaxRetries      int
	DefaultInterQueryDelay time.Duration
	DefaultRunWallclockCap time.Duration
	DefaultStatusInterval  time.Duration

	MaxLocalResolvers  int // Invariant from spec.md §4.7
	MaxPublicResolvers int

	QuickDomainDefault  int
	FullDomainDefault   int
	CustomDomainDefault int
}

var readOnlyConstants *Constants

// createReadOnlyConstants creates a read-only copy of the Constants which is copied whenever a
// caller asks for the constants set. The main reason for returning a struct is so that callers can
// inspect and/or use packages that introspect - particularly text/template packages.
func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		ProgramName: "dnsbenchd",
		Version:     "v0.1.0",
		PackageName: "DNS Resolver Benchmark Engine",
		PackageURL:  "https://github.com/markdingo/dnsbench",

		DefaultListenAddress: ":8787",
		HealthPath:           "/health",
		WebSocketPath:        "/ws/benchmark",

		SettingsLocalDNSPath:      "/settings/local-dns",
		SettingsPublicDNSPath:     "/settings/public-dns",
		SettingsTestConfigPath:    "/settings/test-config",
		SettingsNetworkPolicyPath: "/settings/network-policy",
		BenchmarkStartPath:        "/benchmark/start",
		ResultsPath:               "/results",
		DNSCurrentPath:            "/dns/current",

		ContentTypeJSON: "application/json",

		DNSDefaultPort: "53",

		DefaultQueryTimeout:    4 * time.Second,
		DefaultMaxConcurrency:  4,
		DefaultMaxRetries:      1,
		DefaultInterQueryDelay: 0,
		DefaultRunWallclockCap: 10 * time.Minute,
		DefaultStatusInterval:  60 * time.Second,

		MaxLocalResolvers:  10,
		MaxPublicResolvers: 20,

		QuickDomainDefault:  10,
		FullDomainDefault:   50,
		CustomDomainDefault: 20,
	}
}

func init() {
	createReadOnlyConstants()
}

// Get returns a copy of the Constant struct. Return by value so internal values cannot be
// inadvertently changed by callers.
func Get() Constants {
	return *readOnlyConstants
}
