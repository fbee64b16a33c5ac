package main

import (
	"time"

	"github.com/markdingo/dnsbench/internal/flagutil"
)

// config holds every command-line-derived setting, mirroring the teacher's
// "one struct, populated by parseCommandLine" convention.
type config struct {
	help    bool
	verbose bool
	version bool

	listenAddress  string
	configDir      string
	dbPath         string
	statusInterval time.Duration

	// Optional immediate-run convenience flags: if at least one -domain is
	// given, dnsbenchd starts a custom run at startup using -resolver (or
	// the configured default set, if none given) against -domain before
	// settling into its normal serve loop.
	resolvers flagutil.StringValue
	domains   flagutil.StringValue
}
