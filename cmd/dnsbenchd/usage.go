package main

import (
	"fmt"
	"io"
	"text/template"
)

// The "flag" package is not tty aware so we've arbitrarily picked 100 columns as a conservative tty
// width for the usage output.

const usageMessageTemplate = `
NAME
          {{.ProgramName}} -- a DNS resolver benchmark engine

SYNOPSIS
          {{.ProgramName}} [options]

DESCRIPTION
          {{.ProgramName}} probes a set of DNS resolvers against a list of domains, measuring
          latency and reliability per resolver, and exposes the results over an HTTP + WebSocket
          API ({{.PackageURL}}).

          Runs are started via the API ({{.BenchmarkStartPath}}), not the command line; this
          program is the daemon that serves that API. The -resolver/-domain flags are a
          convenience for starting one run immediately at start-up, useful for smoke-testing a
          deployment.

INVOCATION
          The simplest invocation is:

              $ {{.ProgramName}}

          at which point the API is reachable at the default listen address.

OPTIONS
          [-hv] [-version]
          [-listen address]
          [-config-dir directory] [-db path]
          [-i status-report-interval]
          [-resolver address] ... [-domain name] ...

`

func usage(out io.Writer) {
	tmpl, err := template.New("usage").Parse(usageMessageTemplate)
	if err != nil {
		panic(err) // We've messed up our template
	}
	if err := tmpl.Execute(out, consts); err != nil {
		panic(err) // We've messed up our template
	}
	flagSet.SetOutput(out) // This is permanent so we assume an exit summarily
	flagSet.PrintDefaults()
	fmt.Fprintln(out, "\nVersion:", consts.Version)
}

// parseCommandLine sets up the flags-to-config mapping and parses the supplied command line
// arguments. It starts from scratch each time to make it easier for test wrappers to use.
func parseCommandLine(args []string) error {
	flagSet.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.verbose, "v", false, "Verbose status and stats - otherwise only errors are output")
	flagSet.BoolVar(&cfg.version, "version", false, "Print version and exit")

	flagSet.StringVar(&cfg.listenAddress, "listen", consts.DefaultListenAddress, "HTTP `address` to accept API requests")
	flagSet.StringVar(&cfg.configDir, "config-dir", "./dnsbench-config", "`directory` holding the configuration documents")
	flagSet.StringVar(&cfg.dbPath, "db", "./dnsbench-results.sqlite", "`path` to the result database")
	flagSet.DurationVar(&cfg.statusInterval, "i", consts.DefaultStatusInterval, "Periodic Status Report `interval` (needs -v set)")

	flagSet.Var(&cfg.resolvers, "resolver", "Resolver `address` for an immediate start-up run (repeatable)")
	flagSet.Var(&cfg.domains, "domain", "Domain `name` for an immediate start-up run (repeatable)")

	return flagSet.Parse(args[1:])
}
