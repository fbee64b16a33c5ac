// Serve the DNS Resolver Benchmark Engine's HTTP + WebSocket API.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markdingo/dnsbench/internal/api"
	"github.com/markdingo/dnsbench/internal/config"
	"github.com/markdingo/dnsbench/internal/constants"
	"github.com/markdingo/dnsbench/internal/engine"
	"github.com/markdingo/dnsbench/internal/eventbus"
	"github.com/markdingo/dnsbench/internal/logging"
	"github.com/markdingo/dnsbench/internal/model"
	"github.com/markdingo/dnsbench/internal/probe"
	"github.com/markdingo/dnsbench/internal/reporter"
	"github.com/markdingo/dnsbench/internal/signalutil"
	"github.com/markdingo/dnsbench/internal/store"
)

// Program-wide variables
var (
	consts = constants.Get()
	cfg    *config
	log    *zap.Logger

	stdout io.Writer // All I/O goes via these writers
	stderr io.Writer

	startTime   = time.Now()
	stopChannel chan os.Signal
	flagSet     *flag.FlagSet
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.ProgramName, ": ")
	fmt.Fprintln(stderr, args...)

	return 1
}

func stopMain() {
	stopChannel <- os.Interrupt
}

//////////////////////////////////////////////////////////////////////
// main wrappers make it easy for test programs
//////////////////////////////////////////////////////////////////////

// mainInit resets everything such that mainExecute() can be called multiple times in one program
// execution. stopChannel is buffered as the reader may disappear if there is a fatal error and
// multiple writers may try to write to the channel and we don't want those writers to stall forever.
func mainInit(out io.Writer, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
	mainState(initial)
	stopChannel = make(chan os.Signal, 4)
	signalutil.SignalNotify(stopChannel)
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
	defer mainState(stopped) // Tell testers we've stopped even on error returns
	flagSet = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	err := parseCommandLine(args)
	if err != nil {
		return 1 // Error already printed by the flag package
	}
	if cfg.help {
		usage(stdout)
		return 0
	}
	if cfg.version {
		fmt.Fprintln(stdout, consts.ProgramName, "Version:", consts.Version)
		return 0
	}
	if flagSet.NArg() > 0 {
		return fatal("Unexpected parameters on the command line:", strings.Join(flagSet.Args(), " "))
	}

	var err2 error
	log, err2 = logging.New(cfg.verbose)
	if err2 != nil {
		return fatal(err2)
	}
	defer log.Sync()

	cfgStore, err2 := config.Open(cfg.configDir)
	if err2 != nil {
		return fatal(err2)
	}

	resultsStore, err2 := store.Open(cfg.dbPath)
	if err2 != nil {
		return fatal(err2)
	}
	defer resultsStore.Close()

	registry := engine.NewRegistry()
	bus := eventbus.New()
	prober := probe.New()
	scheduler := engine.NewScheduler(registry, bus, prober, resultsStore, consts.DefaultRunWallclockCap)

	apiServer := api.New(log, cfgStore, registry, scheduler, bus, resultsStore, cfg.listenAddress)

	var reporters []reporter.Reporter
	reporters = append(reporters, registry)
	reporters = append(reporters, scheduler)
	reporters = append(reporters, bus)
	reporters = append(reporters, resultsStore)
	reporters = append(reporters, apiServer)

	if cfg.verbose {
		fmt.Fprintln(stdout, consts.ProgramName, consts.Version, "Starting")
		fmt.Fprintln(stdout, "Listening:", cfg.listenAddress)
		fmt.Fprintln(stdout, "Config dir:", cfg.configDir)
		fmt.Fprintln(stdout, "Result store:", cfg.dbPath)
	}

	errorChannel := make(chan error, 1)
	wg := &sync.WaitGroup{}
	apiServer.Start(errorChannel, wg)

	if cfg.domains.NArg() > 0 {
		runID, err2 := startupRun(cfgStore, scheduler, cfg.resolvers.Unique(), cfg.domains.Unique())
		if err2 != nil {
			fmt.Fprintln(stderr, "Warning: start-up run failed to start:", err2)
		} else if cfg.verbose {
			fmt.Fprintln(stdout, "Start-up run:", runID)
		}
	}

	// Loop forever giving periodic status reports and checking for a termination event.

	mainState(started) // Tell testers we're up and running
	nextStatusIn := nextInterval(time.Now(), cfg.statusInterval)

Running:
	for {
		select {
		case s := <-stopChannel:
			if signalutil.IsSignalUSR1(s) {
				statusReport("User1", false, reporters)
				break
			}
			if cfg.verbose {
				fmt.Fprintln(stdout, "\nSignal", s)
			}
			break Running // All signals bar USR1 cause loop exit

		case err2 := <-errorChannel:
			return fatal(err2) // No cleanup if we get a server startup error

		case <-time.After(nextStatusIn):
			if cfg.verbose {
				statusReport("Status", true, reporters)
			}
			nextStatusIn = nextInterval(time.Now(), cfg.statusInterval)
		}
	}

	// Shutting down

	apiServer.Stop()
	mainState(stopped) // Tell testers we've stopped accepting requests
	wg.Wait()          // Wait for the HTTP listener to completely shut down

	if cfg.verbose {
		statusReport("Status", true, reporters) // One last report prior to exiting
		fmt.Fprintln(stdout, consts.ProgramName, consts.Version, "Exiting after", uptime())
	}

	return 0
}

// startupRun converts -resolver/-domain convenience flags into one custom
// run, started the same way the API's /benchmark/start does. Falls back to
// the persisted default test profile.
func startupRun(cfgStore *config.Store, scheduler *engine.Scheduler, resolverAddrs, domains []string) (string, error) {
	resolvers := make([]model.Resolver, 0, len(resolverAddrs))
	for _, addr := range resolverAddrs {
		resolvers = append(resolvers, model.Resolver{Address: addr, DisplayName: addr})
	}
	var err error
	if len(resolvers) == 0 {
		resolvers, err = cfgStore.SelectResolvers(model.KindQuick, nil)
	} else {
		resolvers, err = cfgStore.SelectResolvers(model.KindCustom, resolvers)
	}
	if err != nil {
		return "", err
	}
	return scheduler.Start(resolvers, domains, model.KindCustom, cfgStore.TestProfile())
}

// nextInterval calculates the duration to now+modulo interval. If now is 00:01:17 and the interval
// is 15m then the returned duration is 13m43s which is the distance to 00:15:00. The idea is to
// provide a wait/sleep value which gets the caller to the next interval tick-over.
func nextInterval(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}

// uptime calculates how long this process has been running.
func uptime() string {
	return time.Now().Sub(startTime).Truncate(time.Second).String()
}

// statusReport prints stats about every known reporter.
func statusReport(what string, resetCounters bool, reporters []reporter.Reporter) {
	fmt.Fprintln(stdout, "Status Up:", consts.ProgramName, consts.Version, uptime())
	for _, r := range reporters {
		reps := strings.Split(r.Report(resetCounters), "\n")
		for _, s := range reps {
			if len(s) > 0 {
				fmt.Fprintf(stdout, "%s %s: %s\n", what, r.Name(), s)
			}
		}
	}
}
