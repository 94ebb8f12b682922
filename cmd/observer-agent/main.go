package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/config"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/dispatch"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/healthsink"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/observability"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/observer"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/version"
)

const (
	exitOK          = 0
	exitUsage       = 64
	exitConfigError = 65
	exitReportError = 66
	exitStatusError = 67
	exitRunError    = 68
)

func main() {
	exitCode := run(os.Args[1:])
	os.Exit(exitCode)
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	switch args[0] {
	case "run":
		return commandRun(args[1:])
	case "report":
		return commandReport(args[1:])
	case "status":
		return commandStatus(args[1:])
	case "validate-config":
		return commandValidate(args[1:])
	case "version":
		fmt.Println(version.Version)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: observer-agent <command> [options]
Commands:
  run                Run the observation loop until interrupted
  report             Dispatch a single health report to the cluster health store
  status             Display the live cluster health records
  validate-config    Validate the configuration file
  version            Print build version
`)
}

func commandRun(args []string) int {
	return commandRunWithWriters(args, os.Stdout, os.Stderr)
}

func commandRunWithWriters(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultConfigPath, "path to configuration file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return exitConfigError
	}

	sink, err := newSink(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to connect to health store: %v\n", err)
		return exitRunError
	}
	defer sink.Close()

	logger := observability.NewJSONLogger(stdout)
	collector := observability.NewPrometheusCollector()

	dispatcher, err := dispatch.New(sink,
		dispatch.WithNodeName(cfg.NodeName),
		dispatch.WithDefaultTTL(cfg.DefaultTTL()),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(collector),
	)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build dispatcher: %v\n", err)
		return exitRunError
	}

	observers := []observer.Observer{
		observer.NewHeartbeatObserver(observer.WithHeartbeatTTL(cfg.DefaultTTL())),
	}
	runner, err := observer.NewRunner(dispatcher, observers, cfg.ObserveInterval(),
		observer.WithErrorHandler(func(sweepErr error) {
			_ = logger.Log(context.Background(), observability.Event{
				Level:   observability.LevelError,
				Node:    cfg.NodeName,
				Event:   "observer_sweep_failure",
				Message: sweepErr.Error(),
			})
		}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build observation loop: %v\n", err)
		return exitRunError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		server := &http.Server{Addr: cfg.Metrics.Listen, Handler: collector.Handler()}
		go func() {
			if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				fmt.Fprintf(stderr, "metrics listener failed: %v\n", serveErr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	fmt.Fprintf(stdout, "observation loop started for node %s (interval %s)\n", cfg.NodeName, cfg.ObserveInterval())
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "observation loop stopped: %v\n", err)
		return exitRunError
	}
	return exitOK
}

func commandReport(args []string) int {
	return commandReportWithWriters(args, os.Stdout, os.Stderr)
}

func commandReportWithWriters(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultConfigPath, "path to configuration file")
	observerName := fs.String("observer", "observer-agent", "observer name recorded as the report source")
	kind := fs.String("kind", string(report.KindNode), "target entity kind")
	state := fs.String("state", string(report.StateOk), "health state (Ok, Warning, Error)")
	message := fs.String("message", "", "free-text health message")
	property := fs.String("property", "", "health property bucket (defaulted per observer when empty)")
	appName := fs.String("app", "", "application name for application-scoped kinds")
	serviceName := fs.String("service", "", "service name for service-scoped kinds")
	partition := fs.String("partition", "", "partition id for partition-scoped kinds")
	replica := fs.Int64("replica", 0, "replica or instance id for replica-scoped kinds")
	ttl := fs.Duration("ttl", 0, "record time-to-live (default from configuration)")
	logEvent := fs.Bool("log-event", false, "also emit the report to the local log")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return exitConfigError
	}

	var partitionID uuid.UUID
	if *partition != "" {
		partitionID, err = uuid.Parse(*partition)
		if err != nil {
			fmt.Fprintf(stderr, "invalid partition id: %v\n", err)
			return exitUsage
		}
	}

	sink, err := newSink(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to connect to health store: %v\n", err)
		return exitReportError
	}
	defer sink.Close()

	dispatcher, err := dispatch.New(sink,
		dispatch.WithNodeName(cfg.NodeName),
		dispatch.WithDefaultTTL(cfg.DefaultTTL()),
		dispatch.WithLogger(observability.NewJSONLogger(stdout)),
	)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build dispatcher: %v\n", err)
		return exitReportError
	}

	r := report.Report{
		Observer:            *observerName,
		Kind:                report.Kind(*kind),
		AppName:             *appName,
		ServiceName:         *serviceName,
		PartitionID:         partitionID,
		ReplicaOrInstanceID: *replica,
		NodeName:            cfg.NodeName,
		State:               report.State(*state),
		Property:            *property,
		Message:             *message,
		TTL:                 *ttl,
		EmitLogEvent:        *logEvent || cfg.EmitLogEvents,
	}
	// Surface malformed flag combinations here instead of relying on the
	// dispatcher's silent drop.
	if _, ok := report.Resolve(report.Normalize(r)); !ok {
		fmt.Fprintf(stderr, "report is missing required identity fields for kind %s\n", r.Kind)
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	dispatcher.Dispatch(ctx, r)

	fmt.Fprintf(stdout, "health report dispatched for node %s\n", cfg.NodeName)
	return exitOK
}

func commandStatus(args []string) int {
	return commandStatusWithWriters(args, os.Stdout, os.Stderr)
}

func commandStatusWithWriters(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultConfigPath, "path to configuration file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return exitConfigError
	}

	sink, err := newSink(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to connect to health store: %v\n", err)
		return exitStatusError
	}
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := sink.Status(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "failed to query health records: %v\n", err)
		return exitStatusError
	}

	if len(records) == 0 {
		fmt.Fprintln(stdout, "no live health records")
		return exitOK
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Target < records[j].Target })
	for _, rec := range records {
		fmt.Fprintf(stdout, "%s %s/%s => %s (reported %s)\n",
			rec.Target, rec.SourceID, rec.Property, rec.State, rec.ReportedAt.Format(time.RFC3339))
	}
	return exitOK
}

func commandValidate(args []string) int {
	return commandValidateWithWriters(args, os.Stdout, os.Stderr)
}

func commandValidateWithWriters(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate-config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultConfigPath, "path to configuration file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(stderr, "configuration invalid: %v\n", err)
		return exitConfigError
	}

	fmt.Fprintf(stdout, "configuration at %s is valid\n", *configPath)
	return exitOK
}

func newSink(cfg *config.Config) (*healthsink.EtcdSink, error) {
	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	return healthsink.NewEtcdSink(healthsink.EtcdSinkOptions{
		Endpoints:   cfg.EtcdEndpoints,
		DialTimeout: cfg.EtcdDialTimeout(),
		Namespace:   cfg.EtcdNamespace,
		Prefix:      cfg.HealthPrefix,
		TLS:         tlsConfig,
	})
}
