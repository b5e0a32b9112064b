package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"pushstream-latency/pkg/broker"
	"pushstream-latency/pkg/config"
	"pushstream-latency/pkg/outfile"
	"pushstream-latency/pkg/publisher"
	"pushstream-latency/pkg/subscriber"
	"pushstream-latency/pkg/telemetry"
	"pushstream-latency/pkg/version"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

const shutdownTimeout = 5 * time.Second

type AppOption func(*App)

// WithFs replaces the filesystem used for the outfile and the event log.
func WithFs(fs afero.Fs) AppOption {
	return func(a *App) {
		a.fs = fs
	}
}

// WithColor forces console colors on or off.
func WithColor(enabled bool) AppOption {
	return func(a *App) {
		a.consoleOpts = append(a.consoleOpts, telemetry.WithColor(enabled))
	}
}

// WithMetricsListener serves metrics on ln instead of listening on the
// configured address.
func WithMetricsListener(ln net.Listener) AppOption {
	return func(a *App) {
		a.metricsLn = ln
	}
}

// App wires the probe together: one broker, the two roles, the telemetry
// fan-out and the optional metrics endpoint.
type App struct {
	cfg    *config.Config
	out    io.Writer
	logger *log.Logger
	fs     afero.Fs

	consoleOpts []telemetry.ConsoleOption

	aggregator *telemetry.Aggregator
	sink       *telemetry.Sink
	events     *telemetry.JSONLPublisher
	metrics    *telemetry.PrometheusPublisher
	metricsLn  net.Listener

	publisher  *publisher.Publisher
	subscriber *subscriber.Subscriber
	cli        *CLI
}

func NewApp(cfg *config.Config, out io.Writer, logger *log.Logger, opts ...AppOption) (*App, error) {
	a := &App{
		cfg:    cfg,
		out:    out,
		logger: logger,
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(a)
	}

	b, err := a.newBroker()
	if err != nil {
		return nil, err
	}

	fanout, err := a.newTelemetry()
	if err != nil {
		return nil, err
	}
	a.sink = telemetry.NewSink(fanout, telemetry.DefaultSinkBuffer)

	a.publisher, err = publisher.New(publisher.Config{
		Channel:        cfg.Channel,
		Delay:          cfg.PublishDelay,
		RequestTimeout: cfg.Timeouts.Publish,
		Reconnect:      cfg.ReconnectPolicy(),
	}, b, logger, a.sink)
	if err != nil {
		return nil, a.abort(err)
	}

	var subOpts []subscriber.Option
	if cfg.Outfile != "" {
		subOpts = append(subOpts, subscriber.WithStore(outfile.New(a.fs, cfg.Outfile)))
	}
	a.subscriber, err = subscriber.New(subscriber.Config{
		Channel:     cfg.Channel,
		Threshold:   cfg.MaxLatency,
		MaxBuffered: cfg.MaxBuffer,
		Reconnect:   cfg.ReconnectPolicy(),
	}, b, logger, a.sink, subOpts...)
	if err != nil {
		return nil, a.abort(err)
	}

	if cfg.Telemetry.StatusInterval > 0 {
		a.cli = NewCLI(a.aggregator, cfg, logger)
	}
	return a, nil
}

func (a *App) newBroker() (broker.Broker, error) {
	return broker.NewHTTP(a.cfg.URL,
		broker.WithPaths(a.cfg.PubPath, a.cfg.SubPath),
		broker.WithTransport(broker.NewTransport(a.cfg.Timeouts.Connect)),
		broker.WithUserAgent(fmt.Sprintf("%s/%s", config.AppName, version.Info().Version)),
	)
}

// newTelemetry builds every consumer of probe events. The console and the
// aggregator are always present; the event log and metrics are optional.
func (a *App) newTelemetry() (telemetry.TelemetryPublisher, error) {
	consoleOpts := append([]telemetry.ConsoleOption{telemetry.WithLogger(a.logger)}, a.consoleOpts...)
	a.aggregator = telemetry.NewAggregator(telemetry.RealClock{}, telemetry.DefaultConfig())

	fanout := telemetry.MultiPublisher{
		telemetry.NewConsolePublisher(a.out, a.cfg.Verbosity, consoleOpts...),
		a.aggregator,
	}

	if path := a.cfg.Telemetry.EventsFile; path != "" {
		f, err := a.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open events file: %w", err)
		}
		a.events = telemetry.NewJSONLPublisher(f)
		fanout = append(fanout, a.events)
	}

	if a.cfg.Telemetry.MetricsAddr != "" || a.metricsLn != nil {
		reg := prometheus.NewRegistry()
		buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: telemetry.MetricsNamespace,
			Name:      "build_info",
			Help:      "Build information of the running probe",
		}, []string{"version", "commit"})
		info := version.Info()
		buildInfo.WithLabelValues(info.Version, info.Commit).Set(1)
		if err := reg.Register(buildInfo); err != nil {
			return nil, a.abort(fmt.Errorf("register build info: %w", err))
		}
		if err := reg.Register(collectors.NewGoCollector()); err != nil {
			return nil, a.abort(fmt.Errorf("register go collector: %w", err))
		}

		metrics, err := telemetry.NewPrometheusPublisher(reg)
		if err != nil {
			return nil, a.abort(fmt.Errorf("register metrics: %w", err))
		}
		a.metrics = metrics
		fanout = append(fanout, metrics)
	}

	return fanout, nil
}

// abort releases what NewApp opened before failing.
func (a *App) abort(err error) error {
	if a.events != nil {
		err = multierr.Append(err, a.events.Close())
	}
	if a.metricsLn != nil {
		err = multierr.Append(err, a.metricsLn.Close())
	}
	return err
}

// Snapshot exposes the aggregated probe state.
func (a *App) Snapshot() telemetry.Snapshot {
	return a.aggregator.Snapshot()
}

// Run drives both roles until ctx is cancelled. Cancellation is a clean
// shutdown; the returned error collects everything else that went wrong,
// including panics recovered from the roles.
func (a *App) Run(ctx context.Context) error {
	a.logger.Printf("probing %s (pub %s, sub %s)", a.cfg.URL, a.cfg.PubPath, a.cfg.SubPath)
	if a.cfg.ConfigFile != "" {
		a.logger.Printf("using config file %s", a.cfg.ConfigFile)
	}

	// the aggregator outlives ctx so the final drain still lands in it
	a.aggregator.Start(context.WithoutCancel(ctx))
	a.sink.Start()

	var (
		mu   sync.Mutex
		errs error
	)
	record := func(err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	if a.metrics != nil {
		addr, err := a.serveMetrics(ctx, &wg, record)
		if err != nil {
			a.sink.Stop()
			a.aggregator.Stop()
			return a.abort(err)
		}
		a.logger.Printf("serving metrics on http://%s/metrics", addr)
	}

	// a role only returns once ctx is done; if one stops early, stop the rest
	wg.Go(func() {
		defer cancel()
		record(a.publisher.Run(ctx))
	})
	wg.Go(func() {
		defer cancel()
		record(a.subscriber.Run(ctx))
	})
	if a.cli != nil {
		wg.Go(func() {
			defer cancel()
			record(a.cli.Run(ctx))
		})
	}

	if recovered := wg.WaitAndRecover(); recovered != nil {
		record(fmt.Errorf("role panicked: %w", recovered.AsError()))
	}

	a.sink.Stop()
	a.aggregator.Stop()
	if a.events != nil {
		record(a.events.Close())
	}
	if dropped := a.sink.Dropped(); dropped > 0 {
		a.logger.Printf("dropped %d telemetry events", dropped)
	}
	return errs
}

// serveMetrics starts the metrics server in wg and returns its address. The
// server shuts down when ctx ends.
func (a *App) serveMetrics(ctx context.Context, wg *conc.WaitGroup, record func(error)) (string, error) {
	ln := a.metricsLn
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Telemetry.MetricsAddr)
		if err != nil {
			return "", fmt.Errorf("listen on %s: %w", a.cfg.Telemetry.MetricsAddr, err)
		}
		a.metricsLn = ln
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	wg.Go(func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			record(fmt.Errorf("metrics server: %w", err))
		}
	})
	wg.Go(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		record(srv.Shutdown(shutdownCtx))
	})
	return ln.Addr().String(), nil
}
