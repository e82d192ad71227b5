package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Gurux/gxserial2tcp-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Environ(), os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run starts every configured relay and blocks until ctx is cancelled or
// the metrics server fails.
func run(ctx context.Context, args, environ []string, stdout, stderr io.Writer) error {
	o, err := parseArgs(args, environ, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintf(stdout, "gxserial2tcp %s\n", version)
		return nil
	}
	if o.listPorts {
		return listPorts(stdout)
	}

	logger, err := newLogger(stderr, o.logLevel, o.logFormat)
	if err != nil {
		return err
	}
	configs, err := o.bindings(logger)
	if err != nil {
		return err
	}
	opts, err := o.bindingOptions(logger)
	if err != nil {
		return err
	}

	var metrics http.Handler
	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts.Metrics = gxserial2tcp.NewMetrics(reg, "")
		metrics = metricsHandler(reg)
	}

	bindings, err := gxserial2tcp.StartAll(ctx, configs, opts)
	if err != nil {
		return err
	}
	logger.Info("relays started", "count", len(bindings))

	g, ctx := errgroup.WithContext(ctx)
	if metrics != nil {
		ln, err := net.Listen("tcp", o.metricsAddr)
		if err != nil {
			gxserial2tcp.StopAll(bindings)
			return fmt.Errorf("metrics listener: %w", err)
		}
		srv := &http.Server{Handler: metrics, ReadHeaderTimeout: shutdownTimeout}
		logger.Info("serving metrics", "addr", ln.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("stopping relays", "count", len(bindings))
		gxserial2tcp.StopAll(bindings)
		return nil
	})

	err = g.Wait()
	logger.Info("gxserial2tcp stopped")
	return err
}

// metricsHandler serves reg together with the Go runtime and process
// collectors.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func listPorts(w io.Writer) error {
	names, err := gxserial2tcp.GetPortNames()
	if err != nil {
		return fmt.Errorf("listing serial ports: %w", err)
	}
	if len(names) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return nil
	}
	fmt.Fprintln(w, strings.Join(names, "\n"))
	return nil
}
