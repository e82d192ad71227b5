package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/Gurux/gxserial2tcp-go"
	"github.com/Gurux/gxserial2tcp-go/config"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
)

// cliOptions is the merged result of flags and environment.
type cliOptions struct {
	configPath string

	host     string
	comport  string
	baudRate int
	dataBits int
	parity   string
	stopBits string

	logLevel      string
	logFormat     string
	lang          string
	trace         string
	metricsAddr   string
	envFile       string
	readTimeout   time.Duration
	retryInterval time.Duration
	bufferSize    int

	listPorts bool
	version   bool
	help      bool
}

// errUsage marks errors caused by how the command was invoked.
var errUsage = errors.New("usage")

func newFlagSet(o *cliOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("gxserial2tcp", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVarP(&o.configPath, "config", "c", "", "relay configuration file (.ini, .yaml, .json)")
	fs.StringVarP(&o.host, "host", "h", "", "TCP listen address, host:port")
	fs.StringVarP(&o.comport, "comport", "p", "", "serial port name")
	fs.IntVarP(&o.baudRate, "baudrate", "b", int(gxserial2tcp.DefaultBaudRate), "serial baud rate")
	fs.IntVar(&o.dataBits, "databits", gxserial2tcp.DefaultDataBits, "serial data bits (5, 6, 7, 8)")
	fs.StringVar(&o.parity, "parity", "None", "serial parity (None, Odd, Even, Mark, Space)")
	fs.StringVar(&o.stopBits, "stopbits", "1", "serial stop bits (1, 2)")

	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error (default info)")
	fs.StringVar(&o.logFormat, "log-format", "", "log format: auto, text, json (default auto)")
	fs.StringVar(&o.lang, "lang", "", "language of log messages, e.g. de or fi")
	fs.StringVar(&o.trace, "trace", "", "trace level: Off, Error, Warning, Info, Verbose; relayed bytes are logged at info level unless Off")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&o.envFile, "env-file", ".env", "read environment variables from this file if it exists")
	fs.DurationVar(&o.readTimeout, "read-timeout", 0, "serial read timeout (default 2s)")
	fs.DurationVar(&o.retryInterval, "retry-interval", 0, "pause between reconnect attempts (default 2s)")
	fs.BoolVar(&o.listPorts, "list-ports", false, "list serial ports and exit")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	fs.BoolVar(&o.help, "help", false, "show help")
	return fs
}

// parseArgs parses args and fills every setting that was not given on the
// command line from environ and the --env-file file.
func parseArgs(args, environ []string, stderr io.Writer) (*cliOptions, error) {
	o := &cliOptions{}
	fs := newFlagSet(o)
	fs.SetOutput(stderr)
	fs.Usage = func() { printHelp(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if o.help {
		printHelp(stderr, fs)
		return nil, pflag.ErrHelp
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	env, err := config.LoadEnv(environ, o.envFile)
	if err != nil {
		return nil, err
	}
	fromEnv := func(name string, dst *string, value string) {
		if !fs.Changed(name) {
			*dst = value
		}
	}
	fromEnv("log-level", &o.logLevel, env.LogLevel)
	fromEnv("log-format", &o.logFormat, env.LogFormat)
	fromEnv("lang", &o.lang, env.Language)
	fromEnv("trace", &o.trace, env.Trace)
	fromEnv("metrics-addr", &o.metricsAddr, env.MetricsAddr)
	if !fs.Changed("read-timeout") {
		o.readTimeout = env.ReadTimeout
	}
	if !fs.Changed("retry-interval") {
		o.retryInterval = env.RetryInterval
	}
	o.bufferSize = env.BufferSize

	direct := fs.Changed("host") || fs.Changed("comport")
	for _, name := range []string{"baudrate", "databits", "parity", "stopbits"} {
		if fs.Changed(name) && !direct && o.configPath != "" {
			return nil, fmt.Errorf("%w: --%s needs --host and --comport, not --config", errUsage, name)
		}
	}
	if o.configPath != "" && direct {
		return nil, fmt.Errorf("%w: --config cannot be combined with --host or --comport", errUsage)
	}
	if o.configPath == "" && !direct {
		o.configPath = env.Config
	}
	return o, nil
}

// bindings returns the relays to run: the configuration file, or the one
// relay described by --host and --comport.
func (o *cliOptions) bindings(logger *slog.Logger) ([]gxserial2tcp.BindingConfig, error) {
	if o.configPath != "" {
		configs, err := config.Load(o.configPath, logger)
		if err != nil {
			return nil, err
		}
		if len(configs) == 0 {
			return nil, fmt.Errorf("%s: no [relay] sections", o.configPath)
		}
		return configs, nil
	}
	if o.host == "" || o.comport == "" {
		return nil, fmt.Errorf("%w: both --host and --comport are required without --config", errUsage)
	}
	parity, err := config.ParseParity(o.parity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	stopBits, err := config.ParseStopBits(o.stopBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	cfg := gxserial2tcp.BindingConfig{
		Port:     o.comport,
		BaudRate: config.ParseBaudRate(o.baudRate),
		DataBits: o.dataBits,
		Parity:   parity,
		StopBits: stopBits,
		Host:     o.host,
	}.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return []gxserial2tcp.BindingConfig{cfg}, nil
}

// bindingOptions builds the engine options shared by every relay.
func (o *cliOptions) bindingOptions(logger *slog.Logger) (gxserial2tcp.Options, error) {
	opts := gxserial2tcp.Options{
		Logger:        logger,
		ReadTimeout:   o.readTimeout,
		RetryInterval: o.retryInterval,
		BufferSize:    o.bufferSize,
	}
	if o.lang != "" {
		tag, err := language.Parse(o.lang)
		if err != nil {
			return opts, fmt.Errorf("%w: invalid language %q: %w", errUsage, o.lang, err)
		}
		opts.Language = tag
	}
	if o.trace != "" {
		level, err := gxcommon.TraceLevelParse(o.trace)
		if err != nil {
			return opts, fmt.Errorf("%w: invalid trace level %q: %w", errUsage, o.trace, err)
		}
		opts.Trace = level
	}
	return opts, nil
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `gxserial2tcp exposes serial ports as TCP servers.

Usage:
  gxserial2tcp -c <file> [flags]
  gxserial2tcp -h <host:port> -p <comport> [-b <baudrate>] [flags]

Examples:
  # Relays from an INI file with [relay] sections
  gxserial2tcp -c relays.ini

  # One relay from the command line
  gxserial2tcp -h 0.0.0.0:9000 -p /dev/ttyUSB0 -b 9600

Flags:
%s
Environment:
  Every ambient flag can be set with %s<NAME>, for example
  %sLOG_LEVEL=debug or %sCONFIG=relays.yaml.
`, fs.FlagUsages(), config.EnvPrefix, config.EnvPrefix, config.EnvPrefix)
}
