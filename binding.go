package gxserial2tcp

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DefaultBaudRate replaces a zero or unparsable baud rate.
	DefaultBaudRate gxcommon.BaudRate = 115200
	// DefaultDataBits is the number of data bits when none is configured.
	DefaultDataBits = 8
	// DefaultReadTimeout bounds every serial read. It is also the
	// granularity at which a session notices cancellation.
	DefaultReadTimeout = 2 * time.Second
	// DefaultRetryInterval is the pause between reconnect attempts.
	DefaultRetryInterval = 2 * time.Second
	// DefaultBufferSize is the per-direction relay buffer size.
	DefaultBufferSize = 1500
)

var (
	// ErrListen is returned by Start when the TCP listener cannot be bound.
	ErrListen = errors.New("listen failed")
	// ErrNotIdle is returned by Start on a binding that was already started or stopped.
	ErrNotIdle = errors.New("binding is not idle")
	// ErrInvalidConfig wraps every BindingConfig validation failure.
	ErrInvalidConfig = errors.New("invalid binding config")
)

// BindingConfig describes one relay between a serial device and a TCP
// listen address. It is a plain value and is copied freely.
type BindingConfig struct {
	// Port is the serial device name or path.
	Port string
	// BaudRate of the serial line.
	BaudRate gxcommon.BaudRate
	// DataBits is the amount of data bits (5..8).
	DataBits int
	// Parity of the serial line.
	Parity gxcommon.Parity
	// StopBits of the serial line.
	StopBits gxcommon.StopBits
	// Host is the TCP listen address, host:port.
	Host string
}

// NewBindingConfig returns a config for port and host with 8N1 line
// settings. A zero baud rate is replaced with DefaultBaudRate.
func NewBindingConfig(port string, baudRate gxcommon.BaudRate, host string) BindingConfig {
	return BindingConfig{Port: port, BaudRate: baudRate, Host: host}.Normalize()
}

// Normalize returns a copy of c with defaults filled in.
func (c BindingConfig) Normalize() BindingConfig {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = DefaultDataBits
	}
	if c.StopBits == 0 {
		c.StopBits = gxcommon.StopBitsOne
	}
	return c
}

// Validate reports configuration errors. It expects a normalized config.
func (c BindingConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Port) == "":
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoSerialPort)
	case strings.TrimSpace(c.Host) == "":
		return fmt.Errorf("%w: no listen address", ErrInvalidConfig)
	case c.BaudRate <= 0:
		return fmt.Errorf("%w: invalid baud rate %d", ErrInvalidConfig, c.BaudRate)
	case !supportedBaudRate(int(c.BaudRate)):
		return fmt.Errorf("%w: unsupported baud rate %d", ErrInvalidConfig, c.BaudRate)
	case c.DataBits < 5 || c.DataBits > 8:
		return fmt.Errorf("%w: invalid databits %d (must be 5..8)", ErrInvalidConfig, c.DataBits)
	case c.StopBits != gxcommon.StopBitsOne && c.StopBits != gxcommon.StopBitsTwo:
		return fmt.Errorf("%w: invalid stopbits %d", ErrInvalidConfig, c.StopBits)
	}
	return nil
}

// String identifies the binding in log lines.
func (c BindingConfig) String() string {
	return c.Host + " <-> " + c.Port
}

// Options tune a binding. The zero value is usable.
type Options struct {
	// Logger receives lifecycle and error logs. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
	// ReadTimeout bounds serial reads. Defaults to DefaultReadTimeout.
	ReadTimeout time.Duration
	// RetryInterval is the backoff between reconnect attempts.
	// Defaults to DefaultRetryInterval.
	RetryInterval time.Duration
	// BufferSize of each relay direction. Defaults to DefaultBufferSize.
	BufferSize int
	// Trace enables byte dumps of relayed data when it admits
	// gxcommon.TraceTypesSent or gxcommon.TraceTypesReceived. Dumps are
	// logged at info level so the trace level alone controls them.
	Trace gxcommon.TraceLevel
	// Language of the log messages. Defaults to American English.
	Language language.Tag
	// OpenPort opens the serial device. Defaults to OpenSerial.
	OpenPort PortOpener
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Language == language.Und {
		o.Language = language.AmericanEnglish
	}
	if o.OpenPort == nil {
		o.OpenPort = openSerialPort
	}
	return o
}

// BindingState is the lifecycle state of an ActiveBinding.
type BindingState int32

const (
	// StateIdle is a constructed binding that was not started.
	StateIdle BindingState = iota
	// StateStarting is binding the listener.
	StateStarting
	// StateRunning has a live supervisor.
	StateRunning
	// StateStopped has released every resource.
	StateStopped
)

func (s BindingState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	}
	return fmt.Sprintf("BindingState(%d)", int32(s))
}

// ActiveBinding is one running relay. It owns the listener, the supervisor
// goroutine and, during a session, the forward pump goroutine.
type ActiveBinding struct {
	config BindingConfig
	opts   Options
	logger *slog.Logger
	p      *message.Printer

	state      atomic.Int32
	relayState atomic.Int32

	// listen binds the TCP listener; net.Listen outside of tests.
	listen func(network, address string) (net.Listener, error)

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	// forwards counts live forward pumps; never above one.
	forwards atomic.Int32
}

// NewBinding returns an idle binding for cfg.
func NewBinding(cfg BindingConfig, opts Options) *ActiveBinding {
	opts = opts.withDefaults()
	cfg = cfg.Normalize()
	return &ActiveBinding{
		config: cfg,
		opts:   opts,
		logger: opts.Logger.With("binding", cfg.String()),
		p:      message.NewPrinter(opts.Language),
		listen: net.Listen,
	}
}

// Start validates cfg, binds its listener and starts relaying in the
// background. Only a bad config or a listen failure is returned; serial
// and client failures are retried by the binding itself.
func Start(ctx context.Context, cfg BindingConfig, opts Options) (*ActiveBinding, error) {
	b := NewBinding(cfg, opts)
	if err := b.Start(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// StartAll starts one binding per config. If any binding fails to start,
// the bindings started so far are stopped and the error is returned.
func StartAll(ctx context.Context, configs []BindingConfig, opts Options) ([]*ActiveBinding, error) {
	bindings := make([]*ActiveBinding, 0, len(configs))
	for _, cfg := range configs {
		b, err := Start(ctx, cfg, opts)
		if err != nil {
			StopAll(bindings)
			return nil, fmt.Errorf("%s: %w", cfg, err)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

// StopAll stops the bindings concurrently and waits for all of them.
func StopAll(bindings []*ActiveBinding) {
	var wg sync.WaitGroup
	for _, b := range bindings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Stop()
		}()
	}
	wg.Wait()
}

// Start binds the listener and spawns the supervisor. The binding stops
// when Stop is called or ctx is cancelled.
func (b *ActiveBinding) Start(ctx context.Context) error {
	if err := b.config.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		return ErrNotIdle
	}
	b.logger.Info(b.p.Sprintf(msgStarting))

	listener, err := b.listen("tcp", b.config.Host)
	if err != nil {
		b.state.Store(int32(StateStopped))
		return fmt.Errorf("%w on %s: %w", ErrListen, b.config.Host, err)
	}
	b.listener = listener

	ctx, b.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	b.done = done
	// Accept has no timeout; closing the listener is what cancels it.
	stopListener := context.AfterFunc(ctx, func() {
		listener.Close()
	})

	b.state.Store(int32(StateRunning))
	go func() {
		defer close(done)
		defer b.state.Store(int32(StateStopped))
		defer stopListener()
		defer listener.Close()
		b.supervise(ctx)
	}()
	return nil
}

// Stop requests shutdown and waits until every goroutine of the binding
// has exited. It is safe to call more than once and from several goroutines.
func (b *ActiveBinding) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		cancel, listener, done := b.cancel, b.listener, b.done
		b.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if listener != nil {
			listener.Close()
		}
		if done != nil {
			<-done
		}
		b.state.Store(int32(StateStopped))
		b.logger.Info(b.p.Sprintf(msgStopped))
	})
}

// Close implements io.Closer by calling Stop.
func (b *ActiveBinding) Close() error {
	b.Stop()
	return nil
}

// Done is closed when the supervisor has exited. It is nil before Start.
func (b *ActiveBinding) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Addr returns the listener's address, useful when binding to port 0.
// Returns nil if the binding has not been started.
func (b *ActiveBinding) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Config returns the binding configuration.
func (b *ActiveBinding) Config() BindingConfig {
	return b.config
}

// State returns the lifecycle state.
func (b *ActiveBinding) State() BindingState {
	return BindingState(b.state.Load())
}

// RelayState returns the supervisor's current state.
func (b *ActiveBinding) RelayState() RelayState {
	return RelayState(b.relayState.Load())
}
