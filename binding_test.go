package gxserial2tcp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBindingConfigNormalize(t *testing.T) {
	cfg := BindingConfig{Port: "COM1", Host: "0.0.0.0:9000"}.Normalize()
	if cfg.BaudRate != DefaultBaudRate {
		t.Errorf("BaudRate = %d, want %d", cfg.BaudRate, DefaultBaudRate)
	}
	if cfg.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", cfg.DataBits)
	}
	if cfg.StopBits != gxcommon.StopBitsOne {
		t.Errorf("StopBits = %v, want one", cfg.StopBits)
	}
	if got := cfg.String(); got != "0.0.0.0:9000 <-> COM1" {
		t.Errorf("String() = %q", got)
	}

	cfg = NewBindingConfig("/dev/ttyUSB0", 9600, "127.0.0.1:1")
	if cfg.BaudRate != 9600 {
		t.Errorf("NewBindingConfig kept baud %d, want 9600", cfg.BaudRate)
	}
}

func TestBindingConfigValidate(t *testing.T) {
	valid := NewBindingConfig("COM1", 9600, "127.0.0.1:9000")
	tests := []struct {
		name    string
		mutate  func(*BindingConfig)
		wantErr bool
	}{
		{"valid", func(*BindingConfig) {}, false},
		{"no port", func(c *BindingConfig) { c.Port = " " }, true},
		{"no host", func(c *BindingConfig) { c.Host = "" }, true},
		{"zero baud", func(c *BindingConfig) { c.BaudRate = 0 }, true},
		{"four data bits", func(c *BindingConfig) { c.DataBits = 4 }, true},
		{"nine data bits", func(c *BindingConfig) { c.DataBits = 9 }, true},
		{"seven data bits", func(c *BindingConfig) { c.DataBits = 7 }, false},
		{"two stop bits", func(c *BindingConfig) { c.StopBits = gxcommon.StopBitsTwo }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	_, err := Start(t.Context(), BindingConfig{Host: "127.0.0.1:0"}, testOptions(newFakeDevice()))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Start() error = %v, want ErrInvalidConfig", err)
	}
}

func TestStartListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer occupied.Close()

	dev := newFakeDevice()
	b := NewBinding(NewBindingConfig("fake0", 9600, occupied.Addr().String()), testOptions(dev))
	err = b.Start(t.Context())
	if !errors.Is(err, ErrListen) {
		t.Fatalf("Start() error = %v, want ErrListen", err)
	}
	if b.State() != StateStopped {
		t.Errorf("State() = %s, want Stopped", b.State())
	}
	if dev.opens.Load() != 0 {
		t.Errorf("serial port opened %d times after listen failure", dev.opens.Load())
	}
	b.Stop()
}

func TestStartTwice(t *testing.T) {
	dev := newFakeDevice()
	b := startTestBinding(t, dev, testOptions(dev))
	if err := b.Start(t.Context()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second Start() error = %v, want ErrNotIdle", err)
	}
	b.Stop()
	if err := b.Start(t.Context()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("Start() after Stop error = %v, want ErrNotIdle", err)
	}
}

func TestStartReturnsRunning(t *testing.T) {
	dev := newFakeDevice()
	start := time.Now()
	b := startTestBinding(t, dev, testOptions(dev))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Start took %v", elapsed)
	}
	if b.State() != StateRunning {
		t.Fatalf("State() = %s, want Running", b.State())
	}
	if b.Addr() == nil {
		t.Fatal("Addr() is nil after Start")
	}
	waitRelayState(t, b, RelayWaitingForClient)
}

func TestRelayBothDirections(t *testing.T) {
	dev := newFakeDevice()
	b := startTestBinding(t, dev, testOptions(dev))
	conn := dial(t, b)
	waitRelayState(t, b, RelayRelaying)

	if _, err := conn.Write([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatal(err)
	}
	if dev.written.Search([]byte{0x01, 0x02, 0x03}, 2*time.Second) < 0 {
		t.Fatalf("serial received %x, want 010203", dev.written.Bytes())
	}

	dev.Send([]byte{0xAA})
	if got := readN(t, conn, 1); !bytes.Equal(got, []byte{0xAA}) {
		t.Fatalf("client received %x, want aa", got)
	}
}

func TestRelayLargeTransfer(t *testing.T) {
	dev := newFakeDevice()
	opts := testOptions(dev)
	opts.BufferSize = 64
	b := startTestBinding(t, dev, opts)
	conn := dial(t, b)
	waitRelayState(t, b, RelayRelaying)

	payload := bytes.Repeat([]byte("0123456789"), 100)
	if _, err := conn.Write(payload); err != nil {
		t.Fatal(err)
	}
	if dev.written.Search(payload, 2*time.Second) < 0 {
		t.Fatalf("serial received %d bytes, want %d in order", len(dev.written.Bytes()), len(payload))
	}

	dev.Send(payload)
	if got := readN(t, conn, len(payload)); !bytes.Equal(got, payload) {
		t.Fatal("client did not receive the serial payload in order")
	}
}

func TestReconnectAfterClientDisconnect(t *testing.T) {
	dev := newFakeDevice()
	b := startTestBinding(t, dev, testOptions(dev))

	for i := range 3 {
		conn := dial(t, b)
		waitRelayState(t, b, RelayRelaying)
		if n := b.forwards.Load(); n != 1 {
			t.Fatalf("session %d: %d forward pumps, want 1", i, n)
		}
		marker := []byte{byte(i), 0x55}
		conn.Write(marker)
		if dev.written.Search(marker, 2*time.Second) < 0 {
			t.Fatalf("session %d: serial did not receive %x", i, marker)
		}
		conn.Close()

		waitRelayState(t, b, RelayWaitingForClient)
		if n := b.forwards.Load(); n != 0 {
			t.Fatalf("session %d: %d forward pumps after teardown, want 0", i, n)
		}
		// One handle for the reopened port while waiting for a client.
		waitFor(t, "session handles to close", time.Second, func() bool {
			return dev.openHandles.Load() == 1
		})
	}
	if got := dev.opens.Load(); got != 4 {
		t.Errorf("serial opened %d times, want 4", got)
	}

	b.Stop()
	if got := dev.openHandles.Load(); got != 0 {
		t.Errorf("%d serial handles open after Stop", got)
	}
}

func TestSerialAbsentIsRetried(t *testing.T) {
	dev := newFakeDevice()
	dev.failOpens.Store(3)
	b := startTestBinding(t, dev, testOptions(dev))

	waitRelayState(t, b, RelayWaitingForClient)
	if got := dev.opens.Load(); got != 4 {
		t.Fatalf("serial open attempts = %d, want 4", got)
	}
	if b.State() != StateRunning {
		t.Fatalf("State() = %s, want Running", b.State())
	}

	conn := dial(t, b)
	waitRelayState(t, b, RelayRelaying)
	conn.Write([]byte{0x01})
	if dev.written.Search([]byte{0x01}, 2*time.Second) < 0 {
		t.Fatal("no data relayed after the port appeared")
	}
}

func TestSerialWriteFailureEndsSession(t *testing.T) {
	dev := newFakeDevice()
	b := startTestBinding(t, dev, testOptions(dev))
	conn := dial(t, b)
	waitRelayState(t, b, RelayRelaying)

	dev.failWrites.Store(true)
	conn.Write([]byte{0x01})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("client read after serial failure = %v, want EOF", err)
	}
	waitRelayState(t, b, RelayWaitingForClient)
	if got := dev.opens.Load(); got != 2 {
		t.Errorf("serial opened %d times, want 2", got)
	}
}

func TestSerialReadFailureKeepsSession(t *testing.T) {
	dev := newFakeDevice()
	b := startTestBinding(t, dev, testOptions(dev))
	conn := dial(t, b)
	waitRelayState(t, b, RelayRelaying)

	dev.failReads.Store(true)
	time.Sleep(60 * time.Millisecond)
	dev.failReads.Store(false)

	if b.RelayState() != RelayRelaying {
		t.Fatalf("relay state = %s, want Relaying", b.RelayState())
	}
	dev.Send([]byte{0x42})
	if got := readN(t, conn, 1); got[0] != 0x42 {
		t.Fatalf("client received %x, want 42", got)
	}
}

func TestAcceptFailureIsRetried(t *testing.T) {
	dev := newFakeDevice()
	logs := &logBuffer{}
	opts := testOptions(dev)
	opts.Logger = logs.logger(slog.LevelInfo)
	opts.Metrics = NewMetrics(prometheus.NewRegistry(), "")

	b := NewBinding(NewBindingConfig("fake0", 9600, "127.0.0.1:0"), opts)
	b.listen = func(network, address string) (net.Listener, error) {
		l, err := net.Listen(network, address)
		if err != nil {
			return nil, err
		}
		flaky := &flakyListener{Listener: l}
		flaky.failures.Store(1)
		return flaky, nil
	}
	if err := b.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Stop)
	cfg := b.Config()

	waitFor(t, "accept error to be counted", 2*time.Second, func() bool {
		return testutil.ToFloat64(opts.Metrics.AcceptErrors.WithLabelValues(cfg.Host, cfg.Port)) == 1
	})
	waitFor(t, "serial port to be reopened", 2*time.Second, func() bool {
		return dev.opens.Load() == 2
	})
	waitRelayState(t, b, RelayWaitingForClient)
	if n := dev.openHandles.Load(); n != 1 {
		t.Errorf("%d serial handles open, want 1 after the failed accept", n)
	}
	if b.State() != StateRunning {
		t.Fatalf("State() = %s, want Running", b.State())
	}
	if !strings.Contains(logs.String(), "Failed to accept a connection") {
		t.Errorf("accept failure not logged:\n%s", logs.String())
	}

	conn := dial(t, b)
	waitRelayState(t, b, RelayRelaying)
	dev.Send([]byte{0x55})
	if got := readN(t, conn, 1); got[0] != 0x55 {
		t.Fatalf("client received %x, want 55", got)
	}
}

func TestCloneFailureEndsSession(t *testing.T) {
	dev := newFakeDevice()
	dev.failClones.Store(1)
	opts := testOptions(dev)
	opts.Metrics = NewMetrics(prometheus.NewRegistry(), "")
	b := startTestBinding(t, dev, opts)
	cfg := b.Config()

	conn := dial(t, b)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("client read after clone failure = %v, want EOF", err)
	}
	waitFor(t, "serial port to be reopened", 2*time.Second, func() bool {
		return dev.opens.Load() == 2
	})
	waitRelayState(t, b, RelayWaitingForClient)
	if n := b.forwards.Load(); n != 0 {
		t.Errorf("%d forward pumps after clone failure", n)
	}
	if n := dev.openHandles.Load(); n != 1 {
		t.Errorf("%d serial handles open, want 1", n)
	}
	if got := testutil.ToFloat64(opts.Metrics.IOErrors.WithLabelValues(cfg.Host, cfg.Port, OpSerialClone)); got != 1 {
		t.Errorf("io_errors_total{op=serial_clone} = %v, want 1", got)
	}

	conn = dial(t, b)
	waitRelayState(t, b, RelayRelaying)
	conn.Write([]byte{0x07})
	if dev.written.Search([]byte{0x07}, 2*time.Second) < 0 {
		t.Fatal("no data relayed after the clone failure")
	}
}

func TestSerialWriteTimeoutEndsSession(t *testing.T) {
	dev := newFakeDevice()
	opts := testOptions(dev)
	opts.Metrics = NewMetrics(prometheus.NewRegistry(), "")
	b := startTestBinding(t, dev, opts)
	cfg := b.Config()
	conn := dial(t, b)
	waitRelayState(t, b, RelayRelaying)

	dev.stallWrites.Store(true)
	conn.Write([]byte{0x01})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("client read after stalled write = %v, want EOF", err)
	}
	if got := testutil.ToFloat64(opts.Metrics.IOErrors.WithLabelValues(cfg.Host, cfg.Port, OpSerialWrite)); got != 1 {
		t.Errorf("io_errors_total{op=serial_write} = %v, want 1", got)
	}
	stopWithin(t, b, opts.ReadTimeout+time.Second)
}

func TestTraceLogsRelayedBytes(t *testing.T) {
	tests := []struct {
		name  string
		trace gxcommon.TraceLevel
		want  bool
	}{
		{"verbose", gxcommon.TraceLevelVerbose, true},
		{"off", gxcommon.TraceLevelOff, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			logs := &logBuffer{}
			opts := testOptions(dev)
			opts.Logger = logs.logger(slog.LevelInfo)
			opts.Trace = tt.trace
			b := startTestBinding(t, dev, opts)
			conn := dial(t, b)
			waitRelayState(t, b, RelayRelaying)

			conn.Write([]byte{0x01, 0x02})
			if dev.written.Search([]byte{0x01, 0x02}, 2*time.Second) < 0 {
				t.Fatal("serial did not receive data")
			}
			dev.Send([]byte{0xAB})
			readN(t, conn, 1)

			// Both records are written before the data is forwarded.
			out := logs.String()
			for _, msg := range []string{`"msg":"TX"`, `"msg":"RX"`} {
				if got := strings.Contains(out, msg); got != tt.want {
					t.Errorf("%s logged = %v, want %v:\n%s", msg, got, tt.want, out)
				}
			}
			if tt.want && !strings.Contains(out, `"level":"INFO","msg":"TX"`) {
				t.Errorf("TX record not at info level:\n%s", out)
			}
		})
	}
}

func TestStopBounded(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dev *fakeDevice, b *ActiveBinding)
	}{
		{
			name: "backoff",
			setup: func(t *testing.T, dev *fakeDevice, b *ActiveBinding) {
				waitFor(t, "first open attempt", time.Second, func() bool { return dev.opens.Load() > 0 })
			},
		},
		{
			name: "accept",
			setup: func(t *testing.T, dev *fakeDevice, b *ActiveBinding) {
				waitRelayState(t, b, RelayWaitingForClient)
			},
		},
		{
			name: "session",
			setup: func(t *testing.T, dev *fakeDevice, b *ActiveBinding) {
				dial(t, b)
				waitRelayState(t, b, RelayRelaying)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			opts := testOptions(dev)
			if tt.name == "backoff" {
				dev.failOpens.Store(1 << 30)
				opts.RetryInterval = time.Hour
			}
			b := startTestBinding(t, dev, opts)
			tt.setup(t, dev, b)

			stopWithin(t, b, opts.ReadTimeout+time.Second)
			if b.State() != StateStopped {
				t.Errorf("State() = %s, want Stopped", b.State())
			}
			if n := b.forwards.Load(); n != 0 {
				t.Errorf("%d forward pumps after Stop", n)
			}
			if n := dev.openHandles.Load(); n != 0 {
				t.Errorf("%d serial handles open after Stop", n)
			}
			select {
			case <-b.Done():
			default:
				t.Error("Done() not closed after Stop")
			}
		})
	}
}

func TestStopClosesClient(t *testing.T) {
	dev := newFakeDevice()
	b := startTestBinding(t, dev, testOptions(dev))
	conn := dial(t, b)
	waitRelayState(t, b, RelayRelaying)

	b.Stop()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("client read after Stop = %v, want EOF", err)
	}
	if _, err := net.DialTimeout("tcp", b.Addr().String(), 200*time.Millisecond); err == nil {
		t.Fatal("listener still accepts after Stop")
	}
}

func TestStopIdempotent(t *testing.T) {
	dev := newFakeDevice()
	b := startTestBinding(t, dev, testOptions(dev))
	waitRelayState(t, b, RelayWaitingForClient)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Stop()
		}()
	}
	wg.Wait()
	b.Stop()
	if err := b.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if b.State() != StateStopped {
		t.Fatalf("State() = %s, want Stopped", b.State())
	}
}

func TestStopBeforeStart(t *testing.T) {
	b := NewBinding(NewBindingConfig("fake0", 9600, "127.0.0.1:0"), testOptions(newFakeDevice()))
	stopWithin(t, b, time.Second)
	if b.State() != StateStopped {
		t.Fatalf("State() = %s, want Stopped", b.State())
	}
}

func TestParentContextCancelStops(t *testing.T) {
	dev := newFakeDevice()
	ctx, cancel := context.WithCancel(t.Context())
	b, err := Start(ctx, NewBindingConfig("fake0", 9600, "127.0.0.1:0"), testOptions(dev))
	if err != nil {
		t.Fatal(err)
	}
	dial(t, b)
	waitRelayState(t, b, RelayRelaying)

	cancel()
	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("binding did not stop after context cancel")
	}
	if b.State() != StateStopped {
		t.Errorf("State() = %s, want Stopped", b.State())
	}
	stopWithin(t, b, time.Second)
}

func TestStartAll(t *testing.T) {
	dev := newFakeDevice()
	configs := []BindingConfig{
		NewBindingConfig("fake0", 9600, "127.0.0.1:0"),
		NewBindingConfig("fake1", 9600, "127.0.0.1:0"),
	}
	bindings, err := StartAll(t.Context(), configs, testOptions(dev))
	if err != nil {
		t.Fatal(err)
	}
	if len(bindings) != 2 {
		t.Fatalf("StartAll returned %d bindings, want 2", len(bindings))
	}
	StopAll(bindings)
	for _, b := range bindings {
		if b.State() != StateStopped {
			t.Errorf("%s: State() = %s, want Stopped", b.Config(), b.State())
		}
	}
}

func TestStartAllStopsStartedOnFailure(t *testing.T) {
	free, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	freeAddr := free.Addr().String()
	free.Close()

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer occupied.Close()

	configs := []BindingConfig{
		NewBindingConfig("fake0", 9600, freeAddr),
		NewBindingConfig("fake1", 9600, occupied.Addr().String()),
	}
	if _, err := StartAll(t.Context(), configs, testOptions(newFakeDevice())); !errors.Is(err, ErrListen) {
		t.Fatalf("StartAll() error = %v, want ErrListen", err)
	}

	ln, err := net.Listen("tcp", freeAddr)
	if err != nil {
		t.Fatalf("first binding still holds %s: %v", freeAddr, err)
	}
	ln.Close()
}

func TestStateStrings(t *testing.T) {
	if got := StateRunning.String(); got != "Running" {
		t.Errorf("StateRunning = %q", got)
	}
	if got := RelayWaitingForClient.String(); got != "WaitingForClient" {
		t.Errorf("RelayWaitingForClient = %q", got)
	}
	if got := RelayState(42).String(); got != "RelayState(42)" {
		t.Errorf("RelayState(42) = %q", got)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{io.EOF, true},
		{net.ErrClosed, true},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := isExpectedCloseError(tt.err); got != tt.want {
			t.Errorf("isExpectedCloseError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
