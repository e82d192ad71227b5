package gxserial2tcp

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errNoDevice = errors.New("no such device")

// fakeDevice is an in-memory serial device. Bytes written by the relay
// land in written; bytes pushed with Send are returned by reads.
type fakeDevice struct {
	written  *capture
	incoming chan []byte

	opens       atomic.Int32
	openHandles atomic.Int32
	failOpens   atomic.Int32
	failClones  atomic.Int32
	failWrites  atomic.Bool
	failReads   atomic.Bool
	// stallWrites makes writes hang for the read timeout and then fail
	// with ErrWriteTimeout, like a device that stopped draining.
	stallWrites atomic.Bool

	readTimeout time.Duration
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		written:  newCapture(),
		incoming: make(chan []byte, 16),
	}
}

// Send queues data for the relay to read from the serial side.
func (d *fakeDevice) Send(data []byte) {
	d.incoming <- data
}

func (d *fakeDevice) open(cfg BindingConfig, readTimeout time.Duration) (Port, error) {
	d.opens.Add(1)
	if d.failOpens.Load() > 0 {
		d.failOpens.Add(-1)
		return nil, errNoDevice
	}
	d.readTimeout = readTimeout
	d.openHandles.Add(1)
	return &fakePort{dev: d}, nil
}

type fakePort struct {
	dev     *fakeDevice
	mu      sync.Mutex
	pending []byte
	closed  atomic.Bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, os.ErrClosed
	}
	if p.dev.failReads.Load() {
		return 0, io.ErrUnexpectedEOF
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		timer := time.NewTimer(p.dev.readTimeout)
		defer timer.Stop()
		select {
		case data := <-p.dev.incoming:
			p.pending = data
		case <-timer.C:
			return 0, nil
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, os.ErrClosed
	}
	if p.dev.failWrites.Load() {
		return 0, io.ErrClosedPipe
	}
	if p.dev.stallWrites.Load() {
		time.Sleep(p.dev.readTimeout)
		return 0, ErrWriteTimeout
	}
	p.dev.written.Append(b)
	return len(b), nil
}

func (p *fakePort) Clone() (Port, error) {
	if p.closed.Load() {
		return nil, os.ErrClosed
	}
	if p.dev.failClones.Load() > 0 {
		p.dev.failClones.Add(-1)
		return nil, errors.New("dup failed: too many open files")
	}
	p.dev.openHandles.Add(1)
	return &fakePort{dev: p.dev}, nil
}

func (p *fakePort) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.dev.openHandles.Add(-1)
	}
	return nil
}

// testOptions returns options with short timeouts wired to dev.
func testOptions(dev *fakeDevice) Options {
	return Options{
		Logger:        discardLogger(),
		ReadTimeout:   20 * time.Millisecond,
		RetryInterval: 20 * time.Millisecond,
		OpenPort:      dev.open,
	}
}

func startTestBinding(t *testing.T, dev *fakeDevice, opts Options) *ActiveBinding {
	t.Helper()
	b, err := Start(t.Context(), NewBindingConfig("fake0", 9600, "127.0.0.1:0"), opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(b.Stop)
	return b
}

func dial(t *testing.T, b *ActiveBinding) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", b.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", b.Addr(), err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor polls cond until it holds or timeout passes.
func waitFor(t *testing.T, what string, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitRelayState(t *testing.T, b *ActiveBinding, want RelayState) {
	t.Helper()
	waitFor(t, "relay state "+want.String(), 2*time.Second, func() bool {
		return b.RelayState() == want
	})
}

// readN reads exactly n bytes from conn or fails the test.
func readN(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("reading %d bytes: %v", n, err)
	}
	return buf
}

// stopWithin fails the test if Stop does not return within d.
func stopWithin(t *testing.T, b *ActiveBinding, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("Stop did not return within %v (relay state %s)", d, b.RelayState())
	}
}

// flakyListener fails the first failures calls to Accept.
type flakyListener struct {
	net.Listener
	failures atomic.Int32
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.failures.Add(-1) >= 0 {
		return nil, errors.New("accept: too many open files")
	}
	return l.Listener.Accept()
}

// logBuffer collects JSON log records written from several goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *logBuffer) logger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: level}))
}
