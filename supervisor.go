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
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"github.com/Gurux/gxcommon-go"
	"github.com/google/uuid"
)

// RelayState is the state of a binding's supervisor.
type RelayState int32

const (
	// RelayDisconnected has neither a serial port nor a client.
	RelayDisconnected RelayState = iota
	// RelayOpening is opening the serial port, or waiting to retry.
	RelayOpening
	// RelayWaitingForClient holds the serial port and waits in accept.
	RelayWaitingForClient
	// RelayRelaying has a session with both pumps running.
	RelayRelaying
	// RelayTearingDown is releasing the session.
	RelayTearingDown
)

func (s RelayState) String() string {
	switch s {
	case RelayDisconnected:
		return "Disconnected"
	case RelayOpening:
		return "Opening"
	case RelayWaitingForClient:
		return "WaitingForClient"
	case RelayRelaying:
		return "Relaying"
	case RelayTearingDown:
		return "TearingDown"
	}
	return fmt.Sprintf("RelayState(%d)", int32(s))
}

func (b *ActiveBinding) setRelayState(s RelayState) {
	if RelayState(b.relayState.Swap(int32(s))) != s {
		b.logger.Debug("relay state", "state", s.String())
	}
}

// supervise runs the reconnect loop until ctx is cancelled.
func (b *ActiveBinding) supervise(ctx context.Context) {
	defer b.setRelayState(RelayDisconnected)
	for ctx.Err() == nil {
		serial := b.openSerial(ctx)
		if serial == nil {
			return
		}

		b.setRelayState(RelayWaitingForClient)
		b.logger.Info(b.p.Sprintf(msgWaiting), "listen_addr", b.listener.Addr().String())
		conn, err := b.listener.Accept()
		if err != nil {
			serial.Close()
			if ctx.Err() != nil {
				return
			}
			b.opts.Metrics.acceptFailed(b.config)
			b.logger.Error(b.p.Sprintf(msgAcceptFailed), "error", err)
			b.setRelayState(RelayDisconnected)
			if !b.pause(ctx, b.opts.RetryInterval) {
				return
			}
			continue
		}
		b.relay(ctx, serial, conn)
		b.setRelayState(RelayDisconnected)
		if ctx.Err() == nil {
			b.logger.Info(b.p.Sprintf(msgReconnecting))
		}
	}
}

// openSerial opens the serial port, retrying every RetryInterval until it
// succeeds. It returns nil once ctx is cancelled.
func (b *ActiveBinding) openSerial(ctx context.Context) Port {
	b.setRelayState(RelayOpening)
	failures := 0
	for ctx.Err() == nil {
		b.logger.Debug(b.p.Sprintf(msgOpening), "baud_rate", int(b.config.BaudRate))
		serial, err := b.opts.OpenPort(b.config, b.opts.ReadTimeout)
		if err == nil {
			return serial
		}
		failures++
		b.opts.Metrics.serialOpenFailed(b.config)
		b.logger.Warn(b.p.Sprintf(msgOpenFailed),
			"error", err,
			"attempt", failures,
			"retry_in", b.opts.RetryInterval.String(),
		)
		if failures == 1 && b.logger.Enabled(ctx, slog.LevelDebug) {
			if names, err := GetPortNames(); err == nil {
				b.logger.Debug(b.p.Sprintf(msgAvailablePorts), "ports", names)
			}
		}
		if !b.pause(ctx, b.opts.RetryInterval) {
			return nil
		}
	}
	return nil
}

// relay runs one session: the forward pump copies serial to TCP while this
// goroutine copies TCP to serial. Any failure ends the session; the
// forward pump is joined before relay returns.
func (b *ActiveBinding) relay(ctx context.Context, serial Port, conn net.Conn) {
	logger := b.logger.With(
		"session", uuid.NewString(),
		"remote_addr", conn.RemoteAddr().String(),
	)

	serialRead, err := serial.Clone()
	if err != nil {
		b.opts.Metrics.ioFailed(b.config, OpSerialClone)
		logger.Error(b.p.Sprintf(msgCloneFailed), "error", err)
		conn.Close()
		serial.Close()
		return
	}

	sessionCtx, cancelSession := context.WithCancel(ctx)
	// A binding stop must unblock the TCP read below.
	stopConn := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	var forward sync.WaitGroup
	forward.Add(1)
	b.forwards.Add(1)
	go func() {
		defer forward.Done()
		defer b.forwards.Add(-1)
		b.forward(sessionCtx, serialRead, conn, logger)
	}()

	b.opts.Metrics.sessionStarted(b.config)
	b.setRelayState(RelayRelaying)
	logger.Info(b.p.Sprintf(msgConnected))

	err = b.pump(conn, serial, logger)

	b.setRelayState(RelayTearingDown)
	cancelSession()
	stopConn()
	conn.Close()
	forward.Wait()
	serialRead.Close()
	serial.Close()
	b.opts.Metrics.sessionEnded(b.config)

	if err != nil && ctx.Err() == nil {
		logger.Info(b.p.Sprintf(msgRelayExited), "error", err)
	} else {
		logger.Info(b.p.Sprintf(msgRelayExited))
	}
}

// pump copies TCP to serial until either side fails.
func (b *ActiveBinding) pump(conn net.Conn, serial Port, logger *slog.Logger) error {
	buf := make([]byte, b.opts.BufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			b.trace(logger, gxcommon.TraceTypesSent, "TX", buf[:n])
			if _, werr := serial.Write(buf[:n]); werr != nil {
				b.opts.Metrics.ioFailed(b.config, OpSerialWrite)
				logger.Error(b.p.Sprintf(msgSerialWriteFailed), "error", werr)
				return fmt.Errorf("serial write: %w", werr)
			}
			b.opts.Metrics.relayed(b.config, DirectionTCPToSerial, n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info(b.p.Sprintf(msgClientClosed))
				return nil
			}
			if isExpectedCloseError(err) {
				logger.Debug(b.p.Sprintf(msgTCPReadFailed), "error", err)
				return nil
			}
			b.opts.Metrics.ioFailed(b.config, OpTCPRead)
			logger.Warn(b.p.Sprintf(msgTCPReadFailed), "error", err)
			return fmt.Errorf("tcp read: %w", err)
		}
	}
}

// trace logs relayed bytes when the configured trace level admits traceType.
func (b *ActiveBinding) trace(logger *slog.Logger, traceType gxcommon.TraceTypes, label string, data []byte) {
	if int(b.opts.Trace) < int(traceType) {
		return
	}
	str, err := gxcommon.ToString(data)
	if err != nil {
		return
	}
	logger.Info(label, "data", str, "bytes", len(data))
}

// isExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe, or connection reset.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
