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
	"log/slog"
	"net"
	"time"

	"github.com/Gurux/gxcommon-go"
)

// forward copies serial to TCP until ctx is cancelled. It never ends the
// session by itself: write failures are logged and the supervisor notices
// a dead client from its own side.
func (b *ActiveBinding) forward(ctx context.Context, serial Port, conn net.Conn, logger *slog.Logger) {
	buf := make([]byte, b.opts.BufferSize)
	for ctx.Err() == nil {
		n, err := serial.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.opts.Metrics.ioFailed(b.config, OpSerialRead)
			logger.Warn(b.p.Sprintf(msgSerialReadFailed), "error", err)
			// A failing device would otherwise spin this loop.
			b.pause(ctx, b.opts.ReadTimeout)
			continue
		}
		if n == 0 {
			continue
		}
		b.trace(logger, gxcommon.TraceTypesReceived, "RX", buf[:n])
		if _, err := conn.Write(buf[:n]); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.opts.Metrics.ioFailed(b.config, OpTCPWrite)
			if isExpectedCloseError(err) {
				logger.Debug(b.p.Sprintf(msgTCPWriteFailed), "error", err)
			} else {
				logger.Warn(b.p.Sprintf(msgTCPWriteFailed), "error", err)
			}
			continue
		}
		b.opts.Metrics.relayed(b.config, DirectionSerialToTCP, n)
	}
}

// pause waits d. It returns false if ctx ended first.
func (b *ActiveBinding) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
