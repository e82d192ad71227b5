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
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoSerialPort is returned when a serial port name is missing.
	ErrNoSerialPort = errors.New("no serial port selected")
	// ErrWriteTimeout is returned by Write when the device stops taking data.
	ErrWriteTimeout = errors.New("serial write timed out")
)

// Port is an open serial device as used by a relay session.
//
// Read waits at most the read timeout the port was opened with and returns
// 0, nil when nothing arrived in that window. Write writes all of p or
// returns an error; a device that stops taking data fails the write instead
// of blocking it forever. Clone returns an independent handle to the same device,
// so the two relay directions never share a handle.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Clone() (Port, error)
	Close() error
}

// PortOpener opens the serial device described by cfg.
type PortOpener func(cfg BindingConfig, readTimeout time.Duration) (Port, error)

// GXSerial is an open serial device handle.
type GXSerial struct {
	name        string
	baudRate    int
	readTimeout time.Duration
	s           port
}

// OpenSerial opens and configures the serial device of cfg. Reads on the
// returned handle give up after readTimeout.
func OpenSerial(cfg BindingConfig, readTimeout time.Duration) (*GXSerial, error) {
	if strings.TrimSpace(cfg.Port) == "" {
		return nil, ErrNoSerialPort
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	p, err := openPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	return &GXSerial{name: cfg.Port, baudRate: int(cfg.BaudRate), readTimeout: readTimeout, s: p}, nil
}

// openSerialPort adapts OpenSerial to PortOpener.
func openSerialPort(cfg BindingConfig, readTimeout time.Duration) (Port, error) {
	g, err := OpenSerial(cfg, readTimeout)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetPortNames returns list of available serial ports.
func GetPortNames() ([]string, error) {
	return getPortNames()
}

// Read implements Port.
func (g *GXSerial) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	return g.s.read(b, g.readTimeout)
}

// Write implements Port. It waits at most the read timeout plus the time
// the line needs to transmit b.
func (g *GXSerial) Write(b []byte) (int, error) {
	return g.s.write(b, g.writeTimeout(len(b)))
}

// writeTimeout allows ten bit times per byte on top of the read timeout.
func (g *GXSerial) writeTimeout(n int) time.Duration {
	timeout := g.readTimeout
	if g.baudRate > 0 {
		timeout += time.Duration(n) * 10 * time.Second / time.Duration(g.baudRate)
	}
	return timeout
}

// checkWritten turns a write that completed short of want bytes into an
// error.
func checkWritten(n, want int) (int, error) {
	if n != want {
		return n, fmt.Errorf("write failed: %d of %d bytes written", n, want)
	}
	return n, nil
}

// Clone implements Port.
func (g *GXSerial) Clone() (Port, error) {
	c, err := g.s.clone()
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", g.name, err)
	}
	return &GXSerial{name: g.name, baudRate: g.baudRate, readTimeout: g.readTimeout, s: c}, nil
}

// Close implements Port. Closing twice is a no-op.
func (g *GXSerial) Close() error {
	return g.s.close()
}

// IsOpen reports whether the handle is still open.
func (g *GXSerial) IsOpen() bool {
	return g.s.isOpen()
}

// String returns the device name.
func (g *GXSerial) String() string {
	return g.name
}
