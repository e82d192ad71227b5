//go:build windows

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
	"unsafe"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

type port struct {
	name    string
	h       windows.Handle
	ovRead  windows.Overlapped
	ovWrite windows.Overlapped
	closing windows.Handle
}

func (p *port) isOpen() bool {
	return p != nil && p.h != 0 && p.h != windows.InvalidHandle
}

// getPortNames retrieves the list of available serial port names on a Windows system by querying the registry.
func getPortNames() ([]string, error) {
	const path = `HARDWARE\DEVICEMAP\SERIALCOMM`

	key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		if err == registry.ErrNotExist {
			return []string{}, nil
		}
		return nil, err
	}
	defer func() {
		_ = key.Close()
	}()

	valueNames, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, name := range valueNames {
		port, _, err := key.GetStringValue(name)
		if err == nil {
			ports = append(ports, port)
		}
	}
	return ports, nil
}

const (
	dcbFBinary         = 1 << 0
	dcbFParity         = 1 << 1
	dcbFErrorChar      = 1 << 10
	dcbFNull           = 1 << 11
	dcbFAbortOnError   = 1 << 14
	dcbFDtrControlMask = 0x3 << 4  // bits 4-5
	dcbFRtsControlMask = 0x3 << 12 // bits 12-13
)

// XON/XOFF control characters
const (
	xon  byte = 0x11
	xoff byte = 0x13
)

func setFlag(d *windows.DCB, flag uint32, on bool) {
	if on {
		d.Flags |= flag
	} else {
		d.Flags &^= flag
	}
}

func (p *port) applySettings(cfg BindingConfig) error {
	var d windows.DCB
	d.DCBlength = uint32(unsafe.Sizeof(d))
	if err := windows.GetCommState(p.h, &d); err != nil {
		return fmt.Errorf("GetCommState failed: %w", err)
	}

	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return errors.New("invalid databits (must be 5..8)")
	}
	d.BaudRate = uint32(cfg.BaudRate)
	d.ByteSize = byte(cfg.DataBits)
	d.Parity = byte(cfg.Parity)

	switch cfg.StopBits {
	case gxcommon.StopBitsOne:
		d.StopBits = 0 // ONESTOPBIT
	case gxcommon.StopBitsTwo:
		d.StopBits = 2 // TWOSTOPBITS
	default:
		return gxcommon.ErrInvalidArgument
	}
	setFlag(&d, dcbFParity, d.Parity != 0)
	setFlag(&d, dcbFBinary, true)
	setFlag(&d, dcbFNull, false)
	setFlag(&d, dcbFErrorChar, false)
	setFlag(&d, dcbFAbortOnError, false)
	d.XonChar = xon
	d.XoffChar = xoff
	// RTS and DTR control disabled.
	d.Flags &^= dcbFRtsControlMask | dcbFDtrControlMask
	if err := windows.SetCommState(p.h, &d); err != nil {
		return fmt.Errorf("SetCommState failed: %w", err)
	}
	return nil
}

// createEvents allocates the closing and overlapped events for handle h.
func (p *port) createEvents() error {
	closing, err := windows.CreateEvent(nil, 1, 0, nil) // manual-reset, not signaled
	if err != nil {
		return fmt.Errorf("CreateEvent(closing) failed: %w", err)
	}
	p.closing = closing

	er, err := windows.CreateEvent(nil, 0, 0, nil) // auto-reset
	if err != nil {
		return fmt.Errorf("CreateEvent(read) failed: %w", err)
	}
	p.ovRead.HEvent = er

	ew, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return fmt.Errorf("CreateEvent(write) failed: %w", err)
	}
	p.ovWrite.HEvent = ew
	return nil
}

func openPort(cfg BindingConfig) (port, error) {
	if strings.TrimSpace(cfg.Port) == "" {
		return port{}, errors.New("invalid serial port name")
	}

	p := port{name: cfg.Port}
	path := `\\.\` + cfg.Port
	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(path),
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		return port{}, fmt.Errorf("failed to open port %q: %w", cfg.Port, err)
	}
	p.h = h

	if err := p.createEvents(); err != nil {
		_ = p.close()
		return port{}, err
	}
	if err := p.applySettings(cfg); err != nil {
		_ = p.close()
		return port{}, fmt.Errorf("failed to update serial port settings: %w", err)
	}
	if err := windows.PurgeComm(p.h,
		windows.PURGE_TXCLEAR|windows.PURGE_TXABORT|windows.PURGE_RXCLEAR|windows.PURGE_RXABORT,
	); err != nil {
		_ = p.close()
		return port{}, fmt.Errorf("PurgeComm failed: %w", err)
	}
	return p, nil
}

// clone duplicates the handle with its own overlapped events.
func (p *port) clone() (port, error) {
	if !p.isOpen() {
		return port{}, errors.New("serial port is not open")
	}
	c := port{name: p.name}
	self := windows.CurrentProcess()
	if err := windows.DuplicateHandle(self, p.h, self, &c.h, 0, false, windows.DUPLICATE_SAME_ACCESS); err != nil {
		return port{}, fmt.Errorf("DuplicateHandle failed: %w", err)
	}
	if err := c.createEvents(); err != nil {
		_ = c.close()
		return port{}, err
	}
	return c, nil
}

// ClearCommError + COMSTAT.cbInQue
func (p *port) getBytesToRead() (int, error) {
	var flags uint32
	var st windows.ComStat
	if err := windows.ClearCommError(p.h, &flags, &st); err != nil {
		return 0, fmt.Errorf("getBytesToRead failed: %w", err)
	}
	return int(st.CBInQue), nil
}

// supportedBaudRate is true for every positive rate; the driver rejects
// rates the hardware cannot generate when the port is opened.
func supportedBaudRate(rate int) bool {
	return rate > 0
}

// read waits up to timeout for input. It returns 0, nil when nothing arrived.
func (p *port) read(buf []byte, timeout time.Duration) (int, error) {
	if !p.isOpen() {
		return 0, errors.New("serial port is not open")
	}
	count, err := p.getBytesToRead()
	if err != nil {
		return 0, err
	}
	if count == 0 {
		count = 1
	}
	if count > len(buf) {
		count = len(buf)
	}

	var n uint32
	_ = windows.ResetEvent(p.ovRead.HEvent)
	err = windows.ReadFile(p.h, buf[:count], &n, &p.ovRead)
	if err == nil {
		return int(n), nil
	}
	if !errors.Is(err, windows.ERROR_IO_PENDING) {
		return 0, fmt.Errorf("read failed: %w", err)
	}

	ms := uint32(timeout / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	handles := []windows.Handle{p.closing, p.ovRead.HEvent}
	idx, werr := windows.WaitForMultipleObjects(handles, false, ms)
	if werr != nil {
		_ = windows.CancelIoEx(p.h, &p.ovRead)
		return 0, fmt.Errorf("read wait failed: %w", werr)
	}
	if idx != windows.WAIT_OBJECT_0+1 {
		// Timed out or closing: cancel, but keep anything that completed meanwhile.
		_ = windows.CancelIoEx(p.h, &p.ovRead)
	}
	if gerr := windows.GetOverlappedResult(p.h, &p.ovRead, &n, true); gerr != nil {
		if errors.Is(gerr, windows.ERROR_OPERATION_ABORTED) {
			return 0, nil
		}
		return 0, fmt.Errorf("read failed: %w", gerr)
	}
	return int(n), nil
}

// write gives up with ErrWriteTimeout when the device has not taken all of
// data within timeout.
func (p *port) write(data []byte, timeout time.Duration) (int, error) {
	if !p.isOpen() {
		return 0, errors.New("serial port is not open")
	}
	if len(data) == 0 {
		return 0, nil
	}

	var n uint32
	_ = windows.ResetEvent(p.ovWrite.HEvent)
	err := windows.WriteFile(p.h, data, &n, &p.ovWrite)
	if err == nil {
		return checkWritten(int(n), len(data))
	}
	if !errors.Is(err, windows.ERROR_IO_PENDING) {
		return 0, fmt.Errorf("write failed: %w", err)
	}
	ms := uint32(timeout / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	handles := []windows.Handle{p.closing, p.ovWrite.HEvent}
	idx, werr := windows.WaitForMultipleObjects(handles, false, ms)
	if werr != nil {
		_ = windows.CancelIoEx(p.h, &p.ovWrite)
		return 0, fmt.Errorf("write wait failed: %w", werr)
	}
	timedOut := idx == uint32(windows.WAIT_TIMEOUT)
	if idx != windows.WAIT_OBJECT_0+1 {
		_ = windows.CancelIoEx(p.h, &p.ovWrite)
	}
	if gerr := windows.GetOverlappedResult(p.h, &p.ovWrite, &n, true); gerr != nil {
		if timedOut && errors.Is(gerr, windows.ERROR_OPERATION_ABORTED) {
			return int(n), ErrWriteTimeout
		}
		return int(n), fmt.Errorf("write failed: %w", gerr)
	}
	return checkWritten(int(n), len(data))
}

func (p *port) close() error {
	if p == nil {
		return nil
	}
	if p.closing != 0 {
		_ = windows.SetEvent(p.closing)
	}
	if p.h != 0 && p.h != windows.InvalidHandle {
		_ = windows.CancelIoEx(p.h, nil)
	}

	if p.ovRead.HEvent != 0 {
		_ = windows.CloseHandle(p.ovRead.HEvent)
		p.ovRead.HEvent = 0
	}
	if p.ovWrite.HEvent != 0 {
		_ = windows.CloseHandle(p.ovWrite.HEvent)
		p.ovWrite.HEvent = 0
	}
	if p.h != 0 {
		_ = windows.CloseHandle(p.h)
		p.h = 0
	}
	if p.closing != 0 {
		_ = windows.CloseHandle(p.closing)
		p.closing = 0
	}
	return nil
}
