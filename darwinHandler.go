//go:build darwin

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
	"io"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/sys/unix"
)

type port struct {
	f  *os.File
	fd int
}

// toUnixBaudrate maps a baud rate to the corresponding constant in the mac package.
var toUnixBaudrate = map[int]uint64{
	50:     unix.B50,
	75:     unix.B75,
	110:    unix.B110,
	134:    unix.B134,
	150:    unix.B150,
	200:    unix.B200,
	300:    unix.B300,
	600:    unix.B600,
	1200:   unix.B1200,
	1800:   unix.B1800,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// getPortNames returns a list of available serial port device paths on macOS.
func getPortNames() ([]string, error) {
	patterns := []string{
		"/dev/tty.*",
		"/dev/cu.*",
	}

	var devices []string
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, device := range matches {
			if _, ok := seen[device]; !ok {
				seen[device] = struct{}{}
				devices = append(devices, device)
			}
		}
	}
	return devices, nil
}

func openPort(cfg BindingConfig) (port, error) {
	speed, ok := toUnixBaudrate[int(cfg.BaudRate)]
	if !ok {
		return port{}, fmt.Errorf("unsupported baud rate %d", cfg.BaudRate)
	}
	fd, err := unix.Open(cfg.Port, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0666)
	if err != nil {
		return port{}, err
	}
	p := port{f: os.NewFile(uintptr(fd), cfg.Port), fd: fd}

	t, err := unix.IoctlGetTermios(fd, unix.TIOCGETA)
	if err != nil {
		p.close()
		return port{}, err
	}
	t.Cflag |= unix.CLOCAL | unix.CREAD
	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.ISIG | unix.IEXTEN
	t.Oflag &^= unix.OPOST | unix.ONLCR | unix.OCRNL
	t.Iflag &^= unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IGNBRK
	t.Ispeed = speed
	t.Ospeed = speed

	t.Cflag &^= unix.CSIZE
	switch cfg.DataBits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	case 8:
		t.Cflag |= unix.CS8
	default:
		p.close()
		return port{}, errors.New("invalid databits (must be 5..8)")
	}

	switch cfg.StopBits {
	case gxcommon.StopBitsOne:
		t.Cflag &^= unix.CSTOPB
	case gxcommon.StopBitsTwo:
		t.Cflag |= unix.CSTOPB
	default:
		p.close()
		return port{}, errors.New("invalid stopbits (must be one or two)")
	}

	// macOS has no CMSPAR, so mark and space parity are rejected.
	t.Iflag &^= unix.INPCK | unix.ISTRIP
	t.Cflag &^= unix.PARENB | unix.PARODD
	switch cfg.Parity {
	case gxcommon.ParityNone:
	case gxcommon.ParityEven:
		t.Cflag |= unix.PARENB
	case gxcommon.ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case gxcommon.ParityMark, gxcommon.ParitySpace:
		p.close()
		return port{}, errors.New("mark/space parity not supported on this system")
	default:
		p.close()
		return port{}, errors.New("invalid parity")
	}

	t.Iflag &^= unix.IXON | unix.IXOFF
	t.Cflag &^= unix.CRTSCTS
	if err := unix.IoctlSetTermios(fd, unix.TIOCSETA, t); err != nil {
		p.close()
		return port{}, err
	}
	if err := ioctlSetIntPointer(fd, unix.TIOCFLUSH, unix.TCIFLUSH); err != nil {
		p.close()
		return port{}, err
	}
	return p, nil
}

func ioctlSetIntPointer(fd int, req uint, value int) error {
	v := value
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return errno
	}
	return nil
}

// clone duplicates the descriptor. Both handles share the line settings.
func (p *port) clone() (port, error) {
	if err := p.ensureOpen(); err != nil {
		return port{}, err
	}
	fd, err := unix.FcntlInt(uintptr(p.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return port{}, fmt.Errorf("dup failed: %w", err)
	}
	return port{f: os.NewFile(uintptr(fd), p.f.Name()), fd: fd}, nil
}

func (p *port) close() error {
	if p == nil || p.f == nil {
		return nil
	}
	f := p.f
	p.f = nil
	p.fd = -1
	return f.Close()
}

// supportedBaudRate reports whether the termios layer can set rate.
func supportedBaudRate(rate int) bool {
	_, ok := toUnixBaudrate[rate]
	return ok
}

func (p *port) isOpen() bool {
	return p.f != nil
}

func (p *port) ensureOpen() error {
	if p == nil || p.f == nil {
		return errors.New("serial port not open")
	}
	return nil
}

// read waits up to timeout for input. It returns 0, nil when nothing arrived.
func (p *port) read(buf []byte, timeout time.Duration) (int, error) {
	if err := p.ensureOpen(); err != nil {
		return 0, err
	}
	pfds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	ready, err := unix.Poll(pfds, pollTimeout(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}
	if ready == 0 {
		return 0, nil
	}
	if pfds[0].Revents&unix.POLLIN == 0 {
		return 0, fmt.Errorf("serial port %s: poll revents 0x%x", p.f.Name(), pfds[0].Revents)
	}
	n, err := unix.Read(p.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// write gives up with ErrWriteTimeout when the device has not taken all of
// data within timeout. The descriptor is non-blocking, so the deadline is
// enforced by the runtime poller.
func (p *port) write(data []byte, timeout time.Duration) (int, error) {
	if err := p.ensureOpen(); err != nil {
		return 0, err
	}
	if err := p.f.SetWriteDeadline(time.Now().Add(timeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return 0, fmt.Errorf("serial port %s: %w", p.f.Name(), err)
	}
	n, err := p.f.Write(data)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, ErrWriteTimeout
	}
	return n, err
}

func pollTimeout(timeout time.Duration) int {
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	return ms
}
