// Package gxserial2tcp relays bytes between a serial port and a TCP client.
//
// A binding pairs one serial device with one TCP listen address. While the
// binding runs, it opens the serial port, waits for a single TCP client and
// copies bytes in both directions until either side fails. It then tears
// the session down and starts over. A missing serial device and a dropped
// client are retried forever; only a bad configuration or a listen address
// that cannot be bound is reported to the caller.
//
// # Construction
//
// Use Start to bind the listener and run the relay in the background.
//
// Example
//
//	cfg := gxserial2tcp.NewBindingConfig("/dev/ttyUSB0", 9600, "0.0.0.0:9000")
//	binding, err := gxserial2tcp.Start(ctx, cfg, gxserial2tcp.Options{Logger: logger})
//	if err != nil {
//	    // listen address in use or invalid config
//	}
//	defer binding.Stop()
//
// # Sessions
//
// Each accepted client starts a session. The supervisor goroutine copies
// TCP to serial and a forward pump copies serial to TCP on its own cloned
// serial handle. Serial reads are bounded by Options.ReadTimeout, which is
// also how quickly a session notices that it was cancelled. A client that
// closes its connection ends the session; the binding reopens the serial
// port and waits for the next client.
//
// # Shutdown
//
// Stop cancels the binding, closes the listener and the live client
// connection, and returns once every goroutine of the binding has exited.
// Stop is idempotent.
//
// # Serial ports
//
// OpenSerial opens a device with raw line settings taken from the
// BindingConfig (baud rate, data bits, parity, stop bits). GetPortNames
// lists the serial ports of the host.
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
