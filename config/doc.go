// Package config loads relay bindings from configuration files and the
// process settings from the environment.
//
// Load reads a list of bindings. The format follows the file extension:
//
//	.yaml, .yml    YAML with a "relays" list
//	.json, .jsonc  JSON with a "relays" list; comments and trailing commas allowed
//	anything else  INI with one [relay] section per binding
//
// An INI file looks like
//
//	[relay]
//	com = /dev/ttyUSB0
//	baud = 9600
//	host = 0.0.0.0:9000
//
//	[relay]
//	com = COM3
//	host = 127.0.0.1:9001
//
// Keys are case-insensitive. Unknown keys are ignored and unknown sections
// are logged and skipped. A baud rate that is missing, zero or not a number
// becomes 115200. The optional keys databits, parity and stopbits default
// to 8, None and 1.
//
// LoadEnv reads the GXSERIAL2TCP_* variables, optionally merged with a
// .env file.
package config

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
