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

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/ini.v1"
)

const relaySection = "relay"

// parseINI reads every [relay] section of data. Keys outside a section and
// unknown keys are ignored; unknown sections are logged and skipped.
func parseINI(data []byte, logger *slog.Logger) ([]relay, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowNonUniqueSections: true,
		InsensitiveKeys:        true,
		IgnoreInlineComment:    true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("parsing ini: %w", err)
	}

	var relays []relay
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		if !strings.EqualFold(name, relaySection) {
			logger.Warn("Unknown parameter", "section", name)
			continue
		}
		var r relay
		for _, key := range section.Keys() {
			value := strings.TrimSpace(key.String())
			switch key.Name() {
			case "com":
				r.Com = value
			case "baud":
				r.Baud = value
			case "host":
				r.Host = value
			case "databits":
				if value != "" {
					r.DataBits = value
				}
			case "parity":
				r.Parity = value
			case "stopbits":
				if value != "" {
					r.StopBits = value
				}
			}
		}
		relays = append(relays, r)
	}
	return relays, nil
}
